package document

import (
	"fmt"
	"strconv"
	"strings"
)

// segment is one step of a field path: a named field, optionally fanned out over a list.
type segment struct {
	name   string
	fanout bool
}

// parseFieldPath parses the collection-relative field path grammar:
//
//	"."               whole document
//	".description"    field of every document
//	".paras[].text"   field of every element of a list field
func parseFieldPath(fieldPath string) ([]segment, error) {
	if !strings.HasPrefix(fieldPath, ".") {
		return nil, fmt.Errorf("field path %q must start with '.'", fieldPath)
	}
	rest := strings.TrimPrefix(fieldPath, ".")
	if rest == "" {
		return nil, nil
	}

	parts := strings.Split(rest, ".")
	segs := make([]segment, 0, len(parts))
	for _, p := range parts {
		s := segment{name: p}
		if strings.HasSuffix(p, "[]") {
			s.name = strings.TrimSuffix(p, "[]")
			s.fanout = true
		}
		if s.name == "" || strings.ContainsAny(s.name, "[]") {
			return nil, fmt.Errorf("field path %q: invalid segment %q", fieldPath, p)
		}
		segs = append(segs, s)
	}
	return segs, nil
}

// step is one step of an item path: a map field or a list index.
type step struct {
	field string
	index int
	isIdx bool
}

// parseItemPath parses item paths produced by Collection.Items, e.g. "[3].paras[1].text".
func parseItemPath(path string) (int, []step, error) {
	if !strings.HasPrefix(path, "[") {
		return 0, nil, fmt.Errorf("item path %q must start with a document index", path)
	}
	end := strings.IndexByte(path, ']')
	if end < 0 {
		return 0, nil, fmt.Errorf("item path %q: unterminated index", path)
	}
	docIdx, err := strconv.Atoi(path[1:end])
	if err != nil || docIdx < 0 {
		return 0, nil, fmt.Errorf("item path %q: invalid document index", path)
	}

	var steps []step
	rest := path[end+1:]
	for rest != "" {
		switch rest[0] {
		case '.':
			rest = rest[1:]
			n := strings.IndexAny(rest, ".[")
			if n < 0 {
				n = len(rest)
			}
			if n == 0 {
				return 0, nil, fmt.Errorf("item path %q: empty field name", path)
			}
			steps = append(steps, step{field: rest[:n]})
			rest = rest[n:]
		case '[':
			n := strings.IndexByte(rest, ']')
			if n < 0 {
				return 0, nil, fmt.Errorf("item path %q: unterminated index", path)
			}
			idx, err := strconv.Atoi(rest[1:n])
			if err != nil || idx < 0 {
				return 0, nil, fmt.Errorf("item path %q: invalid index %q", path, rest[1:n])
			}
			steps = append(steps, step{index: idx, isIdx: true})
			rest = rest[n+1:]
		default:
			return 0, nil, fmt.Errorf("item path %q: unexpected %q", path, rest[0])
		}
	}
	return docIdx, steps, nil
}

func docPath(i int) string { return "[" + strconv.Itoa(i) + "]" }

func indexPath(parent string, i int) string { return parent + "[" + strconv.Itoa(i) + "]" }
