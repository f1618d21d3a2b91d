package document

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/ragpipe/internal/domain"
)

// LeafType declares how leaf values are turned into text for encoders.
type LeafType string

const (
	// LeafRaw accepts any JSON value; non-strings are rendered as compact JSON.
	LeafRaw LeafType = "raw"
	// LeafText requires string leaves.
	LeafText LeafType = "text"
)

// IsValid checks if the leaf type is one of the supported values.
func (t LeafType) IsValid() bool { return t == LeafRaw || t == LeafText }

// Items is the result of enumerating a field path: values paired with their item paths.
type Items struct {
	Values []any
	Paths  []string
}

// Len returns the number of items.
func (it Items) Len() int { return len(it.Values) }

// Collection is a read-only, addressable set of JSON-object documents.
type Collection struct {
	docs []map[string]any
}

// NewCollection wraps documents; the slice is owned by the collection afterwards.
func NewCollection(docs []map[string]any) *Collection {
	return &Collection{docs: docs}
}

// Len returns the number of documents.
func (c *Collection) Len() int { return len(c.docs) }

// Doc returns the i-th document.
func (c *Collection) Doc(i int) (map[string]any, bool) {
	if i < 0 || i >= len(c.docs) {
		return nil, false
	}
	return c.docs[i], true
}

// Items enumerates every value addressed by fieldPath across all documents, in document order.
// Documents lacking the field are skipped.
func (c *Collection) Items(fieldPath string) (Items, error) {
	segs, err := parseFieldPath(fieldPath)
	if err != nil {
		return Items{}, err
	}

	var out Items
	for i, doc := range c.docs {
		if err := collect(doc, docPath(i), segs, &out); err != nil {
			return Items{}, fmt.Errorf("document %d: %w", i, err)
		}
	}
	return out, nil
}

func collect(v any, path string, segs []segment, out *Items) error {
	if len(segs) == 0 {
		out.Values = append(out.Values, v)
		out.Paths = append(out.Paths, path)
		return nil
	}

	m, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("%s: expected object, got %T", path, v)
	}
	seg := segs[0]
	child, ok := m[seg.name]
	if !ok || child == nil {
		return nil
	}
	childPath := path + "." + seg.name

	if !seg.fanout {
		return collect(child, childPath, segs[1:], out)
	}

	list, ok := child.([]any)
	if !ok {
		return fmt.Errorf("%s: expected list, got %T", childPath, child)
	}
	for j, el := range list {
		if err := collect(el, indexPath(childPath, j), segs[1:], out); err != nil {
			return err
		}
	}
	return nil
}

// Resolve loads the value at an item path. Missing paths wrap domain.ErrNotFound.
func (c *Collection) Resolve(path string) (any, error) {
	docIdx, steps, err := parseItemPath(path)
	if err != nil {
		return nil, err
	}
	doc, ok := c.Doc(docIdx)
	if !ok {
		return nil, fmt.Errorf("document %d: %w", docIdx, domain.ErrNotFound)
	}

	var cur any = doc
	for _, s := range steps {
		if s.isIdx {
			list, ok := cur.([]any)
			if !ok || s.index >= len(list) {
				return nil, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
			}
			cur = list[s.index]
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
		}
		next, ok := m[s.field]
		if !ok {
			return nil, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
		}
		cur = next
	}
	return cur, nil
}

// Text renders a leaf value for encoding according to the leaf type.
func Text(v any, leaf LeafType) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	if leaf == LeafText {
		return "", fmt.Errorf("leaf type %q requires string values, got %T", leaf, v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("render leaf: %w", err)
	}
	return string(b), nil
}

// Texts renders every value with Text.
func Texts(values []any, leaf LeafType) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		s, err := Text(v, leaf)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}
