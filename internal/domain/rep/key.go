// Package rep identifies representations: a field path of the collection (or of the
// query) paired with a representation name.
package rep

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Separator joins field path and representation name in the textual key form.
const Separator = "#"

// QueryPrefix marks field paths that address the query rather than the collection.
const QueryPrefix = "query"

// Key is a (field path, representation name) pair.
type Key struct {
	fieldPath string
	name      string
}

// New validates and creates a Key.
func New(fieldPath, name string) (Key, error) {
	fieldPath = strings.TrimSpace(fieldPath)
	name = strings.TrimSpace(name)
	if fieldPath == "" {
		return Key{}, fmt.Errorf("field path is required")
	}
	if name == "" {
		return Key{}, fmt.Errorf("representation name is required")
	}
	if strings.Contains(fieldPath, Separator) || strings.Contains(name, Separator) {
		return Key{}, fmt.Errorf("representation key parts must not contain %q", Separator)
	}
	return Key{fieldPath: fieldPath, name: name}, nil
}

// Parse splits "fieldpath#name", e.g. ".paras[].text#sparse".
func Parse(s string) (Key, error) {
	fieldPath, name, ok := strings.Cut(strings.TrimSpace(s), Separator)
	if !ok {
		return Key{}, fmt.Errorf("representation key %q must have the form <fieldpath>%s<name>", s, Separator)
	}
	k, err := New(fieldPath, name)
	if err != nil {
		return Key{}, fmt.Errorf("representation key %q: %w", s, err)
	}
	return k, nil
}

// MustParse is Parse for static keys; it panics on malformed input.
func MustParse(s string) Key {
	k, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return k
}

// FieldPath returns the field path part.
func (k Key) FieldPath() string { return k.fieldPath }

// Name returns the representation name part.
func (k Key) Name() string { return k.name }

// IsQuery reports whether the key addresses the query side.
func (k Key) IsQuery() bool { return strings.HasPrefix(k.fieldPath, QueryPrefix) }

// IsZero reports whether k is the zero Key.
func (k Key) IsZero() bool { return k.fieldPath == "" && k.name == "" }

func (k Key) String() string { return k.fieldPath + Separator + k.name }

// Collection derives a storage-safe collection name, e.g. ".paras[].text#dense" ->
// "paras_text__dense_b3147863". The suffix hashes the textual key, since sanitizing
// folds paths such as ".paras[].text" and ".paras.text" together.
func (k Key) Collection() string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range k.fieldPath {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if isAlnum {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	base := strings.TrimSuffix(b.String(), "_")
	if base == "" {
		base = "root"
	}
	sum := sha256.Sum256([]byte(k.String()))
	return base + "__" + sanitizeName(k.name) + "_" + hex.EncodeToString(sum[:4])
}

func sanitizeName(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'), r == '_', r == '-':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// StorageName derives the persisted index name of this key built with encoder,
// e.g. "paras_text__dense_b3147863:text-embedding-3-small".
func (k Key) StorageName(encoder string) string {
	return k.Collection() + ":" + sanitizeName(encoder)
}
