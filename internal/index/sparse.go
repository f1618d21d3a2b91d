package index

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/kailas-cloud/ragpipe/internal/domain/document"
	"github.com/kailas-cloud/ragpipe/internal/domain/search/result"
)

// BM25 parameters.
const (
	BM25K1 = 1.2
	BM25B  = 0.75
)

// TextStore persists the texts of a storage-backed sparse index and scores them with BM25.
type TextStore interface {
	CreateText(ctx context.Context, name string, paths, texts []string) error
	SearchText(ctx context.Context, name, query string, k int) ([]result.Result, error)
}

// Sparse is a BM25 lexical index, in memory or backed by a TextStore.
// The query side keeps the raw text; it is tokenized by the document side.
type Sparse struct {
	entries
	texts    []string
	termFreq []map[string]int
	lengths  []int
	docFreq  map[string]int
	totalLen int

	store TextStore
	name  string
	n     int
}

var (
	_ Index      = (*Sparse)(nil)
	_ ItemSource = (*Sparse)(nil)
)

// NewSparse creates an empty in-memory sparse index.
func NewSparse() *Sparse {
	return &Sparse{docFreq: make(map[string]int)}
}

// NewStoredSparse creates an empty sparse index whose document texts are written to store under name.
func NewStoredSparse(store TextStore, name string) *Sparse {
	return &Sparse{docFreq: make(map[string]int), store: store, name: name}
}

// OpenSparse reattaches a sparse index previously persisted under name.
func OpenSparse(store TextStore, name string, n int) *Sparse {
	return &Sparse{docFreq: make(map[string]int), store: store, name: name, n: n}
}

// Kind implements Index.
func (s *Sparse) Kind() Kind { return KindSparse }

// Len implements Index.
func (s *Sparse) Len() int { return s.n }

// Name returns the storage name, empty for in-memory indices.
func (s *Sparse) Name() string { return s.name }

// Stored reports whether document texts live in the store.
func (s *Sparse) Stored() bool { return s.store != nil }

// Add indexes texts under their item paths.
func (s *Sparse) Add(ctx context.Context, texts, paths []string, isQuery bool) error {
	if err := s.add(paths, len(texts), isQuery); err != nil {
		return err
	}

	if s.store != nil && !isQuery {
		if err := s.store.CreateText(ctx, s.name, paths, texts); err != nil {
			return fmt.Errorf("store sparse index %s: %w", s.name, err)
		}
		s.texts = append(s.texts, texts...)
		s.n += len(texts)
		return nil
	}

	for _, text := range texts {
		s.texts = append(s.texts, text)
		if isQuery {
			continue
		}
		tokens := Tokenize(text)
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for term := range tf {
			s.docFreq[term]++
		}
		s.termFreq = append(s.termFreq, tf)
		s.lengths = append(s.lengths, len(tokens))
		s.totalLen += len(tokens)
	}
	s.n += len(texts)
	return nil
}

// Items returns the raw texts added in this process. A sparse index reopened
// with OpenSparse has none.
func (s *Sparse) Items() document.Items {
	values := make([]any, len(s.texts))
	for i, t := range s.texts {
		values[i] = t
	}
	return document.Items{Values: values, Paths: s.paths[:len(s.texts)]}
}

// QueryRep returns the first query text.
func (s *Sparse) QueryRep() (Query, error) {
	if err := s.queryPosition(KindSparse); err != nil {
		return Query{}, err
	}
	return Query{Text: s.texts[0]}, nil
}

// Retrieve scores documents containing any term of q.Text with BM25.
func (s *Sparse) Retrieve(ctx context.Context, q Query, limit int) ([]result.Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, fmt.Errorf("sparse index requires a text query")
	}
	if limit <= 0 {
		limit = s.n
	}
	if s.n == 0 {
		return nil, nil
	}

	if s.store != nil {
		found, err := s.store.SearchText(ctx, s.name, q.Text, limit)
		if err != nil {
			return nil, fmt.Errorf("search sparse index %s: %w", s.name, err)
		}
		return rank(found, limit), nil
	}

	if len(s.termFreq) == 0 {
		return nil, nil
	}
	terms := uniqueTerms(Tokenize(q.Text))
	avgLen := float64(s.totalLen) / float64(len(s.termFreq))
	out := make([]result.Result, 0, len(s.termFreq))
	for i, tf := range s.termFreq {
		score := 0.0
		for _, term := range terms {
			f := tf[term]
			if f == 0 {
				continue
			}
			score += s.idf(term) * bm25TF(float64(f), float64(s.lengths[i]), avgLen)
		}
		if score > 0 {
			out = append(out, result.NewRef(s.paths[i], score))
		}
	}
	return rank(out, limit), nil
}

// idf is the non-negative BM25 inverse document frequency.
func (s *Sparse) idf(term string) float64 {
	n := float64(len(s.termFreq))
	df := float64(s.docFreq[term])
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

func bm25TF(tf, docLen, avgLen float64) float64 {
	if avgLen == 0 {
		avgLen = 1
	}
	return tf * (BM25K1 + 1) / (tf + BM25K1*(1-BM25B+BM25B*docLen/avgLen))
}

// Tokenize lowercases text and splits it on anything that is not a letter or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func uniqueTerms(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0]
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
