package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/ragpipe/internal/db"
)

// distanceField is the pseudo-field FT.SEARCH fills with the KNN distance.
const distanceField = "__vector_score"

// SearchKNN returns the q.K nearest items. Cosine distances become
// similarities clamped to [0,1].
func (s *Store) SearchKNN(ctx context.Context, q db.KNNQuery) ([]db.Hit, error) {
	switch {
	case q.Index == "":
		return nil, errors.New("index name is required")
	case len(q.Vector) == 0:
		return nil, errors.New("query vector is required")
	case q.K <= 0:
		return nil, fmt.Errorf("k must be positive, got %d", q.K)
	}

	k := strconv.Itoa(q.K)
	cmd := s.client.B().Arbitrary("FT.SEARCH").Args(
		q.Index, "*=>[KNN "+k+" @"+vectorAlias+" $BLOB]",
		"RETURN", "2", fieldPath, distanceField,
		"SORTBY", distanceField, "ASC",
		"LIMIT", "0", k,
		"PARAMS", "2", "BLOB", encodeVector(q.Vector),
		"DIALECT", "2",
	).Build()

	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Cmd: "FT.SEARCH", Key: q.Index, Err: err}
	}
	return parseHits(raw, false)
}

// SearchText returns the q.K best BM25 matches of any query term.
func (s *Store) SearchText(ctx context.Context, q db.TextQuery) ([]db.Hit, error) {
	if q.Index == "" {
		return nil, errors.New("index name is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", q.K)
	}
	terms := make([]string, 0, len(q.Terms))
	for _, t := range q.Terms {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, queryEscaper.Replace(t))
		}
	}
	if len(terms) == 0 {
		return nil, errors.New("at least one query term is required")
	}

	cmd := s.client.B().Arbitrary("FT.SEARCH").Args(
		q.Index, "@"+fieldContent+":("+strings.Join(terms, " | ")+")",
		"RETURN", "1", fieldPath,
		"WITHSCORES",
		"LIMIT", "0", strconv.Itoa(q.K),
		"DIALECT", "2",
	).Build()

	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Cmd: "FT.SEARCH", Key: q.Index, Err: err}
	}
	return parseHits(raw, true)
}

// parseHits decodes an FT.SEARCH reply:
//
//	[total, key, (score,) [field, value, ...], key, ...]
//
// Entries that are malformed or carry no item path are skipped.
func parseHits(raw []rueidis.RedisMessage, withScores bool) ([]db.Hit, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	stride := 2
	if withScores {
		stride = 3
	}

	hits := make([]db.Hit, 0, total)
	for i := 1; i+stride-1 < len(raw); i += stride {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+stride-1].AsStrMap()
		if err != nil {
			continue
		}
		hit := db.Hit{Key: key, Path: strings.TrimSpace(fields[fieldPath])}
		if hit.Path == "" {
			continue
		}

		if withScores {
			score, err := raw[i+1].ToString()
			if err != nil {
				continue
			}
			if hit.Score, err = strconv.ParseFloat(score, 64); err != nil {
				continue
			}
		} else if d, err := strconv.ParseFloat(fields[distanceField], 64); err == nil {
			hit.Score = min(1, max(0, 1-d))
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// queryEscaper escapes query syntax characters inside a single term.
var queryEscaper = strings.NewReplacer(
	`\`, `\\`, `'`, `\'`, `"`, `\"`, `@`, `\@`,
	`{`, `\{`, `}`, `\}`, `(`, `\(`, `)`, `\)`,
	`[`, `\[`, `]`, `\]`, `|`, `\|`, `-`, `\-`,
	`~`, `\~`, `*`, `\*`, `!`, `\!`, `%`, `\%`,
	`^`, `\^`, `$`, `\$`, `<`, `\<`, `>`, `\>`,
	`=`, `\=`, `;`, `\;`, `+`, `\+`, `:`, `\:`,
	`,`, `\,`, `.`, `\.`,
)
