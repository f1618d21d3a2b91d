package retriever

import (
	"sort"

	"github.com/kailas-cloud/ragpipe/internal/domain/search/result"
)

// DefaultRRFK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const DefaultRRFK = 60

// fuseRRF merges ranked lists via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) over the lists where d appears, rank 1-based.
// Ties go to the better best rank, then to the smaller id. Only the first occurrence of
// an id within one list counts. The first seen result is kept unless a later one is inline.
func fuseRRF(lists [][]result.Result, k, limit int) []result.Result {
	type scored struct {
		res      result.Result
		score    float64
		bestRank int
	}

	merged := make(map[string]*scored)
	order := make([]string, 0)

	for _, list := range lists {
		seen := make(map[string]bool, len(list))
		for i, r := range list {
			if seen[r.ID()] {
				continue
			}
			seen[r.ID()] = true

			rank := i + 1
			s := 1.0 / float64(k+rank)
			existing, ok := merged[r.ID()]
			if !ok {
				merged[r.ID()] = &scored{res: r, score: s, bestRank: rank}
				order = append(order, r.ID())
				continue
			}
			existing.score += s
			existing.bestRank = min(existing.bestRank, rank)
			if existing.res.IsRef() && !r.IsRef() {
				existing.res = r
			}
		}
	}

	results := make([]scored, 0, len(merged))
	for _, id := range order {
		results = append(results, *merged[id])
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.bestRank != b.bestRank {
			return a.bestRank < b.bestRank
		}
		return a.res.ID() < b.res.ID()
	})

	out := make([]result.Result, len(results))
	for i, s := range results {
		out[i] = s.res.WithScore(s.score)
	}
	return result.Truncate(out, limit)
}
