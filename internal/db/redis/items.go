package redis

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/ragpipe/internal/db"
)

// Hash layout of a stored item.
const (
	fieldPath    = "__path"
	fieldContent = "__content"
	fieldVector  = "__vector"
	// vectorAlias is the name KNN clauses address the vector field by.
	vectorAlias = "vector"
)

// PutItems writes one hash per item in a single pipelined round-trip.
func (s *Store) PutItems(ctx context.Context, items []db.Item) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, 0, len(items))
	for _, it := range items {
		hset := s.client.B().Hset().Key(it.Key).FieldValue().FieldValue(fieldPath, it.Path)
		if it.Vector != nil {
			hset = hset.FieldValue(fieldVector, encodeVector(it.Vector))
		} else {
			hset = hset.FieldValue(fieldContent, it.Content)
		}
		cmds = append(cmds, hset.Build())
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Cmd: "HSET", Key: items[i].Key, Err: err}
		}
	}
	return nil
}

// encodeVector packs v as little-endian FLOAT32, the blob format of VECTOR fields.
func encodeVector(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return rueidis.BinaryString(buf)
}
