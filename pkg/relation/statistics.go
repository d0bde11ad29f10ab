package relation

import (
	"encoding/binary"
	"math"

	"github.com/axiomhq/hyperloglog"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"parajoin/pkg/engine"
	"parajoin/pkg/primitives"
)

// ColumnStats summarises one column.
type ColumnStats struct {
	Column   primitives.ColumnID
	Min      uint64
	Max      uint64
	Distinct uint64 // HyperLogLog estimate
}

type partialStats struct {
	min, max uint64
	sketch   *hyperloglog.Sketch
}

// ComputeStatistics scans every column of rel in parallel. Columns run
// concurrently; inside a column every block keeps its own sketch and
// extremes, merged after the barrier.
func ComputeStatistics(pool *engine.Pool, rel *Relation) ([]ColumnStats, error) {
	stats := make([]ColumnStats, rel.ColumnCount())

	var g errgroup.Group
	for c := range stats {
		g.Go(func() error {
			s, err := columnStats(pool, rel.Column(primitives.ColumnID(c)))
			if err != nil {
				return err
			}
			s.Column = primitives.ColumnID(c)
			stats[c] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

func columnStats(pool *engine.Pool, col []uint64) (ColumnStats, error) {
	if len(col) == 0 {
		return ColumnStats{}, nil
	}

	bi := pool.BlockInfo(0, len(col), engine.MinBlockStatistics)
	partials := make([]partialStats, bi.BlockCount)

	pool.ParallelFor(bi, func(rank, begin, end int) {
		p := partialStats{min: math.MaxUint64, sketch: hyperloglog.New14()}
		var buf [8]byte
		for _, v := range col[begin:end] {
			p.min = min(p.min, v)
			p.max = max(p.max, v)
			binary.LittleEndian.PutUint64(buf[:], v)
			p.sketch.InsertHash(xxhash.Sum64(buf[:]))
		}
		partials[rank] = p
	})

	out := ColumnStats{Min: math.MaxUint64}
	merged := hyperloglog.New14()
	for _, p := range partials {
		out.Min = min(out.Min, p.min)
		out.Max = max(out.Max, p.max)
		if err := merged.Merge(p.sketch); err != nil {
			return ColumnStats{}, err
		}
	}
	out.Distinct = merged.Estimate()
	return out, nil
}
