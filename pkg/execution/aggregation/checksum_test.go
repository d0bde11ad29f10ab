package aggregation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"parajoin/pkg/engine"
	dberr "parajoin/pkg/error"
	"parajoin/pkg/execution/scanner"
	"parajoin/pkg/primitives"
	"parajoin/pkg/relation"
)

func newPool(t testing.TB, workers, minBlock int) *engine.Pool {
	t.Helper()
	p, err := engine.NewPool(engine.WithWorkers(workers), engine.WithMinBlockSize(minBlock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func ref(b primitives.Binding, c primitives.ColumnID) primitives.ColumnRef {
	return primitives.NewColumnRef(b, c)
}

func checksumOf(t testing.TB, pool *engine.Pool, rel *relation.Relation, refs ...primitives.ColumnRef) *Checksum {
	t.Helper()
	s, err := scanner.NewScan(rel, 0)
	require.NoError(t, err)
	c, err := NewChecksum(pool, s, refs)
	require.NoError(t, err)
	c.Run()
	return c
}

func TestChecksumSums(t *testing.T) {
	rel := relation.MustNew([]uint64{1, 2, 3, 4}, []uint64{10, 20, 30, 40})
	c := checksumOf(t, newPool(t, 4, 1), rel, ref(0, 1), ref(0, 0))

	assert.Equal(t, []uint64{100, 10}, c.CheckSums())
	assert.Equal(t, 4, c.ResultSize())
	assert.Equal(t, "100 10", c.Format())
	assert.Equal(t, "Checksum(Scan(0), 0.1 0.0)", c.String())
}

func TestChecksumRepeatedColumn(t *testing.T) {
	rel := relation.MustNew([]uint64{5, 6})
	c := checksumOf(t, newPool(t, 2, 1), rel, ref(0, 0), ref(0, 0))
	assert.Equal(t, []uint64{11, 11}, c.CheckSums())
}

func TestChecksumWraparound(t *testing.T) {
	rel := relation.MustNew([]uint64{math.MaxUint64, 2, math.MaxUint64})
	c := checksumOf(t, newPool(t, 3, 1), rel, ref(0, 0))
	assert.Equal(t, []uint64{math.MaxUint64}, c.CheckSums())
}

func TestChecksumEmpty(t *testing.T) {
	rel := relation.MustNew([]uint64{}, []uint64{})
	c := checksumOf(t, newPool(t, 2, 1), rel, ref(0, 0), ref(0, 1))

	assert.Equal(t, []uint64{0, 0}, c.CheckSums())
	assert.Equal(t, "NULL NULL", c.Format())
}

func TestChecksumUnknownColumn(t *testing.T) {
	s, err := scanner.NewScan(relation.MustNew([]uint64{1}), 0)
	require.NoError(t, err)

	_, err = NewChecksum(newPool(t, 1, 1), s, []primitives.ColumnRef{ref(0, 3)})
	require.Error(t, err)
	assert.True(t, dberr.HasCode(err, dberr.CodeColumnOutOfRange))
}

func TestChecksumRunTwicePanics(t *testing.T) {
	c := checksumOf(t, newPool(t, 1, 1), relation.MustNew([]uint64{1}), ref(0, 0))
	assert.Panics(t, func() { c.Run() })
}

func TestChecksumMatchesSequentialSum(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		vals := rapid.SliceOfN(rapid.Uint64(), 0, 2000).Draw(rt, "values")
		workers := rapid.IntRange(1, 8).Draw(rt, "workers")
		minBlock := rapid.IntRange(1, 128).Draw(rt, "minBlock")

		var want uint64
		for _, v := range vals {
			want += v
		}

		pool, err := engine.NewPool(engine.WithWorkers(workers), engine.WithMinBlockSize(minBlock))
		require.NoError(rt, err)
		defer pool.Close()

		c := checksumOf(t, pool, relation.MustNew(vals), ref(0, 0))
		require.Equal(rt, want, c.CheckSums()[0])
	})
}
