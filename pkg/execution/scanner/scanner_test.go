package scanner

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"parajoin/pkg/engine"
	dberr "parajoin/pkg/error"
	"parajoin/pkg/parser"
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

func filter(b primitives.Binding, c primitives.ColumnID, cmp primitives.Comparison, k uint64) parser.FilterInfo {
	return parser.FilterInfo{
		Column:     parser.SelectInfo{Ref: ref(b, c)},
		Comparison: cmp,
		Constant:   k,
	}
}

// ============================================================================
// SCAN TESTS
// ============================================================================

func TestScanRequireAndResolve(t *testing.T) {
	rel := relation.MustNew([]uint64{1, 2, 3}, []uint64{4, 5, 6})
	s, err := NewScan(rel, 2)
	require.NoError(t, err)

	assert.True(t, s.Require(ref(2, 1)))
	assert.True(t, s.Require(ref(2, 0)))
	assert.True(t, s.Require(ref(2, 1)), "require is idempotent")
	assert.False(t, s.Require(ref(1, 0)), "other binding")
	assert.False(t, s.Require(ref(2, 5)), "unknown column")

	s.Run()

	assert.Equal(t, 3, s.ResultSize())
	require.Len(t, s.Results(), 2)
	assert.Equal(t, 0, s.Resolve(ref(2, 1)))
	assert.Equal(t, 1, s.Resolve(ref(2, 0)))

	col := s.Results()[s.Resolve(ref(2, 1))]
	assert.Same(t, &rel.Column(1)[0], &col[0], "scan must not copy")
	assert.Equal(t, "Scan(2)", s.String())
}

func TestScanNilRelation(t *testing.T) {
	_, err := NewScan(nil, 0)
	assert.Error(t, err)
}

func TestScanResolveUnrequiredPanics(t *testing.T) {
	s, err := NewScan(relation.MustNew([]uint64{1}), 0)
	require.NoError(t, err)
	s.Run()

	defer func() {
		rec := recover()
		dbErr, ok := rec.(*dberr.DBError)
		require.True(t, ok, "panic value %v", rec)
		assert.Equal(t, dberr.CodeColumnNotRequired, dbErr.Code)
	}()
	s.Resolve(ref(0, 0))
}

func TestScanRunTwicePanics(t *testing.T) {
	s, err := NewScan(relation.MustNew([]uint64{1}), 0)
	require.NoError(t, err)
	s.Run()
	assert.Panics(t, s.Run)
}

// ============================================================================
// FILTER SCAN TESTS
// ============================================================================

func TestFilterScanKeepsMatchingRowsInOrder(t *testing.T) {
	rel := relation.MustNew(
		[]uint64{5, 5, 3, 5},
		[]uint64{20, 5, 99, 11},
	)
	filters := []parser.FilterInfo{
		filter(0, 0, primitives.Equal, 5),
		filter(0, 1, primitives.Greater, 10),
	}

	for _, workers := range []int{1, 2, 3, 4} {
		for _, minBlock := range []int{1, 2, 512} {
			t.Run(fmt.Sprintf("workers=%d/minBlock=%d", workers, minBlock), func(t *testing.T) {
				fs, err := NewFilterScan(newPool(t, workers, minBlock), rel, 0, filters)
				require.NoError(t, err)
				require.True(t, fs.Require(ref(0, 0)))
				require.True(t, fs.Require(ref(0, 1)))

				fs.Run()

				require.Equal(t, 2, fs.ResultSize())
				assert.Equal(t, []uint64{5, 5}, fs.Results()[fs.Resolve(ref(0, 0))])
				assert.Equal(t, []uint64{20, 11}, fs.Results()[fs.Resolve(ref(0, 1))])
			})
		}
	}
}

func TestFilterScanLessAndNoMatches(t *testing.T) {
	rel := relation.MustNew([]uint64{1, 2, 3, 4, 5, 6})
	pool := newPool(t, 3, 1)

	less, err := NewFilterScan(pool, rel, 0, []parser.FilterInfo{filter(0, 0, primitives.Less, 3)})
	require.NoError(t, err)
	require.True(t, less.Require(ref(0, 0)))
	less.Run()
	assert.Equal(t, []uint64{1, 2}, less.Results()[0])

	none, err := NewFilterScan(pool, rel, 0, []parser.FilterInfo{filter(0, 0, primitives.Greater, 100)})
	require.NoError(t, err)
	require.True(t, none.Require(ref(0, 0)))
	none.Run()
	assert.Zero(t, none.ResultSize())
	assert.Empty(t, none.Results()[0])
}

func TestFilterScanWithoutRequiredColumns(t *testing.T) {
	rel := relation.MustNew([]uint64{1, 2, 3, 4})
	fs, err := NewFilterScan(newPool(t, 2, 1), rel, 0, []parser.FilterInfo{filter(0, 0, primitives.Greater, 1)})
	require.NoError(t, err)

	fs.Run()

	assert.Equal(t, 3, fs.ResultSize())
	assert.Empty(t, fs.Results())
}

func TestFilterScanRequireIsIdempotent(t *testing.T) {
	rel := relation.MustNew([]uint64{1, 2}, []uint64{3, 4})
	fs, err := NewFilterScan(newPool(t, 1, 1), rel, 3, nil)
	require.NoError(t, err)

	require.True(t, fs.Require(ref(3, 1)))
	first := fs.Resolve(ref(3, 1))
	require.True(t, fs.Require(ref(3, 1)))
	assert.Equal(t, first, fs.Resolve(ref(3, 1)))
	assert.False(t, fs.Require(ref(0, 1)))
	assert.False(t, fs.Require(ref(3, 2)))

	fs.Run()
	assert.Len(t, fs.Results(), 1)
	assert.Equal(t, []uint64{3, 4}, fs.Results()[first])
}

func TestNewFilterScanValidation(t *testing.T) {
	rel := relation.MustNew([]uint64{1})
	pool := newPool(t, 1, 1)

	_, err := NewFilterScan(pool, rel, 0, []parser.FilterInfo{filter(1, 0, primitives.Equal, 1)})
	assert.Error(t, err, "filter on another binding")

	_, err = NewFilterScan(pool, rel, 0, []parser.FilterInfo{filter(0, 4, primitives.Equal, 1)})
	assert.Error(t, err, "filter column out of range")

	_, err = NewFilterScan(nil, rel, 0, nil)
	assert.Error(t, err)

	_, err = NewFilterScan(pool, nil, 0, nil)
	assert.Error(t, err)

	fs, err := NewFilterScan(pool, rel, 0, []parser.FilterInfo{
		filter(0, 0, primitives.Equal, 1),
		filter(0, 0, primitives.Less, 9),
	})
	require.NoError(t, err)
	assert.Equal(t, "FilterScan(0, 0.0=1&0.0<9)", fs.String())
}

func TestFilterScanMatchesSequentialScan(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 400).Draw(rt, "rows")
		a := rapid.SliceOfN(rapid.Uint64Range(0, 20), n, n).Draw(rt, "a")
		b := rapid.SliceOfN(rapid.Uint64Range(0, 20), n, n).Draw(rt, "b")
		workers := rapid.IntRange(1, 6).Draw(rt, "workers")
		minBlock := rapid.IntRange(1, 64).Draw(rt, "minBlock")
		cmp := primitives.Comparison(rapid.IntRange(0, 2).Draw(rt, "cmp"))
		k := rapid.Uint64Range(0, 20).Draw(rt, "k")

		pool, err := engine.NewPool(engine.WithWorkers(workers), engine.WithMinBlockSize(minBlock))
		if err != nil {
			rt.Fatal(err)
		}
		defer pool.Close()

		fs, err := NewFilterScan(pool, relation.MustNew(a, b), 0, []parser.FilterInfo{filter(0, 0, cmp, k)})
		if err != nil {
			rt.Fatal(err)
		}
		fs.Require(ref(0, 1))
		fs.Require(ref(0, 0))
		fs.Run()

		var wantA, wantB []uint64
		for i := range a {
			if cmp.Apply(a[i], k) {
				wantA = append(wantA, a[i])
				wantB = append(wantB, b[i])
			}
		}

		if fs.ResultSize() != len(wantA) {
			rt.Fatalf("result size %d, want %d", fs.ResultSize(), len(wantA))
		}
		gotA := fs.Results()[fs.Resolve(ref(0, 0))]
		gotB := fs.Results()[fs.Resolve(ref(0, 1))]
		for i := range wantA {
			if gotA[i] != wantA[i] || gotB[i] != wantB[i] {
				rt.Fatalf("row %d = (%d,%d), want (%d,%d)", i, gotA[i], gotB[i], wantA[i], wantB[i])
			}
		}
	})
}
