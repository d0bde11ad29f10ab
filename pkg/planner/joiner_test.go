package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parajoin/pkg/engine"
	dberr "parajoin/pkg/error"
	"parajoin/pkg/parser"
	"parajoin/pkg/relation"
)

// r0: (a, b)      r1: (a, c)         r2: (c)
//     (1, 10)         (1, 100)           (100)
//     (2, 20)         (2, 200)           (100)
//     (2, 21)         (3, 300)           (300)
//     (3, 30)
func newJoiner(t *testing.T) *Joiner {
	t.Helper()
	pool, err := engine.NewPool(engine.WithWorkers(4), engine.WithMinBlockSize(1))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	cat := relation.NewCatalog()
	cat.Add(relation.MustNew([]uint64{1, 2, 2, 3}, []uint64{10, 20, 21, 30}), "")
	cat.Add(relation.MustNew([]uint64{1, 2, 3}, []uint64{100, 200, 300}), "")
	cat.Add(relation.MustNew([]uint64{100, 100, 300}), "")
	return NewJoiner(cat, pool)
}

func run(t *testing.T, j *Joiner, line string) (*Result, error) {
	t.Helper()
	q, err := parser.Parse(line)
	require.NoError(t, err)
	return j.Join(q)
}

func TestJoinerQueries(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"single scan", "0||0.0 0.1", "8 81"},
		{"filter scan", "0|0.0>1|0.1", "71"},
		{"two way join", "0 1|0.0=1.0|0.1 1.1", "81 800"},
		{"join with filter", "0 1|0.0=1.0&1.1<250|1.1", "500"},
		{"three way join", "0 1 2|0.0=1.0&1.1=2.0|0.1", "50"},
		{"predicate order independent of bindings", "0 1 2|1.1=2.0&0.0=1.0|0.1", "50"},
		{"self join on joined bindings", "0 1|0.0=1.0&0.1=1.0|0.0", "NULL"},
		{"single binding self join", "0|0.0=0.0|0.1", "81"},
		{"same relation twice", "1 1|0.0=1.0|0.1 1.1", "600 600"},
		{"empty result", "0 1|0.0=1.0&0.0>5|0.1", "NULL"},
		{"constant on the left", "0|2<0.0|0.1", "30"},
		{"repeated selection", "1||1.0 1.0", "6 6"},
	}

	j := newJoiner(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := run(t, j, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.String())
		})
	}
}

func TestJoinerFlipsPredicateOntoTree(t *testing.T) {
	// the second predicate names the new binding on its left side
	res, err := run(t, newJoiner(t), "2 1 0|1.0=2.0&0.0=1.1|2.1")
	require.NoError(t, err)
	assert.Equal(t, "50", res.String())
	assert.Contains(t, res.Plan, "Join(Join(Scan(1), Scan(2), 1.0=2.0), Scan(0), 1.1=0.0)")
}

func TestJoinerPredicateDeferredUntilConnected(t *testing.T) {
	// 2.1=3.0 touches neither 0 nor 1 when first visited
	res, err := run(t, newJoiner(t), "0 1 1 2|0.0=1.0&2.1=3.0&1.0=2.0|0.1")
	require.NoError(t, err)
	assert.Equal(t, "50", res.String())
}

func TestJoinerCrossProduct(t *testing.T) {
	j := newJoiner(t)
	for _, query := range []string{
		"0 1||0.0",
		"0 1 2 2|0.0=1.0&2.0=3.0|0.0",
		"0 1|1.0=1.1|0.0",
	} {
		_, err := run(t, j, query)
		require.Error(t, err, query)
		assert.True(t, dberr.HasCode(err, dberr.CodeCrossProduct), "%s: %v", query, err)
	}
}

func TestJoinerUnknownRelation(t *testing.T) {
	_, err := run(t, newJoiner(t), "7||0.0")
	require.Error(t, err)
	assert.True(t, dberr.HasCode(err, dberr.CodeRelationNotFound))
}

func TestJoinerUnknownColumn(t *testing.T) {
	j := newJoiner(t)
	for _, query := range []string{
		"2||0.1",
		"0 2|0.0=1.4|0.0",
		"0|0.5>1|0.0",
	} {
		_, err := run(t, j, query)
		require.Error(t, err, query)
		assert.True(t, dberr.HasCode(err, dberr.CodeColumnOutOfRange), "%s: %v", query, err)
	}
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "1 2", (&Result{Sums: []uint64{1, 2}, ResultSize: 3}).String())
	assert.Equal(t, "NULL NULL", (&Result{Sums: []uint64{0, 0}}).String())
}
