package primitives

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComparisonApply(t *testing.T) {
	tests := []struct {
		name     string
		cmp      Comparison
		value    uint64
		constant uint64
		want     bool
	}{
		{"equal hit", Equal, 5, 5, true},
		{"equal miss", Equal, 5, 6, false},
		{"greater hit", Greater, 11, 10, true},
		{"greater boundary", Greater, 10, 10, false},
		{"less hit", Less, 3, 4, true},
		{"less boundary", Less, 4, 4, false},
		{"unknown comparison", Comparison(42), 1, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cmp.Apply(tt.value, tt.constant))
		})
	}
}

func TestComparisonFlip(t *testing.T) {
	assert.Equal(t, Less, Greater.Flip())
	assert.Equal(t, Greater, Less.Flip())
	assert.Equal(t, Equal, Equal.Flip())

	// 3 < x  <=>  x > 3
	assert.Equal(t, Less.Apply(3, 7), Less.Flip().Apply(7, 3))
}

func TestParseComparison(t *testing.T) {
	for _, b := range []byte{'=', '>', '<'} {
		c, ok := ParseComparison(b)
		assert.True(t, ok)
		assert.Equal(t, string(b), c.String())
	}

	_, ok := ParseComparison('!')
	assert.False(t, ok)
}

func TestColumnRefAsKey(t *testing.T) {
	m := map[ColumnRef]int{NewColumnRef(1, 2): 7}

	assert.Equal(t, 7, m[ColumnRef{Binding: 1, Column: 2}])
	assert.Equal(t, "1.2", NewColumnRef(1, 2).String())
}
