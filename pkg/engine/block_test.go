package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewBlockInfo(t *testing.T) {
	tests := []struct {
		name         string
		begin, end   int
		minBlockSize int
		workers      int
		wantCount    int
		wantSize     int
	}{
		{"empty range", 0, 0, 64, 4, 1, 0},
		{"collapses below min block", 0, 100, 64, 8, 1, 100},
		{"limited by workers", 0, 100, 10, 4, 4, 25},
		{"limited by min block", 0, 100, 30, 8, 3, 33},
		{"offset range", 5, 25, 1, 8, 8, 2},
		{"zero workers treated as one", 0, 10, 1, 0, 1, 10},
		{"zero min block treated as one", 0, 3, 0, 8, 3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bi := NewBlockInfo(tt.begin, tt.end, tt.minBlockSize, tt.workers)
			assert.Equal(t, tt.wantCount, bi.BlockCount)
			assert.Equal(t, tt.wantSize, bi.BlockSize)
			assert.Equal(t, tt.end-tt.begin, bi.Len())
		})
	}
}

func TestBlockLastAbsorbsRemainder(t *testing.T) {
	bi := NewBlockInfo(0, 103, 10, 4)
	require.Equal(t, 4, bi.BlockCount)

	b, e := bi.Block(0)
	assert.Equal(t, [2]int{0, 25}, [2]int{b, e})

	b, e = bi.Block(3)
	assert.Equal(t, [2]int{75, 103}, [2]int{b, e})
}

func TestNewBlockInfoRejectsInvertedRange(t *testing.T) {
	assert.Panics(t, func() { NewBlockInfo(10, 5, 1, 1) })
}

func TestBlockInfoProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		begin := rapid.IntRange(0, 1000).Draw(t, "begin")
		n := rapid.IntRange(0, 100_000).Draw(t, "n")
		minBlock := rapid.IntRange(1, 4096).Draw(t, "minBlock")
		workers := rapid.IntRange(1, 64).Draw(t, "workers")

		bi := NewBlockInfo(begin, begin+n, minBlock, workers)

		if bi.BlockCount < 1 || bi.BlockCount > workers {
			t.Fatalf("block count %d outside [1, %d]", bi.BlockCount, workers)
		}
		if bi.BlockCount > 1 && bi.BlockSize < minBlock {
			t.Fatalf("block size %d below minimum %d", bi.BlockSize, minBlock)
		}

		next := begin
		for rank := 0; rank < bi.BlockCount; rank++ {
			b, e := bi.Block(rank)
			if b != next || e < b {
				t.Fatalf("block %d = [%d, %d) does not continue at %d", rank, b, e, next)
			}
			next = e
		}
		if next != begin+n {
			t.Fatalf("blocks end at %d, want %d", next, begin+n)
		}
	})
}
