package join

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"parajoin/pkg/engine"
	dberr "parajoin/pkg/error"
)

const noRow int32 = -1

// hashIndex is the read-only multimap from key to build rows that the
// probe phase uses. Rows sharing a key form a chain through next, in
// ascending row order. It has no mutating methods, so concurrent probes
// need no synchronization.
type hashIndex struct {
	heads []map[uint64]int32
	next  []int32
}

// First returns the first build row with key, or -1.
func (h *hashIndex) First(key uint64) int32 {
	row, ok := h.heads[partitionOf(key, len(h.heads))][key]
	if !ok {
		return noRow
	}
	return row
}

// Next returns the build row after row in its key chain, or -1.
func (h *hashIndex) Next(row int32) int32 {
	return h.next[row]
}

// Count returns the number of build rows with key.
func (h *hashIndex) Count(key uint64) int {
	n := 0
	for r := h.First(key); r != noRow; r = h.next[r] {
		n++
	}
	return n
}

// Keys returns the number of distinct keys.
func (h *hashIndex) Keys() int {
	n := 0
	for _, m := range h.heads {
		n += len(m)
	}
	return n
}

func partitionOf(key uint64, partitions int) int {
	if partitions == 1 {
		return 0
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	return int(xxhash.Sum64(buf[:]) % uint64(partitions))
}

// hashIndexBuilder is the build-phase handle. Each partition is filled by
// exactly one goroutine and every row lives in one partition, so writes
// to next never overlap. Freeze hands the tables over to a hashIndex and
// disables the builder.
type hashIndexBuilder struct {
	keys  []uint64
	heads []map[uint64]int32
	next  []int32
}

func newHashIndexBuilder(keys []uint64, partitions int) *hashIndexBuilder {
	if len(keys) > math.MaxInt32 {
		panic(dberr.Invariant(dberr.CodeColumnOutOfRange, "Join", "Build",
			"build side has %d rows, at most %d supported", len(keys), math.MaxInt32))
	}
	heads := make([]map[uint64]int32, partitions)
	for p := range heads {
		heads[p] = make(map[uint64]int32, len(keys)/partitions+1)
	}
	return &hashIndexBuilder{
		keys:  keys,
		heads: heads,
		next:  make([]int32, len(keys)),
	}
}

// insert prepends row to its key chain in partition p. Inserting rows in
// descending order therefore leaves every chain ascending.
func (b *hashIndexBuilder) insert(p int, row int32) {
	key := b.keys[row]
	head, ok := b.heads[p][key]
	if !ok {
		head = noRow
	}
	b.next[row] = head
	b.heads[p][key] = row
}

func (b *hashIndexBuilder) freeze() *hashIndex {
	if b.heads == nil {
		panic(dberr.Invariant(dberr.CodeOperatorRerun, "Join", "Build", "hash index already frozen"))
	}
	idx := &hashIndex{heads: b.heads, next: b.next}
	b.heads, b.next, b.keys = nil, nil, nil
	return idx
}

// buildHashIndex indexes keys by value. Small inputs are built on the
// calling goroutine. Larger ones are split by key hash into one partition
// per block: every block first scatters its row ids into per-partition
// lists, then each partition inserts its rows from all blocks.
func buildHashIndex(pool *engine.Pool, keys []uint64, sequential bool) *hashIndex {
	bi := engine.BlockInfo{End: len(keys), BlockCount: 1, BlockSize: len(keys)}
	if !sequential {
		bi = pool.BlockInfo(0, len(keys), engine.MinBlockJoinBuild)
	}
	partitions := bi.BlockCount

	b := newHashIndexBuilder(keys, partitions)
	if partitions == 1 {
		for row := len(keys) - 1; row >= 0; row-- {
			b.insert(0, int32(row))
		}
		return b.freeze()
	}

	// rowsByBlock[rank][p] lists the rows of block rank hashing to p, ascending
	rowsByBlock := make([][][]int32, bi.BlockCount)
	pool.ParallelFor(bi, func(rank, begin, end int) {
		local := make([][]int32, partitions)
		for row := begin; row < end; row++ {
			p := partitionOf(keys[row], partitions)
			local[p] = append(local[p], int32(row))
		}
		rowsByBlock[rank] = local
	})

	parts := engine.BlockInfo{End: partitions, BlockCount: partitions, BlockSize: 1}
	pool.ParallelFor(parts, func(p, _, _ int) {
		for rank := len(rowsByBlock) - 1; rank >= 0; rank-- {
			rows := rowsByBlock[rank][p]
			for i := len(rows) - 1; i >= 0; i-- {
				b.insert(p, rows[i])
			}
		}
	})
	return b.freeze()
}
