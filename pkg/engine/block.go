package engine

import (
	dberr "parajoin/pkg/error"
)

// Default minimum block sizes per operator phase.
const (
	MinBlockFilterScan = 1 << 9
	MinBlockSelfJoin   = 1 << 9
	MinBlockJoinProbe  = 1 << 10
	MinBlockJoinBuild  = 1 << 14
	MinBlockChecksum   = 1 << 10
	MinBlockStatistics = 1 << 12
)

// BlockInfo divides [Begin, End) into BlockCount contiguous blocks of
// BlockSize rows; the last block absorbs the remainder.
type BlockInfo struct {
	Begin      int
	End        int
	BlockCount int
	BlockSize  int
}

// NewBlockInfo picks min((end-begin)/minBlockSize, workers) blocks, and
// never fewer than one. Small ranges therefore collapse to a single block.
func NewBlockInfo(begin, end, minBlockSize, workers int) BlockInfo {
	if end < begin {
		panic(dberr.Invariant(dberr.CodeColumnOutOfRange, "Engine", "NewBlockInfo",
			"invalid range [%d, %d)", begin, end))
	}
	minBlockSize = max(minBlockSize, 1)
	workers = max(workers, 1)

	total := end - begin
	count := max(min(total/minBlockSize, workers), 1)

	return BlockInfo{
		Begin:      begin,
		End:        end,
		BlockCount: count,
		BlockSize:  total / count,
	}
}

// Len is the number of rows covered.
func (b BlockInfo) Len() int {
	return b.End - b.Begin
}

// Block returns the half-open row range of block rank.
func (b BlockInfo) Block(rank int) (begin, end int) {
	begin = b.Begin + rank*b.BlockSize
	if rank == b.BlockCount-1 {
		return begin, b.End
	}
	return begin, begin + b.BlockSize
}
