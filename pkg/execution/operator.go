package execution

import (
	"parajoin/pkg/engine"
	dberr "parajoin/pkg/error"
	"parajoin/pkg/primitives"
)

// Operator is the capability every node of a query tree provides.
//
// Columns are pulled, not pushed: before Run, the parent calls Require for
// each column it will read. Require returns false when the subtree cannot
// produce the column, and is idempotent otherwise. After Run, Resolve maps
// a required column to its index in Results, and every result column has
// exactly ResultSize values.
type Operator interface {
	Require(ref primitives.ColumnRef) bool
	Run()
	Results() [][]uint64
	Resolve(ref primitives.ColumnRef) int
	ResultSize() int
	String() string
}

// BaseOperator holds the state shared by all operators: the column
// resolution map, the materialized columns and the row count.
type BaseOperator struct {
	name             string
	select2ResultCol map[primitives.ColumnRef]int
	results          [][]uint64
	resultSize       int
	ran              bool
}

// NewBaseOperator creates the shared state for an operator called name.
func NewBaseOperator(name string) *BaseOperator {
	return &BaseOperator{
		name:             name,
		select2ResultCol: make(map[primitives.ColumnRef]int),
	}
}

// Name is the operator kind, used in logs and panics.
func (b *BaseOperator) Name() string {
	return b.name
}

// IsRequired reports whether ref already has an output column.
func (b *BaseOperator) IsRequired(ref primitives.ColumnRef) bool {
	_, ok := b.select2ResultCol[ref]
	return ok
}

// AddColumn reserves a new output column for ref and returns its index.
// Calling it again for the same ref returns the existing index.
func (b *BaseOperator) AddColumn(ref primitives.ColumnRef) int {
	if idx, ok := b.select2ResultCol[ref]; ok {
		return idx
	}
	b.results = append(b.results, nil)
	idx := len(b.results) - 1
	b.select2ResultCol[ref] = idx
	return idx
}

// MapColumn points ref at output column idx.
func (b *BaseOperator) MapColumn(ref primitives.ColumnRef, idx int) {
	b.select2ResultCol[ref] = idx
}

// SetColumns replaces the output columns.
func (b *BaseOperator) SetColumns(cols [][]uint64) {
	b.results = cols
}

// SetColumn stores the data of output column idx.
func (b *BaseOperator) SetColumn(idx int, data []uint64) {
	b.results[idx] = data
}

// ColumnCount is the number of output columns.
func (b *BaseOperator) ColumnCount() int {
	return len(b.results)
}

// SetResultSize records the number of output rows.
func (b *BaseOperator) SetResultSize(n int) {
	b.resultSize = n
}

// MarkRun enforces that an operator runs exactly once.
func (b *BaseOperator) MarkRun() {
	if b.ran {
		panic(dberr.Invariant(dberr.CodeOperatorRerun, b.name, "Run", "operator already ran"))
	}
	b.ran = true
}

// Results returns the output columns.
func (b *BaseOperator) Results() [][]uint64 {
	return b.results
}

// ResultSize returns the number of output rows.
func (b *BaseOperator) ResultSize() int {
	return b.resultSize
}

// Resolve returns the output column of ref. Resolving a column that was
// never required is a bug in the caller and panics.
func (b *BaseOperator) Resolve(ref primitives.ColumnRef) int {
	idx, ok := b.select2ResultCol[ref]
	if !ok {
		panic(dberr.Invariant(dberr.CodeColumnNotRequired, b.name, "Resolve",
			"column %s was never required", ref))
	}
	return idx
}

// MergeBlocks concatenates per-block column buffers in block order.
// parts[rank][col] holds counts[rank] values. Blocks are copied in
// parallel into disjoint ranges of the output.
func MergeBlocks(pool *engine.Pool, parts [][][]uint64, counts []int, columns int) ([][]uint64, int) {
	offsets := make([]int, len(counts))
	total := 0
	for rank, c := range counts {
		offsets[rank] = total
		total += c
	}

	out := make([][]uint64, columns)
	for c := range out {
		out[c] = make([]uint64, total)
	}
	if total == 0 || columns == 0 {
		return out, total
	}

	bi := engine.BlockInfo{Begin: 0, End: len(parts), BlockCount: len(parts), BlockSize: 1}
	pool.ParallelFor(bi, func(rank, _, _ int) {
		for c := 0; c < columns; c++ {
			copy(out[c][offsets[rank]:], parts[rank][c])
		}
	})
	return out, total
}
