// Package relation holds the immutable columnar relations queries run
// against, the binary file format they are loaded from, and the catalog
// that numbers them.
package relation

import (
	dberr "parajoin/pkg/error"
	"parajoin/pkg/primitives"
)

// Relation is an ordered set of equal-length uint64 columns. It is never
// mutated after construction and may be shared by any number of queries.
type Relation struct {
	columns [][]uint64
	size    int
	release func() error
}

// New builds a relation over the given columns without copying them.
func New(columns ...[]uint64) (*Relation, error) {
	size := 0
	if len(columns) > 0 {
		size = len(columns[0])
	}
	for i, c := range columns {
		if len(c) != size {
			return nil, dberr.New(dberr.ErrCategoryData, dberr.CodeRelationCorrupt, "columns differ in length").
				WithDetail("column 0 has %d rows, column %d has %d", size, i, len(c)).
				WithOperation("New", "Relation")
		}
	}
	return &Relation{columns: columns, size: size}, nil
}

// MustNew is New for fixtures; it panics on mismatched columns.
func MustNew(columns ...[]uint64) *Relation {
	r, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return r
}

// Size is the row count shared by every column.
func (r *Relation) Size() int {
	return r.size
}

// ColumnCount is the number of columns.
func (r *Relation) ColumnCount() int {
	return len(r.columns)
}

// HasColumn reports whether id addresses an existing column.
func (r *Relation) HasColumn(id primitives.ColumnID) bool {
	return int(id) < len(r.columns)
}

// Column returns the storage of column id. Asking for a column outside the
// relation is a query-construction bug and panics.
func (r *Relation) Column(id primitives.ColumnID) []uint64 {
	if !r.HasColumn(id) {
		panic(dberr.Invariant(dberr.CodeColumnOutOfRange, "Relation", "Column",
			"column %d out of range, relation has %d columns", id, len(r.columns)))
	}
	return r.columns[id]
}

// Close releases file-backed storage. Columns must not be used afterwards.
func (r *Relation) Close() error {
	if r.release == nil {
		return nil
	}
	release := r.release
	r.release = nil
	r.columns = nil
	r.size = 0
	return release()
}
