package primitives

import (
	"fmt"
	"math"
)

// RelationID identifies a relation in the catalog, in load order.
type RelationID uint32

// Binding is the position of a relation within one query's relation list.
// The same RelationID may appear under several bindings (self joins).
type Binding uint32

// ColumnID identifies a column within a relation
type ColumnID uint32

// RowID is a row index inside one operator's output.
type RowID uint64

const (
	InvalidColumnID ColumnID = math.MaxUint32
	InvalidBinding  Binding  = math.MaxUint32
)

// ColumnRef identifies a column by the binding it came from and its
// position within that relation. It is comparable and used as a map key.
type ColumnRef struct {
	Binding Binding
	Column  ColumnID
}

// NewColumnRef is shorthand for ColumnRef{Binding: b, Column: c}.
func NewColumnRef(b Binding, c ColumnID) ColumnRef {
	return ColumnRef{Binding: b, Column: c}
}

// String renders the ref in query notation, e.g. "1.3".
func (c ColumnRef) String() string {
	return fmt.Sprintf("%d.%d", c.Binding, c.Column)
}
