// Package scanner contains the leaf operators that read relations.
package scanner

import (
	"fmt"

	"parajoin/pkg/execution"
	"parajoin/pkg/primitives"
	"parajoin/pkg/relation"
)

// Scan exposes the columns of one relation binding without copying them.
type Scan struct {
	base     *execution.BaseOperator
	relation *relation.Relation
	binding  primitives.Binding
}

// NewScan creates a scan of rel under binding.
func NewScan(rel *relation.Relation, binding primitives.Binding) (*Scan, error) {
	if rel == nil {
		return nil, fmt.Errorf("relation cannot be nil")
	}
	return &Scan{
		base:     execution.NewBaseOperator("Scan"),
		relation: rel,
		binding:  binding,
	}, nil
}

// Require accepts columns of this scan's binding that exist in the relation.
func (s *Scan) Require(ref primitives.ColumnRef) bool {
	if ref.Binding != s.binding || !s.relation.HasColumn(ref.Column) {
		return false
	}
	if !s.base.IsRequired(ref) {
		idx := s.base.AddColumn(ref)
		s.base.SetColumn(idx, s.relation.Column(ref.Column))
	}
	return true
}

// Run only records the row count; the columns are the relation's own.
func (s *Scan) Run() {
	s.base.MarkRun()
	s.base.SetResultSize(s.relation.Size())
}

func (s *Scan) Results() [][]uint64 {
	return s.base.Results()
}

func (s *Scan) Resolve(ref primitives.ColumnRef) int {
	return s.base.Resolve(ref)
}

func (s *Scan) ResultSize() int {
	return s.base.ResultSize()
}

func (s *Scan) String() string {
	return fmt.Sprintf("Scan(%d)", s.binding)
}
