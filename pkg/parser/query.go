package parser

import (
	"fmt"
	"strings"

	"parajoin/pkg/primitives"
)

// SelectInfo is a column reference together with the catalog relation its
// binding resolves to.
type SelectInfo struct {
	Relation primitives.RelationID
	Ref      primitives.ColumnRef
}

func (s SelectInfo) String() string {
	return s.Ref.String()
}

// FilterInfo compares one column against a constant.
type FilterInfo struct {
	Column     SelectInfo
	Comparison primitives.Comparison
	Constant   uint64
}

func (f FilterInfo) String() string {
	return fmt.Sprintf("%s%s%d", f.Column, f.Comparison, f.Constant)
}

// PredicateInfo asserts Left = Right. One join node evaluates one pair.
type PredicateInfo struct {
	Left  SelectInfo
	Right SelectInfo
}

func (p PredicateInfo) String() string {
	return fmt.Sprintf("%s=%s", p.Left, p.Right)
}

// Flip swaps the two sides.
func (p PredicateInfo) Flip() PredicateInfo {
	return PredicateInfo{Left: p.Right, Right: p.Left}
}

// SameBinding reports whether both sides come from one binding, which
// makes the predicate a self join rather than a join.
func (p PredicateInfo) SameBinding() bool {
	return p.Left.Ref.Binding == p.Right.Ref.Binding
}

// QueryInfo is one parsed query.
type QueryInfo struct {
	// Relations maps binding -> catalog relation.
	Relations  []primitives.RelationID
	Predicates []PredicateInfo
	Filters    []FilterInfo
	Selections []SelectInfo
}

// Bindings lists every binding of the query in order.
func (q *QueryInfo) Bindings() []primitives.Binding {
	out := make([]primitives.Binding, len(q.Relations))
	for i := range q.Relations {
		out[i] = primitives.Binding(i)
	}
	return out
}

// FiltersFor returns the filters on binding b, in query order.
func (q *QueryInfo) FiltersFor(b primitives.Binding) []FilterInfo {
	var out []FilterInfo
	for _, f := range q.Filters {
		if f.Column.Ref.Binding == b {
			out = append(out, f)
		}
	}
	return out
}

// SelectionRefs returns the column refs of the projection list.
func (q *QueryInfo) SelectionRefs() []primitives.ColumnRef {
	out := make([]primitives.ColumnRef, len(q.Selections))
	for i, s := range q.Selections {
		out[i] = s.Ref
	}
	return out
}

// String renders the query in its text form, join predicates before
// filters.
func (q *QueryInfo) String() string {
	var b strings.Builder

	for i, r := range q.Relations {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d", r)
	}
	b.WriteByte('|')

	preds := make([]string, 0, len(q.Predicates)+len(q.Filters))
	for _, p := range q.Predicates {
		preds = append(preds, p.String())
	}
	for _, f := range q.Filters {
		preds = append(preds, f.String())
	}
	b.WriteString(strings.Join(preds, "&"))
	b.WriteByte('|')

	for i, s := range q.Selections {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s.String())
	}
	return b.String()
}
