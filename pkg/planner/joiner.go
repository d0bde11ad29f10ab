package planner

import (
	"fmt"

	"parajoin/pkg/engine"
	dberr "parajoin/pkg/error"
	"parajoin/pkg/execution"
	"parajoin/pkg/execution/aggregation"
	"parajoin/pkg/execution/join"
	"parajoin/pkg/execution/scanner"
	"parajoin/pkg/logging"
	"parajoin/pkg/parser"
	"parajoin/pkg/primitives"
	"parajoin/pkg/relation"
)

// Joiner turns parsed queries into operator trees and runs them. Join
// order follows predicate order; there is no cost model.
type Joiner struct {
	catalog *relation.Catalog
	pool    *engine.Pool
}

func NewJoiner(catalog *relation.Catalog, pool *engine.Pool) *Joiner {
	return &Joiner{catalog: catalog, pool: pool}
}

// Join plans q, runs the tree and collects the checksums.
func (j *Joiner) Join(q *parser.QueryInfo) (*Result, error) {
	root, err := j.Plan(q)
	if err != nil {
		return nil, err
	}
	root.Run()

	return &Result{
		Sums:       root.CheckSums(),
		ResultSize: root.ResultSize(),
		Plan:       root.String(),
	}, nil
}

// Plan builds the operator tree for q without running it.
//
// The first predicate joining two different bindings seeds the tree. Each
// remaining predicate then either becomes a SelfJoin (both bindings are in
// the tree) or joins a scan of the missing binding onto the tree.
// Predicates touching no binding of the tree are retried after the others;
// a pass that places nothing means the query needs a cross product.
func (j *Joiner) Plan(q *parser.QueryInfo) (*aggregation.Checksum, error) {
	rels, err := j.resolve(q)
	if err != nil {
		return nil, err
	}

	used := make(map[primitives.Binding]bool, len(rels))
	scan := func(b primitives.Binding) (execution.Operator, error) {
		used[b] = true
		filters := q.FiltersFor(b)
		if len(filters) == 0 {
			return scanner.NewScan(rels[b], b)
		}
		return scanner.NewFilterScan(j.pool, rels[b], b, filters)
	}

	var root execution.Operator
	pending := make([]parser.PredicateInfo, 0, len(q.Predicates))
	for _, p := range q.Predicates {
		if root != nil || p.SameBinding() {
			pending = append(pending, p)
			continue
		}
		left, err := scan(p.Left.Ref.Binding)
		if err != nil {
			return nil, err
		}
		right, err := scan(p.Right.Ref.Binding)
		if err != nil {
			return nil, err
		}
		if root, err = join.NewJoin(j.pool, left, right, p); err != nil {
			return nil, err
		}
	}
	if root == nil {
		if root, err = scan(0); err != nil {
			return nil, err
		}
	}

	for len(pending) > 0 {
		var deferred []parser.PredicateInfo
		for _, p := range pending {
			l, r := used[p.Left.Ref.Binding], used[p.Right.Ref.Binding]
			var next execution.Operator
			switch {
			case l && r:
				next, err = join.NewSelfJoin(j.pool, root, p)
			case l:
				next, err = j.joinScan(root, scan, p)
			case r:
				next, err = j.joinScan(root, scan, p.Flip())
			default:
				deferred = append(deferred, p)
				continue
			}
			if err != nil {
				return nil, err
			}
			root = next
		}
		if len(deferred) == len(pending) {
			return nil, crossProduct(q, "predicates %v are not connected to the rest of the query", deferred)
		}
		pending = deferred
	}

	if len(used) != len(rels) {
		return nil, crossProduct(q, "%d of %d relations are joined", len(used), len(rels))
	}

	checksum, err := aggregation.NewChecksum(j.pool, root, q.SelectionRefs())
	if err != nil {
		return nil, err
	}
	logging.WithComponent("planner").Debug("query planned", "query", q.String(), "plan", checksum.String())
	return checksum, nil
}

// joinScan joins a fresh scan of p.Right's binding onto root. p.Left must
// already be produced by root.
func (j *Joiner) joinScan(root execution.Operator, scan func(primitives.Binding) (execution.Operator, error), p parser.PredicateInfo) (execution.Operator, error) {
	right, err := scan(p.Right.Ref.Binding)
	if err != nil {
		return nil, err
	}
	return join.NewJoin(j.pool, root, right, p)
}

// resolve maps bindings to relations and checks that every column the
// query mentions exists.
func (j *Joiner) resolve(q *parser.QueryInfo) ([]*relation.Relation, error) {
	if len(q.Relations) == 0 {
		return nil, dberr.New(dberr.ErrCategoryUser, dberr.CodeQuerySyntax, "query has no relations")
	}
	rels := make([]*relation.Relation, len(q.Relations))
	for b, id := range q.Relations {
		rel, err := j.catalog.Get(id)
		if err != nil {
			return nil, err
		}
		rels[b] = rel
	}

	check := func(ref primitives.ColumnRef) error {
		if int(ref.Binding) >= len(rels) {
			return dberr.New(dberr.ErrCategoryUser, dberr.CodeQuerySyntax,
				fmt.Sprintf("binding %d out of range", ref.Binding))
		}
		if !rels[ref.Binding].HasColumn(ref.Column) {
			return dberr.New(dberr.ErrCategoryUser, dberr.CodeColumnOutOfRange, "unknown column").
				WithDetail("column %s: relation %d has %d columns",
					ref, q.Relations[ref.Binding], rels[ref.Binding].ColumnCount()).
				WithOperation("Plan", "Joiner")
		}
		return nil
	}
	for _, p := range q.Predicates {
		if err := check(p.Left.Ref); err != nil {
			return nil, err
		}
		if err := check(p.Right.Ref); err != nil {
			return nil, err
		}
	}
	for _, f := range q.Filters {
		if err := check(f.Column.Ref); err != nil {
			return nil, err
		}
	}
	for _, s := range q.Selections {
		if err := check(s.Ref); err != nil {
			return nil, err
		}
	}
	return rels, nil
}

func crossProduct(q *parser.QueryInfo, format string, args ...any) error {
	return dberr.New(dberr.ErrCategoryUser, dberr.CodeCrossProduct, "cross products are not supported").
		WithDetail(format, args...).
		WithHint("query: " + q.String()).
		WithOperation("Plan", "Joiner")
}
