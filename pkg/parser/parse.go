package parser

import (
	"strconv"
	"strings"

	dberr "parajoin/pkg/error"
	"parajoin/pkg/primitives"
)

// Parse reads one query line of the form
//
//	relations|predicates|selections
//
// e.g. "0 2 4|0.1=1.2&1.0=2.1&0.1>3000|0.0 1.1". Relations are catalog ids
// whose position is their binding. Predicates are joined with '&'; a
// column compared with a column is a join (only '=' is allowed), a column
// compared with a constant is a filter. Selections are the columns to sum.
func Parse(line string) (*QueryInfo, error) {
	parts := strings.Split(strings.TrimSpace(line), "|")
	if len(parts) != 3 {
		return nil, syntaxError(line, "expected 3 sections separated by '|', got %d", len(parts))
	}

	q := &QueryInfo{}
	if err := q.parseRelations(parts[0]); err != nil {
		return nil, err
	}
	if err := q.parsePredicates(parts[1]); err != nil {
		return nil, err
	}
	if err := q.parseSelections(parts[2]); err != nil {
		return nil, err
	}
	return q, nil
}

func syntaxError(line, format string, args ...any) error {
	return dberr.New(dberr.ErrCategoryUser, dberr.CodeQuerySyntax, "malformed query").
		WithDetail(format, args...).
		WithHint("query lines look like '0 1|0.0=1.1&0.2>10|0.0 1.2' (input: " + strings.TrimSpace(line) + ")").
		WithOperation("Parse", "Parser")
}

func (q *QueryInfo) parseRelations(s string) error {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return syntaxError(s, "no relations")
	}
	for _, f := range fields {
		id, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return syntaxError(s, "relation id %q: %v", f, err)
		}
		q.Relations = append(q.Relations, primitives.RelationID(id))
	}
	return nil
}

func (q *QueryInfo) parsePredicates(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, raw := range strings.Split(s, "&") {
		if err := q.parsePredicate(strings.TrimSpace(raw)); err != nil {
			return err
		}
	}
	return nil
}

func (q *QueryInfo) parsePredicate(s string) error {
	opIdx := strings.IndexAny(s, "=<>")
	if opIdx <= 0 || opIdx == len(s)-1 {
		return syntaxError(s, "predicate %q has no comparison", s)
	}
	cmp, _ := primitives.ParseComparison(s[opIdx])
	lhs, rhs := strings.TrimSpace(s[:opIdx]), strings.TrimSpace(s[opIdx+1:])

	lhsIsCol := strings.Contains(lhs, ".")
	rhsIsCol := strings.Contains(rhs, ".")

	switch {
	case lhsIsCol && rhsIsCol:
		if cmp != primitives.Equal {
			return syntaxError(s, "join predicate %q must use '='", s)
		}
		left, err := q.parseSelect(lhs)
		if err != nil {
			return err
		}
		right, err := q.parseSelect(rhs)
		if err != nil {
			return err
		}
		q.Predicates = append(q.Predicates, PredicateInfo{Left: left, Right: right})

	case lhsIsCol:
		return q.addFilter(lhs, cmp, rhs)

	case rhsIsCol:
		return q.addFilter(rhs, cmp.Flip(), lhs)

	default:
		return syntaxError(s, "predicate %q compares two constants", s)
	}
	return nil
}

func (q *QueryInfo) addFilter(col string, cmp primitives.Comparison, constant string) error {
	sel, err := q.parseSelect(col)
	if err != nil {
		return err
	}
	c, err := strconv.ParseUint(constant, 10, 64)
	if err != nil {
		return syntaxError(constant, "constant %q: %v", constant, err)
	}
	q.Filters = append(q.Filters, FilterInfo{Column: sel, Comparison: cmp, Constant: c})
	return nil
}

func (q *QueryInfo) parseSelections(s string) error {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return syntaxError(s, "no selections")
	}
	for _, f := range fields {
		sel, err := q.parseSelect(f)
		if err != nil {
			return err
		}
		q.Selections = append(q.Selections, sel)
	}
	return nil
}

// parseSelect resolves "binding.column" against the relation list.
func (q *QueryInfo) parseSelect(s string) (SelectInfo, error) {
	bStr, cStr, ok := strings.Cut(s, ".")
	if !ok {
		return SelectInfo{}, syntaxError(s, "column reference %q is not binding.column", s)
	}
	b, err := strconv.ParseUint(bStr, 10, 32)
	if err != nil {
		return SelectInfo{}, syntaxError(s, "binding %q: %v", bStr, err)
	}
	c, err := strconv.ParseUint(cStr, 10, 32)
	if err != nil {
		return SelectInfo{}, syntaxError(s, "column %q: %v", cStr, err)
	}
	if int(b) >= len(q.Relations) {
		return SelectInfo{}, syntaxError(s, "binding %d out of range, query has %d relations", b, len(q.Relations))
	}
	return SelectInfo{
		Relation: q.Relations[b],
		Ref:      primitives.NewColumnRef(primitives.Binding(b), primitives.ColumnID(c)),
	}, nil
}
