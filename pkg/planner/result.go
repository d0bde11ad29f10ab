package planner

import (
	"strconv"
	"strings"
)

// Result is the outcome of one query: a checksum per selected column and
// the row count of the joined input.
type Result struct {
	Sums       []uint64
	ResultSize int
	// Plan is the operator tree that produced the result.
	Plan string
}

// String renders the result line. An empty join result prints NULL for
// every selected column.
func (r *Result) String() string {
	out := make([]string, len(r.Sums))
	for i, s := range r.Sums {
		if r.ResultSize == 0 {
			out[i] = "NULL"
		} else {
			out[i] = strconv.FormatUint(s, 10)
		}
	}
	return strings.Join(out, " ")
}
