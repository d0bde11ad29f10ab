package aggregation

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"parajoin/pkg/engine"
	dberr "parajoin/pkg/error"
	"parajoin/pkg/execution"
	"parajoin/pkg/logging"
	"parajoin/pkg/metrics"
	"parajoin/pkg/primitives"
)

// Checksum sums selected columns of its input under uint64 wraparound.
// It is the root of every query tree.
type Checksum struct {
	base    *execution.BaseOperator
	pool    *engine.Pool
	input   execution.Operator
	columns []primitives.ColumnRef
	sums    []uint64
}

// NewChecksum requires every column on input. A column the input cannot
// produce is a user error.
func NewChecksum(pool *engine.Pool, input execution.Operator, columns []primitives.ColumnRef) (*Checksum, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}
	if input == nil {
		return nil, fmt.Errorf("checksum input cannot be nil")
	}

	c := &Checksum{
		base:  execution.NewBaseOperator("Checksum"),
		pool:  pool,
		input: input,
	}
	for _, ref := range columns {
		if !c.Require(ref) {
			return nil, dberr.New(dberr.ErrCategoryUser, dberr.CodeColumnOutOfRange,
				fmt.Sprintf("column %s cannot be produced by %s", ref, input))
		}
	}
	return c, nil
}

// Require adds ref to the summed columns. Requiring a column twice sums it
// twice, matching a selection list that repeats a column.
func (c *Checksum) Require(ref primitives.ColumnRef) bool {
	if !c.input.Require(ref) {
		return false
	}
	c.columns = append(c.columns, ref)
	return true
}

// taskPanic carries a panic out of an errgroup goroutine.
type taskPanic struct {
	value any
}

func (p *taskPanic) Error() string {
	return fmt.Sprintf("checksum task panicked: %v", p.value)
}

// Run executes the input, then reduces all columns concurrently. Each
// column is itself reduced in parallel blocks on the pool.
func (c *Checksum) Run() {
	c.base.MarkRun()
	c.input.Run()
	defer metrics.Track(metrics.PhaseChecksum)()

	n := c.input.ResultSize()
	data := c.input.Results()
	cols := make([][]uint64, len(c.columns))
	for i, ref := range c.columns {
		cols[i] = data[c.input.Resolve(ref)][:n]
	}

	c.sums = make([]uint64, len(cols))
	var g errgroup.Group
	for i, col := range cols {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &taskPanic{value: r}
				}
			}()
			c.sums[i] = c.reduce(col)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		panic(err.(*taskPanic).value)
	}

	logging.WithOperator("checksum").Debug("checksum done",
		"rows", n, "columns", len(cols))
}

func (c *Checksum) reduce(col []uint64) uint64 {
	bi := c.pool.BlockInfo(0, len(col), engine.MinBlockChecksum)
	partial := make([]uint64, bi.BlockCount)
	c.pool.ParallelFor(bi, func(rank, begin, end int) {
		var s uint64
		for _, v := range col[begin:end] {
			s += v
		}
		partial[rank] = s
	})

	var sum uint64
	for _, s := range partial {
		sum += s
	}
	return sum
}

// CheckSums returns one sum per required column, in require order.
func (c *Checksum) CheckSums() []uint64 {
	return c.sums
}

// Format renders the result line. An empty result prints NULL for every
// column.
func (c *Checksum) Format() string {
	out := make([]string, len(c.sums))
	for i, s := range c.sums {
		if c.ResultSize() == 0 {
			out[i] = "NULL"
		} else {
			out[i] = strconv.FormatUint(s, 10)
		}
	}
	return strings.Join(out, " ")
}

func (c *Checksum) Results() [][]uint64 {
	return c.input.Results()
}

func (c *Checksum) Resolve(ref primitives.ColumnRef) int {
	return c.input.Resolve(ref)
}

func (c *Checksum) ResultSize() int {
	return c.input.ResultSize()
}

func (c *Checksum) String() string {
	refs := make([]string, len(c.columns))
	for i, ref := range c.columns {
		refs[i] = ref.String()
	}
	return fmt.Sprintf("Checksum(%s, %s)", c.input, strings.Join(refs, " "))
}
