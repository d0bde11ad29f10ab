package join

import (
	"fmt"

	"parajoin/pkg/engine"
	dberr "parajoin/pkg/error"
	"parajoin/pkg/execution"
	"parajoin/pkg/logging"
	"parajoin/pkg/metrics"
	"parajoin/pkg/parser"
	"parajoin/pkg/primitives"
)

// SelfJoin keeps the input rows where two of its columns are equal. It is
// used when both sides of a join predicate are already part of one subtree.
type SelfJoin struct {
	base     *execution.BaseOperator
	pool     *engine.Pool
	input    execution.Operator
	pred     parser.PredicateInfo
	required []primitives.ColumnRef
}

func NewSelfJoin(pool *engine.Pool, input execution.Operator, pred parser.PredicateInfo) (*SelfJoin, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}
	if input == nil {
		return nil, fmt.Errorf("self join input cannot be nil")
	}
	return &SelfJoin{
		base:  execution.NewBaseOperator("SelfJoin"),
		pool:  pool,
		input: input,
		pred:  pred,
	}, nil
}

func (sj *SelfJoin) Require(ref primitives.ColumnRef) bool {
	if sj.base.IsRequired(ref) {
		return true
	}
	if !sj.input.Require(ref) {
		return false
	}
	sj.base.AddColumn(ref)
	sj.required = append(sj.required, ref)
	return true
}

// Run filters the input block by block and concatenates the survivors.
func (sj *SelfJoin) Run() {
	sj.base.MarkRun()
	defer metrics.Track(metrics.PhaseSelfJoin)()

	for _, ref := range []primitives.ColumnRef{sj.pred.Left.Ref, sj.pred.Right.Ref} {
		if !sj.input.Require(ref) {
			panic(dberr.Invariant(dberr.CodeColumnNotRequired, "SelfJoin", "Run",
				"predicate column %s cannot be produced by %s", ref, sj.input))
		}
	}
	sj.input.Run()

	data := sj.input.Results()
	leftKey := data[sj.input.Resolve(sj.pred.Left.Ref)]
	rightKey := data[sj.input.Resolve(sj.pred.Right.Ref)]
	copyData := make([][]uint64, len(sj.required))
	for i, ref := range sj.required {
		copyData[i] = data[sj.input.Resolve(ref)]
		sj.base.MapColumn(ref, i)
	}

	bi := sj.pool.BlockInfo(0, sj.input.ResultSize(), engine.MinBlockSelfJoin)
	parts := make([][][]uint64, bi.BlockCount)
	counts := make([]int, bi.BlockCount)
	sj.pool.ParallelFor(bi, func(rank, begin, end int) {
		local := make([][]uint64, len(copyData))
		n := 0
		for i := begin; i < end; i++ {
			if leftKey[i] != rightKey[i] {
				continue
			}
			for c, col := range copyData {
				local[c] = append(local[c], col[i])
			}
			n++
		}
		parts[rank] = local
		counts[rank] = n
	})

	cols, total := execution.MergeBlocks(sj.pool, parts, counts, len(copyData))
	sj.base.SetColumns(cols)
	sj.base.SetResultSize(total)

	logging.WithOperator("self_join").Debug("self join done",
		"input", sj.input.ResultSize(), "output", total, "blocks", bi.BlockCount)
}

func (sj *SelfJoin) Results() [][]uint64 {
	return sj.base.Results()
}

func (sj *SelfJoin) Resolve(ref primitives.ColumnRef) int {
	return sj.base.Resolve(ref)
}

func (sj *SelfJoin) ResultSize() int {
	return sj.base.ResultSize()
}

func (sj *SelfJoin) String() string {
	return fmt.Sprintf("SelfJoin(%s, %s)", sj.input, sj.pred)
}
