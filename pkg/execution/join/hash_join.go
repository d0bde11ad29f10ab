package join

import (
	"fmt"

	"go.uber.org/atomic"

	"parajoin/pkg/engine"
	dberr "parajoin/pkg/error"
	"parajoin/pkg/execution"
	"parajoin/pkg/logging"
	"parajoin/pkg/metrics"
	"parajoin/pkg/parser"
	"parajoin/pkg/primitives"
)

// BuildSide names the child whose rows were indexed.
type BuildSide int

const (
	BuildLeft BuildSide = iota
	BuildRight
)

func (s BuildSide) String() string {
	if s == BuildLeft {
		return "left"
	}
	return "right"
}

// Join is an equality hash join of two subtrees on one column pair.
//
// The child with fewer rows is indexed (build side); the other one probes
// the index. Probing runs in two parallel passes over the same blocks:
// the first counts matches per block, a prefix sum turns the counts into
// output offsets, and the second writes each block's matches into its own
// range of the preallocated output. Output rows are grouped by probe row
// in ascending order; rows sharing a probe row follow build row order.
type Join struct {
	base  *execution.BaseOperator
	pool  *engine.Pool
	left  execution.Operator
	right execution.Operator
	pred  parser.PredicateInfo

	requestedLeft  []primitives.ColumnRef
	requestedRight []primitives.ColumnRef

	buildSide  BuildSide
	sequential bool
}

// NewJoin joins left and right on pred.Left = pred.Right, where pred.Left
// is produced by left and pred.Right by right.
func NewJoin(pool *engine.Pool, left, right execution.Operator, pred parser.PredicateInfo) (*Join, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}
	if left == nil || right == nil {
		return nil, fmt.Errorf("join children cannot be nil")
	}
	return &Join{
		base:  execution.NewBaseOperator("Join"),
		pool:  pool,
		left:  left,
		right: right,
		pred:  pred,
	}, nil
}

// Require asks the left child first, then the right one. The side that
// accepts ref is the side the column is copied from.
func (j *Join) Require(ref primitives.ColumnRef) bool {
	if j.base.IsRequired(ref) {
		return true
	}
	switch {
	case j.left.Require(ref):
		j.requestedLeft = append(j.requestedLeft, ref)
	case j.right.Require(ref):
		j.requestedRight = append(j.requestedRight, ref)
	default:
		return false
	}
	j.base.AddColumn(ref)
	return true
}

// BuildSide reports which child was indexed. Valid after Run.
func (j *Join) BuildSide() BuildSide {
	return j.buildSide
}

// RunSequential runs the join with a single block for every phase on the
// calling goroutine. Children run as usual.
func (j *Join) RunSequential() {
	j.sequential = true
	j.Run()
}

func (j *Join) blocks(n, minBlockSize int) engine.BlockInfo {
	if j.sequential {
		return engine.BlockInfo{End: n, BlockCount: 1, BlockSize: n}
	}
	return j.pool.BlockInfo(0, n, minBlockSize)
}

func (j *Join) requireChild(child execution.Operator, ref primitives.ColumnRef) {
	if !child.Require(ref) {
		panic(dberr.Invariant(dberr.CodeColumnNotRequired, "Join", "Run",
			"join key %s cannot be produced by %s", ref, child))
	}
}

// Run executes both children, then builds and probes.
func (j *Join) Run() {
	j.base.MarkRun()
	defer metrics.Track(metrics.PhaseJoin)()
	log := logging.WithOperator("join")

	j.requireChild(j.left, j.pred.Left.Ref)
	j.requireChild(j.right, j.pred.Right.Ref)
	j.left.Run()
	j.right.Run()

	build, probe := j.left, j.right
	buildKey, probeKey := j.pred.Left.Ref, j.pred.Right.Ref
	buildCols, probeCols := j.requestedLeft, j.requestedRight
	j.buildSide = BuildLeft
	if build.ResultSize() > probe.ResultSize() {
		build, probe = probe, build
		buildKey, probeKey = probeKey, buildKey
		buildCols, probeCols = probeCols, buildCols
		j.buildSide = BuildRight
	}

	stopResolve := metrics.Track(metrics.PhaseJoinResolve)
	buildData, probeData := build.Results(), probe.Results()
	copyBuild := make([][]uint64, len(buildCols))
	for i, ref := range buildCols {
		copyBuild[i] = buildData[build.Resolve(ref)]
		j.base.MapColumn(ref, i)
	}
	copyProbe := make([][]uint64, len(probeCols))
	for i, ref := range probeCols {
		copyProbe[i] = probeData[probe.Resolve(ref)]
		j.base.MapColumn(ref, len(buildCols)+i)
	}
	buildKeyCol := buildData[build.Resolve(buildKey)][:build.ResultSize()]
	probeKeyCol := probeData[probe.Resolve(probeKey)][:probe.ResultSize()]
	stopResolve()

	stopBuild := metrics.Track(metrics.PhaseJoinBuild)
	index := buildHashIndex(j.pool, buildKeyCol, j.sequential)
	stopBuild()

	stopCount := metrics.Track(metrics.PhaseJoinProbeCount)
	bi := j.blocks(len(probeKeyCol), engine.MinBlockJoinProbe)
	blockCounts := make([]int, bi.BlockCount)
	var running atomic.Int64
	j.pool.ParallelFor(bi, func(rank, begin, end int) {
		n := 0
		for _, key := range probeKeyCol[begin:end] {
			n += index.Count(key)
		}
		blockCounts[rank] = n
		running.Add(int64(n))
	})

	offsets := make([]int, bi.BlockCount)
	for rank := 1; rank < bi.BlockCount; rank++ {
		offsets[rank] = offsets[rank-1] + blockCounts[rank-1]
	}
	total := int(running.Load())
	stopCount()

	out := make([][]uint64, len(copyBuild)+len(copyProbe))
	j.base.SetResultSize(total)
	if total == 0 {
		for c := range out {
			out[c] = []uint64{}
		}
		j.base.SetColumns(out)
		log.Debug("join produced no rows", "build_rows", len(buildKeyCol), "probe_rows", len(probeKeyCol))
		return
	}

	defer metrics.Track(metrics.PhaseJoinProbeScatter)()
	for c := range out {
		out[c] = make([]uint64, total)
	}
	nb := len(copyBuild)
	j.pool.ParallelFor(bi, func(rank, begin, end int) {
		pos := offsets[rank]
		for i := begin; i < end; i++ {
			for r := index.First(probeKeyCol[i]); r != noRow; r = index.Next(r) {
				for c, col := range copyBuild {
					out[c][pos] = col[r]
				}
				for c, col := range copyProbe {
					out[nb+c][pos] = col[i]
				}
				pos++
			}
		}
	})
	j.base.SetColumns(out)

	log.Debug("join done",
		"build_side", j.buildSide,
		"build_rows", len(buildKeyCol),
		"distinct_keys", index.Keys(),
		"probe_rows", len(probeKeyCol),
		"blocks", bi.BlockCount,
		"output", total)
}

func (j *Join) Results() [][]uint64 {
	return j.base.Results()
}

func (j *Join) Resolve(ref primitives.ColumnRef) int {
	return j.base.Resolve(ref)
}

func (j *Join) ResultSize() int {
	return j.base.ResultSize()
}

func (j *Join) String() string {
	return fmt.Sprintf("Join(%s, %s, %s)", j.left, j.right, j.pred)
}
