package scanner

import (
	"fmt"
	"strings"

	"parajoin/pkg/engine"
	"parajoin/pkg/execution"
	"parajoin/pkg/logging"
	"parajoin/pkg/metrics"
	"parajoin/pkg/parser"
	"parajoin/pkg/primitives"
	"parajoin/pkg/relation"
)

type boundFilter struct {
	column     []uint64
	comparison primitives.Comparison
	constant   uint64
}

// FilterScan reads one relation binding and keeps the rows for which every
// filter holds, materializing only the required columns.
type FilterScan struct {
	base      *execution.BaseOperator
	pool      *engine.Pool
	relation  *relation.Relation
	binding   primitives.Binding
	filters   []parser.FilterInfo
	bound     []boundFilter
	inputData [][]uint64 // source column per output column
}

// NewFilterScan creates a filtered scan. Every filter must target binding
// and an existing column of rel.
func NewFilterScan(pool *engine.Pool, rel *relation.Relation, binding primitives.Binding, filters []parser.FilterInfo) (*FilterScan, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}
	if rel == nil {
		return nil, fmt.Errorf("relation cannot be nil")
	}

	bound := make([]boundFilter, 0, len(filters))
	for _, f := range filters {
		if f.Column.Ref.Binding != binding {
			return nil, fmt.Errorf("filter %s does not belong to binding %d", f, binding)
		}
		if !rel.HasColumn(f.Column.Ref.Column) {
			return nil, fmt.Errorf("filter %s: relation has %d columns", f, rel.ColumnCount())
		}
		bound = append(bound, boundFilter{
			column:     rel.Column(f.Column.Ref.Column),
			comparison: f.Comparison,
			constant:   f.Constant,
		})
	}

	return &FilterScan{
		base:     execution.NewBaseOperator("FilterScan"),
		pool:     pool,
		relation: rel,
		binding:  binding,
		filters:  filters,
		bound:    bound,
	}, nil
}

// Require accepts columns of this binding that exist in the relation.
func (fs *FilterScan) Require(ref primitives.ColumnRef) bool {
	if ref.Binding != fs.binding || !fs.relation.HasColumn(ref.Column) {
		return false
	}
	if !fs.base.IsRequired(ref) {
		fs.base.AddColumn(ref)
		fs.inputData = append(fs.inputData, fs.relation.Column(ref.Column))
	}
	return true
}

func (fs *FilterScan) pass(i int) bool {
	for _, f := range fs.bound {
		if !f.comparison.Apply(f.column[i], f.constant) {
			return false
		}
	}
	return true
}

// Run filters the relation block by block. Each block appends matching
// rows to its own buffers; the buffers are concatenated in block order.
func (fs *FilterScan) Run() {
	fs.base.MarkRun()
	defer metrics.Track(metrics.PhaseFilterScan)()

	bi := fs.pool.BlockInfo(0, fs.relation.Size(), engine.MinBlockFilterScan)
	parts := make([][][]uint64, bi.BlockCount)
	counts := make([]int, bi.BlockCount)

	fs.pool.ParallelFor(bi, func(rank, begin, end int) {
		local := make([][]uint64, len(fs.inputData))
		n := 0
		for i := begin; i < end; i++ {
			if !fs.pass(i) {
				continue
			}
			for c, col := range fs.inputData {
				local[c] = append(local[c], col[i])
			}
			n++
		}
		parts[rank] = local
		counts[rank] = n
	})

	cols, total := execution.MergeBlocks(fs.pool, parts, counts, len(fs.inputData))
	fs.base.SetColumns(cols)
	fs.base.SetResultSize(total)

	logging.WithOperator("filter_scan").Debug("filter scan done",
		"binding", fs.binding, "input", fs.relation.Size(), "output", total, "blocks", bi.BlockCount)
}

func (fs *FilterScan) Results() [][]uint64 {
	return fs.base.Results()
}

func (fs *FilterScan) Resolve(ref primitives.ColumnRef) int {
	return fs.base.Resolve(ref)
}

func (fs *FilterScan) ResultSize() int {
	return fs.base.ResultSize()
}

func (fs *FilterScan) String() string {
	preds := make([]string, len(fs.filters))
	for i, f := range fs.filters {
		preds[i] = f.String()
	}
	return fmt.Sprintf("FilterScan(%d, %s)", fs.binding, strings.Join(preds, "&"))
}
