package engine

import (
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/atomic"

	dberr "parajoin/pkg/error"
	"parajoin/pkg/logging"
	"parajoin/pkg/metrics"
)

const releaseTimeout = 10 * time.Second

type options struct {
	workers      int
	minBlockSize int
}

// Option configures a Pool.
type Option func(*options)

// WithWorkers fixes the number of worker goroutines. Values below one
// select runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithMinBlockSize overrides every operator's minimum block size. Tests
// use small values to force multi-block execution over tiny relations.
func WithMinBlockSize(n int) Option {
	return func(o *options) {
		o.minBlockSize = n
	}
}

// Pool is a fixed set of workers draining one shared task queue.
// Submitters block while every worker is busy; queued tasks are served in
// arrival order regardless of which query submitted them.
type Pool struct {
	workers      int
	minBlockSize int
	pool         *ants.Pool
	inflight     sync.WaitGroup
	closeMu      sync.RWMutex
	closed       atomic.Bool
	submitted    atomic.Uint64
	log          *slog.Logger
}

// NewPool starts a pool. Close must be called to release the workers.
func NewPool(opts ...Option) (*Pool, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = runtime.NumCPU()
	}

	log := logging.WithComponent("engine")
	p, err := ants.NewPool(o.workers,
		ants.WithPreAlloc(true),
		ants.WithPanicHandler(func(v any) {
			log.Error("worker panic escaped task wrapper", "panic", v)
		}))
	if err != nil {
		return nil, dberr.Wrap(err, dberr.CodePoolClosed, "NewPool", "Engine")
	}

	log.Debug("worker pool started", "workers", o.workers)
	return &Pool{
		workers:      o.workers,
		minBlockSize: o.minBlockSize,
		pool:         p,
		log:          log,
	}, nil
}

// Workers is the fixed worker count.
func (p *Pool) Workers() int {
	return p.workers
}

// Submitted is the number of tasks accepted since the pool started.
func (p *Pool) Submitted() uint64 {
	return p.submitted.Load()
}

// BlockInfo partitions [begin, end) for this pool, applying the
// WithMinBlockSize override when one was configured.
func (p *Pool) BlockInfo(begin, end, minBlockSize int) BlockInfo {
	if p.minBlockSize > 0 {
		minBlockSize = p.minBlockSize
	}
	return NewBlockInfo(begin, end, minBlockSize, p.workers)
}

// Submit queues one task and returns its barrier handle.
func (p *Pool) Submit(task func()) (*WaitGroup, error) {
	wg := newWaitGroup(1)
	if err := p.submit(wg, task); err != nil {
		return nil, err
	}
	return wg, nil
}

func (p *Pool) submit(wg *WaitGroup, task func()) error {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()

	if p.closed.Load() {
		return dberr.New(dberr.ErrCategorySystem, dberr.CodePoolClosed, "submit on closed pool").
			WithOperation("Submit", "Engine")
	}

	queued := time.Now()
	p.inflight.Add(1)
	err := p.pool.Submit(func() {
		defer p.inflight.Done()
		metrics.Observe(metrics.PhaseQueueingDelay, time.Since(queued))

		var recovered any
		defer func() { wg.done(recovered) }()
		defer func() { recovered = recover() }()

		task()
	})
	if err != nil {
		p.inflight.Done()
		return dberr.Wrap(err, dberr.CodePoolClosed, "Submit", "Engine")
	}
	p.submitted.Inc()
	return nil
}

// ParallelForNonBlock submits one task per block of bi and returns the
// barrier handle. A single block runs inline and yields a completed handle.
func (p *Pool) ParallelForNonBlock(bi BlockInfo, fn func(rank, begin, end int)) *WaitGroup {
	if bi.BlockCount <= 1 {
		begin, end := bi.Block(0)
		fn(0, begin, end)
		return ZeroGroup()
	}

	wg := newWaitGroup(bi.BlockCount)
	for rank := 0; rank < bi.BlockCount; rank++ {
		begin, end := bi.Block(rank)
		if err := p.submit(wg, func() { fn(rank, begin, end) }); err != nil {
			// the remaining blocks never run; release their slots before failing
			for r := rank; r < bi.BlockCount; r++ {
				wg.done(nil)
			}
			wg.wg.Wait()
			panic(err)
		}
	}
	return wg
}

// ParallelFor runs fn once per block of bi and returns when all blocks are
// done. fn receives the block rank and its half-open row range.
func (p *Pool) ParallelFor(bi BlockInfo, fn func(rank, begin, end int)) {
	p.ParallelForNonBlock(bi, fn).Wait()
}

// Close waits for every submitted task, then stops the workers.
func (p *Pool) Close() error {
	p.closeMu.Lock()
	if p.closed.Swap(true) {
		p.closeMu.Unlock()
		return nil
	}
	p.closeMu.Unlock()

	p.inflight.Wait()
	if err := p.pool.ReleaseTimeout(releaseTimeout); err != nil {
		return dberr.Wrap(err, dberr.CodePoolClosed, "Close", "Engine")
	}
	p.log.Debug("worker pool stopped", "tasks", p.submitted.Load())
	return nil
}
