package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/creasty/defaults"
	"go.uber.org/atomic"

	"parajoin/pkg/engine"
	dberr "parajoin/pkg/error"
	"parajoin/pkg/logging"
	"parajoin/pkg/metrics"
	"parajoin/pkg/parser"
	"parajoin/pkg/planner"
	"parajoin/pkg/primitives"
	"parajoin/pkg/relation"
)

// Database owns the worker pool and the loaded relations, and runs
// queries against them. It is safe for concurrent use once all relations
// are added.
type Database struct {
	config  Config
	pool    *engine.Pool
	catalog *relation.Catalog
	joiner  *planner.Joiner

	queryID atomic.Int64
	stats   DatabaseStats

	mutex  sync.Mutex
	closed bool
}

// DatabaseStats counts executed queries.
type DatabaseStats struct {
	QueriesExecuted atomic.Int64
	ErrorCount      atomic.Int64
}

// DatabaseInfo is a point-in-time view of the database.
type DatabaseInfo struct {
	Relations       int
	Workers         int
	TasksSubmitted  uint64
	QueriesExecuted int64
	ErrorCount      int64
}

// Open starts the worker pool. Zero fields of cfg take their defaults.
func Open(cfg Config) (*Database, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %v", err)
	}

	opts := []engine.Option{engine.WithWorkers(cfg.Workers)}
	if cfg.MinBlockSize > 0 {
		opts = append(opts, engine.WithMinBlockSize(cfg.MinBlockSize))
	}
	pool, err := engine.NewPool(opts...)
	if err != nil {
		return nil, err
	}

	catalog := relation.NewCatalog()
	db := &Database{
		config:  cfg,
		pool:    pool,
		catalog: catalog,
		joiner:  planner.NewJoiner(catalog, pool),
	}
	logging.WithComponent("database").Info("database opened",
		"workers", cfg.Workers, "batch_concurrency", cfg.BatchConcurrency, "min_block_size", cfg.MinBlockSize)
	return db, nil
}

// Config returns the effective configuration.
func (db *Database) Config() Config {
	return db.config
}

// AddRelation loads a relation file. Relations are numbered in the order
// they are added.
func (db *Database) AddRelation(path string) (primitives.RelationID, error) {
	id, err := db.catalog.AddFile(path)
	if err != nil {
		logging.WithError(err).Error("failed to load relation", "path", path)
		return 0, err
	}
	return id, nil
}

// AddInMemory registers a relation that is already in memory.
func (db *Database) AddInMemory(rel *relation.Relation) primitives.RelationID {
	return db.catalog.Add(rel, "")
}

// Relation returns a loaded relation and the path it came from.
func (db *Database) Relation(id primitives.RelationID) (*relation.Relation, string, error) {
	rel, err := db.catalog.Get(id)
	if err != nil {
		return nil, "", err
	}
	return rel, db.catalog.Path(id), nil
}

// RelationStatistics computes per column statistics of relation id.
func (db *Database) RelationStatistics(id primitives.RelationID) ([]relation.ColumnStats, error) {
	rel, err := db.catalog.Get(id)
	if err != nil {
		return nil, err
	}
	return relation.ComputeStatistics(db.pool, rel)
}

// Execute parses and runs one query line and returns its result line.
func (db *Database) Execute(ctx context.Context, query string) (string, error) {
	res, err := db.ExecuteQuery(ctx, query)
	if err != nil {
		return "", err
	}
	return FormatResult(res), nil
}

// ExecuteQuery parses and runs one query line.
func (db *Database) ExecuteQuery(ctx context.Context, query string) (res *planner.Result, err error) {
	id := db.queryID.Inc()
	log := logging.WithQuery(int(id))
	defer func() {
		metrics.QueryDone(err)
		if err != nil {
			db.stats.ErrorCount.Inc()
			log.Debug("query failed", "query", query, "error", err)
			return
		}
		db.stats.QueriesExecuted.Inc()
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if db.isClosed() {
		return nil, dberr.New(dberr.ErrCategorySystem, dberr.CodePoolClosed, "database is closed")
	}

	stopParse := metrics.Track(metrics.PhaseQueryParse)
	q, err := parser.Parse(query)
	stopParse()
	if err != nil {
		return nil, err
	}

	res, err = db.joiner.Join(q)
	if err != nil {
		return nil, err
	}
	log.Debug("query done", "query", query, "rows", res.ResultSize, "plan", res.Plan)
	return res, nil
}

// GetStatistics returns current counters.
func (db *Database) GetStatistics() DatabaseInfo {
	return DatabaseInfo{
		Relations:       db.catalog.Len(),
		Workers:         db.pool.Workers(),
		TasksSubmitted:  db.pool.Submitted(),
		QueriesExecuted: db.stats.QueriesExecuted.Load(),
		ErrorCount:      db.stats.ErrorCount.Load(),
	}
}

func (db *Database) isClosed() bool {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	return db.closed
}

// Close waits for running tasks, stops the pool and releases every
// relation. Closing twice is a no-op.
func (db *Database) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true

	poolErr := db.pool.Close()
	catalogErr := db.catalog.Close()
	if poolErr != nil {
		return fmt.Errorf("failed to close pool: %v", poolErr)
	}
	if catalogErr != nil {
		return fmt.Errorf("failed to close relations: %v", catalogErr)
	}

	info := db.GetStatistics()
	logging.WithComponent("database").Info("database closed",
		"queries", info.QueriesExecuted, "errors", info.ErrorCount, "tasks", info.TasksSubmitted)
	return nil
}
