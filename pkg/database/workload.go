package database

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"parajoin/pkg/logging"
)

const (
	endOfRelations = "Done"
	endOfBatch     = "F"
)

// RunWorkload drives the line protocol: relation file paths until "Done",
// then query lines in batches closed by "F". The queries of a batch run
// concurrently; their result lines are written in input order once the
// whole batch is done. A failed query writes "ERROR <message>" and the
// workload continues. Trailing queries without "F" form a final batch.
func (db *Database) RunWorkload(ctx context.Context, in io.Reader, out io.Writer) error {
	log := logging.WithComponent("workload")
	lines := bufio.NewScanner(in)
	lines.Buffer(make([]byte, 0, 64*1024), 1<<20)
	w := bufio.NewWriter(out)

	for lines.Scan() {
		line := strings.TrimSpace(lines.Text())
		if line == endOfRelations {
			break
		}
		if line == "" {
			continue
		}
		if _, err := db.AddRelation(line); err != nil {
			return err
		}
	}
	log.Info("relations loaded", "count", db.catalog.Len())

	var batch []string
	batches := 0
	for lines.Scan() {
		line := strings.TrimSpace(lines.Text())
		switch line {
		case "":
			continue
		case endOfBatch:
			if err := db.runBatch(ctx, batch, w); err != nil {
				return err
			}
			batches++
			batch = batch[:0]
		default:
			batch = append(batch, line)
		}
	}
	if err := lines.Err(); err != nil {
		return fmt.Errorf("failed to read workload: %v", err)
	}
	if len(batch) > 0 {
		if err := db.runBatch(ctx, batch, w); err != nil {
			return err
		}
		batches++
	}

	log.Info("workload done", "batches", batches)
	return nil
}

func (db *Database) runBatch(ctx context.Context, batch []string, w *bufio.Writer) error {
	start := time.Now()
	results := make([]string, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(db.config.BatchConcurrency)
	for i, query := range batch {
		g.Go(func() error {
			line, err := db.Execute(gctx, query)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				line = FormatError(err)
			}
			results[i] = line
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, line := range results {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	logging.WithComponent("workload").Debug("batch done",
		"queries", len(batch), "elapsed", time.Since(start))
	return nil
}
