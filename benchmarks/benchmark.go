package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"parajoin/pkg/database"
	"parajoin/pkg/metrics"
	"parajoin/pkg/relation"
)

// BenchmarkResult captures timing statistics for one benchmark run.
type BenchmarkResult struct {
	QueryType         string        `json:"query_type"`         // Descriptive name of the benchmark test
	Query             string        `json:"query"`              // The query line being benchmarked
	Iterations        int           `json:"iterations"`         // Total number of times the query was executed
	TotalDuration     time.Duration `json:"total_duration_ns"`  // Wall time for all iterations
	AvgDuration       time.Duration `json:"avg_duration_ns"`    // Average time per query execution
	MinDuration       time.Duration `json:"min_duration_ns"`    // Fastest query execution time
	MaxDuration       time.Duration `json:"max_duration_ns"`    // Slowest query execution time
	MedianDuration    time.Duration `json:"median_duration_ns"` // Median query execution time
	P95Duration       time.Duration `json:"p95_duration_ns"`    // 95th percentile execution time
	P99Duration       time.Duration `json:"p99_duration_ns"`    // 99th percentile execution time
	QueriesPerSecond  float64       `json:"queries_per_second"` // Throughput metric
	ConcurrentQueries int           `json:"concurrent_queries"` // Number of queries in flight
	SuccessCount      int           `json:"success_count"`      // Number of successful executions
	ErrorCount        int           `json:"error_count"`        // Number of failed executions
	ErrorSamples      []string      `json:"error_samples"`      // Sample error messages for debugging
	Timestamp         time.Time     `json:"timestamp"`          // When this benchmark was executed
}

// BenchmarkReport aggregates results from all benchmark tests into a single report.
type BenchmarkReport struct {
	StartTime     time.Time         `json:"start_time"`
	EndTime       time.Time         `json:"end_time"`
	TotalDuration time.Duration     `json:"total_duration"`
	Workers       int               `json:"workers"`
	Rows          int               `json:"rows"`
	Results       []BenchmarkResult `json:"results"`
	Phases        map[string]string `json:"phases"` // average time per engine phase
}

// main generates synthetic relations, runs every benchmark query
// sequentially and concurrently and writes a JSON report.
//
// Environment variables:
//   - BENCHMARK_OUTPUT: Directory for output reports (default: ./benchmark-results)
//   - BENCHMARK_ITERATIONS: Number of iterations per benchmark (default: 200)
//   - BENCHMARK_CONCURRENT_QUERIES: Queries in flight for concurrent runs (default: 8)
//   - BENCHMARK_ROWS: Rows of the largest relation (default: 1000000)
//   - BENCHMARK_WORKERS: Worker pool size (default: number of CPUs)
func main() {
	outputDir := filepath.Clean(os.Getenv("BENCHMARK_OUTPUT"))
	if outputDir == "." {
		outputDir = "./benchmark-results"
	}
	iterations := envInt("BENCHMARK_ITERATIONS", 200)
	concurrentQueries := envInt("BENCHMARK_CONCURRENT_QUERIES", 8)
	rows := envInt("BENCHMARK_ROWS", 1_000_000)

	_ = os.MkdirAll(outputDir, 0o750) // #nosec G703

	db, err := database.Open(database.Config{Workers: envInt("BENCHMARK_WORKERS", 0)})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	log.Printf("Generating relations (%s rows)...", humanize.Comma(int64(rows)))
	setupBenchmarkData(db, rows)

	report := BenchmarkReport{
		StartTime: time.Now(),
		Workers:   db.Config().Workers,
		Rows:      rows,
	}

	// r0: (id, fk, val) rows; r1: (id, val) rows/10; r2: (id, val) rows/100
	benchmarks := []struct {
		name  string
		query string
	}{
		{"Scan checksum", "0||0.0 0.2"},
		{"Filter scan", "0|0.2>500000&0.2<600000|0.0 0.2"},
		{"Two way join", "0 1|0.1=1.0|0.2 1.1"},
		{"Join with filter", "0 1|0.1=1.0&1.1<1000|0.2"},
		{"Three way join", "0 1 2|0.1=1.0&1.1=2.0|0.0 2.1"},
		{"Join and self join", "0 1 0|0.1=1.0&0.0=2.0&0.2=2.2|1.1"},
	}

	ctx := context.Background()
	for _, bench := range benchmarks {
		log.Printf("%s", strings.Repeat("=", 80))
		log.Printf("TEST: %s", bench.name)
		log.Printf("Query: %s", bench.query)

		log.Printf("→ Running sequential test (%d iterations)...", iterations)
		seqResult := runBenchmark(ctx, db, bench.name, bench.query, iterations, 1)
		report.Results = append(report.Results, seqResult)
		printBenchmarkResult(seqResult)

		log.Printf("→ Running concurrent test (%d in flight, %d iterations)...", concurrentQueries, iterations)
		concResult := runBenchmark(ctx, db, bench.name+" (Concurrent)", bench.query, iterations, concurrentQueries)
		report.Results = append(report.Results, concResult)
		printBenchmarkResult(concResult)
	}

	report.EndTime = time.Now()
	report.TotalDuration = report.EndTime.Sub(report.StartTime)
	report.Phases = phaseAverages()

	timestamp := time.Now().Format("20060102_150405")
	jsonFile := filepath.Join(outputDir, fmt.Sprintf("benchmark_report_%s.json", timestamp))

	log.Printf("%s", strings.Repeat("=", 80))
	log.Printf("BENCHMARK SUITE COMPLETE in %s, %d results", formatDuration(report.TotalDuration), len(report.Results))
	saveJSONReport(report, jsonFile)
}

func envInt(name string, fallback int) int {
	v := fallback
	if s := os.Getenv(name); s != "" {
		_, _ = fmt.Sscanf(s, "%d", &v)
	}
	return v
}

// setupBenchmarkData registers three relations with a foreign key chain:
// r0.fk references r1.id and r1.val references r2.id.
func setupBenchmarkData(db *database.Database, rows int) {
	rng := rand.New(rand.NewPCG(1, 2))
	n1, n2 := max(rows/10, 1), max(rows/100, 1)

	id0, fk0, val0 := make([]uint64, rows), make([]uint64, rows), make([]uint64, rows)
	for i := range rows {
		id0[i] = uint64(i)
		fk0[i] = rng.Uint64N(uint64(n1))
		val0[i] = rng.Uint64N(1_000_000)
	}
	id1, val1 := make([]uint64, n1), make([]uint64, n1)
	for i := range n1 {
		id1[i] = uint64(i)
		val1[i] = rng.Uint64N(uint64(n2))
	}
	id2, val2 := make([]uint64, n2), make([]uint64, n2)
	for i := range n2 {
		id2[i] = uint64(i)
		val2[i] = rng.Uint64()
	}

	db.AddInMemory(relation.MustNew(id0, fk0, val0))
	db.AddInMemory(relation.MustNew(id1, val1))
	db.AddInMemory(relation.MustNew(id2, val2))
}

// runBenchmark executes query iterations times with at most concurrent
// executions in flight and computes latency percentiles and throughput.
func runBenchmark(ctx context.Context, db *database.Database, queryType, query string, iterations, concurrent int) BenchmarkResult {
	durations := make([]time.Duration, 0, iterations)
	var mu sync.Mutex
	var wg sync.WaitGroup

	successCount := 0
	errorCount := 0
	errorSamples := make([]string, 0, 5)
	startTime := time.Now()

	sem := make(chan struct{}, concurrent)

	for range iterations {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			queryStart := time.Now()
			_, err := db.Execute(ctx, query)
			duration := time.Since(queryStart)

			mu.Lock()
			durations = append(durations, duration)
			if err != nil {
				errorCount++
				if len(errorSamples) < 5 {
					errorSamples = append(errorSamples, err.Error())
				}
			} else {
				successCount++
			}
			mu.Unlock()
		}()
	}

	wg.Wait()
	totalDuration := time.Since(startTime)

	result := BenchmarkResult{
		QueryType:         queryType,
		Query:             query,
		Iterations:        iterations,
		TotalDuration:     totalDuration,
		ConcurrentQueries: concurrent,
		SuccessCount:      successCount,
		ErrorCount:        errorCount,
		ErrorSamples:      errorSamples,
		Timestamp:         time.Now(),
	}
	if len(durations) == 0 {
		return result
	}

	slices.Sort(durations)
	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	result.AvgDuration = sum / time.Duration(len(durations))
	result.MinDuration = durations[0]
	result.MaxDuration = durations[len(durations)-1]
	result.MedianDuration = durations[len(durations)/2]
	result.P95Duration = durations[int(float64(len(durations)-1)*0.95)]
	result.P99Duration = durations[int(float64(len(durations)-1)*0.99)]
	result.QueriesPerSecond = float64(iterations) / totalDuration.Seconds()
	return result
}

// phaseAverages reads the engine's phase histograms.
func phaseAverages() map[string]string {
	stats, err := metrics.Snapshot()
	if err != nil {
		log.Printf("Error reading phase metrics: %v", err)
		return nil
	}
	out := make(map[string]string, len(stats))
	for phase, s := range stats {
		if s.Count > 0 {
			out[string(phase)] = formatDuration(s.Avg())
		}
	}
	return out
}

// formatDuration formats a duration in a human-readable way with appropriate units.
// Examples: 1.23ms, 456.78µs, 12.34s
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000.0)
	case d >= time.Microsecond:
		return fmt.Sprintf("%.2fµs", float64(d.Nanoseconds())/1000.0)
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}

func printBenchmarkResult(result BenchmarkResult) {
	successRate := float64(result.SuccessCount) / float64(result.Iterations) * 100

	log.Printf("  ┌─ Results")
	log.Printf("  │  Total Time:        %s", formatDuration(result.TotalDuration))
	log.Printf("  │  Avg per Query:     %s", formatDuration(result.AvgDuration))
	log.Printf("  │  Min / Max:         %s / %s", formatDuration(result.MinDuration), formatDuration(result.MaxDuration))
	log.Printf("  │  Median (P50):      %s", formatDuration(result.MedianDuration))
	log.Printf("  │  P95 / P99:         %s / %s", formatDuration(result.P95Duration), formatDuration(result.P99Duration))
	log.Printf("  │  Throughput:        %.0f queries/sec", result.QueriesPerSecond)
	log.Printf("  │  Success Rate:      %.1f%% (%d/%d)", successRate, result.SuccessCount, result.Iterations)
	if result.ErrorCount > 0 && len(result.ErrorSamples) > 0 {
		log.Printf("  │  ⚠ Sample error:    %s", strings.ReplaceAll(result.ErrorSamples[0], "\n", " "))
	}
	log.Printf("  └─")
}

func saveJSONReport(report BenchmarkReport, filename string) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Printf("Error marshaling report: %v", err)
		return
	}

	if err := os.WriteFile(filename, data, 0o600); err != nil { // #nosec G703
		log.Printf("Error writing JSON report: %v", err)
		return
	}

	log.Printf("JSON report saved: %s", filename)
}
