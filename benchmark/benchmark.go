// Package benchmark measures end-to-end latency and throughput of a vector
// store against any configured backend.
package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/dshills/smolvec/core"
	"golang.org/x/sync/errgroup"
)

// BenchmarkConfig contains configuration for benchmarks
type BenchmarkConfig struct {
	VectorDimension int
	NumVectors      int
	NumQueries      int
	TopK            int
	Parallelism     int
	BatchSize       int

	// KValues are the k values swept by the varying-k run
	KValues []int

	// Seed makes generated vectors reproducible
	Seed uint64
}

// BenchmarkResult contains timing results
type BenchmarkResult struct {
	Operation      string
	TotalTime      time.Duration
	OperationCount int
	AvgLatency     time.Duration
	MinLatency     time.Duration
	MaxLatency     time.Duration
	P50Latency     time.Duration
	P95Latency     time.Duration
	P99Latency     time.Duration
	Throughput     float64 // operations per second
}

// Benchmark runs performance benchmarks on a vector store
type Benchmark struct {
	store  *core.VectorStore
	config BenchmarkConfig
	rng    *rand.Rand
}

// NewBenchmark creates a new benchmark runner
func NewBenchmark(store *core.VectorStore, config BenchmarkConfig) *Benchmark {
	return &Benchmark{
		store:  store,
		config: config,
		rng:    rand.New(rand.NewPCG(config.Seed, config.Seed^0x5eed)),
	}
}

// RunAll runs all benchmarks. The store should be empty; it is left holding
// the generated records.
func (b *Benchmark) RunAll(ctx context.Context, progress io.Writer) ([]BenchmarkResult, error) {
	var results []BenchmarkResult

	// Generate test records
	records := b.generateRecords("vec", b.config.NumVectors)

	// Benchmark individual inserts
	fmt.Fprintf(progress, "Running individual insert benchmark (%d vectors)...\n", len(records))
	insertResult, err := b.benchmarkInserts(ctx, records)
	if err != nil {
		return nil, err
	}
	results = append(results, insertResult)

	// Batch inserts overwrite the same ids, so the record count stays fixed
	fmt.Fprintf(progress, "Running batch insert benchmark (batch size: %d)...\n", b.config.BatchSize)
	batchResult, err := b.benchmarkBatchInserts(ctx, records)
	if err != nil {
		return nil, err
	}
	results = append(results, batchResult)

	fmt.Fprintf(progress, "Running query benchmark (%d queries)...\n", b.config.NumQueries)
	queryResult, err := b.benchmarkQueries(ctx, "Query", b.config.TopK)
	if err != nil {
		return nil, err
	}
	results = append(results, queryResult)

	fmt.Fprintf(progress, "Running concurrent query benchmark (parallelism: %d)...\n", b.config.Parallelism)
	concurrentResult, err := b.benchmarkConcurrentQueries(ctx)
	if err != nil {
		return nil, err
	}
	results = append(results, concurrentResult)

	for _, k := range b.config.KValues {
		fmt.Fprintf(progress, "Running query benchmark (k=%d)...\n", k)
		kResult, err := b.benchmarkQueries(ctx, fmt.Sprintf("Query (k=%d)", k), k)
		if err != nil {
			return nil, err
		}
		results = append(results, kResult)
	}

	fmt.Fprintf(progress, "Running get vector benchmark...\n")
	getResult, err := b.benchmarkGets(ctx, records[:min(1000, len(records))])
	if err != nil {
		return nil, err
	}
	results = append(results, getResult)

	return results, nil
}

// benchmarkInserts measures individual insert performance
func (b *Benchmark) benchmarkInserts(ctx context.Context, records []core.VectorRecord) (BenchmarkResult, error) {
	latencies := make([]time.Duration, 0, len(records))

	start := time.Now()
	for _, rec := range records {
		opStart := time.Now()
		if err := b.store.Add(ctx, rec.ID, rec.Vector, rec.Metadata); err != nil {
			return BenchmarkResult{}, fmt.Errorf("insert failed: %w", err)
		}
		latencies = append(latencies, time.Since(opStart))
	}
	totalTime := time.Since(start)

	return calculateResult("Individual Insert", totalTime, len(records), latencies), nil
}

// benchmarkBatchInserts measures batch insert performance
func (b *Benchmark) benchmarkBatchInserts(ctx context.Context, records []core.VectorRecord) (BenchmarkResult, error) {
	batchSize := max(1, b.config.BatchSize)
	latencies := make([]time.Duration, 0, len(records)/batchSize+1)

	start := time.Now()
	for batch := range slices.Chunk(records, batchSize) {
		opStart := time.Now()
		if err := b.store.AddBatch(ctx, batch); err != nil {
			return BenchmarkResult{}, fmt.Errorf("batch insert failed: %w", err)
		}
		latencies = append(latencies, time.Since(opStart))
	}
	totalTime := time.Since(start)

	result := calculateResult("Batch Insert", totalTime, len(latencies), latencies)
	result.OperationCount = len(records) // Report total vectors inserted
	result.Throughput = float64(len(records)) / totalTime.Seconds()

	return result, nil
}

// benchmarkQueries measures sequential query performance
func (b *Benchmark) benchmarkQueries(ctx context.Context, name string, k int) (BenchmarkResult, error) {
	queries := b.generateRecords("query", b.config.NumQueries)
	latencies := make([]time.Duration, 0, len(queries))

	start := time.Now()
	for _, q := range queries {
		opStart := time.Now()
		if _, err := b.store.Query(ctx, q.Vector, k); err != nil {
			return BenchmarkResult{}, fmt.Errorf("query failed: %w", err)
		}
		latencies = append(latencies, time.Since(opStart))
	}
	totalTime := time.Since(start)

	return calculateResult(name, totalTime, len(queries), latencies), nil
}

// benchmarkConcurrentQueries measures query performance under concurrency
func (b *Benchmark) benchmarkConcurrentQueries(ctx context.Context) (BenchmarkResult, error) {
	queries := b.generateRecords("query", b.config.NumQueries)
	latencies := make([]time.Duration, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, b.config.Parallelism))

	start := time.Now()
	for i, q := range queries {
		g.Go(func() error {
			opStart := time.Now()
			if _, err := b.store.Query(gctx, q.Vector, b.config.TopK); err != nil {
				return fmt.Errorf("concurrent query failed: %w", err)
			}
			latencies[i] = time.Since(opStart)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BenchmarkResult{}, err
	}
	totalTime := time.Since(start)

	return calculateResult("Concurrent Query", totalTime, len(queries), latencies), nil
}

// benchmarkGets measures get performance
func (b *Benchmark) benchmarkGets(ctx context.Context, records []core.VectorRecord) (BenchmarkResult, error) {
	latencies := make([]time.Duration, 0, len(records))

	start := time.Now()
	for _, rec := range records {
		opStart := time.Now()
		if _, err := b.store.Get(ctx, rec.ID); err != nil {
			return BenchmarkResult{}, fmt.Errorf("get failed: %w", err)
		}
		latencies = append(latencies, time.Since(opStart))
	}
	totalTime := time.Since(start)

	return calculateResult("Get Vector", totalTime, len(records), latencies), nil
}

var categories = []string{"A", "B", "C"}

// generateRecords creates random records with small metadata documents
func (b *Benchmark) generateRecords(prefix string, count int) []core.VectorRecord {
	records := make([]core.VectorRecord, count)
	for i := range records {
		values := make([]float32, b.config.VectorDimension)
		for j := range values {
			values[j] = b.rng.Float32()*2 - 1
		}

		meta, _ := json.Marshal(map[string]any{
			"title":    fmt.Sprintf("Document %d", b.rng.Uint32()),
			"category": categories[b.rng.IntN(len(categories))],
			"score":    b.rng.Float32(),
		})
		records[i] = core.VectorRecord{
			ID:       fmt.Sprintf("%s_%d", prefix, i),
			Vector:   values,
			Metadata: meta,
		}
	}
	return records
}

// calculateResult computes statistics from latencies
func calculateResult(operation string, totalTime time.Duration, count int, latencies []time.Duration) BenchmarkResult {
	if len(latencies) == 0 {
		return BenchmarkResult{Operation: operation}
	}

	// Sort latencies for percentile calculation
	sorted := slices.Clone(latencies)
	slices.Sort(sorted)

	var sum time.Duration
	for _, lat := range latencies {
		sum += lat
	}

	return BenchmarkResult{
		Operation:      operation,
		TotalTime:      totalTime,
		OperationCount: count,
		AvgLatency:     sum / time.Duration(len(latencies)),
		MinLatency:     sorted[0],
		MaxLatency:     sorted[len(sorted)-1],
		P50Latency:     sorted[len(sorted)*50/100],
		P95Latency:     sorted[len(sorted)*95/100],
		P99Latency:     sorted[len(sorted)*99/100],
		Throughput:     float64(count) / totalTime.Seconds(),
	}
}

// PrintResults prints benchmark results in a formatted table
func PrintResults(w io.Writer, results []BenchmarkResult) {
	fmt.Fprintln(w, "\n=== Benchmark Results ===")
	fmt.Fprintf(w, "%-20s %10s %10s %10s %10s %10s %10s %12s\n",
		"Operation", "Count", "Avg", "Min", "Max", "P95", "P99", "Throughput")
	fmt.Fprintln(w, strings.Repeat("-", 102))

	for _, r := range results {
		fmt.Fprintf(w, "%-20s %10d %10s %10s %10s %10s %10s %12.2f/s\n",
			r.Operation,
			r.OperationCount,
			formatDuration(r.AvgLatency),
			formatDuration(r.MinLatency),
			formatDuration(r.MaxLatency),
			formatDuration(r.P95Latency),
			formatDuration(r.P99Latency),
			r.Throughput,
		)
	}
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%.1fµs", float64(d.Nanoseconds())/1000)
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d.Nanoseconds())/1000000)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}
