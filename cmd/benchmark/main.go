package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/dshills/smolvec/benchmark"
	"github.com/dshills/smolvec/config"
	"github.com/dshills/smolvec/core"
	"github.com/dshills/smolvec/persistence"
)

func main() {
	// Parse command line flags
	var (
		configPath  = flag.String("config", "", "Path to YAML configuration file")
		dbType      = flag.String("db", "memory", "Backend: memory, bolt, badger, sqlite, postgres, object")
		dbPath      = flag.String("path", "data/benchmark", "Backend location")
		codec       = flag.String("codec", core.CodecJSON, "Record codec: json, msgpack")
		vectorDim   = flag.Int("dim", 128, "Vector dimension")
		numVectors  = flag.Int("vectors", 10000, "Number of vectors to test")
		numQueries  = flag.Int("queries", 100, "Number of queries")
		topK        = flag.Int("topk", 10, "Top K results for queries")
		kValues     = flag.String("k-sweep", "1,5,10,50,100", "Comma-separated k values for the varying-k run")
		parallelism = flag.Int("parallel", runtime.NumCPU(), "Parallelism for concurrent tests")
		batchSize   = flag.Int("batch", 100, "Batch size for batch operations")
		seed        = flag.Uint64("seed", 1, "Random seed")
	)
	flag.Parse()

	if err := run(*configPath, *dbType, *dbPath, *codec, benchmark.BenchmarkConfig{
		VectorDimension: *vectorDim,
		NumVectors:      *numVectors,
		NumQueries:      *numQueries,
		TopK:            *topK,
		Parallelism:     *parallelism,
		BatchSize:       *batchSize,
		Seed:            *seed,
	}, *kValues); err != nil {
		slog.Error("benchmark failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, dbType, dbPath, codecName string, bc benchmark.BenchmarkConfig, sweep string) error {
	ks, err := parseKValues(sweep)
	if err != nil {
		return err
	}
	bc.KValues = ks

	var pc persistence.PersistenceConfig
	if configPath != "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		pc = cfg.Persistence
	} else {
		pc = persistence.DefaultPersistenceConfig(persistence.PersistenceType(dbType), dbPath)
	}

	codec, err := core.CodecByName(codecName)
	if err != nil {
		return err
	}

	fmt.Println("=== smolvec Performance Benchmark ===")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Backend: %s (%s)\n", pc.Type, pc.Path)
	fmt.Printf("  Codec: %s\n", codec.Name())
	fmt.Printf("  Vectors: %d x %d dimensions\n", bc.NumVectors, bc.VectorDimension)
	fmt.Printf("  Queries: %d\n", bc.NumQueries)
	fmt.Printf("  Parallelism: %d\n", bc.Parallelism)
	fmt.Println()

	ctx := context.Background()
	kv, err := persistence.Open(ctx, pc)
	if err != nil {
		return err
	}
	store := core.NewVectorStore(kv, core.WithCodec(codec))
	defer store.Close()

	if n, err := store.Count(ctx); err != nil {
		return err
	} else if n > 0 {
		return fmt.Errorf("backend at %s already holds %d vectors; use an empty location", pc.Path, n)
	}

	results, err := benchmark.NewBenchmark(store, bc).RunAll(ctx, os.Stdout)
	if err != nil {
		return err
	}
	benchmark.PrintResults(os.Stdout, results)
	return nil
}

func parseKValues(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var ks []int
	for _, part := range strings.Split(s, ",") {
		k, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || k < 0 {
			return nil, fmt.Errorf("invalid k value %q", part)
		}
		ks = append(ks, k)
	}
	return ks, nil
}
