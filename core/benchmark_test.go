package core_test

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/dshills/smolvec/blobstore"
	"github.com/dshills/smolvec/core"
	"github.com/dshills/smolvec/persistence"
)

const benchDim = 128

var benchCategories = []string{"A", "B", "C"}

func benchMetadata(rng *rand.Rand) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"title":"Document %d","category":%q,"score":%g}`,
		rng.Uint32(), benchCategories[rng.IntN(3)], rng.Float32()))
}

func benchStore(b *testing.B) *core.VectorStore {
	b.Helper()
	backend := persistence.ObjectBackend(blobstore.NewMemoryStore(), persistence.ObjectConfig{})
	store, err := core.Open(context.Background(), "/bench/vectors", backend)
	if err != nil {
		b.Fatalf("Failed to open store: %v", err)
	}
	return store
}

func benchStoreWithVectors(b *testing.B, n int) *core.VectorStore {
	b.Helper()
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(uint64(n), 1))

	store := benchStore(b)
	for i := 0; i < n; i++ {
		if err := store.Add(ctx, fmt.Sprintf("doc%d", i), randomVector(rng, benchDim), benchMetadata(rng)); err != nil {
			b.Fatalf("Failed to add vector: %v", err)
		}
	}
	return store
}

func BenchmarkWriteLatency(b *testing.B) {
	for _, dim := range []int{64, 128, 256, 512} {
		b.Run(fmt.Sprintf("single_write/%d", dim), func(b *testing.B) {
			ctx := context.Background()
			rng := rand.New(rand.NewPCG(1, uint64(dim)))
			store := benchStore(b)
			defer store.Close()

			i := 0
			for b.Loop() {
				if err := store.Add(ctx, fmt.Sprintf("doc%d", i), randomVector(rng, dim), benchMetadata(rng)); err != nil {
					b.Fatal(err)
				}
				i++
			}
		})
	}
}

func BenchmarkWriteThroughput(b *testing.B) {
	for _, batch := range []int{100, 500, 1000} {
		b.Run(fmt.Sprintf("batch/%d", batch), func(b *testing.B) {
			ctx := context.Background()
			rng := rand.New(rand.NewPCG(2, uint64(batch)))
			records := make([]core.VectorRecord, batch)
			for i := range records {
				records[i] = core.VectorRecord{
					ID:       fmt.Sprintf("doc%d", i),
					Vector:   randomVector(rng, benchDim),
					Metadata: benchMetadata(rng),
				}
			}
			store := benchStore(b)
			defer store.Close()

			for b.Loop() {
				if err := store.AddBatch(ctx, records); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkQueryLatency(b *testing.B) {
	for _, n := range []int{100, 1000, 5000} {
		b.Run(fmt.Sprintf("vectors/%d", n), func(b *testing.B) {
			store := benchStoreWithVectors(b, n)
			defer store.Close()
			query := randomVector(rand.New(rand.NewPCG(9, 9)), benchDim)

			for b.Loop() {
				if _, err := store.Query(context.Background(), query, 10); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkQueryVaryingK(b *testing.B) {
	store := benchStoreWithVectors(b, 1000)
	defer store.Close()
	query := randomVector(rand.New(rand.NewPCG(5, 5)), benchDim)

	for _, k := range []int{1, 5, 10, 50, 100} {
		b.Run(fmt.Sprintf("k/%d", k), func(b *testing.B) {
			for b.Loop() {
				if _, err := store.Query(context.Background(), query, k); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkQueryParallel(b *testing.B) {
	store := benchStoreWithVectors(b, 1000)
	defer store.Close()

	b.RunParallel(func(pb *testing.PB) {
		query := randomVector(rand.New(rand.NewPCG(rand.Uint64(), 0)), benchDim)
		for pb.Next() {
			if _, err := store.Query(context.Background(), query, 10); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
