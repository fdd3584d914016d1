package core_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/dshills/smolvec/blobstore"
	"github.com/dshills/smolvec/core"
	"github.com/dshills/smolvec/persistence"
)

func Example_scenario() {
	ctx := context.Background()

	backend := persistence.ObjectBackend(blobstore.NewMemoryStore(), persistence.ObjectConfig{})
	store, err := core.Open(ctx, "/vectors", backend)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	docs := []struct {
		id     string
		vector []float32
		meta   string
	}{
		{"doc1", []float32{1, 0, 0}, `{"title":"First document","category":"A"}`},
		{"doc2", []float32{0.9, 0.1, 0}, `{"title":"Second document","category":"A"}`},
		{"doc3", []float32{0, 1, 0}, `{"title":"Third document","category":"B"}`},
		{"doc4", []float32{0, 0, 1}, `{"title":"Fourth document","category":"C"}`},
		{"doc5", []float32{0.5, 0.5, 0}, `{"title":"Fifth document","category":"A"}`},
	}
	for _, d := range docs {
		if err := store.Add(ctx, d.id, d.vector, json.RawMessage(d.meta)); err != nil {
			log.Fatal(err)
		}
	}

	results, err := store.Query(ctx, []float32{1, 0, 0}, 3)
	if err != nil {
		log.Fatal(err)
	}
	for _, r := range results {
		fmt.Printf("%s %.4f %s\n", r.ID, r.Score, r.Metadata)
	}

	// Output:
	// doc1 1.0000 {"title":"First document","category":"A"}
	// doc2 0.9939 {"title":"Second document","category":"A"}
	// doc5 0.7071 {"title":"Fifth document","category":"A"}
}
