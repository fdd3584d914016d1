package core

import (
	"cmp"
	"container/heap"
	"encoding/json"
	"slices"
)

type scoredItem struct {
	score    float32
	id       string
	metadata json.RawMessage
}

// minHeap orders candidates by ascending score so the weakest sits at the root.
type minHeap []scoredItem

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i].score < h[j].score }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minHeap) Push(x any) { *h = append(*h, x.(scoredItem)) }

func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = scoredItem{}
	*h = old[:n-1]
	return item
}

// topK keeps the k highest scoring items offered to it.
type topK struct {
	k    int
	heap minHeap
}

func newTopK(k int) *topK {
	if k < 0 {
		k = 0
	}
	return &topK{k: k, heap: make(minHeap, 0, min(k, 1024))}
}

// offer inserts item while below capacity. At capacity the weakest held item
// is replaced only when item scores strictly higher, so among equal scores at
// the boundary the first one seen stays.
func (t *topK) offer(item scoredItem) {
	if t.k == 0 {
		return
	}
	if t.heap.Len() < t.k {
		heap.Push(&t.heap, item)
		return
	}
	if item.score > t.heap[0].score {
		t.heap[0] = item
		heap.Fix(&t.heap, 0)
	}
}

// results drains the selection ordered by descending score.
func (t *topK) results() []QueryResult {
	items := t.heap
	t.heap = nil

	slices.SortFunc(items, func(a, b scoredItem) int {
		return cmp.Compare(b.score, a.score)
	})

	results := make([]QueryResult, len(items))
	for i, item := range items {
		results[i] = QueryResult{
			ID:       item.id,
			Score:    item.score,
			Metadata: item.metadata,
		}
	}
	return results
}
