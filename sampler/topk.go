package sampler

import (
	"github.com/emirpasic/gods/v2/trees/binaryheap"

	"github.com/FiditeNemini/chatllm.cpp/api"
)

// boundedMaxHeap keeps the k highest-scoring TokenIdScore entries seen so
// far, backed by a min-heap so the smallest survivor is always the cheapest
// to evict when a better candidate arrives.
type boundedMaxHeap struct {
	k    int
	heap *binaryheap.Heap[api.TokenIdScore]
}

func newBoundedMaxHeap(k int) *boundedMaxHeap {
	return &boundedMaxHeap{
		k: k,
		heap: binaryheap.NewWith[api.TokenIdScore](func(a, b api.TokenIdScore) int {
			switch {
			case a.Score < b.Score:
				return -1
			case a.Score > b.Score:
				return 1
			default:
				return 0
			}
		}),
	}
}

func (h *boundedMaxHeap) offer(ts api.TokenIdScore) {
	if h.heap.Size() < h.k {
		h.heap.Push(ts)
		return
	}

	min, ok := h.heap.Peek()
	if !ok || ts.Score <= min.Score {
		return
	}

	h.heap.Pop()
	h.heap.Push(ts)
}

// drain empties the heap and returns its contents, unordered.
func (h *boundedMaxHeap) drain() []api.TokenIdScore {
	out := make([]api.TokenIdScore, 0, h.heap.Size())
	for {
		v, ok := h.heap.Pop()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}
