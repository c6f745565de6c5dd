// Package worker implements the Worker Pool (§4.9) and the
// per-request crawl pipeline (§4.10), grounded in the teacher's
// URLQueue/workerLoop pair in internal/services/crawler.
package worker

import (
	"container/heap"
	"sync"
	"time"
)

// Item is a single unit of crawl work: one seed or discovered link
// belonging to a job, at a given depth.
type Item struct {
	JobID     string
	URL       string
	ParentURL string
	Depth     int
	AddedAt   time.Time
	Retries   int
}

// itemHeap orders by shallowest depth first, then oldest first —
// the same tie-break order as the teacher's itemHeap, minus the
// priority field (priority is now expressed by which of the two
// queues an item lives in, per spec §4.9).
type itemHeap []*Item

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].Depth != h[j].Depth {
		return h[i].Depth < h[j].Depth
	}
	return h[i].AddedAt.Before(h[j].AddedAt)
}
func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x interface{}) {
	*h = append(*h, x.(*Item))
}
func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Queue is a non-blocking depth-ordered priority queue. Unlike the
// teacher's URLQueue, Pop never blocks: the worker pool's dispatch
// loop polls on a fixed interval (spec §4.9), so a queue with nothing
// ready simply returns false.
type Queue struct {
	mu    sync.Mutex
	items *itemHeap
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	h := &itemHeap{}
	heap.Init(h)
	return &Queue{items: h}
}

// Push adds item to the queue.
func (q *Queue) Push(item *Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(q.items, item)
}

// TryPop removes and returns the highest-priority item, or false if
// the queue is empty.
func (q *Queue) TryPop() (*Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Len() == 0 {
		return nil, false
	}
	return heap.Pop(q.items).(*Item), true
}

// Len reports the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}
