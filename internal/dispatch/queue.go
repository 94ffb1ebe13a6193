package dispatch

import (
	"context"
	"sync"
)

// Queue is a pull-based Worker: Dispatch enqueues items and external worker
// processes drain them over the IPC boundary.
type Queue struct {
	mu    sync.Mutex
	items []WorkItem
}

// NewQueue builds an empty work queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Dispatch enqueues the item for pickup.
func (q *Queue) Dispatch(ctx context.Context, item WorkItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	// A redispatch of the same correlation id replaces the queued copy so a
	// slow worker pool never sees the same attempt twice.
	for i, queued := range q.items {
		if queued.CorrelationID == item.CorrelationID {
			q.items[i] = item
			return nil
		}
	}
	q.items = append(q.items, item)
	return nil
}

// Pull removes and returns the oldest queued item. ok is false when the
// queue is empty.
func (q *Queue) Pull() (WorkItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return WorkItem{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Len reports the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
