// Package queue provides the in-memory work queue shared by the discovery
// loop and the worker pool.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/law-makers/harvest/pkg/models"
)

// ErrClosed is returned by Push after Close
var ErrClosed = errors.New("queue closed")

// Queue is a FIFO of work items with context-aware blocking operations.
// A capacity of 0 means unbounded; otherwise Push blocks while the queue
// holds capacity items.
type Queue struct {
	mu       sync.Mutex
	items    []models.WorkItem
	capacity int
	closed   bool

	// ready and space carry at most one pending wakeup each; waiters
	// re-check state under mu after waking
	ready    chan struct{}
	space    chan struct{}
	closedCh chan struct{}
}

// New constructs a queue with the provided capacity (0 = unbounded)
func New(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		capacity: capacity,
		ready:    make(chan struct{}, 1),
		space:    make(chan struct{}, 1),
		closedCh: make(chan struct{}),
	}
}

// Push appends items in order, blocking on a full bounded queue.
// It returns the number of items enqueued before an error occurred.
func (q *Queue) Push(ctx context.Context, items ...models.WorkItem) (int, error) {
	pushed := 0
	for pushed < len(items) {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return pushed, ErrClosed
		}
		free := len(items) - pushed
		if q.capacity > 0 {
			free = q.capacity - len(q.items)
			if rest := len(items) - pushed; free > rest {
				free = rest
			}
		}
		if free > 0 {
			q.items = append(q.items, items[pushed:pushed+free]...)
			pushed += free
			notify(q.ready)
			if q.capacity > 0 && len(q.items) < q.capacity {
				// Room left over for another blocked producer
				notify(q.space)
			}
			q.mu.Unlock()
			continue
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return pushed, fmt.Errorf("enqueue canceled: %w", ctx.Err())
		case <-q.space:
		case <-q.closedCh:
		}
	}
	return pushed, nil
}

// Pop removes the oldest item, blocking until one is available.
// ok is false once the queue is closed and empty.
func (q *Queue) Pop(ctx context.Context) (item models.WorkItem, ok bool, err error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item = q.items[0]
			q.items[0] = models.WorkItem{}
			q.items = q.items[1:]
			if len(q.items) > 0 {
				// Pass the wakeup on to the next waiting consumer
				notify(q.ready)
			}
			notify(q.space)
			q.mu.Unlock()
			return item, true, nil
		}
		if q.closed {
			q.mu.Unlock()
			return models.WorkItem{}, false, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return models.WorkItem{}, false, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-q.ready:
		case <-q.closedCh:
		}
	}
}

// Close stops accepting items. Items already queued can still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.closedCh)
}

// Len returns the number of queued items
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
