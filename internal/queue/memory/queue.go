// Package memory provides the bounded in-memory candidate queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/image-harvester/internal/harvest"
)

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan harvest.Task
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan harvest.Task, capacity),
	}
}

// Enqueue pushes a task into the queue or returns if the context ends.
// Enqueue must not be called after Close.
func (q *Queue) Enqueue(ctx context.Context, task harvest.Task) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- task:
		return nil
	}
}

// Dequeue pops the next task, respecting context cancellation. Once the
// queue is closed and drained it returns harvest.ErrQueueClosed.
func (q *Queue) Dequeue(ctx context.Context) (harvest.Task, error) {
	select {
	case <-ctx.Done():
		return harvest.Task{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case task, ok := <-q.ch:
		if !ok {
			return harvest.Task{}, harvest.ErrQueueClosed
		}
		return task, nil
	}
}

// Close marks the end of submission. It is safe to call multiple times.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
