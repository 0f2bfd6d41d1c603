package dispatch

import (
	"context"
	"sync"
)

// memQueue is a buffered-channel queue for tests and embedded runs.
type memQueue struct {
	mu     sync.Mutex
	ch     chan Message
	closed bool
}

// NewMemoryQueue returns an in-process queue holding up to size messages.
func NewMemoryQueue(size int) Queue {
	if size <= 0 {
		size = 256
	}
	return &memQueue{ch: make(chan Message, size)}
}

func (q *memQueue) Enqueue(ctx context.Context, m Message) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	ch := q.ch
	q.mu.Unlock()

	// Non-blocking, like the task queue: producers handle ErrQueueFull.
	select {
	case ch <- m:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *memQueue) Dequeue(ctx context.Context) (Message, error) {
	select {
	case m, ok := <-q.ch:
		if !ok {
			return Message{}, ErrQueueClosed
		}
		return m, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (q *memQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	return nil
}
