package notify

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrQueueFull is returned when a message cannot be queued without waiting
	ErrQueueFull = errors.New("notify: queue full")
	// ErrQueueClosed is returned after Close
	ErrQueueClosed = errors.New("notify: queue closed")
)

// Queue holds messages between the request and the workers. Enqueue must
// not wait for capacity.
type Queue interface {
	Enqueue(ctx context.Context, msg Message) error
	// Dequeue blocks until a message is available, ctx is done or the
	// queue is closed.
	Dequeue(ctx context.Context) (Message, error)
	Close() error
}

// MemoryQueue is a bounded in process queue
type MemoryQueue struct {
	messages chan Message
	done     chan struct{}
	once     sync.Once
}

var _ Queue = (*MemoryQueue)(nil)

// NewMemoryQueue creates a queue holding at most size messages
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 100
	}
	return &MemoryQueue{
		messages: make(chan Message, size),
		done:     make(chan struct{}),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, msg Message) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.messages <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (Message, error) {
	select {
	case msg := <-q.messages:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-q.done:
		return Message{}, ErrQueueClosed
	}
}

// Len returns the number of queued messages
func (q *MemoryQueue) Len() int {
	return len(q.messages)
}

func (q *MemoryQueue) Close() error {
	q.once.Do(func() {
		close(q.done)
	})
	return nil
}
