// Package memory provides an in-memory implementation of the queue interfaces.
// This is useful for testing and development without external dependencies.
package memory

import (
	"context"
	"sync"

	"energy-queue/internal/queue"
)

// Queue is an in-memory implementation of both Producer and Consumer interfaces.
// Messages are kept in FIFO order. Each consumer holds at most one
// unacknowledged message; a message whose handler fails is put back at the
// head of the queue and delivered again with Redelivered set.
// This implementation is safe for concurrent use.
type Queue struct {
	name string

	mu       sync.Mutex
	messages []*queue.Message
	declared bool
	closed   bool
	acked    int

	ready chan struct{}
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewQueue creates a new, undeclared in-memory queue.
func NewQueue(name string) *Queue {
	return &Queue{
		name:  name,
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// DeclareQueue marks the queue as declared. Repeated calls are no-ops.
func (q *Queue) DeclareQueue(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.declared = true
	return nil
}

// Publish appends a message to the tail of the queue.
func (q *Queue) Publish(ctx context.Context, msg *queue.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if !q.declared {
		q.mu.Unlock()
		return ErrQueueNotDeclared
	}
	q.messages = append(q.messages, msg)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Start begins consuming messages and calls the handler for each one.
// This blocks until the context is canceled or the queue is closed.
func (q *Queue) Start(ctx context.Context, handler queue.MessageHandler) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if !q.declared {
		q.mu.Unlock()
		return ErrQueueNotDeclared
	}
	q.wg.Add(1)
	q.mu.Unlock()
	defer q.wg.Done()

	for {
		msg, ok := q.next()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-q.done:
				return nil
			case <-q.ready:
			}
			continue
		}

		if err := handler(ctx, msg); err != nil {
			q.requeue(msg)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		q.mu.Lock()
		q.acked++
		q.mu.Unlock()
	}
}

// next pops the head of the queue.
func (q *Queue) next() (*queue.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.messages) == 0 {
		return nil, false
	}

	msg := q.messages[0]
	q.messages = q.messages[1:]

	// Wake another consumer if work remains.
	if len(q.messages) > 0 {
		q.signal()
	}
	return msg, true
}

// requeue puts an unacknowledged message back at the head of the queue.
func (q *Queue) requeue(msg *queue.Message) {
	redelivery := *msg
	redelivery.Redelivered = true

	q.mu.Lock()
	q.messages = append([]*queue.Message{&redelivery}, q.messages...)
	q.mu.Unlock()

	q.signal()
}

// signal wakes one waiting consumer without blocking.
func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Close shuts down the queue, stopping all consumers.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}

// Len returns the current number of messages waiting in the queue.
// Useful for testing to verify queue state.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// Acked returns how many messages have been acknowledged.
func (q *Queue) Acked() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.acked
}
