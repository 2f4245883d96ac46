package memory

import "errors"

// ErrQueueClosed is returned when attempting to publish to a closed queue.
var ErrQueueClosed = errors.New("queue is closed")

// ErrQueueNotDeclared is returned when publishing or consuming before DeclareQueue.
var ErrQueueNotDeclared = errors.New("queue is not declared")
