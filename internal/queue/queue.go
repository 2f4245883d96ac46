// Package queue defines interfaces for durable message queue operations.
// This abstraction allows swapping implementations (RabbitMQ, Kafka, in-memory)
// without changing the emitter or listener.
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrConnectionLost is returned when the broker connection is gone and the
// operation cannot succeed without a new connection.
var ErrConnectionLost = errors.New("broker connection lost")

// Message represents a message in the queue.
type Message struct {
	// ID uniquely identifies the message across redeliveries.
	ID string

	// Body is the message payload.
	Body []byte

	// Headers contains optional metadata.
	Headers map[string]string

	// Timestamp is when the message was published.
	Timestamp time.Time

	// Redelivered is set when the broker has delivered this message before.
	Redelivered bool
}

// Declarer declares the durable queue. Declaring an existing queue with the
// same parameters is a no-op and never touches its contents.
type Declarer interface {
	DeclareQueue(ctx context.Context) error
}

// Producer defines the interface for publishing messages to a queue.
type Producer interface {
	Declarer

	// Publish sends a persistent message to the queue.
	Publish(ctx context.Context, msg *Message) error

	// Close releases any resources held by the producer.
	Close() error
}

// MessageHandler is a callback function for processing consumed messages.
// Returning nil acknowledges the message. Returning an error leaves it
// unacknowledged so the broker delivers it again.
type MessageHandler func(ctx context.Context, msg *Message) error

// Consumer defines the interface for consuming messages from a queue.
// Implementations hand the handler at most the configured prefetch count of
// unacknowledged messages, and never acknowledge before the handler returns.
type Consumer interface {
	Declarer

	// Start begins consuming messages and calls the handler for each one.
	// This is a blocking call that runs until the context is canceled
	// or an unrecoverable error occurs.
	Start(ctx context.Context, handler MessageHandler) error

	// Close stops consuming and releases any resources.
	Close() error
}
