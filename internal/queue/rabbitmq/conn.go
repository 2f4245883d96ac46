// Package rabbitmq provides RabbitMQ-based implementations of the queue interfaces.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"energy-queue/internal/config"
	"energy-queue/internal/queue"
)

// BuildURL returns the AMQP URL for the given settings. The default vhost
// "/" maps to an empty path.
func BuildURL(cfg *config.RabbitMQConfig) string {
	vhost := cfg.VHost
	if vhost == "/" {
		vhost = ""
	}
	return fmt.Sprintf("amqp://%s@%s/%s",
		url.UserPassword(cfg.User, cfg.Password).String(),
		net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		url.PathEscape(vhost),
	)
}

// session is one connection with one channel on it.
type session struct {
	queueName string
	logger    *slog.Logger

	conn    *amqp.Connection
	channel *amqp.Channel
	closed  chan *amqp.Error

	mu      sync.Mutex
	closing bool
}

func dial(cfg *config.RabbitMQConfig, queueName string, logger *slog.Logger) (*session, error) {
	conn, err := amqp.Dial(BuildURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	logger.Info("connected to rabbitmq",
		"host", cfg.Host,
		"port", cfg.Port,
		"user", cfg.User,
		"vhost", cfg.VHost,
	)

	return &session{
		queueName: queueName,
		logger:    logger,
		conn:      conn,
		channel:   ch,
		closed:    conn.NotifyClose(make(chan *amqp.Error, 1)),
	}, nil
}

// DeclareQueue declares the durable, non-exclusive, non-auto-delete queue.
// Declaring an existing queue with the same parameters leaves it untouched.
func (s *session) DeclareQueue(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.channel.QueueDeclare(
		s.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return s.wrap("failed to declare queue", err)
	}
	return nil
}

// wrap maps errors caused by a dead connection to queue.ErrConnectionLost.
func (s *session) wrap(msg string, err error) error {
	var amqpErr *amqp.Error
	if s.conn.IsClosed() || errors.Is(err, amqp.ErrClosed) ||
		(errors.As(err, &amqpErr) && amqpErr.Code == amqp.ConnectionForced) {
		return fmt.Errorf("%s: %w: %v", msg, queue.ErrConnectionLost, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func (s *session) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// Close closes the channel and the connection. Safe to call more than once.
func (s *session) Close() error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	s.mu.Unlock()

	if !s.channel.IsClosed() {
		if err := s.channel.Close(); err != nil {
			s.logger.Warn("failed to close rabbitmq channel", "error", err)
		}
	}
	if !s.conn.IsClosed() {
		if err := s.conn.Close(); err != nil {
			return fmt.Errorf("failed to close rabbitmq connection: %w", err)
		}
	}
	return nil
}
