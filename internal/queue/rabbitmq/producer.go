package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"energy-queue/internal/config"
	"energy-queue/internal/queue"
)

// ErrPublishNacked is returned when the broker refuses a published message.
var ErrPublishNacked = errors.New("broker did not confirm message")

// Producer implements queue.Producer using RabbitMQ with publisher confirms.
type Producer struct {
	*session
}

// NewProducer connects to RabbitMQ and puts the channel in confirm mode.
func NewProducer(cfg *config.RabbitMQConfig, queueName string, logger *slog.Logger) (*Producer, error) {
	s, err := dial(cfg, queueName, logger)
	if err != nil {
		return nil, err
	}

	if err := s.channel.Confirm(false); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	return &Producer{session: s}, nil
}

// Publish sends a persistent message through the default exchange, routed by
// queue name, and waits for the broker to confirm it.
func (p *Producer) Publish(ctx context.Context, msg *queue.Message) error {
	publishing := amqp.Publishing{
		ContentType:  "text/plain",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    msg.Timestamp,
		Body:         msg.Body,
	}
	if len(msg.Headers) > 0 {
		publishing.Headers = make(amqp.Table, len(msg.Headers))
		for k, v := range msg.Headers {
			publishing.Headers[k] = v
		}
	}

	confirm, err := p.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		"",          // exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		publishing,
	)
	if err != nil {
		return p.wrap("failed to publish message", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return p.wrap("failed to confirm message", err)
	}
	if !acked {
		if p.conn.IsClosed() {
			return fmt.Errorf("failed to confirm message: %w", queue.ErrConnectionLost)
		}
		return ErrPublishNacked
	}

	p.logger.Debug("published message", "queue", p.queueName, "message_id", msg.ID)
	return nil
}
