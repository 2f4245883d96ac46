// Package emitter provides the producer side of the energy queue.
// It reads rows from the data source, stamps each value with the current
// time, and publishes it to the durable queue one row per pacing interval.
package emitter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"energy-queue/internal/domain"
	"energy-queue/internal/metrics"
	"energy-queue/internal/pacing"
	"energy-queue/internal/queue"
	"energy-queue/internal/source"
)

// Source yields readings in order and returns io.EOF after the last one.
// A *source.RowError marks a row that cannot be used.
type Source interface {
	Next() (domain.Reading, error)
}

// Summary counts the outcome of a run.
type Summary struct {
	Rows      int `json:"rows"`
	Published int `json:"published"`
	Failed    int `json:"failed"`
}

// Errors returned by the emitter.
var (
	ErrEmptySource   = source.ErrEmptySource
	ErrDeclareFailed = errors.New("failed to declare queue")
)

// Service publishes readings to the queue.
// It is responsible for:
// - Declaring the durable queue before the first publish
// - Pacing rows so that one is sent per interval
// - Turning each row into a timestamped message
// - Publishing with a unique message id
type Service struct {
	producer  queue.Producer
	pacer     *pacing.Pacer
	queueName string
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	summary Summary
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock used to stamp messages.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new emitter service.
func NewService(
	producer queue.Producer,
	pacer *pacing.Pacer,
	queueName string,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		producer:  producer,
		pacer:     pacer,
		queueName: queueName,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PublishAll publishes every row of src in order.
//
// Row-level failures are logged and counted and the run continues. A lost
// broker connection, an unreadable source or an empty source end the run
// with an error. Cancelling ctx stops the run and returns ctx.Err().
func (s *Service) PublishAll(ctx context.Context, src Source) (Summary, error) {
	s.setSummary(Summary{})

	if err := s.producer.DeclareQueue(ctx); err != nil {
		s.logger.Error("failed to declare queue", "queue", s.queueName, "error", err)
		return Summary{}, fmt.Errorf("%w %s: %w", ErrDeclareFailed, s.queueName, err)
	}

	var sum Summary
	for {
		reading, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		var rowErr *source.RowError
		if errors.As(err, &rowErr) {
			sum.Rows++
			sum.Failed++
			metrics.RowsReadTotal.Inc()
			metrics.RowFailuresTotal.WithLabelValues("read").Inc()
			s.logger.Error("failed to read row", "row", rowErr.Row, "error", rowErr.Err)
			s.setSummary(sum)
			continue
		}
		if err != nil {
			s.logger.Error("failed to read source", "error", err)
			return sum, fmt.Errorf("failed to read source: %w", err)
		}

		sum.Rows++
		metrics.RowsReadTotal.Inc()

		published, err := s.publishRow(ctx, reading)
		if err != nil {
			s.setSummary(sum)
			return sum, err
		}
		if published {
			sum.Published++
		} else {
			sum.Failed++
		}
		s.setSummary(sum)
	}

	if sum.Rows == 0 {
		s.logger.Error("source is empty", "queue", s.queueName)
		return sum, ErrEmptySource
	}

	s.logger.Info("finished publishing",
		"queue", s.queueName,
		"rows", sum.Rows,
		"published", sum.Published,
		"failed", sum.Failed,
	)
	return sum, nil
}

// publishRow sends one reading. It returns false for a row-level failure and
// an error only when the run must stop.
func (s *Service) publishRow(ctx context.Context, reading domain.Reading) (bool, error) {
	msg, err := domain.NewMessage(s.now(), reading.Value)
	if err != nil {
		metrics.RowFailuresTotal.WithLabelValues("format").Inc()
		s.logger.Error("failed to format row", "row", reading.Row, "value", reading.Value, "error", err)
		return false, nil
	}

	if err := s.pacer.Wait(ctx); err != nil {
		return false, err
	}

	// Stamp with the time the message actually leaves.
	sentAt := s.now()
	msg.Timestamp = sentAt.Format(domain.TimestampLayout)

	id := uuid.NewString()
	qmsg := &queue.Message{
		ID:   id,
		Body: msg.Bytes(),
		Headers: map[string]string{
			"message_id": id,
			"row":        strconv.Itoa(reading.Row),
		},
		Timestamp: sentAt,
	}

	publishStart := time.Now()
	if err := s.producer.Publish(ctx, qmsg); err != nil {
		if errors.Is(err, queue.ErrConnectionLost) {
			s.logger.Error("connection to broker lost", "row", reading.Row, "error", err)
			return false, fmt.Errorf("failed to publish row %d: %w", reading.Row, err)
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		metrics.RowFailuresTotal.WithLabelValues("publish").Inc()
		s.logger.Error("failed to publish row", "row", reading.Row, "error", err)
		return false, nil
	}
	metrics.QueuePublishLatency.Observe(time.Since(publishStart).Seconds())
	metrics.MessagesPublishedTotal.WithLabelValues(s.queueName).Inc()

	s.logger.Info("sent", "message", msg.String(), "message_id", id, "row", reading.Row)
	return true, nil
}

// Summary returns the counters of the current or last run.
func (s *Service) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

func (s *Service) setSummary(sum Summary) {
	s.mu.Lock()
	s.summary = sum
	s.mu.Unlock()
}

// Close releases the producer.
func (s *Service) Close() error {
	s.logger.Info("stopping emitter service")
	return s.producer.Close()
}
