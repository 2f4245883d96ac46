// Package listener provides the consumer side of the energy queue.
// It takes one message at a time from the durable queue, derives the cost
// of the reading, appends it to the log and lets the queue acknowledge the
// message only after the append has succeeded.
package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"energy-queue/internal/domain"
	"energy-queue/internal/metrics"
	"energy-queue/internal/queue"
	"energy-queue/internal/sink"
	"energy-queue/internal/store"
)

// Stats counts handled messages.
type Stats struct {
	State     string `json:"state"`
	Processed int64  `json:"processed"`
	Discarded int64  `json:"discarded"`
	Duplicate int64  `json:"duplicate"`
	Failed    int64  `json:"failed"`
}

// Service consumes messages from the queue and writes the cost log.
// It is responsible for:
// - Declaring the queue and subscribing with manual acknowledgement
// - Parsing each message and discarding the ones that cannot be parsed
// - Skipping redeliveries of messages that were already logged
// - Appending the log record before the message is acknowledged
// - Closing the consumer and the log sink on every exit path
type Service struct {
	consumer  queue.Consumer
	sink      sink.Writer
	dedup     store.DedupStore
	queueName string
	logger    *slog.Logger

	state     atomic.Int32
	processed atomic.Int64
	discarded atomic.Int64
	duplicate atomic.Int64
	failed    atomic.Int64

	retryMin     time.Duration
	retryMax     time.Duration
	sinkFailures atomic.Int32

	stopOnce sync.Once
	stopErr  error
}

// Default delays before a message whose log append failed goes back to the
// queue. The delay doubles with each consecutive failure.
const (
	DefaultRetryMin = 100 * time.Millisecond
	DefaultRetryMax = 5 * time.Second
)

// Option configures a Service.
type Option func(*Service)

// WithRetryBackoff sets the delay bounds applied after a failed log append.
// A zero minDelay disables the delay.
func WithRetryBackoff(minDelay, maxDelay time.Duration) Option {
	return func(s *Service) {
		s.retryMin = minDelay
		s.retryMax = maxDelay
	}
}

// NewService creates a new listener service. The service owns consumer,
// sink and dedup and closes them in Stop. A nil dedup disables deduplication.
func NewService(
	consumer queue.Consumer,
	w sink.Writer,
	dedup store.DedupStore,
	queueName string,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	if dedup == nil {
		dedup = store.Nop{}
	}
	s := &Service{
		consumer:  consumer,
		sink:      w,
		dedup:     dedup,
		queueName: queueName,
		logger:    logger,
		retryMin:  DefaultRetryMin,
		retryMax:  DefaultRetryMax,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setState(StateConnected)
	return s
}

// Run declares the queue and consumes until ctx is canceled or the consumer
// fails. Cancellation is a clean stop and returns nil.
func (s *Service) Run(ctx context.Context) error {
	defer s.setState(StateDisconnected)

	if err := s.consumer.DeclareQueue(ctx); err != nil {
		s.logger.Error("failed to declare queue", "queue", s.queueName, "error", err)
		return fmt.Errorf("failed to declare queue %s: %w", s.queueName, err)
	}

	s.setState(StateSubscribed)
	s.logger.Info("ready for work", "queue", s.queueName)

	err := s.consumer.Start(ctx, s.handleMessage)
	if err == nil || (ctx.Err() != nil && errors.Is(err, ctx.Err())) {
		s.logger.Info("listener interrupted, stopping")
		return nil
	}

	s.logger.Error("consumer stopped", "queue", s.queueName, "error", err)
	return fmt.Errorf("consumer stopped: %w", err)
}

// handleMessage is the callback for processing each message from the queue.
// Returning nil lets the queue acknowledge the message.
func (s *Service) handleMessage(ctx context.Context, msg *queue.Message) error {
	start := time.Now()
	defer func() {
		metrics.MessageProcessingLatency.Observe(time.Since(start).Seconds())
	}()

	s.setState(StateReceiving)
	s.logger.Info("received", "message", string(msg.Body), "message_id", msg.ID, "redelivered", msg.Redelivered)

	s.setState(StateProcessing)
	m, mw, err := domain.ParseMessage(msg.Body)
	if err != nil {
		s.logger.Error("failed to parse message", "message", string(msg.Body), "message_id", msg.ID, "error", err)
		s.count(&s.discarded, metrics.ResultDiscarded)
		// Return nil to avoid reprocessing malformed messages
		s.setState(StateAcknowledging)
		return nil
	}

	if msg.ID != "" {
		seen, err := s.dedup.Seen(ctx, msg.ID)
		if err != nil {
			s.logger.Warn("failed to check processed ids", "message_id", msg.ID, "error", err)
		}
		if seen {
			s.logger.Info("already logged, skipping", "message_id", msg.ID)
			s.count(&s.duplicate, metrics.ResultDuplicate)
			s.setState(StateAcknowledging)
			return nil
		}
	}

	rec := domain.NewLogRecord(m.Timestamp, mw)
	if err := s.sink.Append(ctx, rec); err != nil {
		delay := s.retryDelay(s.sinkFailures.Add(1))
		s.logger.Error("failed to write log record", "message_id", msg.ID, "retry_in", delay, "error", err)
		s.count(&s.failed, metrics.ResultFailed)
		s.wait(ctx, delay)
		return fmt.Errorf("failed to write log record: %w", err)
	}
	s.sinkFailures.Store(0)

	if msg.ID != "" {
		if err := s.dedup.MarkProcessed(ctx, msg.ID); err != nil {
			s.logger.Warn("failed to mark message processed", "message_id", msg.ID, "error", err)
		}
	}

	s.count(&s.processed, metrics.ResultProcessed)
	metrics.EstimatedCostTotal.Add(rec.Cost)
	s.logger.Info("done", "timestamp", rec.Timestamp, "consumption", mw, "cost", rec.Cost)

	s.setState(StateAcknowledging)
	return nil
}

// retryDelay returns the pause after the n-th consecutive append failure.
func (s *Service) retryDelay(n int32) time.Duration {
	if s.retryMin <= 0 {
		return 0
	}
	delay := s.retryMin
	for i := int32(1); i < n && delay < s.retryMax; i++ {
		delay *= 2
	}
	if delay > s.retryMax {
		delay = s.retryMax
	}
	return delay
}

// wait pauses for d or until ctx is done.
func (s *Service) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (s *Service) count(c *atomic.Int64, result string) {
	c.Add(1)
	metrics.MessagesConsumedTotal.WithLabelValues(s.queueName, result).Inc()
}

func (s *Service) setState(st State) {
	s.state.Store(int32(st))
}

// State returns the current state.
func (s *Service) State() State {
	return State(s.state.Load())
}

// Stats returns a snapshot of the counters.
func (s *Service) Stats() Stats {
	return Stats{
		State:     s.State().String(),
		Processed: s.processed.Load(),
		Discarded: s.discarded.Load(),
		Duplicate: s.duplicate.Load(),
		Failed:    s.failed.Load(),
	}
}

// Stop closes the consumer, the sink and the dedup store. Safe to call more
// than once; later calls return the first result.
func (s *Service) Stop() error {
	s.stopOnce.Do(func() {
		s.logger.Info("stopping listener service")

		var errs []error
		if err := s.consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close consumer: %w", err))
		}
		if err := s.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close sink: %w", err))
		}
		if err := s.dedup.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close dedup store: %w", err))
		}
		s.setState(StateDisconnected)
		s.stopErr = errors.Join(errs...)
	})
	return s.stopErr
}
