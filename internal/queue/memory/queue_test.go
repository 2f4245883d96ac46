package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"energy-queue/internal/queue"
)

func publishN(t *testing.T, q *Queue, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		msg := &queue.Message{ID: fmt.Sprintf("m-%d", i), Body: []byte(fmt.Sprintf("body-%d", i))}
		if err := q.Publish(context.Background(), msg); err != nil {
			t.Fatalf("Publish error: %v", err)
		}
	}
}

func TestQueue_PublishRequiresDeclare(t *testing.T) {
	q := NewQueue("test")
	defer q.Close()

	err := q.Publish(context.Background(), &queue.Message{Body: []byte("x")})
	if !errors.Is(err, ErrQueueNotDeclared) {
		t.Errorf("Publish before declare error = %v, want ErrQueueNotDeclared", err)
	}
}

func TestQueue_DeclareIsIdempotent(t *testing.T) {
	q := NewQueue("test")
	defer q.Close()
	ctx := context.Background()

	if err := q.DeclareQueue(ctx); err != nil {
		t.Fatalf("DeclareQueue error: %v", err)
	}
	publishN(t, q, 3)

	if err := q.DeclareQueue(ctx); err != nil {
		t.Fatalf("second DeclareQueue error: %v", err)
	}
	if q.Len() != 3 {
		t.Errorf("redeclare changed contents: Len() = %d, want 3", q.Len())
	}
}

func TestQueue_DeliversInOrder(t *testing.T) {
	q := NewQueue("test")
	defer q.Close()
	_ = q.DeclareQueue(context.Background())
	publishN(t, q, 5)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var got []string
	_ = q.Start(ctx, func(ctx context.Context, msg *queue.Message) error {
		got = append(got, msg.ID)
		if len(got) == 5 {
			cancel()
		}
		return nil
	})

	for i, id := range got {
		if want := fmt.Sprintf("m-%d", i); id != want {
			t.Errorf("delivery %d = %s, want %s", i, id, want)
		}
	}
	if q.Acked() != 5 {
		t.Errorf("Acked() = %d, want 5", q.Acked())
	}
}

func TestQueue_FailedHandlerRedelivers(t *testing.T) {
	q := NewQueue("test")
	defer q.Close()
	_ = q.DeclareQueue(context.Background())
	publishN(t, q, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	attempts := 0
	var redelivered bool
	_ = q.Start(ctx, func(ctx context.Context, msg *queue.Message) error {
		attempts++
		if attempts == 1 {
			return errors.New("sink unavailable")
		}
		redelivered = msg.Redelivered
		cancel()
		return nil
	})

	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if !redelivered {
		t.Error("second delivery should be flagged as redelivered")
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestQueue_CompetingConsumersGetDisjointMessages(t *testing.T) {
	const total = 50

	q := NewQueue("test")
	_ = q.DeclareQueue(context.Background())
	publishN(t, q, total)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Start(ctx, func(ctx context.Context, msg *queue.Message) error {
				mu.Lock()
				seen[msg.ID]++
				if len(seen) == total {
					cancel()
				}
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	_ = q.Close()

	if len(seen) != total {
		t.Fatalf("delivered %d distinct messages, want %d", len(seen), total)
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("message %s delivered %d times", id, n)
		}
	}
}

func TestQueue_CloseStopsConsumers(t *testing.T) {
	q := NewQueue("test")
	_ = q.DeclareQueue(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- q.Start(context.Background(), func(ctx context.Context, msg *queue.Message) error {
			return nil
		})
	}()

	time.Sleep(10 * time.Millisecond)
	_ = q.Close()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() after Close = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after Close")
	}

	if err := q.Publish(context.Background(), &queue.Message{}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Publish after Close = %v, want ErrQueueClosed", err)
	}
}
