package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"energy-queue/internal/listener"
	"energy-queue/internal/queue"
	"energy-queue/internal/queue/memory"
)

var _ = Describe("Emitter to listener pipeline", func() {
	var (
		dir string
		q   *memory.Queue
		ctx context.Context
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		q = memory.NewQueue("dayton_queue1")
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(q.Close()).To(Succeed())
	})

	Context("When a reading is published", func() {
		It("should log the reading with its estimated cost", func() {
			path := writeSource(dir, "3000")
			summary := publishFile(ctx, q, q.Name(), path)
			Expect(summary.Published).To(Equal(1))

			l := startListener(q, q.Name(), filepath.Join(dir, "energy_consumption_log.csv"))
			Eventually(l.handled).Should(BeEquivalentTo(1))
			l.stop()

			Expect(readLog(l.path)).To(Equal(logHeader + "2024-06-12 10:00:00,3000.0,2.00\n"))
			Expect(q.Acked()).To(Equal(1))
			Expect(q.Len()).To(BeZero())
		})

		It("should keep source order in the log", func() {
			path := writeSource(dir, "1500", "750", "2234", "14999")
			publishFile(ctx, q, q.Name(), path)

			l := startListener(q, q.Name(), filepath.Join(dir, "log.csv"))
			Eventually(l.handled).Should(BeEquivalentTo(4))
			l.stop()

			Expect(logRows(l.path)).To(Equal([]string{
				"2024-06-12 10:00:00,1500.0,1.00",
				"2024-06-12 10:00:00,750.0,0.50",
				"2024-06-12 10:00:00,2234.0,1.49",
				"2024-06-12 10:00:00,14999.0,10.00",
			}))
		})
	})

	Context("When the source contains bad rows", func() {
		It("should publish the good rows and report the rest", func() {
			path := writeSource(dir, "100", "n/a", "200")
			summary := publishFile(ctx, q, q.Name(), path)

			Expect(summary.Rows).To(Equal(3))
			Expect(summary.Published).To(Equal(2))
			Expect(summary.Failed).To(Equal(1))
			Expect(q.Len()).To(Equal(2))
		})
	})

	Context("When a malformed message is on the queue", func() {
		It("should acknowledge and drop it without logging", func() {
			Expect(q.DeclareQueue(ctx)).To(Succeed())
			Expect(q.Publish(ctx, &queue.Message{ID: "bad", Body: []byte("not-a-reading")})).To(Succeed())
			Expect(q.Publish(ctx, &queue.Message{ID: "good", Body: []byte("2024-06-12 10:00:00 1500")})).To(Succeed())

			l := startListener(q, q.Name(), filepath.Join(dir, "log.csv"))
			Eventually(l.handled).Should(BeEquivalentTo(2))
			l.stop()

			Expect(l.svc.Stats().Discarded).To(BeEquivalentTo(1))
			Expect(logRows(l.path)).To(Equal([]string{"2024-06-12 10:00:00,1500.0,1.00"}))
			Expect(q.Acked()).To(Equal(2))
		})
	})

	Context("When the log write fails", func() {
		It("should redeliver the message until the write succeeds", func() {
			publishFile(ctx, q, q.Name(), writeSource(dir, "3000"))

			sink := &failingSink{failures: 2}
			svc := listener.NewService(q, sink, nil, q.Name(), quietLogger(),
				listener.WithRetryBackoff(time.Millisecond, 10*time.Millisecond))
			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				done <- svc.Run(runCtx)
			}()

			Eventually(sink.count).Should(Equal(1))
			cancel()
			Eventually(done).Should(Receive(BeNil()))

			Expect(svc.Stats().Failed).To(BeEquivalentTo(2))
			Expect(q.Acked()).To(Equal(1))
		})
	})

	Context("When two listeners share the queue", func() {
		It("should split the messages between them without overlap", func() {
			const total = 40

			values := make([]string, total)
			for i := range values {
				values[i] = fmt.Sprintf("%d", 1000+i)
			}
			publishFile(ctx, q, q.Name(), writeSource(dir, values...))

			a := startListener(q, q.Name(), filepath.Join(dir, "a.csv"))
			b := startListener(q, q.Name(), filepath.Join(dir, "b.csv"))

			Eventually(func() int64 { return a.handled() + b.handled() }, 5*time.Second).
				Should(BeEquivalentTo(total))
			a.stop()
			b.stop()

			seen := make(map[string]int)
			for _, path := range []string{a.path, b.path} {
				for _, row := range logRows(path) {
					seen[row]++
				}
			}

			Expect(seen).To(HaveLen(total))
			for row, n := range seen {
				Expect(n).To(Equal(1), "row %s logged %d times", row, n)
			}
		})
	})
})
