package integration

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"energy-queue/internal/domain"
	"energy-queue/internal/emitter"
	"energy-queue/internal/listener"
	"energy-queue/internal/pacing"
	"energy-queue/internal/queue"
	"energy-queue/internal/sink/csvfile"
	"energy-queue/internal/source"
)

const logHeader = "Note: Cost of energy is $1 for every 1500 MW used\n" +
	"Timestamp,Energy Consumption (MW),Estimated Energy Cost ($)\n"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(GinkgoWriter, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func fixedClock() time.Time {
	return time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)
}

// writeSource writes a CSV data source with the given consumption values.
func writeSource(dir string, values ...string) string {
	var b strings.Builder
	b.WriteString("Datetime,DAYTON_MW\n")
	for _, v := range values {
		b.WriteString("2004-12-31 01:00:00," + v + "\n")
	}
	path := filepath.Join(dir, "dayton_energy_consumption.csv")
	Expect(os.WriteFile(path, []byte(b.String()), 0o600)).To(Succeed())
	return path
}

// publishFile runs the emitter over the file without pacing.
func publishFile(ctx context.Context, producer queue.Producer, queueName, path string) emitter.Summary {
	src, err := source.Open(path, 1)
	Expect(err).NotTo(HaveOccurred())
	defer src.Close()

	svc := emitter.NewService(producer, pacing.New(0, 1), queueName, quietLogger(), emitter.WithClock(fixedClock))
	summary, err := svc.PublishAll(ctx, src)
	Expect(err).NotTo(HaveOccurred())
	return summary
}

// runningListener is a listener consuming in the background.
type runningListener struct {
	svc    *listener.Service
	sink   *csvfile.Writer
	path   string
	cancel context.CancelFunc
	done   chan error
}

func startListener(consumer queue.Consumer, queueName, logPath string) *runningListener {
	w, err := csvfile.Open(logPath)
	Expect(err).NotTo(HaveOccurred())

	svc := listener.NewService(consumer, w, nil, queueName, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		defer GinkgoRecover()
		done <- svc.Run(ctx)
	}()

	return &runningListener{svc: svc, sink: w, path: logPath, cancel: cancel, done: done}
}

// stop cancels the listener and closes its sink. The consumer is shared and
// closed by the caller.
func (l *runningListener) stop() {
	l.cancel()
	Eventually(l.done).Should(Receive(BeNil()))
	Expect(l.sink.Close()).To(Succeed())
}

func (l *runningListener) handled() int64 {
	s := l.svc.Stats()
	return s.Processed + s.Discarded + s.Duplicate
}

func readLog(path string) string {
	data, err := os.ReadFile(path)
	Expect(err).NotTo(HaveOccurred())
	return string(data)
}

// logRows returns the data rows of a cost log.
func logRows(path string) []string {
	body := strings.TrimPrefix(readLog(path), logHeader)
	if body == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(body, "\n"), "\n")
}

// failingSink fails the first n appends.
type failingSink struct {
	mu       sync.Mutex
	failures int
	records  []domain.LogRecord
}

func (f *failingSink) Append(ctx context.Context, rec domain.LogRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return io.ErrShortWrite
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *failingSink) Close() error { return nil }

func (f *failingSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}
