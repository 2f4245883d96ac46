package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	amqp "github.com/rabbitmq/amqp091-go"

	"energy-queue/internal/config"
	rabbitqueue "energy-queue/internal/queue/rabbitmq"
)

// rabbitConfig returns broker settings from the environment, defaulting to a
// local broker with the guest account.
func rabbitConfig() *config.Config {
	cfg, err := config.Load("")
	Expect(err).NotTo(HaveOccurred())
	cfg.Queue.Name = "energy_it_" + uuid.NewString()
	return cfg
}

var _ = Describe("RabbitMQ broker", Ordered, func() {
	var (
		cfg      *config.Config
		producer *rabbitqueue.Producer
		dir      string
	)

	BeforeAll(func() {
		cfg = rabbitConfig()

		var err error
		producer, err = rabbitqueue.NewProducer(&cfg.RabbitMQ, cfg.Queue.Name, quietLogger())
		if err != nil {
			Skip(fmt.Sprintf("RabbitMQ not reachable at %s:%d: %v", cfg.RabbitMQ.Host, cfg.RabbitMQ.Port, err))
		}
		dir, err = os.MkdirTemp("", "energy-it")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if producer == nil {
			return
		}
		Expect(producer.Close()).To(Succeed())

		conn, err := amqp.Dial(rabbitqueue.BuildURL(&cfg.RabbitMQ))
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()
		ch, err := conn.Channel()
		Expect(err).NotTo(HaveOccurred())
		_, err = ch.QueueDelete(cfg.Queue.Name, false, false, false)
		Expect(err).NotTo(HaveOccurred())

		_ = os.RemoveAll(dir)
	})

	It("should declare the queue idempotently", func() {
		ctx := context.Background()
		Expect(producer.DeclareQueue(ctx)).To(Succeed())
		Expect(producer.DeclareQueue(ctx)).To(Succeed())
	})

	It("should carry a published reading to the log", func() {
		ctx := context.Background()
		summary := publishFile(ctx, producer, cfg.Queue.Name, writeSource(dir, "3000", "1500"))
		Expect(summary.Published).To(Equal(2))

		consumer, err := rabbitqueue.NewConsumer(&cfg.RabbitMQ, cfg.Queue.Name, 1, quietLogger())
		Expect(err).NotTo(HaveOccurred())
		defer consumer.Close()

		l := startListener(consumer, cfg.Queue.Name, filepath.Join(dir, "energy_consumption_log.csv"))
		Eventually(l.handled, "10s").Should(BeEquivalentTo(2))
		l.stop()

		Expect(logRows(l.path)).To(Equal([]string{
			"2024-06-12 10:00:00,3000.0,2.00",
			"2024-06-12 10:00:00,1500.0,1.00",
		}))
	})
})
