package kafka

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/ariefcatur/go-shop-backend.git/internal/logger"
	"github.com/segmentio/kafka-go"
)

// Handler returns nil once m is processed. A failing message is retried in
// place, holding back the rest of its partition; after the last attempt it
// is logged and committed so one bad message cannot stall the partition.
type Handler func(ctx context.Context, m kafka.Message) error

const (
	defaultAttempts = 5
	defaultBackoff  = 200 * time.Millisecond
)

type Consumer struct {
	r        *kafka.Reader
	workers  int
	attempts int
	backoff  time.Duration
	log      *logger.Logger
}

func NewConsumer(brokers []string, group string, topics []string, workers int, log *logger.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
		ErrorLogger:    kafka.LoggerFunc(log.Errorf),
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, attempts: defaultAttempts, backoff: defaultBackoff, log: log}
}

// Start fetches messages and fans them out to the worker pool. Every
// partition is pinned to one worker, so its messages are handled and
// committed in offset order. It returns nil when ctx is cancelled.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	shards := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup

	for i := range shards {
		shards[i] = make(chan kafka.Message, 128)
		wg.Add(1)
		go func(id int, jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				if ctx.Err() != nil {
					// shutting down: leave the rest uncommitted for the next run
					continue
				}
				if err := process(ctx, h, m, c.attempts, c.backoff); err != nil {
					if ctx.Err() != nil {
						continue
					}
					c.log.Error("handler failed, skipping message", "worker", id, "topic", m.Topic,
						"partition", m.Partition, "offset", m.Offset, "attempts", c.attempts, "err", err)
				}
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					c.log.Error("commit failed", "worker", id, "topic", m.Topic, "offset", m.Offset, "err", err)
				}
			}
		}(i, shards[i])
	}

	defer wg.Wait()
	defer func() {
		for _, ch := range shards {
			close(ch)
		}
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case shards[shard(m.Topic, m.Partition, len(shards))] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// shard picks the worker that owns topic/partition.
func shard(topic string, partition, n int) int {
	f := fnv.New32a()
	_, _ = f.Write([]byte(topic))
	return int((f.Sum32() + uint32(partition)) % uint32(n))
}

// process calls h up to attempts times with a growing backoff.
func process(ctx context.Context, h Handler, m kafka.Message, attempts int, backoff time.Duration) error {
	var err error
	for i := 1; i <= attempts; i++ {
		if err = h(ctx, m); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		select {
		case <-time.After(backoff * time.Duration(i)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
