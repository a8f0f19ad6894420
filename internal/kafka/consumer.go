package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler returns nil only when the message is done and its offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// Reader is the part of *kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r        Reader
	workers  int
	log      *zap.Logger
	backoff  time.Duration
	attempts int
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
	return NewConsumerWithReader(r, workers, log)
}

func NewConsumerWithReader(r Reader, workers int, log *zap.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{r: r, workers: workers, log: log, backoff: 200 * time.Millisecond, attempts: 3}
}

// Start dispatches messages to a worker pool until ctx ends. Offsets are
// committed per partition in fetch order, so a commit only covers messages
// that were all handled. A message that still fails after the in-place
// retries stops the consumer with an error and stays uncommitted; the group
// redelivers it from that offset on the next start.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan *pending, 1024)
	offs := newOffsets()
	var (
		failOnce sync.Once
		failErr  error
	)

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for p := range jobs {
				m := p.m
				if err := c.handle(ctx, h, m); err != nil {
					if ctx.Err() != nil {
						continue
					}
					c.log.Error("message failed, stopping consumer", zap.Int("worker", id),
						zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset), zap.Error(err))
					failOnce.Do(func() {
						failErr = fmt.Errorf("partition %d offset %d: %w", m.Partition, m.Offset, err)
						cancel()
					})
					continue
				}
				if last, ok := offs.complete(p); ok {
					offs.commit(ctx, c.r, last, c.log)
				}
			}
		}(i)
	}
	stop := func() error {
		close(jobs)
		wg.Wait()
		return failErr
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ferr := stop(); ferr != nil {
				return ferr
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		p := offs.track(m)
		select {
		case jobs <- p:
		case <-ctx.Done():
			return stop()
		}
	}
}

func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) error {
	var err error
	for i := 0; i < c.attempts; i++ {
		if err = h(ctx, m); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(c.backoff * time.Duration(i+1)):
		}
	}
	return err
}
