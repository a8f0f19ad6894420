package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
	err    error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestProducerFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, 16, zap.NewNop())
	p.Start()

	ctx := context.Background()
	for _, k := range []string{"1", "2", "3"} {
		require.NoError(t, p.Publish(ctx, []byte(k), []byte(`{}`), kafka.Header{Key: "x-event-type", Value: []byte("OrderCreated")}))
	}
	p.Close()
	p.WaitClosed()

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.msgs, 3)
	assert.Equal(t, "1", string(w.msgs[0].Key))
	assert.Equal(t, "OrderCreated", HeaderValue(w.msgs[0].Headers, "x-event-type"))
	assert.True(t, w.closed)
}

func TestProducerRejectsAfterClose(t *testing.T) {
	p := NewProducerWithWriter(&fakeWriter{}, 1, nil)
	p.Start()
	p.Close()
	p.Close()
	p.WaitClosed()

	err := p.Publish(context.Background(), []byte("k"), []byte("v"))
	assert.ErrorIs(t, err, ErrProducerClosed)
}

func TestProducerPublishHonoursContext(t *testing.T) {
	p := NewProducerWithWriter(&fakeWriter{}, 0, nil) // loop not started: inbox never drains
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Publish(ctx, []byte("k"), []byte("v"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	for {
		r.mu.Lock()
		if len(r.queue) > 0 {
			m := r.queue[0]
			r.queue = r.queue[1:]
			r.mu.Unlock()
			return m, nil
		}
		r.mu.Unlock()
		select {
		case <-ctx.Done():
			return kafka.Message{}, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int64
	for _, m := range r.committed {
		out = append(out, m.Offset)
	}
	return out
}

func (r *fakeReader) partitionCommits(partition int) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int64
	for _, m := range r.committed {
		if m.Partition == partition {
			out = append(out, m.Offset)
		}
	}
	return out
}

func TestConsumerStopsBeforeCommittingPastFailure(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Offset: 0}, {Offset: 1}, {Offset: 2}}}
	c := NewConsumerWithReader(r, 1, zap.NewNop())
	c.backoff = time.Millisecond

	var mu sync.Mutex
	attempts := map[int64]int{}
	h := func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		attempts[m.Offset]++
		if m.Offset == 1 {
			return errors.New("smtp down")
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background(), h) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "offset 1")
	case <-time.After(2 * time.Second):
		t.Fatal("consumer kept running after a failed message")
	}

	assert.Equal(t, []int64{0}, r.commits())
	mu.Lock()
	assert.Equal(t, 3, attempts[1])
	mu.Unlock()
	assert.True(t, r.closed)
}

func TestConsumerCommitsInFetchOrderPerPartition(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		{Partition: 0, Offset: 0}, {Partition: 0, Offset: 1}, {Partition: 0, Offset: 2}, {Partition: 1, Offset: 0},
	}}
	c := NewConsumerWithReader(r, 2, zap.NewNop())
	c.backoff = time.Millisecond

	release := make(chan struct{})
	h := func(ctx context.Context, m kafka.Message) error {
		if m.Partition == 0 && m.Offset == 0 {
			select {
			case <-release:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, h) }()

	require.Eventually(t, func() bool { return len(r.partitionCommits(1)) == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return len(r.partitionCommits(0)) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	close(release)
	require.Eventually(t, func() bool {
		got := r.partitionCommits(0)
		return len(got) > 0 && got[len(got)-1] == 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
