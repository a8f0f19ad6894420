package kafka

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type partition struct {
	topic string
	id    int
}

type pending struct {
	m    kafka.Message
	done bool
}

// offsets keeps fetched messages per partition in fetch order. A commit
// never moves past a message that has not been handled, even when workers
// finish out of order.
type offsets struct {
	mu     sync.Mutex
	queues map[partition][]*pending

	commitMu  sync.Mutex
	committed map[partition]int64
}

func newOffsets() *offsets {
	return &offsets{queues: map[partition][]*pending{}, committed: map[partition]int64{}}
}

func partitionOf(m kafka.Message) partition { return partition{topic: m.Topic, id: m.Partition} }

func (o *offsets) track(m kafka.Message) *pending {
	o.mu.Lock()
	defer o.mu.Unlock()
	p := &pending{m: m}
	k := partitionOf(m)
	o.queues[k] = append(o.queues[k], p)
	return p
}

// complete marks p handled and returns the newest message of its partition
// whose predecessors are all handled, if that changed.
func (o *offsets) complete(p *pending) (kafka.Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p.done = true
	k := partitionOf(p.m)
	q := o.queues[k]
	i := 0
	for i < len(q) && q[i].done {
		i++
	}
	if i == 0 {
		return kafka.Message{}, false
	}
	o.queues[k] = q[i:]
	return q[i-1].m, true
}

// commit sends m unless a later offset of the same partition already went
// out.
func (o *offsets) commit(ctx context.Context, r Reader, m kafka.Message, log *zap.Logger) {
	o.commitMu.Lock()
	defer o.commitMu.Unlock()
	k := partitionOf(m)
	if last, ok := o.committed[k]; ok && m.Offset <= last {
		return
	}
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Warn("commit offset", zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset), zap.Error(err))
		return
	}
	o.committed[k] = m.Offset
}
