package mq

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
)

// offsetTracker commits a partition only up to its lowest unfinished offset.
// With several handlers per subscription a later message may finish first; its
// commit is held back until every earlier fetched message on the partition is done.
type offsetTracker struct {
	next committer

	mu    sync.Mutex
	parts map[int]*partitionOffsets
}

type partitionOffsets struct {
	inflight []int64
	done     map[int64]kafka.Message
}

func newOffsetTracker(next committer) *offsetTracker {
	return &offsetTracker{next: next, parts: make(map[int]*partitionOffsets)}
}

// Track records a fetched message. Messages must be tracked in fetch order.
func (t *offsetTracker) Track(msg kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.partition(msg.Partition)
	p.inflight = append(p.inflight, msg.Offset)
}

// CommitMessages marks msgs finished and commits the highest offset of each
// partition whose predecessors are all finished. Untracked messages pass straight through.
func (t *offsetTracker) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ready := make([]kafka.Message, 0, len(msgs))
	for _, msg := range msgs {
		p := t.partition(msg.Partition)
		if !p.tracks(msg.Offset) {
			ready = append(ready, msg)
			continue
		}
		p.done[msg.Offset] = msg
		if last, ok := p.advance(); ok {
			ready = append(ready, last)
		}
	}
	if len(ready) == 0 {
		return nil
	}
	return t.next.CommitMessages(ctx, ready...)
}

func (t *offsetTracker) partition(id int) *partitionOffsets {
	p, ok := t.parts[id]
	if !ok {
		p = &partitionOffsets{done: make(map[int64]kafka.Message)}
		t.parts[id] = p
	}
	return p
}

func (p *partitionOffsets) tracks(offset int64) bool {
	for _, o := range p.inflight {
		if o == offset {
			return true
		}
	}
	return false
}

// advance pops the finished prefix of inflight and returns its last message.
func (p *partitionOffsets) advance() (kafka.Message, bool) {
	var (
		last kafka.Message
		ok   bool
	)
	for len(p.inflight) > 0 {
		msg, finished := p.done[p.inflight[0]]
		if !finished {
			break
		}
		delete(p.done, p.inflight[0])
		p.inflight = p.inflight[1:]
		last, ok = msg, true
	}
	return last, ok
}
