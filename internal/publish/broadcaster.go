package publish

import (
	"context"
	"sync"

	"github.com/sero-sim/scene-engine/internal/models"
)

// Broadcaster keeps the latest snapshot and pushes every new one to the
// in-process subscribers (the SSE stream). Slow subscribers lose
// intermediate snapshots, never the latest one.
type Broadcaster struct {
	mu     sync.Mutex
	latest *models.ContextSnapshot
	subs   map[chan models.ContextSnapshot]struct{}
	closed bool
}

// NewBroadcaster creates an empty broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan models.ContextSnapshot]struct{})}
}

// Publish records snap as the latest and offers it to every subscriber
func (b *Broadcaster) Publish(_ context.Context, snap models.ContextSnapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.latest = &snap
	for ch := range b.subs {
		offer(ch, snap)
	}
	return nil
}

// Latest returns the most recent snapshot, if any
func (b *Broadcaster) Latest() (models.ContextSnapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.latest == nil {
		return models.ContextSnapshot{}, false
	}
	return *b.latest, true
}

// Subscribe registers a subscriber. The current snapshot, if any, is
// delivered first. The returned func unsubscribes and closes the channel.
func (b *Broadcaster) Subscribe() (<-chan models.ContextSnapshot, func()) {
	ch := make(chan models.ContextSnapshot, 8)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	if b.latest != nil {
		ch <- *b.latest
	}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
}

// Subscribers returns the number of active subscribers
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close disconnects all subscribers
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	return nil
}

// offer delivers without blocking, discarding the oldest queued snapshot
// when the subscriber is full
func offer(ch chan models.ContextSnapshot, snap models.ContextSnapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
