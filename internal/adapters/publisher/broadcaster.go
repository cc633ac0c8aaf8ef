package publisher

import (
	"context"
	"rail-hazard-monitor/internal/domain"
	"rail-hazard-monitor/internal/platform/metrics"
	"sync"
)

// Broadcaster fans transitions out to in-process subscribers such as
// websocket clients. A subscriber that falls behind loses messages; it never
// slows down the publisher.
type Broadcaster struct {
	buffer int

	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broadcaster{buffer: buffer, subs: make(map[chan []byte]struct{})}
}

// Subscribe registers a listener. The returned func unsubscribes and closes the channel.
func (b *Broadcaster) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, b.buffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) PublishTransition(ctx context.Context, e domain.TransitionEvent) error {
	payload, err := encodeTransition(e)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- payload:
		default:
			metrics.TransitionDrops.Add(1)
		}
	}
	return nil
}
