package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/claimflow/claims/internal/shared/metrics"
)

// MemoryBus delivers events synchronously inside the process. It backs
// development runs without KurrentDB and the package tests.
type MemoryBus struct {
	mu            sync.RWMutex
	subscriptions []subscription
	published     []Event
	logger        zerolog.Logger
}

type subscription struct {
	pattern  string
	consumer string
	handler  Handler
}

func NewMemoryBus(logger zerolog.Logger) *MemoryBus {
	return &MemoryBus{logger: logger.With().Str("component", "memory_bus").Logger()}
}

// Publish records the event and hands it to every matching subscriber in
// subscription order. Subscriber failures are logged, not returned.
func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	b.mu.Lock()
	b.published = append(b.published, event)
	subs := make([]subscription, len(b.subscriptions))
	copy(subs, b.subscriptions)
	b.mu.Unlock()

	metrics.RecordEventPublished(event.Type, nil)

	for _, s := range subs {
		if !MatchesPattern(event.Type, s.pattern) {
			continue
		}
		if err := s.handler(ctx, event); err != nil {
			b.logger.Error().Err(err).
				Str("consumer", s.consumer).
				Str("event_id", event.ID).
				Str("event_type", event.Type).
				Msg("handler failed")
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, pattern string, consumerName string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = append(b.subscriptions, subscription{pattern: pattern, consumer: consumerName, handler: handler})
	return nil
}

// Published returns a copy of every event seen so far
func (b *MemoryBus) Published() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Event, len(b.published))
	copy(out, b.published)
	return out
}

func (b *MemoryBus) Close() {}

func (b *MemoryBus) Health() error { return nil }
