package events

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/claimflow/claims/internal/shared/config"
)

// EventBus defines the interface for event publishing and subscription
type EventBus interface {
	// Publish publishes an event to the bus
	Publish(ctx context.Context, event Event) error

	// Subscribe creates a subscription to events matching a pattern
	Subscribe(ctx context.Context, pattern string, consumerName string, handler Handler) error

	// Close closes the event bus connection
	Close()

	// Health checks the event bus connection
	Health() error
}

// NewEventBus connects to KurrentDB, or returns an in-process bus when
// KurrentDB is disabled. The returned string names the transport.
func NewEventBus(ctx context.Context, cfg config.KurrentDBConfig, logger zerolog.Logger) (EventBus, string, error) {
	if !cfg.Enabled {
		return NewMemoryBus(logger), "memory", nil
	}

	bus, err := NewBus(cfg, logger)
	if err != nil {
		return nil, "", err
	}

	done := make(chan error, 1)
	go func() { done <- bus.Health() }()

	select {
	case err := <-done:
		if err != nil {
			bus.Close()
			return nil, "", err
		}
	case <-time.After(10 * time.Second):
		bus.Close()
		return nil, "", fmt.Errorf("KurrentDB at %s:%d did not answer within 10s", cfg.Host, cfg.Port)
	case <-ctx.Done():
		bus.Close()
		return nil, "", ctx.Err()
	}

	return bus, "grpc", nil
}

var (
	_ EventBus = (*Bus)(nil)
	_ EventBus = (*MemoryBus)(nil)
)
