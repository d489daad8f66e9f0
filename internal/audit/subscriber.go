package audit

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/claimflow/claims/internal/claim/domain"
	"github.com/claimflow/claims/internal/shared/events"
	"github.com/claimflow/claims/internal/shared/metrics"
)

// Subscriber listens to claim events and appends them to the audit trail
type Subscriber struct {
	repo   domain.EventRepository
	bus    events.EventBus
	logger zerolog.Logger
}

// NewSubscriber creates a new audit subscriber
func NewSubscriber(repo domain.EventRepository, bus events.EventBus, logger zerolog.Logger) *Subscriber {
	return &Subscriber{
		repo:   repo,
		bus:    bus,
		logger: logger.With().Str("component", "audit_subscriber").Logger(),
	}
}

// Start subscribes to both claim flows
func (s *Subscriber) Start(ctx context.Context) error {
	patterns := []struct {
		pattern      string
		consumerName string
	}{
		{"claim.*", "audit-claim-subscriber"},
		{"enterprise_claim.*", "audit-enterprise-claim-subscriber"},
	}

	for _, p := range patterns {
		if err := s.bus.Subscribe(ctx, p.pattern, p.consumerName, s.handleEvent); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", p.pattern, err)
		}
	}

	return nil
}

func (s *Subscriber) handleEvent(ctx context.Context, event events.Event) error {
	var de domain.Event
	// malformed payloads never decode, so redelivery cannot help
	if err := event.Decode(&de); err != nil {
		s.logger.Warn().Err(err).Str("event_id", event.ID).Str("event_type", event.Type).Msg("undecodable event skipped")
		return nil
	}
	if de.ClaimEvent.ID.IsZero() {
		s.logger.Warn().Str("event_id", event.ID).Str("event_type", event.Type).Msg("event without claim event, skipped")
		return nil
	}

	if err := s.repo.Append(ctx, de.ClaimEvent); err != nil {
		return fmt.Errorf("failed to append claim event: %w", err)
	}
	metrics.RecordAuditEntry()

	s.logger.Debug().
		Str("claim_id", de.ClaimID.String()).
		Str("event_type", event.Type).
		Str("status", de.ClaimEvent.Status).
		Msg("claim event recorded")
	return nil
}
