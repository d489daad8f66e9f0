package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/EventStore/EventStore-Client-Go/v4/esdb"
	"github.com/rs/zerolog"

	"github.com/claimflow/claims/internal/shared/types"
)

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		eventType string
		pattern   string
		expected  bool
	}{
		{"claim.created", "claim.*", true},
		{"claim.status_changed", "claim.*", true},
		{"enterprise_claim.created", "claim.*", false},
		{"enterprise_claim.status_changed", "enterprise_claim.*", true},
		{"claim", "claim.*", false},
		{"claim.created", "claim.created", true},
		{"claim.deleted", "claim.created", false},
		{"anything.at.all", "*", true},
	}

	for _, tt := range tests {
		t.Run(tt.eventType+" "+tt.pattern, func(t *testing.T) {
			if got := MatchesPattern(tt.eventType, tt.pattern); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestPatternToRegex(t *testing.T) {
	if got := patternToRegex("enterprise_claim.*"); got != `^enterprise_claim\..*` {
		t.Errorf("Expected anchored regex, got %s", got)
	}
}

func TestStreamName(t *testing.T) {
	id := types.ID("6f1c8a8e-0f55-4d8e-9a53-2b7c1d9e4f10")

	tests := []struct {
		name     string
		event    Event
		expected string
	}{
		{"personal", Event{Type: "claim.status_changed", AggregateID: id}, "claims-claim-" + string(id)},
		{"enterprise", Event{Type: "enterprise_claim.created", AggregateID: id}, "claims-enterpriseclaim-" + string(id)},
		{"no aggregate", Event{Type: "claim.created"}, "claims-claim"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StreamName("claims", tt.event); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestNewEventDecode(t *testing.T) {
	type payload struct {
		ClaimID string `json:"claim_id"`
	}

	event, err := NewEvent("claim.created", "claims", payload{ClaimID: "c-1"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if event.ID == "" || event.Timestamp.IsZero() {
		t.Error("Expected ID and timestamp to be set")
	}

	var got payload
	if err := event.Decode(&got); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got.ClaimID != "c-1" {
		t.Errorf("Expected c-1, got %s", got.ClaimID)
	}

	event = event.WithActor("a-1", "ADMIN").WithCorrelation("req-9")
	if event.ActorID != "a-1" || event.ActorType != "ADMIN" || event.CorrelationID != "req-9" {
		t.Errorf("Expected actor and correlation to be set, got %+v", event)
	}
}

func TestMemoryBusDeliversToMatchingSubscribers(t *testing.T) {
	bus := NewMemoryBus(zerolog.Nop())
	ctx := context.Background()

	var personal, all []string
	_ = bus.Subscribe(ctx, "claim.*", "personal", func(ctx context.Context, e Event) error {
		personal = append(personal, e.Type)
		return nil
	})
	_ = bus.Subscribe(ctx, "*", "all", func(ctx context.Context, e Event) error {
		all = append(all, e.Type)
		return errors.New("consumer failure")
	})

	for _, typ := range []string{"claim.created", "enterprise_claim.created", "claim.status_changed"} {
		if err := bus.Publish(ctx, Event{ID: typ, Type: typ}); err != nil {
			t.Fatalf("Expected subscriber failure not to reach publisher, got %v", err)
		}
	}

	if len(personal) != 2 {
		t.Errorf("Expected 2 personal events, got %v", personal)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 events on wildcard, got %v", all)
	}
	if len(bus.Published()) != 3 {
		t.Errorf("Expected 3 published events, got %d", len(bus.Published()))
	}
}

func TestSubscribeOptionsPosition(t *testing.T) {
	opts := subscribeOptions("claim.*", nil)
	if _, ok := opts.From.(esdb.Start); !ok {
		t.Errorf("Expected a fresh subscription to start at the beginning of $all, got %T", opts.From)
	}
	if opts.Filter == nil || opts.Filter.Regex != `^claim\..*` {
		t.Errorf("Expected event type filter, got %+v", opts.Filter)
	}

	last := esdb.Position{Commit: 42, Prepare: 42}
	opts = subscribeOptions("claim.*", &last)
	if pos, ok := opts.From.(esdb.Position); !ok || pos != last {
		t.Errorf("Expected resubscription after %v, got %v", last, opts.From)
	}
}

func TestDeliverRetries(t *testing.T) {
	event := Event{ID: "e-1", Type: "claim.created"}

	tests := []struct {
		name      string
		failures  int
		wantCalls int
		wantErr   bool
	}{
		{"first attempt", 0, 1, false},
		{"recovers", 2, 3, false},
		{"gives up", 10, 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			handler := func(ctx context.Context, e Event) error {
				calls++
				if calls <= tt.failures {
					return errors.New("database unavailable")
				}
				return nil
			}

			err := deliver(context.Background(), handler, event, 4, time.Millisecond)
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error %v, got %v", tt.wantErr, err)
			}
			if calls != tt.wantCalls {
				t.Errorf("Expected %d calls, got %d", tt.wantCalls, calls)
			}
		})
	}
}

func TestDeliverStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	handler := func(ctx context.Context, e Event) error {
		calls++
		cancel()
		return errors.New("database unavailable")
	}

	err := deliver(ctx, handler, Event{ID: "e-2"}, 5, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}
