package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/EventStore/EventStore-Client-Go/v4/esdb"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/claimflow/claims/internal/shared/config"
	"github.com/claimflow/claims/internal/shared/metrics"
	"github.com/claimflow/claims/internal/shared/types"
)

// Event is the envelope every domain event travels in
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`

	// AggregateID selects the stream: <prefix>-<category>-<aggregate id>
	AggregateID types.ID `json:"aggregate_id,omitempty"`

	ActorID   types.ID `json:"actor_id,omitempty"`
	ActorType string   `json:"actor_type,omitempty"`

	Data json.RawMessage `json:"data"`
}

// NewEvent creates a new event with auto-generated ID and timestamp
func NewEvent(eventType, source string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal event data: %w", err)
	}
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}, nil
}

// WithActor sets the actor information on the event
func (e Event) WithActor(actorID types.ID, actorType string) Event {
	e.ActorID = actorID
	e.ActorType = actorType
	return e
}

// WithCorrelation sets the correlation ID for request tracing
func (e Event) WithCorrelation(correlationID string) Event {
	e.CorrelationID = correlationID
	return e
}

// Decode unmarshals the event payload into v
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Handler is a function that handles an event
type Handler func(ctx context.Context, event Event) error

// Bus provides event publishing and subscription using KurrentDB
type Bus struct {
	client *esdb.Client
	prefix string
	logger zerolog.Logger
}

// NewBus creates a new event bus connected to KurrentDB
func NewBus(cfg config.KurrentDBConfig, logger zerolog.Logger) (*Bus, error) {
	settings, err := esdb.ParseConnectionString(buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	client, err := esdb.NewClient(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create KurrentDB client: %w", err)
	}

	prefix := cfg.StreamPrefix
	if prefix == "" {
		prefix = "claims"
	}

	return &Bus{
		client: client,
		prefix: prefix,
		logger: logger.With().Str("component", "event_bus").Logger(),
	}, nil
}

// buildConnectionString creates the esdb:// connection string
func buildConnectionString(cfg config.KurrentDBConfig) string {
	var auth string
	if cfg.Username != "" && cfg.Password != "" {
		auth = fmt.Sprintf("%s:%s@", cfg.Username, cfg.Password)
	}

	params := ""
	if cfg.Insecure {
		params = "?tls=false&tlsVerifyCert=false" +
			"&keepAliveInterval=10000&keepAliveTimeout=10000&discoveryInterval=100&maxDiscoverAttempts=3&gossipTimeout=5"
	}

	return fmt.Sprintf("esdb://%s%s:%d%s", auth, cfg.Host, cfg.Port, params)
}

// StreamName returns the stream an event is appended to. Events of one
// aggregate share a stream so that $ce-<prefix>-<category> reads a category.
func StreamName(prefix string, event Event) string {
	category := event.Type
	if i := strings.Index(category, "."); i >= 0 {
		category = category[:i]
	}
	category = strings.ReplaceAll(category, "_", "")
	if event.AggregateID.IsZero() {
		return fmt.Sprintf("%s-%s", prefix, category)
	}
	return fmt.Sprintf("%s-%s-%s", prefix, category, event.AggregateID)
}

// Publish publishes an event to the bus
func (b *Bus) Publish(ctx context.Context, event Event) error {
	err := b.publish(ctx, event)
	metrics.RecordEventPublished(event.Type, err)
	return err
}

func (b *Bus) publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// the envelope ID doubles as the KurrentDB event ID, so a retried
	// append of the same event is deduplicated by the server
	eventID, err := uuid.Parse(event.ID)
	if err != nil {
		eventID = uuid.New()
	}

	esdbEvent := esdb.EventData{
		EventType:   event.Type,
		ContentType: esdb.ContentTypeJson,
		Data:        data,
		EventID:     eventID,
	}

	_, err = b.client.AppendToStream(ctx, StreamName(b.prefix, event), esdb.AppendToStreamOptions{
		ExpectedRevision: esdb.Any{},
	}, esdbEvent)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Handler retry and resubscription timing
const (
	handlerAttempts  = 5
	handlerBackoff   = 200 * time.Millisecond
	resubscribeDelay = 2 * time.Second
)

// Subscribe creates a catch-up subscription on $all filtered by event type.
// Delivery starts at the beginning of $all, so handlers must be idempotent.
// An event whose handler keeps failing is not skipped: the subscription is
// restarted after the last handled event and the event is delivered again.
// consumerName only labels log lines.
func (b *Bus) Subscribe(ctx context.Context, pattern string, consumerName string, handler Handler) error {
	sub, err := b.client.SubscribeToAll(ctx, subscribeOptions(pattern, nil))
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", pattern, err)
	}

	logger := b.logger.With().Str("consumer", consumerName).Str("pattern", pattern).Logger()
	go b.consume(ctx, sub, pattern, handler, logger)
	return nil
}

// subscribeOptions resumes after last, or starts at the beginning of $all
func subscribeOptions(pattern string, last *esdb.Position) esdb.SubscribeToAllOptions {
	var from esdb.AllPosition = esdb.Start{}
	if last != nil {
		from = *last
	}
	return esdb.SubscribeToAllOptions{
		From: from,
		Filter: &esdb.SubscriptionFilter{
			Type:  esdb.EventFilterType,
			Regex: patternToRegex(pattern),
		},
	}
}

// patternToRegex converts "claim.*" into "^claim\..*"
func patternToRegex(pattern string) string {
	var sb strings.Builder
	sb.WriteByte('^')
	for _, c := range pattern {
		switch c {
		case '.':
			sb.WriteString(`\.`)
		case '*':
			sb.WriteString(".*")
		default:
			sb.WriteRune(c)
		}
	}
	return sb.String()
}

func (b *Bus) consume(ctx context.Context, sub *esdb.Subscription, pattern string, handler Handler, logger zerolog.Logger) {
	var last *esdb.Position
	for {
		if sub != nil {
			err := b.drain(ctx, sub, pattern, handler, logger, &last)
			sub.Close()
			if ctx.Err() != nil {
				return
			}
			logger.Warn().Err(err).Msg("subscription interrupted, resubscribing")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(resubscribeDelay):
		}

		var err error
		sub, err = b.client.SubscribeToAll(ctx, subscribeOptions(pattern, last))
		if err != nil {
			logger.Error().Err(err).Msg("resubscribe failed")
			sub = nil
		}
	}
}

// drain delivers events until the subscription drops or a handler gives up.
// last advances only past events that were handled or deliberately skipped.
func (b *Bus) drain(ctx context.Context, sub *esdb.Subscription, pattern string, handler Handler, logger zerolog.Logger, last **esdb.Position) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		subEvent := sub.Recv()
		if subEvent.SubscriptionDropped != nil {
			return fmt.Errorf("subscription dropped: %w", subEvent.SubscriptionDropped.Error)
		}
		if subEvent.EventAppeared == nil || subEvent.EventAppeared.Event == nil {
			continue
		}

		recorded := subEvent.EventAppeared.Event
		position := recorded.Position

		// system events and anything the server filter let through
		if strings.HasPrefix(recorded.EventType, "$") || !MatchesPattern(recorded.EventType, pattern) {
			*last = &position
			continue
		}

		event, err := recordedEventToEvent(recorded)
		if err != nil {
			logger.Warn().Err(err).Str("event_id", recorded.EventID.String()).Msg("failed to convert event")
			*last = &position
			continue
		}

		if err := deliver(ctx, handler, event, handlerAttempts, handlerBackoff); err != nil {
			logger.Error().Err(err).Str("event_id", event.ID).Str("event_type", event.Type).Msg("handler failed, event will be redelivered")
			return err
		}
		*last = &position
	}
}

// deliver runs handler until it succeeds, doubling the wait between attempts
func deliver(ctx context.Context, handler Handler, event Event, attempts int, backoff time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = handler(ctx, event); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff << i):
		}
	}
	return fmt.Errorf("handler failed after %d attempts: %w", attempts, err)
}

// MatchesPattern checks if an event type matches a wildcard pattern.
// "claim.*" matches "claim.created" but not "enterprise_claim.created".
func MatchesPattern(eventType, pattern string) bool {
	if pattern == "*" || pattern == ">" {
		return true
	}

	patternParts := strings.Split(pattern, ".")
	typeParts := strings.Split(eventType, ".")

	for i, pp := range patternParts {
		if pp == "*" {
			return i < len(typeParts)
		}
		if i >= len(typeParts) || pp != typeParts[i] {
			return false
		}
	}

	return len(patternParts) == len(typeParts)
}

// recordedEventToEvent converts a KurrentDB event to our Event type
func recordedEventToEvent(recorded *esdb.RecordedEvent) (Event, error) {
	var event Event
	if err := json.Unmarshal(recorded.Data, &event); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.ID == "" {
		event.ID = recorded.EventID.String()
	}

	return event, nil
}

// Close closes the event bus connection
func (b *Bus) Close() {
	if b.client != nil {
		b.client.Close()
	}
}

// Health checks the KurrentDB connection
func (b *Bus) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := b.client.ReadStream(ctx, "$streams", esdb.ReadStreamOptions{
		From:      esdb.Start{},
		Direction: esdb.Forwards,
	}, 1)
	if err != nil {
		return fmt.Errorf("KurrentDB health check failed: %w", err)
	}
	defer stream.Close()

	return nil
}
