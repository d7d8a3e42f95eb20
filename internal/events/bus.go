package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Topics emitted by the order flow.
const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status_changed"
)

// Event is a persisted domain event.
type Event struct {
	ID         string          `json:"id"`
	Topic      string          `json:"topic"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Store appends events to durable storage.
type Store interface {
	Append(ctx context.Context, ev Event) error
}

// Bus persists domain events and logs them. Downstream consumers read the
// domain_events table; there is no in-process fan-out.
type Bus struct {
	store Store
	log   zerolog.Logger
}

func NewBus(store Store, log zerolog.Logger) *Bus {
	return &Bus{store: store, log: log}
}

// Publish marshals the payload and appends an event for the topic. A publish
// failure is returned to the caller so the enclosing transaction can decide
// whether to proceed.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	ev := Event{
		ID:         uuid.NewString(),
		Topic:      topic,
		Payload:    raw,
		OccurredAt: time.Now().UTC(),
	}
	if err := b.store.Append(ctx, ev); err != nil {
		return fmt.Errorf("append %s event: %w", topic, err)
	}
	b.log.Info().
		Str("event_id", ev.ID).
		Str("topic", topic).
		RawJSON("payload", raw).
		Msg("domain event")
	return nil
}

// PGStore is the pgx-backed event store.
type PGStore struct {
	Pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{Pool: pool}
}

func (s *PGStore) Append(ctx context.Context, ev Event) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO domain_events (id, topic, payload, occurred_at)
		VALUES ($1, $2, $3, $4)
	`, ev.ID, ev.Topic, ev.Payload, ev.OccurredAt)
	return err
}
