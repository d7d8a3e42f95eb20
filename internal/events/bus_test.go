package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	events []Event
	fail   error
}

func (m *memStore) Append(_ context.Context, ev Event) error {
	if m.fail != nil {
		return m.fail
	}
	m.events = append(m.events, ev)
	return nil
}

func TestPublishPersistsEvent(t *testing.T) {
	store := &memStore{}
	bus := NewBus(store, zerolog.Nop())

	err := bus.Publish(context.Background(), TopicOrderCreated, map[string]any{
		"order_id": "ord-1",
		"total":    530.0,
	})
	require.NoError(t, err)
	require.Len(t, store.events, 1)

	ev := store.events[0]
	require.Equal(t, TopicOrderCreated, ev.Topic)
	require.NotEmpty(t, ev.ID)
	require.False(t, ev.OccurredAt.IsZero())

	var payload map[string]any
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	require.Equal(t, "ord-1", payload["order_id"])
}

func TestPublishSurfacesStoreError(t *testing.T) {
	store := &memStore{fail: errors.New("db down")}
	bus := NewBus(store, zerolog.Nop())

	err := bus.Publish(context.Background(), TopicOrderStatusChanged, map[string]string{"order_id": "ord-1"})
	require.Error(t, err)
	require.ErrorContains(t, err, "db down")
}
