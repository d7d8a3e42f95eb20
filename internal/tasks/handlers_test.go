package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pakkhtun/biryani-backend/internal/events"
	"github.com/pakkhtun/biryani-backend/internal/order"
	"github.com/pakkhtun/biryani-backend/internal/payment"
)

type memOrders struct {
	orders map[string]order.Order
}

func (m *memOrders) GetByID(_ context.Context, id string) (order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return o, nil
}

func (m *memOrders) UpdateStatus(_ context.Context, id, status string, eta int) (order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	o.Status = status
	o.ETAMinutes = eta
	o.UpdatedAt = time.Now()
	m.orders[id] = o
	return o, nil
}

func (m *memOrders) ExpirePending(_ context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	for id, o := range m.orders {
		if o.Status == order.StatusPending && o.PaymentStatus == payment.StatusPending && o.CreatedAt.Before(cutoff) {
			o.Status = order.StatusCancelled
			m.orders[id] = o
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type memOTPs struct {
	removed int64
}

func (m *memOTPs) PurgeExpiredOTPs(_ context.Context) (int64, error) {
	return m.removed, nil
}

type memBus struct {
	topics []string
}

func (m *memBus) Publish(_ context.Context, topic string, _ any) error {
	m.topics = append(m.topics, topic)
	return nil
}

func expireTask(t *testing.T, orderID string) *asynq.Task {
	t.Helper()
	task, err := NewOrderExpireTask(orderID)
	require.NoError(t, err)
	return task
}

func TestOrderExpireCancelsUnpaidPending(t *testing.T) {
	store := &memOrders{orders: map[string]order.Order{
		"ord-1": {ID: "ord-1", Status: order.StatusPending, PaymentStatus: payment.StatusPending},
	}}
	bus := &memBus{}
	h := &Handlers{Orders: store, Events: bus, Log: zerolog.Nop()}

	require.NoError(t, h.HandleOrderExpire(context.Background(), expireTask(t, "ord-1")))
	require.Equal(t, order.StatusCancelled, store.orders["ord-1"].Status)
	require.Equal(t, []string{events.TopicOrderStatusChanged}, bus.topics)
}

func TestOrderExpireLeavesSettledOrdersAlone(t *testing.T) {
	store := &memOrders{orders: map[string]order.Order{
		"ord-2": {ID: "ord-2", Status: order.StatusPending, PaymentStatus: payment.StatusSettled},
		"ord-3": {ID: "ord-3", Status: order.StatusAccepted, PaymentStatus: payment.StatusPending},
	}}
	h := &Handlers{Orders: store, Log: zerolog.Nop()}

	require.NoError(t, h.HandleOrderExpire(context.Background(), expireTask(t, "ord-2")))
	require.NoError(t, h.HandleOrderExpire(context.Background(), expireTask(t, "ord-3")))
	require.Equal(t, order.StatusPending, store.orders["ord-2"].Status)
	require.Equal(t, order.StatusAccepted, store.orders["ord-3"].Status)
}

func TestOrderExpireIgnoresMissingOrder(t *testing.T) {
	h := &Handlers{Orders: &memOrders{orders: map[string]order.Order{}}, Log: zerolog.Nop()}
	require.NoError(t, h.HandleOrderExpire(context.Background(), expireTask(t, "gone")))
}

func TestOrderSweepCancelsStaleUnpaidOrders(t *testing.T) {
	stale := time.Now().Add(-time.Hour)
	store := &memOrders{orders: map[string]order.Order{
		"ord-old":  {ID: "ord-old", Status: order.StatusPending, PaymentStatus: payment.StatusPending, CreatedAt: stale},
		"ord-new":  {ID: "ord-new", Status: order.StatusPending, PaymentStatus: payment.StatusPending, CreatedAt: time.Now()},
		"ord-paid": {ID: "ord-paid", Status: order.StatusPending, PaymentStatus: payment.StatusSettled, CreatedAt: stale},
	}}
	bus := &memBus{}
	h := &Handlers{Orders: store, Events: bus, PendingTTL: 30 * time.Minute, Log: zerolog.Nop()}

	require.NoError(t, h.HandleOrderSweep(context.Background(), NewOrderSweepTask()))
	require.Equal(t, order.StatusCancelled, store.orders["ord-old"].Status)
	require.Equal(t, order.StatusPending, store.orders["ord-new"].Status)
	require.Equal(t, order.StatusPending, store.orders["ord-paid"].Status)
	require.Equal(t, []string{events.TopicOrderStatusChanged}, bus.topics)
}

func TestOTPPurge(t *testing.T) {
	h := &Handlers{OTPs: &memOTPs{removed: 7}, Log: zerolog.Nop()}
	require.NoError(t, h.HandleOTPPurge(context.Background(), NewOTPPurgeTask()))
}
