package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/pakkhtun/biryani-backend/internal/events"
	"github.com/pakkhtun/biryani-backend/internal/obs"
	"github.com/pakkhtun/biryani-backend/internal/order"
	"github.com/pakkhtun/biryani-backend/internal/payment"
)

// OrderStore is the order surface the expiry handlers need.
type OrderStore interface {
	GetByID(ctx context.Context, id string) (order.Order, error)
	UpdateStatus(ctx context.Context, id, status string, etaMinutes int) (order.Order, error)
	ExpirePending(ctx context.Context, cutoff time.Time) ([]string, error)
}

// OTPStore is the auth surface the purge handler needs.
type OTPStore interface {
	PurgeExpiredOTPs(ctx context.Context) (int64, error)
}

// Publisher emits domain events for cancellations.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Handlers processes background tasks on the worker.
type Handlers struct {
	Orders     OrderStore
	OTPs       OTPStore
	Events     Publisher
	PendingTTL time.Duration
	Log        zerolog.Logger
}

// Register attaches the task handlers to the mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeOrderExpire, h.HandleOrderExpire)
	mux.HandleFunc(TypeOrderSweep, h.HandleOrderSweep)
	mux.HandleFunc(TypeOTPPurge, h.HandleOTPPurge)
}

// HandleOrderExpire cancels an order that is still pending with an unsettled
// payment when its grace period lapses. Orders that have moved on are left alone.
func (h *Handlers) HandleOrderExpire(ctx context.Context, t *asynq.Task) error {
	var payload OrderExpirePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode expiry payload: %w", asynq.SkipRetry)
	}
	o, err := h.Orders.GetByID(ctx, payload.OrderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load order %s: %w", payload.OrderID, err)
	}
	if o.Status != order.StatusPending || o.PaymentStatus != payment.StatusPending {
		return nil
	}
	cancelled, err := h.Orders.UpdateStatus(ctx, o.ID, order.StatusCancelled, 0)
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", o.ID, err)
	}
	if obs.OrdersExpiredTotal != nil {
		obs.OrdersExpiredTotal.Inc()
	}
	h.Log.Info().Str("order_id", cancelled.ID).Msg("expired unpaid order")
	if h.Events != nil {
		return h.Events.Publish(ctx, events.TopicOrderStatusChanged, map[string]any{
			"order_id":    cancelled.ID,
			"status":      cancelled.Status,
			"eta_minutes": cancelled.ETAMinutes,
		})
	}
	return nil
}

// HandleOrderSweep cancels every pending unpaid order older than the payment
// window in one pass.
func (h *Handlers) HandleOrderSweep(ctx context.Context, _ *asynq.Task) error {
	ttl := h.PendingTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	ids, err := h.Orders.ExpirePending(ctx, time.Now().Add(-ttl))
	if err != nil {
		return fmt.Errorf("sweep pending orders: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	if obs.OrdersExpiredTotal != nil {
		obs.OrdersExpiredTotal.Add(float64(len(ids)))
	}
	h.Log.Info().Int("count", len(ids)).Msg("swept expired unpaid orders")
	if h.Events != nil {
		for _, id := range ids {
			if err := h.Events.Publish(ctx, events.TopicOrderStatusChanged, map[string]any{
				"order_id": id,
				"status":   order.StatusCancelled,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// HandleOTPPurge deletes lapsed one-time codes.
func (h *Handlers) HandleOTPPurge(ctx context.Context, _ *asynq.Task) error {
	removed, err := h.OTPs.PurgeExpiredOTPs(ctx)
	if err != nil {
		return fmt.Errorf("purge otps: %w", err)
	}
	if removed > 0 {
		h.Log.Info().Int64("removed", removed).Msg("purged expired otps")
	}
	return nil
}
