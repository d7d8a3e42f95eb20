package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pakkhtun/biryani-backend/internal/events"
	"github.com/pakkhtun/biryani-backend/internal/payment"
	"github.com/pakkhtun/biryani-backend/internal/pricing"
)

// ETA policy: a fresh order quotes the kitchen's default; once the rider is
// out the door the estimate drops.
const (
	DefaultETAMinutes        = 35
	OutForDeliveryETAMinutes = 15
)

var (
	// ErrBadLineTotal is returned when a line's total does not match unit price times quantity.
	ErrBadLineTotal = errors.New("line total does not match unit price and quantity")
	// ErrAddressRequired is returned when a delivery order carries no address.
	ErrAddressRequired = errors.New("address required for delivery")
	// ErrBadStatus is returned for unknown status values.
	ErrBadStatus = errors.New("unknown order status")
)

// Storage is the store surface the service needs.
type Storage interface {
	Create(ctx context.Context, o Order) error
	GetByID(ctx context.Context, id string) (Order, error)
	ListByPhone(ctx context.Context, phone string, limit int) ([]Order, error)
	UpdateStatus(ctx context.Context, id, status string, etaMinutes int) (Order, error)
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Enqueuer schedules the deferred expiry check for a new order.
type Enqueuer interface {
	EnqueueOrderExpiry(ctx context.Context, orderID string, delay time.Duration) error
}

// PlaceInput is a validated order request.
type PlaceInput struct {
	Items         []pricing.LineItem
	DeliveryType  pricing.DeliveryMode
	Address       string
	CouponCode    string
	PaymentMethod payment.Method
}

// Service places and manages orders.
type Service struct {
	Store      Storage
	Engine     *pricing.Engine
	Payments   payment.Provider
	Events     Publisher
	Tasks      Enqueuer
	PendingTTL time.Duration
	DefaultETA int
	Log        zerolog.Logger
}

// Place prices, persists and announces a new order.
func (s *Service) Place(ctx context.Context, phone string, in PlaceInput) (Order, payment.Intent, error) {
	if err := validateLines(in.Items); err != nil {
		return Order{}, payment.Intent{}, err
	}
	if in.DeliveryType == pricing.ModeDelivery && in.Address == "" {
		return Order{}, payment.Intent{}, ErrAddressRequired
	}
	if !payment.ValidMethod(in.PaymentMethod) {
		return Order{}, payment.Intent{}, fmt.Errorf("unsupported payment method %q", in.PaymentMethod)
	}

	quote, err := s.Engine.PriceOrder(ctx, in.Items, in.DeliveryType, in.CouponCode)
	if err != nil {
		return Order{}, payment.Intent{}, err
	}

	id := uuid.NewString()
	intent, err := s.Payments.CreateIntent(ctx, id, in.PaymentMethod, quote.Total)
	if err != nil {
		return Order{}, payment.Intent{}, fmt.Errorf("create payment intent: %w", err)
	}

	o := Order{
		ID:            id,
		UserPhone:     phone,
		Status:        StatusPending,
		DeliveryType:  in.DeliveryType,
		Address:       in.Address,
		CouponCode:    in.CouponCode,
		PaymentMethod: in.PaymentMethod,
		PaymentStatus: intent.Status,
		PaymentRef:    intent.Ref,
		Subtotal:      quote.Subtotal,
		Discount:      quote.Discount,
		DeliveryFee:   quote.DeliveryFee,
		Total:         quote.Total,
		ETAMinutes:    s.eta(),
		Items:         toItems(in.Items),
	}
	if err := s.Store.Create(ctx, o); err != nil {
		return Order{}, payment.Intent{}, fmt.Errorf("persist order: %w", err)
	}

	// The order is committed at this point. Announce and schedule on a
	// best-effort basis: the sweep task catches missed expiries, and a
	// dropped event must not turn a placed order into a client error.
	if s.Events != nil {
		if err := s.Events.Publish(ctx, events.TopicOrderCreated, orderEvent(o)); err != nil {
			s.Log.Error().Err(err).Str("order_id", o.ID).Msg("failed to publish order.created")
		}
	}
	if s.Tasks != nil && intent.Status == payment.StatusPending {
		if err := s.Tasks.EnqueueOrderExpiry(ctx, o.ID, s.pendingTTL()); err != nil {
			s.Log.Error().Err(err).Str("order_id", o.ID).Msg("failed to schedule order expiry")
		}
	}
	return o, intent, nil
}

// Get loads an order, restricted to its owner.
func (s *Service) Get(ctx context.Context, phone, id string) (Order, error) {
	o, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if o.UserPhone != phone {
		return Order{}, ErrNotFound
	}
	return o, nil
}

// History returns the user's recent orders.
func (s *Service) History(ctx context.Context, phone string, limit int) ([]Order, error) {
	return s.Store.ListByPhone(ctx, phone, limit)
}

// Track returns the lightweight tracking view for an order. Tracking is
// unauthenticated so the id alone is the capability.
func (s *Service) Track(ctx context.Context, id string) (Order, error) {
	return s.Store.GetByID(ctx, id)
}

// SetStatus moves an order along its lifecycle and announces the change.
func (s *Service) SetStatus(ctx context.Context, id, status string) (Order, error) {
	if !ValidStatus(status) {
		return Order{}, fmt.Errorf("%w: %q", ErrBadStatus, status)
	}
	eta := s.eta()
	if status == StatusOutForDelivery {
		eta = OutForDeliveryETAMinutes
	}
	o, err := s.Store.UpdateStatus(ctx, id, status, eta)
	if err != nil {
		return Order{}, err
	}
	if s.Events != nil {
		if err := s.Events.Publish(ctx, events.TopicOrderStatusChanged, map[string]any{
			"order_id":    o.ID,
			"status":      o.Status,
			"eta_minutes": o.ETAMinutes,
		}); err != nil {
			s.Log.Error().Err(err).Str("order_id", o.ID).Msg("failed to publish order.status_changed")
		}
	}
	return o, nil
}

func (s *Service) eta() int {
	if s.DefaultETA > 0 {
		return s.DefaultETA
	}
	return DefaultETAMinutes
}

func (s *Service) pendingTTL() time.Duration {
	if s.PendingTTL > 0 {
		return s.PendingTTL
	}
	return 30 * time.Minute
}

// validateLines checks every line at the boundary: positive quantity and a
// total that matches unit price times quantity exactly. The pricing engine
// trusts line totals, so nothing inconsistent may get past here.
func validateLines(items []pricing.LineItem) error {
	if len(items) == 0 {
		return pricing.ErrNoItems
	}
	for i, it := range items {
		if it.Quantity <= 0 {
			return fmt.Errorf("item %d: quantity must be positive", i)
		}
		want := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		if !it.TotalPrice.Equal(want) {
			return fmt.Errorf("item %d: %w", i, ErrBadLineTotal)
		}
	}
	return nil
}

func toItems(lines []pricing.LineItem) []Item {
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, Item{
			ItemID:     l.ItemID,
			Title:      l.Title,
			Variant:    l.Variant,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
			TotalPrice: l.TotalPrice,
			ImageURL:   l.ImageURL,
		})
	}
	return items
}

func orderEvent(o Order) map[string]any {
	return map[string]any{
		"order_id":       o.ID,
		"user_phone":     o.UserPhone,
		"delivery_type":  string(o.DeliveryType),
		"payment_method": string(o.PaymentMethod),
		"subtotal":       o.Subtotal.InexactFloat64(),
		"discount":       o.Discount.InexactFloat64(),
		"delivery_fee":   o.DeliveryFee.InexactFloat64(),
		"total":          o.Total.InexactFloat64(),
	}
}
