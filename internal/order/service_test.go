package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pakkhtun/biryani-backend/internal/events"
	"github.com/pakkhtun/biryani-backend/internal/payment"
	"github.com/pakkhtun/biryani-backend/internal/pricing"
)

type memStorage struct {
	orders map[string]Order
}

func newMemStorage() *memStorage {
	return &memStorage{orders: map[string]Order{}}
}

func (m *memStorage) Create(_ context.Context, o Order) error {
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	m.orders[o.ID] = o
	return nil
}

func (m *memStorage) GetByID(_ context.Context, id string) (Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (m *memStorage) ListByPhone(_ context.Context, phone string, _ int) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if o.UserPhone == phone {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStorage) UpdateStatus(_ context.Context, id, status string, eta int) (Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	o.Status = status
	o.ETAMinutes = eta
	o.UpdatedAt = time.Now()
	m.orders[id] = o
	return o, nil
}

type stubLookup struct {
	coupons map[string]pricing.Coupon
	err     error
}

func (s stubLookup) FindActiveCouponByCode(_ context.Context, code string) (pricing.Coupon, bool, error) {
	if s.err != nil {
		return pricing.Coupon{}, false, s.err
	}
	c, ok := s.coupons[code]
	return c, ok, nil
}

type recordedEvent struct {
	topic   string
	payload any
}

type memBus struct {
	published []recordedEvent
}

func (m *memBus) Publish(_ context.Context, topic string, payload any) error {
	m.published = append(m.published, recordedEvent{topic, payload})
	return nil
}

type memQueue struct {
	enqueued []string
	delays   []time.Duration
}

func (m *memQueue) EnqueueOrderExpiry(_ context.Context, orderID string, delay time.Duration) error {
	m.enqueued = append(m.enqueued, orderID)
	m.delays = append(m.delays, delay)
	return nil
}

func pakktunLookup() stubLookup {
	return stubLookup{coupons: map[string]pricing.Coupon{
		"PAKKTUN15": {
			Code:        "PAKKTUN15",
			Description: "15% off on orders above 499",
			Kind:        pricing.KindPercent,
			Value:       decimal.NewFromInt(15),
			MinOrder:    decimal.NewFromInt(499),
			Active:      true,
		},
	}}
}

func newTestService(store Storage, lookup pricing.CouponLookup, bus Publisher, queue Enqueuer) *Service {
	return &Service{
		Store:      store,
		Engine:     pricing.NewEngine(lookup, nil),
		Payments:   payment.Simulated{},
		Events:     bus,
		Tasks:      queue,
		PendingTTL: 30 * time.Minute,
	}
}

func biryaniLines() []pricing.LineItem {
	return []pricing.LineItem{
		{
			ItemID:     "matka-chicken",
			Title:      "Chicken Matka Biryani",
			Variant:    "full",
			Quantity:   2,
			UnitPrice:  decimal.NewFromInt(250),
			TotalPrice: decimal.NewFromInt(500),
		},
		{
			ItemID:     "seekh-kebab",
			Title:      "Seekh Kebab",
			Quantity:   1,
			UnitPrice:  decimal.NewFromInt(100),
			TotalPrice: decimal.NewFromInt(100),
		},
	}
}

func TestPlaceDeliveryWithPercentCoupon(t *testing.T) {
	store := newMemStorage()
	bus := &memBus{}
	queue := &memQueue{}
	svc := newTestService(store, pakktunLookup(), bus, queue)

	o, intent, err := svc.Place(context.Background(), "+919876543210", PlaceInput{
		Items:         biryaniLines(),
		DeliveryType:  pricing.ModeDelivery,
		Address:       "221B Baker Street, Peshawar Colony",
		CouponCode:    "pakktun15",
		PaymentMethod: payment.MethodUPI,
	})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}

	if !o.Subtotal.Equal(decimal.NewFromInt(600)) {
		t.Errorf("subtotal = %s, want 600", o.Subtotal)
	}
	if !o.Discount.Equal(decimal.NewFromInt(90)) {
		t.Errorf("discount = %s, want 90", o.Discount)
	}
	if !o.DeliveryFee.Equal(decimal.NewFromInt(20)) {
		t.Errorf("delivery fee = %s, want 20", o.DeliveryFee)
	}
	if !o.Total.Equal(decimal.NewFromInt(530)) {
		t.Errorf("total = %s, want 530", o.Total)
	}
	if o.Status != StatusPending {
		t.Errorf("status = %s, want pending", o.Status)
	}
	if o.ETAMinutes != DefaultETAMinutes {
		t.Errorf("eta = %d, want %d", o.ETAMinutes, DefaultETAMinutes)
	}

	if intent.Status != payment.StatusPending {
		t.Errorf("upi intent status = %s, want pending", intent.Status)
	}
	if len(queue.enqueued) != 1 || queue.enqueued[0] != o.ID {
		t.Errorf("expiry not enqueued for order %s: %v", o.ID, queue.enqueued)
	}
	if queue.delays[0] != 30*time.Minute {
		t.Errorf("expiry delay = %s", queue.delays[0])
	}
	if len(bus.published) != 1 || bus.published[0].topic != events.TopicOrderCreated {
		t.Fatalf("expected one order.created event, got %+v", bus.published)
	}
}

func TestPlaceTakeawayCODSkipsFeeAndExpiry(t *testing.T) {
	store := newMemStorage()
	queue := &memQueue{}
	svc := newTestService(store, pakktunLookup(), &memBus{}, queue)

	o, intent, err := svc.Place(context.Background(), "+919876543210", PlaceInput{
		Items:         biryaniLines(),
		DeliveryType:  pricing.ModeTakeaway,
		PaymentMethod: payment.MethodCOD,
	})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if !o.DeliveryFee.IsZero() {
		t.Errorf("takeaway fee = %s, want 0", o.DeliveryFee)
	}
	if !o.Total.Equal(decimal.NewFromInt(600)) {
		t.Errorf("total = %s, want 600", o.Total)
	}
	if intent.Status != payment.StatusSettled {
		t.Errorf("cod intent status = %s, want settled", intent.Status)
	}
	// Settled payments never expire.
	if len(queue.enqueued) != 0 {
		t.Errorf("cod order should not schedule expiry: %v", queue.enqueued)
	}
}

type failBus struct{}

func (failBus) Publish(context.Context, string, any) error { return errors.New("events down") }

type failQueue struct{}

func (failQueue) EnqueueOrderExpiry(context.Context, string, time.Duration) error {
	return errors.New("broker down")
}

func TestPlaceSucceedsWhenAnnouncementsFail(t *testing.T) {
	store := newMemStorage()
	svc := newTestService(store, pakktunLookup(), failBus{}, failQueue{})

	o, intent, err := svc.Place(context.Background(), "+919876543210", PlaceInput{
		Items:         biryaniLines(),
		DeliveryType:  pricing.ModeDelivery,
		Address:       "12 Mall Road",
		PaymentMethod: payment.MethodUPI,
	})
	// The order is committed before the publish and enqueue steps run, so
	// their failures must not surface to the client.
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if intent.Status != payment.StatusPending {
		t.Errorf("intent status = %s, want pending", intent.Status)
	}
	if _, ok := store.orders[o.ID]; !ok {
		t.Fatalf("order %s not persisted", o.ID)
	}
}

func TestPlaceRejectsMismatchedLineTotal(t *testing.T) {
	svc := newTestService(newMemStorage(), pakktunLookup(), &memBus{}, &memQueue{})

	lines := biryaniLines()
	lines[0].TotalPrice = decimal.NewFromInt(499)
	_, _, err := svc.Place(context.Background(), "+919876543210", PlaceInput{
		Items:         lines,
		DeliveryType:  pricing.ModeTakeaway,
		PaymentMethod: payment.MethodCOD,
	})
	if !errors.Is(err, ErrBadLineTotal) {
		t.Fatalf("want ErrBadLineTotal, got %v", err)
	}
}

func TestPlaceRequiresAddressForDelivery(t *testing.T) {
	svc := newTestService(newMemStorage(), pakktunLookup(), &memBus{}, &memQueue{})

	_, _, err := svc.Place(context.Background(), "+919876543210", PlaceInput{
		Items:         biryaniLines(),
		DeliveryType:  pricing.ModeDelivery,
		PaymentMethod: payment.MethodCOD,
	})
	if !errors.Is(err, ErrAddressRequired) {
		t.Fatalf("want ErrAddressRequired, got %v", err)
	}
}

func TestPlaceRejectsEmptyCart(t *testing.T) {
	svc := newTestService(newMemStorage(), pakktunLookup(), &memBus{}, &memQueue{})

	_, _, err := svc.Place(context.Background(), "+919876543210", PlaceInput{
		DeliveryType:  pricing.ModeTakeaway,
		PaymentMethod: payment.MethodCOD,
	})
	if !errors.Is(err, pricing.ErrNoItems) {
		t.Fatalf("want ErrNoItems, got %v", err)
	}
}

func TestPlaceSurfacesLookupOutage(t *testing.T) {
	svc := newTestService(newMemStorage(), stubLookup{err: errors.New("pg down")}, &memBus{}, &memQueue{})

	_, _, err := svc.Place(context.Background(), "+919876543210", PlaceInput{
		Items:         biryaniLines(),
		DeliveryType:  pricing.ModeTakeaway,
		CouponCode:    "PAKKTUN15",
		PaymentMethod: payment.MethodCOD,
	})
	if !errors.Is(err, pricing.ErrLookupUnavailable) {
		t.Fatalf("want ErrLookupUnavailable, got %v", err)
	}
}

func TestGetIsScopedToOwner(t *testing.T) {
	store := newMemStorage()
	svc := newTestService(store, pakktunLookup(), &memBus{}, &memQueue{})

	o, _, err := svc.Place(context.Background(), "+919876543210", PlaceInput{
		Items:         biryaniLines(),
		DeliveryType:  pricing.ModeTakeaway,
		PaymentMethod: payment.MethodCOD,
	})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if _, err := svc.Get(context.Background(), "+919876543210", o.ID); err != nil {
		t.Fatalf("owner Get: %v", err)
	}
	if _, err := svc.Get(context.Background(), "+911111111111", o.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign Get: want ErrNotFound, got %v", err)
	}
}

func TestSetStatusOutForDeliveryShortensETA(t *testing.T) {
	store := newMemStorage()
	bus := &memBus{}
	svc := newTestService(store, pakktunLookup(), bus, &memQueue{})

	o, _, err := svc.Place(context.Background(), "+919876543210", PlaceInput{
		Items:         biryaniLines(),
		DeliveryType:  pricing.ModeDelivery,
		Address:       "Hostel Road 4",
		PaymentMethod: payment.MethodCOD,
	})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}

	updated, err := svc.SetStatus(context.Background(), o.ID, StatusOutForDelivery)
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if updated.ETAMinutes != OutForDeliveryETAMinutes {
		t.Errorf("eta = %d, want %d", updated.ETAMinutes, OutForDeliveryETAMinutes)
	}

	last := bus.published[len(bus.published)-1]
	if last.topic != events.TopicOrderStatusChanged {
		t.Errorf("last event topic = %s", last.topic)
	}

	if _, err := svc.SetStatus(context.Background(), o.ID, "teleported"); !errors.Is(err, ErrBadStatus) {
		t.Fatalf("want ErrBadStatus, got %v", err)
	}
}
