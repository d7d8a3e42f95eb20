package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pakkhtun/biryani-backend/internal/payment"
	"github.com/pakkhtun/biryani-backend/internal/pricing"
)

// ErrNotFound is returned when no order exists for the id.
var ErrNotFound = errors.New("order not found")

// Order statuses, in rough lifecycle order.
const (
	StatusPending        = "pending"
	StatusAccepted       = "accepted"
	StatusBeingPrepared  = "being_prepared"
	StatusOutForDelivery = "out_for_delivery"
	StatusDelivered      = "delivered"
	StatusCancelled      = "cancelled"
)

// ValidStatus reports whether s is a known order status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusAccepted, StatusBeingPrepared, StatusOutForDelivery, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Item is a persisted order line.
type Item struct {
	ItemID     string          `json:"item_id"`
	Title      string          `json:"title"`
	Variant    string          `json:"variant,omitempty"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"-"`
	TotalPrice decimal.Decimal `json:"-"`
	ImageURL   string          `json:"image_url,omitempty"`
}

// Order is a persisted order with its pricing breakdown.
type Order struct {
	ID            string
	UserPhone     string
	Status        string
	DeliveryType  pricing.DeliveryMode
	Address       string
	CouponCode    string
	PaymentMethod payment.Method
	PaymentStatus payment.Status
	PaymentRef    string
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	DeliveryFee   decimal.Decimal
	Total         decimal.Decimal
	ETAMinutes    int
	Items         []Item
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const orderColumns = `
	id, user_phone, status, delivery_type, COALESCE(address, ''), COALESCE(coupon_code, ''),
	payment_method, payment_status, COALESCE(payment_ref, ''),
	subtotal_minor, discount_minor, delivery_fee_minor, total_minor,
	eta_minutes, created_at, updated_at`

// Store is the pgx-backed order store.
type Store struct {
	Pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// Create inserts the order and its items in one transaction.
func (s *Store) Create(ctx context.Context, o Order) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			id, user_phone, status, delivery_type, address, coupon_code,
			payment_method, payment_status, payment_ref,
			subtotal_minor, discount_minor, delivery_fee_minor, total_minor, eta_minutes
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, NULLIF($9, ''), $10, $11, $12, $13, $14)
	`, o.ID, o.UserPhone, o.Status, string(o.DeliveryType), o.Address, o.CouponCode,
		string(o.PaymentMethod), string(o.PaymentStatus), o.PaymentRef,
		pricing.ToMinorUnits(o.Subtotal), pricing.ToMinorUnits(o.Discount),
		pricing.ToMinorUnits(o.DeliveryFee), pricing.ToMinorUnits(o.Total), o.ETAMinutes)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	for _, it := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, item_id, title, variant, quantity, unit_price_minor, total_price_minor, image_url)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, NULLIF($8, ''))
		`, o.ID, it.ItemID, it.Title, it.Variant, it.Quantity,
			pricing.ToMinorUnits(it.UnitPrice), pricing.ToMinorUnits(it.TotalPrice), it.ImageURL)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// GetByID loads an order with its items.
func (s *Store) GetByID(ctx context.Context, id string) (Order, error) {
	o, err := s.scanOne(s.Pool.QueryRow(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return Order{}, err
	}
	items, err := s.itemsFor(ctx, id)
	if err != nil {
		return Order{}, err
	}
	o.Items = items
	return o, nil
}

// ListByPhone returns the user's most recent orders, items included.
func (s *Store) ListByPhone(ctx context.Context, phone string, limit int) ([]Order, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT`+orderColumns+`
		FROM orders
		WHERE user_phone = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, phone, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		items, err := s.itemsFor(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

// UpdateStatus moves an order to a new status and eta, returning the updated row.
func (s *Store) UpdateStatus(ctx context.Context, id, status string, etaMinutes int) (Order, error) {
	o, err := s.scanOne(s.Pool.QueryRow(ctx, `
		UPDATE orders
		SET status = $2, eta_minutes = $3, updated_at = now()
		WHERE id = $1
		RETURNING`+orderColumns+`
	`, id, status, etaMinutes))
	if err != nil {
		return Order{}, err
	}
	items, err := s.itemsFor(ctx, id)
	if err != nil {
		return Order{}, err
	}
	o.Items = items
	return o, nil
}

// ExpirePending cancels unpaid pending orders created before the cutoff and
// returns their ids. Used by the background expiry task.
func (s *Store) ExpirePending(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `
		UPDATE orders
		SET status = $1, updated_at = now()
		WHERE status = $2 AND payment_status = $3 AND created_at < $4
		RETURNING id
	`, StatusCancelled, StatusPending, string(payment.StatusPending), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) scanOne(row pgx.Row) (Order, error) {
	var (
		o                                                dtoOrder
		subtotalMinor, discountMinor, feeMinor, totMinor int64
	)
	err := row.Scan(&o.ID, &o.UserPhone, &o.Status, &o.DeliveryType, &o.Address, &o.CouponCode,
		&o.PaymentMethod, &o.PaymentStatus, &o.PaymentRef,
		&subtotalMinor, &discountMinor, &feeMinor, &totMinor,
		&o.ETAMinutes, &o.CreatedAt, &o.UpdatedAt)
	if err == pgx.ErrNoRows {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	return Order{
		ID:            o.ID,
		UserPhone:     o.UserPhone,
		Status:        o.Status,
		DeliveryType:  pricing.DeliveryMode(o.DeliveryType),
		Address:       o.Address,
		CouponCode:    o.CouponCode,
		PaymentMethod: payment.Method(o.PaymentMethod),
		PaymentStatus: payment.Status(o.PaymentStatus),
		PaymentRef:    o.PaymentRef,
		Subtotal:      pricing.FromMinorUnits(subtotalMinor),
		Discount:      pricing.FromMinorUnits(discountMinor),
		DeliveryFee:   pricing.FromMinorUnits(feeMinor),
		Total:         pricing.FromMinorUnits(totMinor),
		ETAMinutes:    o.ETAMinutes,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}, nil
}

type dtoOrder struct {
	ID            string
	UserPhone     string
	Status        string
	DeliveryType  string
	Address       string
	CouponCode    string
	PaymentMethod string
	PaymentStatus string
	PaymentRef    string
	ETAMinutes    int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (s *Store) itemsFor(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT item_id, title, COALESCE(variant, ''), quantity, unit_price_minor, total_price_minor, COALESCE(image_url, '')
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			it                    Item
			unitMinor, totalMinor int64
		)
		if err := rows.Scan(&it.ItemID, &it.Title, &it.Variant, &it.Quantity, &unitMinor, &totalMinor, &it.ImageURL); err != nil {
			return nil, err
		}
		it.UnitPrice = pricing.FromMinorUnits(unitMinor)
		it.TotalPrice = pricing.FromMinorUnits(totalMinor)
		items = append(items, it)
	}
	return items, rows.Err()
}
