package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pakkhtun/biryani-backend/internal/pricing"
)

// ErrNotFound indicates the requested coupon does not exist.
var ErrNotFound = errors.New("coupon not found")

// Record is the stored coupon row in API-friendly form.
type Record struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Description string    `json:"description,omitempty"`
	Kind        string    `json:"type"`
	Value       float64   `json:"value"`
	MinOrder    float64   `json:"min_order"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Offer is a marketing banner shown alongside coupons.
type Offer struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	BannerURL   string    `json:"banner_url,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Input carries an admin create/update payload.
type Input struct {
	Code        string
	Description string
	Kind        pricing.CouponKind
	Value       decimal.Decimal
	MinOrder    decimal.Decimal
	Active      bool
}

// Store persists coupons and offers. It implements pricing.CouponLookup.
type Store struct {
	Pool *pgxpool.Pool
}

// NewStore constructs a coupon store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// FindActiveCouponByCode resolves an active coupon by case-insensitive code.
func (s *Store) FindActiveCouponByCode(ctx context.Context, code string) (pricing.Coupon, bool, error) {
	const q = `
		SELECT code, COALESCE(description, ''), kind, value_minor, min_order_minor
		FROM coupons
		WHERE upper(code) = upper($1) AND active
	`
	var (
		c          pricing.Coupon
		valueMinor int64
		minMinor   int64
		kind       string
	)
	err := s.Pool.QueryRow(ctx, q, strings.TrimSpace(code)).
		Scan(&c.Code, &c.Description, &kind, &valueMinor, &minMinor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.Coupon{}, false, nil
		}
		return pricing.Coupon{}, false, fmt.Errorf("find coupon: %w", err)
	}
	c.Kind = pricing.CouponKind(kind)
	// Flat and percent values share one minor-unit column; 15% is stored as 1500.
	c.Value = pricing.FromMinorUnits(valueMinor)
	c.MinOrder = pricing.FromMinorUnits(minMinor)
	c.Active = true
	return c, true, nil
}

// ListActive returns all active coupons, newest first.
func (s *Store) ListActive(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
		SELECT id, code, COALESCE(description, ''), kind, value_minor, min_order_minor, active, created_at, updated_at
		FROM coupons
		WHERE active
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListActiveOffers returns active marketing offers.
func (s *Store) ListActiveOffers(ctx context.Context, limit int) ([]Offer, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
		SELECT id, title, COALESCE(description, ''), COALESCE(banner_url, ''), active, created_at
		FROM offers
		WHERE active
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	var out []Offer
	for rows.Next() {
		var o Offer
		if err := rows.Scan(&o.ID, &o.Title, &o.Description, &o.BannerURL, &o.Active, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Create inserts a new coupon with a canonical upper-case code.
func (s *Store) Create(ctx context.Context, in Input) (Record, error) {
	const q = `
		INSERT INTO coupons (code, description, kind, value_minor, min_order_minor, active)
		VALUES (upper($1), NULLIF($2, ''), $3, $4, $5, $6)
		RETURNING id, code, COALESCE(description, ''), kind, value_minor, min_order_minor, active, created_at, updated_at
	`
	row := s.Pool.QueryRow(ctx, q,
		strings.TrimSpace(in.Code), in.Description, string(in.Kind),
		pricing.ToMinorUnits(in.Value), pricing.ToMinorUnits(in.MinOrder), in.Active)
	return scanRecord(row)
}

// Update replaces the mutable fields of a coupon addressed by code.
func (s *Store) Update(ctx context.Context, code string, in Input) (Record, error) {
	const q = `
		UPDATE coupons
		SET description = NULLIF($2, ''), kind = $3, value_minor = $4, min_order_minor = $5, active = $6, updated_at = now()
		WHERE upper(code) = upper($1)
		RETURNING id, code, COALESCE(description, ''), kind, value_minor, min_order_minor, active, created_at, updated_at
	`
	row := s.Pool.QueryRow(ctx, q,
		strings.TrimSpace(code), in.Description, string(in.Kind),
		pricing.ToMinorUnits(in.Value), pricing.ToMinorUnits(in.MinOrder), in.Active)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec        Record
		valueMinor int64
		minMinor   int64
	)
	if err := row.Scan(&rec.ID, &rec.Code, &rec.Description, &rec.Kind, &valueMinor, &minMinor, &rec.Active, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	rec.Value = pricing.FromMinorUnits(valueMinor).InexactFloat64()
	rec.MinOrder = pricing.FromMinorUnits(minMinor).InexactFloat64()
	return rec, nil
}
