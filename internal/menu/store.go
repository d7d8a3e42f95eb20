package menu

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pakkhtun/biryani-backend/internal/pricing"
)

// ErrNotFound indicates the requested menu item does not exist.
var ErrNotFound = errors.New("menu item not found")

// Item is a menu entry in API-friendly form. PriceHalf is nil for items sold
// only as a full portion.
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	PriceHalf   *float64  `json:"price_half,omitempty"`
	PriceFull   float64   `json:"price_full"`
	IsSignature bool      `json:"is_signature"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Input carries an admin create/update payload.
type Input struct {
	Title       string
	Category    string
	Description string
	ImageURL    string
	PriceHalf   *decimal.Decimal
	PriceFull   decimal.Decimal
	IsSignature bool
	Available   bool
}

// Store persists menu items.
type Store struct {
	Pool *pgxpool.Pool
}

// NewStore constructs a menu store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

const itemColumns = `id, title, category, COALESCE(description, ''), COALESCE(image_url, ''),
	price_half_minor, price_full_minor, is_signature, available, created_at, updated_at`

// ListAvailable returns available items, optionally filtered by category.
func (s *Store) ListAvailable(ctx context.Context, category string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 200
	}
	q := `SELECT ` + itemColumns + ` FROM menu_items WHERE available`
	args := []any{limit}
	if category != "" {
		q += ` AND category = $2`
		args = append(args, category)
	}
	q += ` ORDER BY category, title LIMIT $1`

	rows, err := s.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list menu: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// Get returns a single menu item by id.
func (s *Store) Get(ctx context.Context, id string) (Item, error) {
	q := `SELECT ` + itemColumns + ` FROM menu_items WHERE id = $1`
	item, err := scanItem(s.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return item, nil
}

// Create inserts a new menu item.
func (s *Store) Create(ctx context.Context, in Input) (Item, error) {
	q := `
		INSERT INTO menu_items (title, category, description, image_url, price_half_minor, price_full_minor, is_signature, available)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8)
		RETURNING ` + itemColumns
	row := s.Pool.QueryRow(ctx, q,
		in.Title, in.Category, in.Description, in.ImageURL,
		optionalMinor(in.PriceHalf), pricing.ToMinorUnits(in.PriceFull), in.IsSignature, in.Available)
	return scanItem(row)
}

// Update replaces the mutable fields of a menu item.
func (s *Store) Update(ctx context.Context, id string, in Input) (Item, error) {
	q := `
		UPDATE menu_items
		SET title = $2, category = $3, description = NULLIF($4, ''), image_url = NULLIF($5, ''),
			price_half_minor = $6, price_full_minor = $7, is_signature = $8, available = $9, updated_at = now()
		WHERE id = $1
		RETURNING ` + itemColumns
	row := s.Pool.QueryRow(ctx, q,
		id, in.Title, in.Category, in.Description, in.ImageURL,
		optionalMinor(in.PriceHalf), pricing.ToMinorUnits(in.PriceFull), in.IsSignature, in.Available)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return item, nil
}

// Delete removes a menu item.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM menu_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete menu item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanItem(row pgx.Row) (Item, error) {
	var (
		item      Item
		halfMinor *int64
		fullMinor int64
	)
	err := row.Scan(&item.ID, &item.Title, &item.Category, &item.Description, &item.ImageURL,
		&halfMinor, &fullMinor, &item.IsSignature, &item.Available, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	if halfMinor != nil {
		half := pricing.FromMinorUnits(*halfMinor).InexactFloat64()
		item.PriceHalf = &half
	}
	item.PriceFull = pricing.FromMinorUnits(fullMinor).InexactFloat64()
	return item, nil
}

func optionalMinor(d *decimal.Decimal) *int64 {
	if d == nil {
		return nil
	}
	minor := pricing.ToMinorUnits(*d)
	return &minor
}
