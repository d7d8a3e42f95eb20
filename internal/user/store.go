package user

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no account exists for the phone.
var ErrNotFound = errors.New("user not found")

// Profile is the account view returned from /me.
type Profile struct {
	ID            string    `json:"id"`
	Phone         string    `json:"phone"`
	Name          string    `json:"name,omitempty"`
	Email         string    `json:"email,omitempty"`
	LoyaltyPoints int       `json:"loyalty_points"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// Address is a saved delivery address.
type Address struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Line1     string    `json:"line1"`
	Line2     string    `json:"line2,omitempty"`
	City      string    `json:"city"`
	Pincode   string    `json:"pincode"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

// AddressInput is the payload for saving an address.
type AddressInput struct {
	Label     string
	Line1     string
	Line2     string
	City      string
	Pincode   string
	IsDefault bool
}

// ProfileInput is the payload for updating name/email.
type ProfileInput struct {
	Name  string
	Email string
}

// Store is the pgx-backed account store, keyed by phone.
type Store struct {
	Pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func (s *Store) GetByPhone(ctx context.Context, phone string) (Profile, error) {
	var p Profile
	err := s.Pool.QueryRow(ctx, `
		SELECT id, phone, COALESCE(name, ''), COALESCE(email, ''), loyalty_points, is_active, created_at
		FROM users
		WHERE phone = $1
	`, phone).Scan(&p.ID, &p.Phone, &p.Name, &p.Email, &p.LoyaltyPoints, &p.IsActive, &p.CreatedAt)
	if err == pgx.ErrNoRows {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, phone string, in ProfileInput) (Profile, error) {
	var p Profile
	err := s.Pool.QueryRow(ctx, `
		UPDATE users
		SET name = NULLIF($2, ''), email = NULLIF($3, ''), updated_at = now()
		WHERE phone = $1
		RETURNING id, phone, COALESCE(name, ''), COALESCE(email, ''), loyalty_points, is_active, created_at
	`, phone, in.Name, in.Email).Scan(&p.ID, &p.Phone, &p.Name, &p.Email, &p.LoyaltyPoints, &p.IsActive, &p.CreatedAt)
	if err == pgx.ErrNoRows {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *Store) AddAddress(ctx context.Context, phone string, in AddressInput) (Address, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Address{}, err
	}
	defer tx.Rollback(ctx)

	if in.IsDefault {
		if _, err := tx.Exec(ctx, `
			UPDATE addresses SET is_default = FALSE
			WHERE user_id = (SELECT id FROM users WHERE phone = $1)
		`, phone); err != nil {
			return Address{}, err
		}
	}
	var a Address
	err = tx.QueryRow(ctx, `
		INSERT INTO addresses (user_id, label, line1, line2, city, pincode, is_default)
		SELECT id, $2, $3, NULLIF($4, ''), $5, $6, $7 FROM users WHERE phone = $1
		RETURNING id, label, line1, COALESCE(line2, ''), city, pincode, is_default, created_at
	`, phone, in.Label, in.Line1, in.Line2, in.City, in.Pincode, in.IsDefault).
		Scan(&a.ID, &a.Label, &a.Line1, &a.Line2, &a.City, &a.Pincode, &a.IsDefault, &a.CreatedAt)
	if err == pgx.ErrNoRows {
		return Address{}, ErrNotFound
	}
	if err != nil {
		return Address{}, err
	}
	return a, tx.Commit(ctx)
}

func (s *Store) ListAddresses(ctx context.Context, phone string) ([]Address, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT a.id, a.label, a.line1, COALESCE(a.line2, ''), a.city, a.pincode, a.is_default, a.created_at
		FROM addresses a
		JOIN users u ON u.id = a.user_id
		WHERE u.phone = $1
		ORDER BY a.is_default DESC, a.created_at DESC
	`, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Address
	for rows.Next() {
		var a Address
		if err := rows.Scan(&a.ID, &a.Label, &a.Line1, &a.Line2, &a.City, &a.Pincode, &a.IsDefault, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ToggleFavorite adds the menu item to the user's favorites, or removes it if
// already present. Reports whether the item is a favorite afterwards.
func (s *Store) ToggleFavorite(ctx context.Context, phone, itemID string) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		DELETE FROM favorites
		WHERE user_id = (SELECT id FROM users WHERE phone = $1) AND item_id = $2
	`, phone, itemID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO favorites (user_id, item_id)
		SELECT id, $2 FROM users WHERE phone = $1
		ON CONFLICT DO NOTHING
	`, phone, itemID)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) ListFavoriteIDs(ctx context.Context, phone string) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT f.item_id
		FROM favorites f
		JOIN users u ON u.id = f.user_id
		WHERE u.phone = $1
		ORDER BY f.created_at DESC
	`, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
