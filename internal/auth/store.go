package auth

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the pgx-backed Store implementation.
type PGStore struct {
	Pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{Pool: pool}
}

func (s *PGStore) InsertOTP(ctx context.Context, phone, codeHash string, expiresAt time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO otp_codes (phone, code_hash, expires_at)
		VALUES ($1, $2, $3)
	`, phone, codeHash, expiresAt)
	return err
}

func (s *PGStore) LatestOTP(ctx context.Context, phone string) (OTPRecord, bool, error) {
	var rec OTPRecord
	err := s.Pool.QueryRow(ctx, `
		SELECT phone, code_hash, expires_at, verified, created_at
		FROM otp_codes
		WHERE phone = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, phone).Scan(&rec.Phone, &rec.CodeHash, &rec.ExpiresAt, &rec.Verified, &rec.CreatedAt)
	if err == pgx.ErrNoRows {
		return OTPRecord{}, false, nil
	}
	if err != nil {
		return OTPRecord{}, false, err
	}
	return rec, true, nil
}

func (s *PGStore) MarkOTPVerified(ctx context.Context, phone string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE otp_codes SET verified = TRUE
		WHERE phone = $1 AND verified = FALSE
	`, phone)
	return err
}

func (s *PGStore) UpsertUserByPhone(ctx context.Context, phone string) (User, error) {
	var u User
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO users (phone)
		VALUES ($1)
		ON CONFLICT (phone) DO UPDATE SET last_login_at = now()
		RETURNING id, phone, COALESCE(name, ''), COALESCE(email, ''), loyalty_points, is_active, created_at
	`, phone).Scan(&u.ID, &u.Phone, &u.Name, &u.Email, &u.LoyaltyPoints, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// PurgeExpiredOTPs deletes lapsed codes, returning how many rows were removed.
// Used by the background purge task.
func (s *PGStore) PurgeExpiredOTPs(ctx context.Context) (int64, error) {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM otp_codes WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
