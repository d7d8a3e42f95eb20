package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	defaultOTPTTL     = 5 * time.Minute
	defaultSessionTTL = 30 * 24 * time.Hour
	tokenIssuer       = "biryani-backend"
	tokenAudience     = "biryani-app"
)

var (
	// ErrInvalidOTP is returned when the submitted code does not match.
	ErrInvalidOTP = errors.New("invalid otp")
	// ErrExpiredOTP is returned when the code matches but has lapsed.
	ErrExpiredOTP = errors.New("otp expired")
	// ErrInvalidToken is returned for unparsable or expired session tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// OTPRecord is a stored one-time code. The code itself is argon2id-hashed at rest.
type OTPRecord struct {
	Phone     string
	CodeHash  string
	ExpiresAt time.Time
	Verified  bool
	CreatedAt time.Time
}

// User is the account subset returned to clients after verification.
type User struct {
	ID            string    `json:"id"`
	Phone         string    `json:"phone"`
	Name          string    `json:"name,omitempty"`
	Email         string    `json:"email,omitempty"`
	LoyaltyPoints int       `json:"loyalty_points"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store persists OTP rows and user accounts.
type Store interface {
	InsertOTP(ctx context.Context, phone, codeHash string, expiresAt time.Time) error
	LatestOTP(ctx context.Context, phone string) (OTPRecord, bool, error)
	MarkOTPVerified(ctx context.Context, phone string) error
	UpsertUserByPhone(ctx context.Context, phone string) (User, error)
}

// Config configures the auth service.
type Config struct {
	Store      Store
	Secret     string
	OTPTTL     time.Duration
	SessionTTL time.Duration
	DemoCode   string
	Production bool
}

// Service issues and verifies one-time codes and mints session tokens.
// The OTP transport is a demo stub: outside production the code is fixed and
// no SMS is ever sent.
type Service struct {
	store      Store
	secret     []byte
	otpTTL     time.Duration
	sessionTTL time.Duration
	demoCode   string
	production bool
	now        func() time.Time
}

// LoginResult bundles the session token and user returned after verification.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// NewService constructs an auth service with sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("auth: store is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	otpTTL := cfg.OTPTTL
	if otpTTL <= 0 {
		otpTTL = defaultOTPTTL
	}
	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	demoCode := strings.TrimSpace(cfg.DemoCode)
	if demoCode == "" {
		demoCode = "1234"
	}
	return &Service{
		store:      cfg.Store,
		secret:     []byte(secret),
		otpTTL:     otpTTL,
		sessionTTL: sessionTTL,
		demoCode:   demoCode,
		production: cfg.Production,
		now:        time.Now,
	}, nil
}

// RequestCode stores a fresh hashed OTP for the phone and returns the
// user-facing confirmation message.
func (s *Service) RequestCode(ctx context.Context, phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", errors.New("phone is required")
	}
	code := s.demoCode
	if s.production {
		generated, err := randomCode(4)
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		code = generated
	}
	hash, err := argon2id.CreateHash(code, argon2id.DefaultParams)
	if err != nil {
		return "", fmt.Errorf("hash otp: %w", err)
	}
	if err := s.store.InsertOTP(ctx, phone, hash, s.now().Add(s.otpTTL)); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	if s.production {
		return "OTP sent", nil
	}
	return fmt.Sprintf("OTP sent (demo uses %s)", s.demoCode), nil
}

// VerifyCode checks the submitted code against the latest OTP for the phone,
// upserts the user account and mints a session token.
func (s *Service) VerifyCode(ctx context.Context, phone, code string) (LoginResult, error) {
	phone = strings.TrimSpace(phone)
	rec, found, err := s.store.LatestOTP(ctx, phone)
	if err != nil {
		return LoginResult{}, fmt.Errorf("load otp: %w", err)
	}
	if !found {
		return LoginResult{}, ErrInvalidOTP
	}
	match, err := argon2id.ComparePasswordAndHash(strings.TrimSpace(code), rec.CodeHash)
	if err != nil || !match {
		return LoginResult{}, ErrInvalidOTP
	}
	if s.now().After(rec.ExpiresAt) {
		return LoginResult{}, ErrExpiredOTP
	}
	user, err := s.store.UpsertUserByPhone(ctx, phone)
	if err != nil {
		return LoginResult{}, fmt.Errorf("upsert user: %w", err)
	}
	if err := s.store.MarkOTPVerified(ctx, phone); err != nil {
		return LoginResult{}, fmt.Errorf("mark otp verified: %w", err)
	}
	token, err := s.mintToken(phone)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, User: user}, nil
}

// ParseToken validates a session token and returns the phone it was minted for.
func (s *Service) ParseToken(token string) (string, error) {
	parsed, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.HS256, s.secret),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	phone := parsed.Subject()
	if phone == "" {
		return "", ErrInvalidToken
	}
	return phone, nil
}

func (s *Service) mintToken(phone string) (string, error) {
	now := s.now()
	tok, err := jwt.NewBuilder().
		Issuer(tokenIssuer).
		Audience([]string{tokenAudience}).
		Subject(phone).
		IssuedAt(now).
		Expiration(now.Add(s.sessionTTL)).
		Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}

func randomCode(digits int) (string, error) {
	bound := big.NewInt(1)
	for i := 0; i < digits; i++ {
		bound.Mul(bound, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
