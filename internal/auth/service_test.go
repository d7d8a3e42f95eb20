package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

type memStore struct {
	otps     map[string]OTPRecord
	users    map[string]User
	verified map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		otps:     map[string]OTPRecord{},
		users:    map[string]User{},
		verified: map[string]bool{},
	}
}

func (m *memStore) InsertOTP(_ context.Context, phone, codeHash string, expiresAt time.Time) error {
	m.otps[phone] = OTPRecord{Phone: phone, CodeHash: codeHash, ExpiresAt: expiresAt, CreatedAt: time.Now()}
	return nil
}

func (m *memStore) LatestOTP(_ context.Context, phone string) (OTPRecord, bool, error) {
	rec, ok := m.otps[phone]
	return rec, ok, nil
}

func (m *memStore) MarkOTPVerified(_ context.Context, phone string) error {
	m.verified[phone] = true
	return nil
}

func (m *memStore) UpsertUserByPhone(_ context.Context, phone string) (User, error) {
	u, ok := m.users[phone]
	if !ok {
		u = User{ID: "u-" + phone, Phone: phone, IsActive: true, CreatedAt: time.Now()}
		m.users[phone] = u
	}
	return u, nil
}

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Store:    store,
		Secret:   "test-secret-please-rotate",
		OTPTTL:   5 * time.Minute,
		DemoCode: "1234",
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRequestAndVerifyDemoCode(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	msg, err := svc.RequestCode(ctx, "+919876543210")
	if err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	if msg != "OTP sent (demo uses 1234)" {
		t.Fatalf("unexpected message %q", msg)
	}

	result, err := svc.VerifyCode(ctx, "+919876543210", "1234")
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected a session token")
	}
	if result.User.Phone != "+919876543210" {
		t.Fatalf("unexpected user phone %q", result.User.Phone)
	}
	if !store.verified["+919876543210"] {
		t.Fatal("otp not marked verified")
	}

	phone, err := svc.ParseToken(result.Token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if phone != "+919876543210" {
		t.Fatalf("token subject %q", phone)
	}
}

func TestVerifyRejectsWrongCode(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	if _, err := svc.RequestCode(ctx, "+919876543210"); err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	if _, err := svc.VerifyCode(ctx, "+919876543210", "9999"); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("want ErrInvalidOTP, got %v", err)
	}
}

func TestVerifyRejectsUnknownPhone(t *testing.T) {
	svc := newTestService(t, newMemStore())
	if _, err := svc.VerifyCode(context.Background(), "+911111111111", "1234"); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("want ErrInvalidOTP, got %v", err)
	}
}

func TestVerifyRejectsExpiredCode(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	if _, err := svc.RequestCode(ctx, "+919876543210"); err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	svc.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	if _, err := svc.VerifyCode(ctx, "+919876543210", "1234"); !errors.Is(err, ErrExpiredOTP) {
		t.Fatalf("want ErrExpiredOTP, got %v", err)
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	svc := newTestService(t, newMemStore())
	if _, err := svc.ParseToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestParseTokenRejectsExpiredSession(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)
	svc.sessionTTL = time.Minute
	ctx := context.Background()

	if _, err := svc.RequestCode(ctx, "+919876543210"); err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	result, err := svc.VerifyCode(ctx, "+919876543210", "1234")
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	if _, err := svc.ParseToken(result.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}
