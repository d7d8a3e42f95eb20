package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "redis://localhost:6379",
		"JWT_SECRET":   "secret",
	})
	if err == nil {
		t.Fatal("expected an error when DATABASE_URL is missing")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":         "postgres://localhost/biryani",
		"REDIS_URL":            "redis://localhost:6379",
		"JWT_SECRET":           "secret",
		"PORT":                 "",
		"OTP_TTL":              "",
		"PRICING_DELIVERY_FEE": "",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr() != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr())
	}
	if cfg.OTPTTL != 5*time.Minute {
		t.Fatalf("unexpected OTP TTL %s", cfg.OTPTTL)
	}
	if !cfg.DeliveryFee.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unexpected delivery fee %s", cfg.DeliveryFee)
	}
	if cfg.Production() {
		t.Fatal("development config must not report production")
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":         "postgres://localhost/biryani",
		"REDIS_URL":            "redis://localhost:6379",
		"JWT_SECRET":           "secret",
		"PRICING_DELIVERY_FEE": "35.50",
		"ORDER_ETA_MINUTES":    "45",
		"CORS_ALLOWED_ORIGINS": "https://a.example, https://b.example",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.DeliveryFee.Equal(decimal.RequireFromString("35.50")) {
		t.Fatalf("unexpected delivery fee %s", cfg.DeliveryFee)
	}
	if cfg.OrderETAMinutes != 45 {
		t.Fatalf("unexpected ETA %d", cfg.OrderETAMinutes)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
}
