package ratelimit

import (
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestOTPLimiterBlocksAfterLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lim, err := NewOTPLimiter(client, "3-15m")
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/auth/otp/request", nil)
	for i := 0; i < 3; i++ {
		ok, err := lim.Allow(req, "+919876543210")
		require.NoError(t, err)
		require.True(t, ok, "request %d should pass", i+1)
	}
	ok, err := lim.Allow(req, "+919876543210")
	require.NoError(t, err)
	require.False(t, ok, "fourth request should be throttled")

	// A different phone has its own budget.
	ok, err = lim.Allow(req, "+911111111111")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestNewOTPLimiterRejectsBadRate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	_, err := NewOTPLimiter(client, "not-a-rate")
	require.Error(t, err)

	_, err = NewOTPLimiter(client, "0-15m")
	require.Error(t, err)

	_, err = NewOTPLimiter(client, "5-banana")
	require.Error(t, err)
}
