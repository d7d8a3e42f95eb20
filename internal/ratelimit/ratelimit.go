package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// OTPLimiter throttles OTP issuance per phone number using a sliding rate
// stored in Redis, so the limit holds across API replicas.
type OTPLimiter struct {
	limiter *limiter.Limiter
}

// NewOTPLimiter builds a limiter from a rate string such as "5-15m"
// (5 requests per 15 minutes).
func NewOTPLimiter(client *redis.Client, rate string) (*OTPLimiter, error) {
	parsed, err := parseRate(rate)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", rate, err)
	}
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix: "otp_limit",
	})
	if err != nil {
		return nil, fmt.Errorf("limiter store: %w", err)
	}
	return &OTPLimiter{limiter: limiter.New(store, parsed)}, nil
}

// Allow reports whether another OTP may be issued for the key.
func (l *OTPLimiter) Allow(r *http.Request, key string) (bool, error) {
	ctx, err := l.limiter.Get(r.Context(), key)
	if err != nil {
		return false, err
	}
	return !ctx.Reached, nil
}

// parseRate parses "<limit>-<period>" with a Go duration period, e.g. "5-15m".
// The stock formatted-rate parser only understands single-letter periods.
func parseRate(rate string) (limiter.Rate, error) {
	limitStr, periodStr, ok := strings.Cut(strings.TrimSpace(rate), "-")
	if !ok {
		return limiter.Rate{}, fmt.Errorf("expected <limit>-<period>")
	}
	count, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || count <= 0 {
		return limiter.Rate{}, fmt.Errorf("invalid limit %q", limitStr)
	}
	period, err := time.ParseDuration(periodStr)
	if err != nil || period <= 0 {
		return limiter.Rate{}, fmt.Errorf("invalid period %q", periodStr)
	}
	return limiter.Rate{Formatted: rate, Period: period, Limit: count}, nil
}
