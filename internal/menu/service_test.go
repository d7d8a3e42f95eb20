package menu_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/pakkhtun/biryani-backend/internal/menu"
)

type countingStore struct {
	calls int
	items []menu.Item
}

func (c *countingStore) ListAvailable(_ context.Context, _ string, _ int) ([]menu.Item, error) {
	c.calls++
	return c.items, nil
}

func newCachedService(t *testing.T, store *countingStore) *menu.Service {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &menu.Service{Store: store, Redis: client, TTL: time.Minute}
}

func TestListServesFromCache(t *testing.T) {
	store := &countingStore{items: []menu.Item{{ID: "1", Title: "Signature Matka Chicken Biryani", Category: "Matka Biryanis", PriceFull: 349}}}
	svc := newCachedService(t, store)
	ctx := context.Background()

	first, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, 1, store.calls, "second read must hit the cache")
}

func TestInvalidateDropsCache(t *testing.T) {
	store := &countingStore{items: []menu.Item{{ID: "1", Title: "Chicken Malai Kebab", Category: "Kebabs", PriceFull: 249}}}
	svc := newCachedService(t, store)
	ctx := context.Background()

	_, err := svc.List(ctx, "Kebabs")
	require.NoError(t, err)
	svc.Invalidate(ctx)

	_, err = svc.List(ctx, "Kebabs")
	require.NoError(t, err)
	require.Equal(t, 2, store.calls, "invalidation must force a store read")
}

func TestValidCategory(t *testing.T) {
	require.True(t, menu.ValidCategory("Rolls"))
	require.False(t, menu.ValidCategory("Sushi"))
}
