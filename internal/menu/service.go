package menu

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Categories is the fixed category list for the single-brand menu.
var Categories = []string{
	"Matka Biryanis",
	"Kebabs",
	"Rolls",
	"Combos",
	"Add-ons & Drinks",
}

// ValidCategory reports whether the given category exists on the menu.
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Lister is the subset of the store the read path needs.
type Lister interface {
	ListAvailable(ctx context.Context, category string, limit int) ([]Item, error)
}

// Service serves menu reads through a Redis JSON cache.
type Service struct {
	Store Lister
	Redis *redis.Client
	TTL   time.Duration
}

func cacheKey(category string) string {
	if category == "" {
		return "menu:all"
	}
	return "menu:cat:" + category
}

// List returns available menu items for a category (all when empty),
// served from cache when possible. Cache failures fall through to the store.
func (s *Service) List(ctx context.Context, category string) ([]Item, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("menu service not configured")
	}
	key := cacheKey(category)
	if s.Redis != nil {
		if data, err := s.Redis.Get(ctx, key).Bytes(); err == nil {
			var cached []Item
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}
	items, err := s.Store.ListAvailable(ctx, category, 200)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Item{}
	}
	if s.Redis != nil && s.TTL > 0 {
		if data, err := json.Marshal(items); err == nil {
			_ = s.Redis.Set(ctx, key, data, s.TTL).Err()
		}
	}
	return items, nil
}

// Invalidate drops all cached menu listings after an admin write.
func (s *Service) Invalidate(ctx context.Context) {
	if s == nil || s.Redis == nil {
		return
	}
	keys := make([]string, 0, len(Categories)+1)
	keys = append(keys, cacheKey(""))
	for _, c := range Categories {
		keys = append(keys, cacheKey(c))
	}
	_ = s.Redis.Del(ctx, keys...).Err()
}
