package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/fjod/bookswap/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	cartSchemaVersion = 1
	cartBaseTTL       = 15 * time.Minute
	cartMaxJitter     = 5 * time.Minute
)

// cartEntry is the stored form. Entries written by another schema version
// are treated as misses.
type cartEntry struct {
	Version int          `json:"v"`
	Cart    *domain.Cart `json:"cart"`
}

// RedisCache is a read-through cart cache. TTLs are jittered so carts
// cached together do not expire together.
type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
	jitter  time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, baseTTL: cartBaseTTL, jitter: cartMaxJitter}
}

func (r *RedisCache) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get cart %s: %w", userID, err)
	}

	var entry cartEntry
	if err := json.Unmarshal(data, &entry); err != nil || entry.Version != cartSchemaVersion || entry.Cart == nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("dropping unreadable cart cache entry")
		_ = r.client.Del(ctx, cartKey(userID)).Err()
		return nil, ErrCacheMiss
	}
	return entry.Cart, nil
}

func (r *RedisCache) Set(ctx context.Context, userID string, cart *domain.Cart) error {
	data, err := json.Marshal(cartEntry{Version: cartSchemaVersion, Cart: cart})
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	ttl := r.baseTTL
	if r.jitter > 0 {
		ttl += rand.N(r.jitter)
	}
	if err := r.client.Set(ctx, cartKey(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart %s: %w", userID, err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete cart %s: %w", userID, err)
	}
	return nil
}

func cartKey(userID string) string {
	return "bookswap:cart:" + userID
}
