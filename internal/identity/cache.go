package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/protegacloudpay/cloudpay/internal/domain"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache holds verified customers keyed by fingerprint hash, so repeat
// customers skip the repository on the hot verification path.
type Cache interface {
	Get(ctx context.Context, hash string) (*domain.Customer, error)
	Set(ctx context.Context, hash string, c *domain.Customer) error
	Delete(ctx context.Context, hash string) error
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

func (r *RedisCache) Get(ctx context.Context, hash string) (*domain.Customer, error) {
	data, err := r.client.Get(ctx, cacheKey(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var c domain.Customer
	if err2 := json.Unmarshal(data, &c); err2 != nil {
		return nil, fmt.Errorf("unmarshal customer failed: %w", err2)
	}
	return &c, nil
}

func (r *RedisCache) Set(ctx context.Context, hash string, c *domain.Customer) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal customer failed: %w", err)
	}

	// Jitter spreads expiry so a burst of verifications does not refill
	// and expire as one cohort.
	ttl := r.baseTTL + time.Duration(rand.Intn(5))*time.Minute
	if err := r.client.Set(ctx, cacheKey(hash), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, hash string) error {
	if err := r.client.Del(ctx, cacheKey(hash)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(hash string) string {
	return fmt.Sprintf("cloudpay:identity:%s", hash)
}
