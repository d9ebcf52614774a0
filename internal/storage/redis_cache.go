package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"insta-outreach/internal/core/ports"
)

const descriptionKeyPrefix = "outreach:description:"

// RedisCache stores generated product descriptions keyed by product link.
type RedisCache struct {
	client *redis.Client
}

var _ ports.DescriptionCache = (*RedisCache)(nil)

func NewRedisCache(addr, password string, db int) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{client: rdb}
}

func (r *RedisCache) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failure: %w", err)
	}
	return nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) GetDescription(ctx context.Context, link string) (string, bool, error) {
	val, err := r.client.Get(ctx, descriptionKey(link)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get failure: %w", err)
	}
	return val, true, nil
}

func (r *RedisCache) PutDescription(ctx context.Context, link, description string, ttl time.Duration) error {
	if err := r.client.Set(ctx, descriptionKey(link), description, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failure: %w", err)
	}
	return nil
}

// descriptionKey hashes the link so arbitrary URLs make safe, bounded keys.
func descriptionKey(link string) string {
	sum := sha256.Sum256([]byte(link))
	return descriptionKeyPrefix + hex.EncodeToString(sum[:])
}
