// Package eventstore は処理済みwebhookイベントIDを保持する。
package eventstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Stripeの再送期間より長めに持つ
const DefaultTTL = 24 * time.Hour

const keyPrefix = "webhook:event:"

type keyValue interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type RedisStore struct {
	rdb keyValue
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, keyPrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) MarkProcessed(ctx context.Context, eventID string) error {
	return s.rdb.Set(ctx, keyPrefix+eventID, time.Now().UTC().Format(time.RFC3339), s.ttl).Err()
}

// REDIS_URL未設定時用（重複排除しない）
type Noop struct{}

func (Noop) Seen(context.Context, string) (bool, error)  { return false, nil }
func (Noop) MarkProcessed(context.Context, string) error { return nil }

// Connect はREDIS_URLからクライアントを作ってPINGで確認する。
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
