package eventstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Exists/Setだけのインメモリ版
type fakeKV struct {
	keys map[string]time.Duration
	err  error
}

func (f *fakeKV) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeKV) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.keys[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestRedisStore_SeenAfterMark(t *testing.T) {
	ctx := context.Background()
	kv := &fakeKV{keys: map[string]time.Duration{}}
	s := &RedisStore{rdb: kv, ttl: DefaultTTL}

	seen, err := s.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.MarkProcessed(ctx, "evt_1"))
	assert.Equal(t, DefaultTTL, kv.keys["webhook:event:evt_1"])

	seen, err = s.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = s.Seen(ctx, "evt_2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisStore_Errors(t *testing.T) {
	ctx := context.Background()
	down := errors.New("dial tcp: connection refused")
	s := &RedisStore{rdb: &fakeKV{err: down}, ttl: time.Hour}

	_, err := s.Seen(ctx, "evt_1")
	assert.ErrorIs(t, err, down)
	assert.ErrorIs(t, s.MarkProcessed(ctx, "evt_1"), down)
}

func TestNewRedisStore_DefaultTTL(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer rdb.Close()

	assert.Equal(t, DefaultTTL, NewRedisStore(rdb, 0).ttl)
	assert.Equal(t, time.Minute, NewRedisStore(rdb, time.Minute).ttl)
}

func TestNoop(t *testing.T) {
	seen, err := Noop{}.Seen(context.Background(), "evt")
	assert.NoError(t, err)
	assert.False(t, seen)
	assert.NoError(t, Noop{}.MarkProcessed(context.Background(), "evt"))
}

func TestConnect_BadURL(t *testing.T) {
	_, err := Connect(context.Background(), "not-a-redis-url")
	assert.Error(t, err)
}
