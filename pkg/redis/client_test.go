package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/agrivet-pos/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return NewFromClient(raw), mr
}

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)

	require.NoError(t, client.Set(ctx, "pos:k", "v", time.Minute))
	got, err := client.Get(ctx, "pos:k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
	assert.Equal(t, time.Minute, mr.TTL("pos:k"))

	require.NoError(t, client.Del(ctx, "pos:k"))
	_, err = client.Get(ctx, "pos:k")
	assert.True(t, errors.Is(err, ErrNil))
}

func TestSetNXKeepsFirstValue(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	ok, err := client.SetNX(ctx, "pos:once", "first", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.SetNX(ctx, "pos:once", "second", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	got, _ := client.Get(ctx, "pos:once")
	assert.Equal(t, "first", got)
}

func TestSetMembers(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	key := client.OpenSessionsKey()

	require.NoError(t, client.AddMember(ctx, key, "a"))
	require.NoError(t, client.AddMember(ctx, key, "b"))
	require.NoError(t, client.RemoveMember(ctx, key, "a"))

	members, err := client.Members(ctx, key)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b"}, members)
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "pos:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "pos:cart:abc", client.CartSnapshotKey("abc"))
	assert.Equal(t, "pos:sessions:open", client.OpenSessionsKey())
	assert.Equal(t, "pos:jobs:lock:prod", client.JobLockKey("prod"))
	assert.Equal(t, "pos:jobs:daily-close:2026-05-01", client.DailyCloseKey("2026-05-01"))
	assert.Equal(t, "pos:idempotency:id", client.IdempotencyKey("", "id"), "empty parts are skipped")
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	ctx := context.Background()
	assert.Error(t, client.Ping(ctx))
	assert.Error(t, client.Set(ctx, "k", "v", 0))
	_, err := client.Get(ctx, "k")
	assert.Error(t, err)
	assert.NoError(t, client.Close())
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 3})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 3, opts.DB)
}
