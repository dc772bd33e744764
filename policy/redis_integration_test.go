//go:build integration

package policy

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"go-credential-verifier/verifier"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	addr, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(addr)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	client := newRedisClient(t)
	store := NewRedis(client, "verifier-test", ActionFromUserData)

	policy, err := store.GetConfig(ctx, "census")
	require.NoError(t, err)
	require.True(t, policy.IsEmpty())

	created, err := store.SetConfig(ctx, "census", adults)
	require.NoError(t, err)
	require.True(t, created)

	created, err = store.SetConfig(ctx, "census", verifier.Policy{MinimumAge: 21})
	require.NoError(t, err)
	require.False(t, created)

	policy, err = store.GetConfig(ctx, "census")
	require.NoError(t, err)
	require.Equal(t, verifier.Policy{MinimumAge: 21}, policy)

	raw, err := client.Get(ctx, "verifier-test:policy:census").Result()
	require.NoError(t, err)
	require.JSONEq(t, `{"minimumAge":21}`, raw)

	id, err := store.GetActionID(ctx, "0xabc", "census")
	require.NoError(t, err)
	require.Equal(t, "census", id)
}

func TestRedisStoreRejectsCorruptValues(t *testing.T) {
	ctx := context.Background()
	client := newRedisClient(t)
	store := NewRedis(client, "verifier-test", nil)

	require.NoError(t, client.Set(ctx, "verifier-test:policy:broken", "not json", 0).Err())
	_, err := store.GetConfig(ctx, "broken")
	require.ErrorContains(t, err, "failed to decode policy broken")
}
