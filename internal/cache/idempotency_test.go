package cache

import (
	"context"
	"testing"
	"time"

	"commerce-core/internal/config"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns its address.
func setupRedis(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

func TestCheckoutKey(t *testing.T) {
	assert.Equal(t, "idem:checkout:u1:abc", CheckoutKey("u1", "abc"))
}

func TestNopIdempotencyCache(t *testing.T) {
	var c IdempotencyCache = NopIdempotencyCache{}

	require.NoError(t, c.Set(context.Background(), "u1", "k", Entry{OrderID: uuid.New()}, time.Minute))
	entry, err := c.Get(context.Background(), "u1", "k")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestRedisIdempotencyCache(t *testing.T) {
	addr := setupRedis(t)
	ctx := context.Background()

	client, err := NewRedisClient(ctx, config.RedisConfig{Addr: addr})
	require.NoError(t, err)
	defer client.Close()

	c := NewRedisIdempotencyCache(client, zerolog.Nop())

	miss, err := c.Get(ctx, "u1", "k1")
	require.NoError(t, err)
	assert.Nil(t, miss)

	want := Entry{OrderID: uuid.New(), Fingerprint: "fp"}
	require.NoError(t, c.Set(ctx, "u1", "k1", want, time.Minute))

	got, err := c.Get(ctx, "u1", "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	ttl, err := client.TTL(ctx, CheckoutKey("u1", "k1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)

	require.NoError(t, client.Set(ctx, CheckoutKey("u1", "bad"), "not-json", time.Minute).Err())
	corrupt, err := c.Get(ctx, "u1", "bad")
	require.NoError(t, err)
	assert.Nil(t, corrupt)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := NewRedisClient(ctx, config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.ErrorContains(t, err, "failed to ping redis")
}
