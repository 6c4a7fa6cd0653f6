//go:build integration

package kv

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func TestRedis(t *testing.T) {
	ctx := context.Background()
	url := startRedis(t)

	s, err := OpenRedis(ctx, url, "device-a")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	testStore(t, s)

	// Keys are namespaced per device.
	other, err := OpenRedis(ctx, url, "device-b")
	require.NoError(t, err)
	t.Cleanup(func() { _ = other.Close() })

	_, err = other.Get(ctx, "session")
	require.ErrorIs(t, err, ErrNotFound)

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	raw := redis.NewClient(opts)
	t.Cleanup(func() { _ = raw.Close() })

	v, err := raw.Get(ctx, "storefront:device-a:session").Result()
	require.NoError(t, err)
	assert.Equal(t, "token", v)
}
