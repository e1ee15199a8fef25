package provider

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func setupRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestCached_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	client, err := NewRedisClient(ctx, setupRedis(t), "", 0)
	require.NoError(t, err)
	defer client.Close()

	upstream := NewStatic()
	upstream.Set("INFY", sampleBars(20))
	c := NewCached(upstream, client, time.Hour, time.Minute, zap.NewNop())

	t.Run("series served from cache on second call", func(t *testing.T) {
		first, err := c.DailySeries(ctx, "INFY", day(0), day(9))
		require.NoError(t, err)
		second, err := c.DailySeries(ctx, "INFY", day(0), day(9))
		require.NoError(t, err)

		assert.Equal(t, 1, upstream.Calls("INFY"))
		require.Len(t, second, len(first))
		assert.Equal(t, first[9].Close, second[9].Close)
		assert.True(t, first[0].Date.Equal(second[0].Date))
	})

	t.Run("different range misses", func(t *testing.T) {
		_, err := c.DailySeries(ctx, "INFY", day(0), day(5))
		require.NoError(t, err)
		assert.Equal(t, 2, upstream.Calls("INFY"))
	})

	t.Run("quote cached", func(t *testing.T) {
		q1, err := c.LiveQuote(ctx, "INFY")
		require.NoError(t, err)
		q2, err := c.LiveQuote(ctx, "INFY")
		require.NoError(t, err)
		assert.Equal(t, q1.Price, q2.Price)
		assert.Equal(t, 3, upstream.Calls("INFY"))
	})

	t.Run("errors are not cached", func(t *testing.T) {
		_, err := c.DailySeries(ctx, "MISSING", day(0), day(1))
		require.Error(t, err)
		_, err = c.DailySeries(ctx, "MISSING", day(0), day(1))
		require.Error(t, err)
		assert.Equal(t, 2, upstream.Calls("MISSING"))
	})
}
