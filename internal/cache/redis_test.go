package cache

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
)

var (
	testRedisAddr  string
	redisContainer testcontainers.Container
	containerErr   error
)

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	var err error
	redisContainer, err = redis.Run(ctx, "redis:7-alpine")
	if err != nil {
		containerErr = err
		fmt.Fprintf(os.Stderr, "redis container unavailable, integration tests will be skipped: %v\n", err)
		os.Exit(m.Run())
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get redis endpoint: %v\n", err)
		_ = redisContainer.Terminate(ctx)
		os.Exit(1)
	}
	testRedisAddr = endpoint

	code := m.Run()

	_ = redisContainer.Terminate(ctx)
	os.Exit(code)
}

func setupTestClient(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	if containerErr != nil {
		t.Skipf("redis container unavailable: %v", containerErr)
	}

	client, err := NewClient(context.Background(), testRedisAddr, "")
	require.NoError(t, err)
	require.NoError(t, client.rdb.FlushAll(context.Background()).Err())

	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestNilClientIsNoop(t *testing.T) {
	var c *Client
	ctx := context.Background()

	var dest sample
	found, err := c.GetJSON(ctx, "k", &dest)
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, c.SetJSON(ctx, "k", sample{}, time.Minute))
	assert.NoError(t, c.PublishJSON(ctx, "ch", sample{}))
	assert.NoError(t, c.Close())

	_, _, err = c.Subscribe(ctx, "ch")
	assert.Error(t, err)
}

func TestJSONRoundTripAndExpiry(t *testing.T) {
	c := setupTestClient(t)
	ctx := context.Background()

	var dest sample
	found, err := c.GetJSON(ctx, "top:10:20", &dest)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.SetJSON(ctx, "top:10:20", sample{Name: "x", Count: 3}, 200*time.Millisecond))

	found, err = c.GetJSON(ctx, "top:10:20", &dest)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, sample{Name: "x", Count: 3}, dest)

	assert.Eventually(t, func() bool {
		var d sample
		found, err := c.GetJSON(ctx, "top:10:20", &d)
		return err == nil && !found
	}, 5*time.Second, 50*time.Millisecond)
}

func TestPublishSubscribe(t *testing.T) {
	c := setupTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, closeSub, err := c.Subscribe(ctx, "playlist:abc:votes")
	require.NoError(t, err)
	defer closeSub()

	require.NoError(t, c.PublishJSON(ctx, "playlist:abc:votes", sample{Name: "vote", Count: 1}))

	select {
	case payload := <-msgs:
		assert.JSONEq(t, `{"name":"vote","count":1}`, payload)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}
