package redisx

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestClaimOrderKey(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()

	claimed, id, err := ClaimOrderKey(ctx, rdb, 1, "k1")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Zero(t, id)

	// second request while the first is still placing the order
	claimed, id, err = ClaimOrderKey(ctx, rdb, 1, "k1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Zero(t, id)

	require.NoError(t, RememberOrder(ctx, rdb, 1, "k1", 42))
	claimed, id, err = ClaimOrderKey(ctx, rdb, 1, "k1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, TTLIdempotency, mr.TTL(fmt.Sprintf(KeyIdemOrderCreate, 1, "k1")))

	// keys are per user
	claimed, _, err = ClaimOrderKey(ctx, rdb, 2, "k1")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestReleaseOrderKey(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	claimed, _, err := ClaimOrderKey(ctx, rdb, 1, "k1")
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, ReleaseOrderKey(ctx, rdb, 1, "k1"))

	claimed, _, err = ClaimOrderKey(ctx, rdb, 1, "k1")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestClaimExpiresWhenHolderDies(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()

	_, _, err := ClaimOrderKey(ctx, rdb, 1, "k1")
	require.NoError(t, err)
	mr.FastForward(TTLIdemInFlight + time.Second)

	claimed, _, err := ClaimOrderKey(ctx, rdb, 1, "k1")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestStatusCacheRoundTrip(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	c := StatusCache{R: rdb}

	_, ok, err := c.Get(ctx, 9)
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, c.Set(ctx, StatusEntry{OrderID: 9, UserID: 3, OrderNumber: "ORD-00000009", Status: "shipped", UpdatedAt: at}))
	e, ok, err := c.Get(ctx, 9)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), e.UserID)
	assert.Equal(t, "shipped", e.Status)
	assert.True(t, at.Equal(e.UpdatedAt))

	mr.FastForward(TTLStatusCache + time.Second)
	_, ok, err = c.Get(ctx, 9)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarker(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	m := Marker{R: rdb}

	first, err := m.Once(ctx, "dedup:w:e1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)
	first, err = m.Once(ctx, "dedup:w:e1", time.Minute)
	require.NoError(t, err)
	assert.False(t, first)

	require.NoError(t, m.Forget(ctx, "dedup:w:e1"))
	first, err = m.Once(ctx, "dedup:w:e1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)
}
