package lease_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/autoinvite/internal/lease"
)

func TestMemoryLockerExclusive(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	m := lease.NewMemoryLocker()
	m.Now = func() time.Time { return now }

	first, ok, err := m.Acquire(ctx, 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = m.Acquire(ctx, 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must not get the lease")

	_, ok, err = m.Acquire(ctx, 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "other campaigns are independent")

	require.NoError(t, m.Release(ctx, first))
	_, ok, err = m.Acquire(ctx, 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLockerExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	m := lease.NewMemoryLocker()
	m.Now = func() time.Time { return now }

	stale, ok, _ := m.Acquire(ctx, 1, time.Minute)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	fresh, ok, err := m.Acquire(ctx, 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "expired lease can be taken over")

	// the stale holder releasing late must not drop the new lease
	require.NoError(t, m.Release(ctx, stale))
	_, ok, _ = m.Acquire(ctx, 1, time.Minute)
	assert.False(t, ok)

	require.NoError(t, m.Release(ctx, fresh))
}

func TestMemoryLockerExtend(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	m := lease.NewMemoryLocker()
	m.Now = func() time.Time { return now }

	l, ok, err := m.Acquire(ctx, 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(50 * time.Second)
	l, err = m.Extend(ctx, l, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), l.ExpiresAt)

	// past the original expiry but inside the extended one
	now = now.Add(30 * time.Second)
	_, ok, _ = m.Acquire(ctx, 1, time.Minute)
	assert.False(t, ok)

	now = now.Add(time.Minute)
	_, err = m.Extend(ctx, l, time.Minute)
	assert.ErrorIs(t, err, lease.ErrLost, "an expired lease cannot be revived")
}

func TestMemoryLockerExtendAfterTakeover(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	m := lease.NewMemoryLocker()
	m.Now = func() time.Time { return now }

	stale, ok, _ := m.Acquire(ctx, 1, time.Minute)
	require.True(t, ok)
	now = now.Add(2 * time.Minute)
	fresh, ok, _ := m.Acquire(ctx, 1, time.Minute)
	require.True(t, ok)

	_, err := m.Extend(ctx, stale, time.Hour)
	assert.ErrorIs(t, err, lease.ErrLost)

	got, err := m.Extend(ctx, fresh, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, fresh.Token, got.Token)
}

func TestRedisLockerIntegration(t *testing.T) {
	addr := os.Getenv("AUTOINVITE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("AUTOINVITE_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	r := lease.NewRedisLocker(client)
	l, ok, err := r.Acquire(ctx, 9001, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = r.Acquire(ctx, 9001, 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	l, err = r.Extend(ctx, l, 10*time.Second)
	require.NoError(t, err)
	ttl, err := client.PTTL(ctx, "autoinvite:lease:campaign:9001").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 5*time.Second)

	_, err = r.Extend(ctx, lease.Lease{CampaignID: 9001, Token: "someone-else"}, time.Minute)
	assert.ErrorIs(t, err, lease.ErrLost)

	require.NoError(t, r.Release(ctx, l))
	l2, ok, err := r.Acquire(ctx, 9001, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, r.Release(ctx, l2))
}
