package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHourlyLimiterAdmitsUpToCeiling(t *testing.T) {
	store, _ := newTestStore(t)
	limiter := NewHourlyLimiter(store, 40, time.Hour)
	limiter.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	ctx := context.Background()
	scope := phoneScope()

	for i := 1; i <= 40; i++ {
		used, ok, err := limiter.Allow(ctx, scope)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(i), used)
	}

	used, ok, err := limiter.Allow(ctx, scope)
	require.NoError(t, err)
	assert.False(t, ok, "request 41 in the same bucket is rejected")
	assert.Equal(t, int64(40), used, "used is clamped to the ceiling")
}

func TestHourlyLimiterBucketsAreIndependent(t *testing.T) {
	store, _ := newTestStore(t)
	limiter := NewHourlyLimiter(store, 2, time.Hour)
	ctx := context.Background()
	scope := phoneScope()

	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		_, ok, err := limiter.Allow(ctx, scope)
		require.NoError(t, err)
		require.True(t, ok)
	}
	_, ok, err := limiter.Allow(ctx, scope)
	require.NoError(t, err)
	require.False(t, ok)

	// Next wall-clock hour starts a fresh counter.
	now = now.Add(time.Hour)
	used, ok, err := limiter.Allow(ctx, scope)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), used)
}

func TestHourlyBucketExpiresOnFixedSchedule(t *testing.T) {
	store, mr := newTestStore(t)
	limiter := NewHourlyLimiter(store, 40, time.Hour)
	limiter.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	ctx := context.Background()
	scope := phoneScope()

	_, _, err := limiter.Allow(ctx, scope)
	require.NoError(t, err)
	// Later hits must not push the TTL forward.
	_, _, err = limiter.Allow(ctx, scope)
	require.NoError(t, err)

	mr.FastForward(time.Hour + time.Second)

	bucket := int64(1_700_000_000) / 3600
	exists := mr.Exists(hourBucketKey(scope, bucket))
	assert.False(t, exists, "bucket key self-expired at bucket end")
}
