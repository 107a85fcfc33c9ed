package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkproof/stencil-gateway/internal/config"
)

func lifetimeConfig(limit int) config.QuotaConfig {
	return config.QuotaConfig{
		TrialPolicy: config.PolicyLifetime,
		TrialLimit:  limit,
		TrialTTL:    180 * 24 * time.Hour,
	}
}

func rollingConfig(limit int, window time.Duration) config.QuotaConfig {
	return config.QuotaConfig{
		TrialPolicy:  config.PolicyRollingWindow,
		TrialLimit:   limit,
		WindowLength: window,
	}
}

func TestConsumeReturnsSequentialCounts(t *testing.T) {
	store, _ := newTestStore(t)
	trial := NewTrialCounter(store, lifetimeConfig(5))
	ctx := context.Background()
	scope := phoneScope()

	for i := 1; i <= 5; i++ {
		used, first, ok, err := trial.Consume(ctx, scope)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(i), used)
		assert.Equal(t, i == 1, first)
	}

	used, _, ok, err := trial.Consume(ctx, scope)
	require.NoError(t, err)
	assert.False(t, ok, "admission fails at limit+1")
	assert.Equal(t, int64(5), used, "used is clamped to the limit")
}

func TestRejectedCallsStillConsume(t *testing.T) {
	store, mr := newTestStore(t)
	trial := NewTrialCounter(store, lifetimeConfig(2))
	ctx := context.Background()
	scope := phoneScope()

	for i := 0; i < 5; i++ {
		_, _, _, err := trial.Consume(ctx, scope)
		require.NoError(t, err)
	}

	raw, err := mr.Get(trialUsedKey(scope))
	require.NoError(t, err)
	assert.Equal(t, "5", raw, "stored counter keeps incrementing past the limit")
}

func TestLifetimeTTLSetOnlyOnFirstIncrement(t *testing.T) {
	store, mr := newTestStore(t)
	trial := NewTrialCounter(store, lifetimeConfig(15))
	ctx := context.Background()
	scope := phoneScope()

	_, _, _, err := trial.Consume(ctx, scope)
	require.NoError(t, err)
	ttlAfterFirst := mr.TTL(trialUsedKey(scope))

	mr.FastForward(24 * time.Hour)
	_, _, _, err = trial.Consume(ctx, scope)
	require.NoError(t, err)

	assert.Equal(t, ttlAfterFirst-24*time.Hour, mr.TTL(trialUsedKey(scope)),
		"second increment must not push the TTL forward")
}

func TestRollingWindowRestartsAfterExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	trial := NewTrialCounter(store, rollingConfig(3, 25*time.Hour))
	ctx := context.Background()
	scope := phoneScope()

	for i := 0; i < 4; i++ {
		_, _, _, err := trial.Consume(ctx, scope)
		require.NoError(t, err)
	}
	_, _, ok, err := trial.Consume(ctx, scope)
	require.NoError(t, err)
	require.False(t, ok, "window exhausted")

	mr.FastForward(25*time.Hour + time.Minute)

	used, first, ok, err := trial.Consume(ctx, scope)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, first)
	assert.Equal(t, int64(1), used, "fresh window starts at 1, not at the exhausted value")
}

func TestRollingWindowRecordsStart(t *testing.T) {
	store, mr := newTestStore(t)
	trial := NewTrialCounter(store, rollingConfig(3, 25*time.Hour))
	trial.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	ctx := context.Background()
	scope := phoneScope()

	_, _, _, err := trial.Consume(ctx, scope)
	require.NoError(t, err)

	start, err := mr.Get(windowStartKey(scope))
	require.NoError(t, err)
	assert.Equal(t, "1700000000000", start)
	assert.Equal(t, 25*time.Hour, mr.TTL(windowStartKey(scope)))
}
