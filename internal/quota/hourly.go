package quota

import (
	"context"
	"time"

	"github.com/inkproof/stencil-gateway/internal/identity"
	"github.com/inkproof/stencil-gateway/internal/kvstore"
)

// HourlyLimiter is the burst gate: a fixed-window counter per scope keyed by
// the wall-clock bucket. It runs before every other check because it is the
// cheapest anti-bot gate.
type HourlyLimiter struct {
	store  kvstore.Store
	limit  int
	bucket time.Duration

	// now is swappable so tests can pin the bucket.
	now func() time.Time
}

func NewHourlyLimiter(store kvstore.Store, limit int, bucket time.Duration, opts ...Option) *HourlyLimiter {
	o := applyOptions(opts)
	return &HourlyLimiter{store: store, limit: limit, bucket: bucket, now: o.now}
}

// Allow consumes one unit of the current bucket. The bucket TTL is set only
// on the increment that created the key, so the bucket expires on a fixed
// schedule no matter how much traffic follows. On rejection, used is clamped
// to the limit; the true counter value past the limit is never exposed.
func (l *HourlyLimiter) Allow(ctx context.Context, scope identity.Scope) (used int64, ok bool, err error) {
	bucket := l.now().Unix() / int64(l.bucket.Seconds())
	key := hourBucketKey(scope, bucket)

	n, err := l.store.Incr(ctx, key)
	if err != nil {
		return 0, false, err
	}
	if n == 1 {
		if err := l.store.Expire(ctx, key, l.bucket); err != nil {
			return 0, false, err
		}
	}
	if n > int64(l.limit) {
		return int64(l.limit), false, nil
	}
	return n, true, nil
}

// Limit returns the configured hourly ceiling.
func (l *HourlyLimiter) Limit() int {
	return l.limit
}
