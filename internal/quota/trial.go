package quota

import (
	"context"
	"strconv"
	"time"

	"github.com/inkproof/stencil-gateway/internal/config"
	"github.com/inkproof/stencil-gateway/internal/identity"
	"github.com/inkproof/stencil-gateway/internal/kvstore"
)

// TrialCounter is the long-horizon quota gate. Two policies exist in
// production:
//
//   - lifetime: one counter per scope under a long TTL set on first use; the
//     quota never resets while the scope stays active, and silently refreshes
//     after a long idle period.
//   - rolling_window: the counter's TTL is the window length; when the key
//     expires the next request starts a fresh window at 1.
//
// Either way the increment happens before the comparison, so every call
// consumes one unit. Rejected calls keep incrementing the stored counter;
// there is no free re-check.
type TrialCounter struct {
	store  kvstore.Store
	policy string
	limit  int
	ttl    time.Duration
	window time.Duration

	now func() time.Time
}

func NewTrialCounter(store kvstore.Store, cfg config.QuotaConfig, opts ...Option) *TrialCounter {
	o := applyOptions(opts)
	return &TrialCounter{
		store:  store,
		policy: cfg.TrialPolicy,
		limit:  cfg.TrialLimit,
		ttl:    cfg.TrialTTL,
		window: cfg.WindowLength,
		now:    o.now,
	}
}

// Consume increments the scope's counter and reports the outcome. first is
// true when this increment created the key (the lead recorder keys
// first_seen off it). On rejection, used is clamped to the limit.
//
// The TTL is set only on the increment that returned 1. Setting it on every
// call would push the expiry forward forever and the window would never
// close.
func (t *TrialCounter) Consume(ctx context.Context, scope identity.Scope) (used int64, first, ok bool, err error) {
	key := trialUsedKey(scope)

	n, err := t.store.Incr(ctx, key)
	if err != nil {
		return 0, false, false, err
	}

	if n == 1 {
		switch t.policy {
		case config.PolicyRollingWindow:
			if err := t.store.Expire(ctx, key, t.window); err != nil {
				return 0, false, false, err
			}
			startedAt := strconv.FormatInt(t.now().UnixMilli(), 10)
			if err := t.store.Set(ctx, windowStartKey(scope), startedAt, t.window); err != nil {
				return 0, false, false, err
			}
		default: // lifetime
			if err := t.store.Expire(ctx, key, t.ttl); err != nil {
				return 0, false, false, err
			}
		}
	}

	if n > int64(t.limit) {
		return int64(t.limit), n == 1, false, nil
	}
	return n, n == 1, true, nil
}

// Limit returns the configured trial limit.
func (t *TrialCounter) Limit() int {
	return t.limit
}
