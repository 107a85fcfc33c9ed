package quota

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/inkproof/stencil-gateway/internal/identity"
	"github.com/inkproof/stencil-gateway/internal/kvstore"
)

// LeadRecorder upserts a lightweight contact record per scope. It is
// analytics, not enforcement: every failure is logged and swallowed so a
// broken lead write can never block admission.
type LeadRecorder struct {
	store  kvstore.Store
	ttl    time.Duration
	logger *zap.Logger

	now func() time.Time
}

func NewLeadRecorder(store kvstore.Store, ttl time.Duration, logger *zap.Logger, opts ...Option) *LeadRecorder {
	o := applyOptions(opts)
	return &LeadRecorder{store: store, ttl: ttl, logger: logger, now: o.now}
}

// Record upserts the lead for the resolved identity. first_seen is written
// only on the scope's first trial increment and never overwritten after
// that; last_seen is updated on every later call. The record TTL is
// refreshed every time.
func (r *LeadRecorder) Record(ctx context.Context, id identity.Identity, first bool) {
	key := leadKey(id.Scope)
	ts := strconv.FormatInt(r.now().UnixMilli(), 10)

	fields := make(map[string]string, 4)
	if first {
		fields["first_seen"] = ts
	} else {
		fields["last_seen"] = ts
	}
	if id.Phone != "" {
		fields["phone"] = id.Phone
	}
	if id.DeviceID != "" {
		fields["device_id"] = id.DeviceID
	}
	if id.AccountID != "" {
		fields["account_id"] = id.AccountID
	}

	if err := r.store.HSet(ctx, key, fields); err != nil {
		r.logger.Warn("lead record write failed", zap.String("scope", id.Scope.Key()), zap.Error(err))
		return
	}
	if err := r.store.Expire(ctx, key, r.ttl); err != nil {
		r.logger.Warn("lead record expire failed", zap.String("scope", id.Scope.Key()), zap.Error(err))
	}
}
