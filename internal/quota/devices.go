package quota

import (
	"context"
	"time"

	"github.com/inkproof/stencil-gateway/internal/identity"
	"github.com/inkproof/stencil-gateway/internal/kvstore"
)

// DeviceRegistry tracks the distinct device ids seen under a scope and
// enforces the configured cap. Devices already in the set are always
// re-admitted, even when the set has grown past the cap.
type DeviceRegistry struct {
	store kvstore.Store
	cap   int
	ttl   time.Duration
}

func NewDeviceRegistry(store kvstore.Store, cap int, ttl time.Duration) *DeviceRegistry {
	return &DeviceRegistry{store: store, cap: cap, ttl: ttl}
}

// IsKnown reports whether the device has been seen under the scope.
func (r *DeviceRegistry) IsKnown(ctx context.Context, scope identity.Scope, deviceID string) (bool, error) {
	return r.store.SIsMember(ctx, deviceSetKey(scope), deviceID)
}

// Count returns the number of distinct devices registered under the scope.
func (r *DeviceRegistry) Count(ctx context.Context, scope identity.Scope) (int64, error) {
	return r.store.SCard(ctx, deviceSetKey(scope))
}

// Register adds the device to the scope's set and refreshes the set's TTL.
// Adding a known device is a no-op apart from the TTL refresh; the registry
// only delays cleanup of scopes that are still active.
func (r *DeviceRegistry) Register(ctx context.Context, scope identity.Scope, deviceID string) error {
	key := deviceSetKey(scope)
	if err := r.store.SAdd(ctx, key, deviceID); err != nil {
		return err
	}
	return r.store.Expire(ctx, key, r.ttl)
}

// Admit runs the check-then-register step for one request. A new device is
// rejected (and not registered) when the scope is already at the cap.
//
// Membership, cardinality and add are three separate store calls with no
// transaction across them: two concurrent requests for two different new
// devices at cap-1 can both pass the check and both register, leaving the
// set one over the cap. Accepted as a best-effort race; a distributed lock
// here is not worth the dependency.
func (r *DeviceRegistry) Admit(ctx context.Context, scope identity.Scope, deviceID string) (bool, error) {
	known, err := r.IsKnown(ctx, scope, deviceID)
	if err != nil {
		return false, err
	}
	if !known {
		count, err := r.Count(ctx, scope)
		if err != nil {
			return false, err
		}
		if count >= int64(r.cap) {
			return false, nil
		}
	}
	if err := r.Register(ctx, scope, deviceID); err != nil {
		return false, err
	}
	return true, nil
}

// Cap returns the configured device cap.
func (r *DeviceRegistry) Cap() int {
	return r.cap
}
