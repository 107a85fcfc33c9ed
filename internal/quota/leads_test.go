package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inkproof/stencil-gateway/internal/identity"
)

func testIdentity() identity.Identity {
	return identity.Identity{
		Scope:    phoneScope(),
		Phone:    "5511999998888",
		DeviceID: "abcdefgh",
	}
}

func TestRecordFirstSeenSetOnce(t *testing.T) {
	store, mr := newTestStore(t)
	leads := NewLeadRecorder(store, 365*24*time.Hour, zap.NewNop())
	ctx := context.Background()
	id := testIdentity()

	leads.now = func() time.Time { return time.UnixMilli(1000) }
	leads.Record(ctx, id, true)

	leads.now = func() time.Time { return time.UnixMilli(2000) }
	leads.Record(ctx, id, false)
	leads.Record(ctx, id, false)

	key := leadKey(id.Scope)
	assert.Equal(t, "1000", mr.HGet(key, "first_seen"), "first_seen never overwritten")
	assert.Equal(t, "2000", mr.HGet(key, "last_seen"))
	assert.Equal(t, "5511999998888", mr.HGet(key, "phone"))
	assert.Equal(t, "abcdefgh", mr.HGet(key, "device_id"))
}

func TestRecordRefreshesTTL(t *testing.T) {
	store, mr := newTestStore(t)
	leads := NewLeadRecorder(store, 24*time.Hour, zap.NewNop())
	ctx := context.Background()
	id := testIdentity()

	leads.Record(ctx, id, true)
	mr.FastForward(12 * time.Hour)
	leads.Record(ctx, id, false)

	require.Equal(t, 24*time.Hour, mr.TTL(leadKey(id.Scope)))
}

func TestRecordSwallowsStoreFailure(t *testing.T) {
	store, mr := newTestStore(t)
	leads := NewLeadRecorder(store, 24*time.Hour, zap.NewNop())
	mr.Close()

	// Must not panic or return anything; failures here are analytics-only.
	leads.Record(context.Background(), testIdentity(), true)
}
