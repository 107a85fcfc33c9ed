package quota

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/inkproof/stencil-gateway/internal/identity"
	"github.com/inkproof/stencil-gateway/internal/kvstore"
)

func newTestStore(t *testing.T) (kvstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return kvstore.NewRedisStoreFromClient(client), mr
}

func phoneScope() identity.Scope {
	return identity.Scope{Type: identity.ScopePhone, ID: "5511999998888"}
}
