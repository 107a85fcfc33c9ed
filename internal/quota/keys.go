// Package quota implements the trial-quota and abuse-prevention checks:
// device cap, hourly burst control, trial counter and lead records. All
// state lives in the shared counter store; the package keeps nothing in
// process, so concurrent gateway replicas see the same counters.
package quota

import (
	"fmt"

	"github.com/inkproof/stencil-gateway/internal/identity"
)

// Store key patterns. Scope keys embed the scope type so phone, account and
// device scopes never collide, e.g. "trial:used:phone:5511999998888".
const (
	deviceSetKeyPattern   = "trial:devices:%s"
	trialUsedKeyPattern   = "trial:used:%s"
	windowStartKeyPattern = "trial:window:%s"
	hourBucketKeyPattern  = "rl:%s:%d"
	leadKeyPattern        = "lead:%s"
)

func deviceSetKey(scope identity.Scope) string {
	return fmt.Sprintf(deviceSetKeyPattern, scope.Key())
}

func trialUsedKey(scope identity.Scope) string {
	return fmt.Sprintf(trialUsedKeyPattern, scope.Key())
}

func windowStartKey(scope identity.Scope) string {
	return fmt.Sprintf(windowStartKeyPattern, scope.Key())
}

func hourBucketKey(scope identity.Scope, bucket int64) string {
	return fmt.Sprintf(hourBucketKeyPattern, scope.Key(), bucket)
}

func leadKey(scope identity.Scope) string {
	return fmt.Sprintf(leadKeyPattern, scope.Key())
}
