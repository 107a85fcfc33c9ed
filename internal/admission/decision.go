// Package admission orchestrates the quota gates into a single ordered
// pipeline: identity, hourly burst, device cap, trial counter. The first
// failing gate short-circuits the rest. The pipeline never calls the
// generation backend; an admitted decision is handed back to the transport
// layer, which owns that call.
package admission

import (
	"net/http"

	"github.com/inkproof/stencil-gateway/internal/identity"
)

// Code identifies why a request was rejected.
type Code string

const (
	CodeInvalidIdentity Code = "INVALID_IDENTITY"
	CodeHourlyLimit     Code = "HOURLY_LIMIT"
	CodeDeviceLimit     Code = "DEVICE_LIMIT"
	CodeTrialLimit      Code = "TRIAL_LIMIT"
)

// HTTPStatus maps a rejection code to its response status. Quota-style
// rejections are all 429; only a malformed identity is the client's 401.
func (c Code) HTTPStatus() int {
	if c == CodeInvalidIdentity {
		return http.StatusUnauthorized
	}
	return http.StatusTooManyRequests
}

// Message returns the client-facing description for a rejection code.
func (c Code) Message() string {
	switch c {
	case CodeInvalidIdentity:
		return "Missing or invalid identity"
	case CodeHourlyLimit:
		return "Hourly limit reached"
	case CodeDeviceLimit:
		return "Device limit reached"
	case CodeTrialLimit:
		return "Trial limit reached"
	default:
		return "Rejected"
	}
}

// Decision is the pipeline's output. Used and Limit describe the gate that
// decided (trial counts for admitted requests, the rejecting gate's counts
// otherwise); both are clamped so the true counter value past a limit is
// never exposed. HourlyUsed/HourlyLimit ride along for the response
// envelope.
type Decision struct {
	Admitted bool
	Scope    identity.Scope
	Code     Code

	Used  int
	Limit int

	HourlyUsed  int
	HourlyLimit int
}
