// Package identity resolves the quota scope for a request from its raw
// identity attributes. Resolution is a pure function of the attributes and
// the configured mode list; it touches no shared state.
package identity

import (
	"errors"
	"strings"

	"github.com/inkproof/stencil-gateway/internal/config"
)

// ErrInvalidIdentity is returned when the attributes do not satisfy the
// deployment's identity mode requirements.
var ErrInvalidIdentity = errors.New("missing or invalid identity")

// ScopeType names the identity dimension a scope is keyed on.
type ScopeType string

const (
	ScopePhone   ScopeType = "phone"
	ScopeAccount ScopeType = "account"
	ScopeDevice  ScopeType = "device"
)

// Scope is the unit of quota accounting. Exactly one scope is active per
// request.
type Scope struct {
	Type ScopeType
	ID   string
}

// Key returns the scope's store-key fragment, e.g. "phone:5511999998888".
func (s Scope) Key() string {
	return string(s.Type) + ":" + s.ID
}

// Attrs carries the raw header-equivalent identity strings. Any of them may
// be empty.
type Attrs struct {
	Phone     string
	DeviceID  string
	AccountID string
}

// Identity is the resolved scope plus the normalized device id, which is
// always required so the device registry can be consulted regardless of the
// scope mode.
type Identity struct {
	Scope     Scope
	Phone     string
	DeviceID  string
	AccountID string
}

// Resolver validates and normalizes identity attributes against the
// configured mode list.
type Resolver struct {
	cfg config.QuotaConfig
}

func NewResolver(cfg config.QuotaConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve produces the active scope for the request. Modes are tried in
// configured order; the first that yields a scope wins. A present-but-
// malformed phone fails resolution outright rather than falling through,
// so a client cannot dodge its phone scope by garbling the header. The
// device id is validated unconditionally.
func (r *Resolver) Resolve(attrs Attrs) (Identity, error) {
	deviceID := strings.TrimSpace(attrs.DeviceID)
	if len(deviceID) < r.cfg.DeviceMinLen {
		return Identity{}, ErrInvalidIdentity
	}

	phone := digitsOnly(attrs.Phone)
	accountID := strings.TrimSpace(attrs.AccountID)
	if len(accountID) > r.cfg.AccountMaxLen {
		accountID = accountID[:r.cfg.AccountMaxLen]
	}

	for _, mode := range r.cfg.IdentityModes {
		switch mode {
		case config.ModePhone:
			if attrs.Phone == "" && phone == "" {
				continue
			}
			if !r.validPhone(phone) {
				return Identity{}, ErrInvalidIdentity
			}
			return Identity{
				Scope:     Scope{Type: ScopePhone, ID: phone},
				Phone:     phone,
				DeviceID:  deviceID,
				AccountID: accountID,
			}, nil
		case config.ModeAccount:
			if accountID == "" {
				continue
			}
			return Identity{
				Scope:     Scope{Type: ScopeAccount, ID: accountID},
				Phone:     phone,
				DeviceID:  deviceID,
				AccountID: accountID,
			}, nil
		case config.ModeDevice:
			return Identity{
				Scope:     Scope{Type: ScopeDevice, ID: deviceID},
				Phone:     phone,
				DeviceID:  deviceID,
				AccountID: accountID,
			}, nil
		}
	}
	return Identity{}, ErrInvalidIdentity
}

func (r *Resolver) validPhone(phone string) bool {
	if !strings.HasPrefix(phone, r.cfg.PhonePrefix) {
		return false
	}
	return len(phone) >= r.cfg.PhoneMinLen && len(phone) <= r.cfg.PhoneMaxLen
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}
