package channel

import (
	"fmt"
	"strings"

	"github.com/ScGaSe/smartlogistics-sub001/errors"
)

// Kind identifies a channel variant
type Kind int

// Channel kinds
const (
	KindNotifications Kind = iota
	KindTraffic
	KindLocationShare
)

// String returns the kind name used in logs, metrics and health
func (k Kind) String() string {
	switch k {
	case KindNotifications:
		return "notifications"
	case KindTraffic:
		return "traffic"
	case KindLocationShare:
		return "location_share"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind name
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Params carries the session identity of a channel
type Params struct {
	UserID  string `json:"user_id,omitempty"`
	ShareID string `json:"share_id,omitempty"`
}

// Validate checks that params carry the identity kind needs
func (k Kind) Validate(p Params) error {
	switch k {
	case KindNotifications:
		if strings.TrimSpace(p.UserID) == "" {
			return errors.WrapInvalid(fmt.Errorf("%w: user id", errors.ErrMissingConfig),
				"channel", "Validate", "check notification params")
		}
	case KindLocationShare:
		if strings.TrimSpace(p.ShareID) == "" {
			return errors.WrapInvalid(fmt.Errorf("%w: share id", errors.ErrMissingConfig),
				"channel", "Validate", "check location share params")
		}
	case KindTraffic:
	default:
		return errors.WrapInvalid(fmt.Errorf("unknown channel kind %d", int(k)),
			"channel", "Validate", "check kind")
	}
	return nil
}

// Path returns the endpoint path for the session
func (k Kind) Path(p Params) string {
	switch k {
	case KindNotifications:
		return "/ws/user/" + escape(p.UserID)
	case KindLocationShare:
		return "/ws/share/" + escape(p.ShareID)
	default:
		return "/ws/traffic"
	}
}

// UsesToken reports whether the handshake carries the bearer token
func (k Kind) UsesToken() bool {
	return k == KindLocationShare
}
