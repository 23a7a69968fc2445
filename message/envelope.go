package message

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/ScGaSe/smartlogistics-sub001/errors"
)

// ErrControlFrame marks keepalive frames that carry no event
var ErrControlFrame = stderrors.New("control frame")

var controlTypes = map[string]struct{}{
	"ping":      {},
	"pong":      {},
	"heartbeat": {},
}

// Envelope is the outer wire record shared by every channel
type Envelope struct {
	// Type is the lower-cased discriminator
	Type string `json:"type"`
}

// ParseEnvelope decodes the discriminator of a frame.
// Invalid JSON, a non-object frame or a missing type is an Invalid error;
// control frames return ErrControlFrame.
func ParseEnvelope(data []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Envelope{}, errors.WrapInvalid(errors.ErrInvalidData, "message", "ParseEnvelope", "frame is not a JSON object")
	}

	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Envelope{}, errors.WrapInvalid(err, "message", "ParseEnvelope", "unmarshal envelope")
	}

	env.Type = strings.ToLower(strings.TrimSpace(env.Type))
	if env.Type == "" {
		return Envelope{}, errors.WrapInvalid(errors.ErrMissingType, "message", "ParseEnvelope", "validate envelope")
	}

	if _, ok := controlTypes[env.Type]; ok {
		return env, ErrControlFrame
	}

	return env, nil
}

// IsControl reports whether err came from a control frame
func IsControl(err error) bool {
	return stderrors.Is(err, ErrControlFrame)
}

// DropReason classifies a decode error for logs and metrics
func DropReason(err error) string {
	switch {
	case err == nil:
		return ""
	case IsControl(err):
		return "control"
	case stderrors.Is(err, errors.ErrMissingType):
		return "missing_type"
	case stderrors.Is(err, errors.ErrUnknownType):
		return "unknown_type"
	default:
		return "invalid"
	}
}
