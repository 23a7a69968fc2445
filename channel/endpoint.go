package channel

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ScGaSe/smartlogistics-sub001/errors"
)

// DefaultBaseURL is used when no usable base origin is configured
const DefaultBaseURL = "ws://localhost:8000"

// EndpointProvider supplies the base origin and auth token. It is consulted
// on every dial, so runtime changes apply to the next attempt.
type EndpointProvider interface {
	BaseURL() string
	// Token returns the current auth token, or "" when there is none
	Token() string
}

// StaticEndpoint is an EndpointProvider with fixed values
type StaticEndpoint struct {
	URL       string
	AuthToken string
}

// BaseURL implements EndpointProvider
func (s StaticEndpoint) BaseURL() string { return s.URL }

// Token implements EndpointProvider
func (s StaticEndpoint) Token() string { return s.AuthToken }

// Endpoint is a fully resolved dial target
type Endpoint struct {
	Kind   Kind
	Params Params
	URL    string
	Token  string
}

// ResolveEndpoint joins the provider's base origin with the kind's path.
// A missing or invalid base falls back to DefaultBaseURL with a warning.
func ResolveEndpoint(p EndpointProvider, kind Kind, params Params, logger *slog.Logger) Endpoint {
	if logger == nil {
		logger = slog.Default()
	}

	var raw, token string
	if p != nil {
		raw = p.BaseURL()
		token = p.Token()
	}

	base, err := normalizeBase(raw)
	if err != nil {
		logger.Warn("endpoint base not usable, falling back to default",
			"kind", kind.String(), "default", DefaultBaseURL, "error", err)
		base = DefaultBaseURL
	}

	ep := Endpoint{
		Kind:   kind,
		Params: params,
		URL:    base + kind.Path(params),
	}
	if kind.UsesToken() {
		ep.Token = strings.TrimSpace(token)
	}
	return ep
}

// normalizeBase returns a ws(s) origin without a trailing slash
func normalizeBase(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.WrapInvalid(errors.ErrMissingConfig, "channel", "normalizeBase", "read base url")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.WrapInvalid(err, "channel", "normalizeBase", "parse base url")
	}

	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
		u.Scheme = strings.ToLower(u.Scheme)
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", errors.WrapInvalid(fmt.Errorf("%w: scheme %q", errors.ErrInvalidConfig, u.Scheme),
			"channel", "normalizeBase", "check scheme")
	}
	if u.Host == "" {
		return "", errors.WrapInvalid(fmt.Errorf("%w: empty host", errors.ErrInvalidConfig),
			"channel", "normalizeBase", "check host")
	}

	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/"), nil
}

func escape(id string) string {
	return url.PathEscape(strings.TrimSpace(id))
}
