package config

import (
	"sync"

	"github.com/ScGaSe/smartlogistics-sub001/channel"
)

// Provider serves the endpoint section to the channels. Updates apply on the
// next dial.
type Provider struct {
	mu      sync.RWMutex
	baseURL string
	token   string
}

var _ channel.EndpointProvider = (*Provider)(nil)

// NewProvider creates a Provider seeded from cfg
func NewProvider(cfg EndpointConfig) *Provider {
	return &Provider{baseURL: cfg.BaseURL, token: cfg.Token}
}

// BaseURL implements channel.EndpointProvider
func (p *Provider) BaseURL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.baseURL
}

// Token implements channel.EndpointProvider
func (p *Provider) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

// SetBaseURL replaces the base origin
func (p *Provider) SetBaseURL(u string) {
	p.mu.Lock()
	p.baseURL = u
	p.mu.Unlock()
}

// SetToken replaces the auth token; "" clears it
func (p *Provider) SetToken(token string) {
	p.mu.Lock()
	p.token = token
	p.mu.Unlock()
}
