package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/ScGaSe/smartlogistics-sub001/bus"
	"github.com/ScGaSe/smartlogistics-sub001/channel"
	"github.com/ScGaSe/smartlogistics-sub001/errors"
	"github.com/ScGaSe/smartlogistics-sub001/metric"
	"github.com/ScGaSe/smartlogistics-sub001/natsclient"
)

// DefaultPrefix is the subject prefix when none is configured
const DefaultPrefix = "gatelink"

// Publisher sends one message on a subject
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(ctx context.Context, subject string, data []byte) error

// Publish implements Publisher
func (f PublisherFunc) Publish(ctx context.Context, subject string, data []byte) error {
	return f(ctx, subject, data)
}

// JetStream publishes through the client's JetStream context and waits for
// the stream ack
func JetStream(c *natsclient.Client) Publisher {
	return PublisherFunc(c.PublishToStream)
}

// Source is a channel whose session-stamped events can be relayed
type Source interface {
	SubscribeSession() bus.Subscription
	Unsubscribe(ch bus.Subscription)
}

// Relay forwards events from attached channels to a Publisher
type Relay struct {
	pub            Publisher
	prefix         string
	publishTimeout time.Duration
	logger         *slog.Logger
	metrics        *metric.Metrics

	mu      sync.Mutex
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	ctx     context.Context
	sources []attached
}

type attached struct {
	src Source
	sub bus.Subscription
}

// Option configures a Relay
type Option func(*Relay)

// WithPrefix sets the subject prefix
func WithPrefix(prefix string) Option {
	return func(r *Relay) {
		if p := strings.Trim(prefix, ". "); p != "" {
			r.prefix = p
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics counts relay outcomes
func WithMetrics(m *metric.Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

// WithPublishTimeout bounds each publish
func WithPublishTimeout(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.publishTimeout = d
		}
	}
}

// New creates a relay. Call Start, then Attach channels.
func New(pub Publisher, opts ...Option) (*Relay, error) {
	if pub == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Relay", "New", "check publisher")
	}
	r := &Relay{
		pub:            pub,
		prefix:         DefaultPrefix,
		publishTimeout: 5 * time.Second,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "relay")
	return r, nil
}

// Start enables forwarding until ctx is done or Stop is called
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Relay", "Start", "check state")
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	return nil
}

// Attach forwards every event of src. The relay must be started.
func (r *Relay) Attach(src Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx == nil || r.ctx.Err() != nil {
		return errors.WrapInvalid(errors.ErrNotStarted, "Relay", "Attach", "check state")
	}

	sub := src.SubscribeSession()
	r.sources = append(r.sources, attached{src: src, sub: sub})

	r.wg.Add(1)
	go r.forward(r.ctx, sub)
	return nil
}

// Stop detaches every source and waits for in-flight publishes
func (r *Relay) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	sources := r.sources
	r.sources = nil
	r.mu.Unlock()

	for _, a := range sources {
		a.src.Unsubscribe(a.sub)
	}
	r.wg.Wait()
}

func (r *Relay) forward(ctx context.Context, sub bus.Subscription) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-sub:
			if !ok {
				return
			}
			if event, ok := v.(channel.Event); ok {
				r.publish(ctx, event)
			}
		}
	}
}

// publish sends event on the subject of the session that produced it
func (r *Relay) publish(ctx context.Context, event channel.Event) {
	kind := event.Kind.String()

	data, err := json.Marshal(event.Payload)
	if err != nil {
		r.metrics.RecordRelay(kind, err)
		r.logger.Warn("event not relayed", "channel", kind, "error", err)
		return
	}

	subject := Subject(r.prefix, event.Kind, event.Params)
	ctx, cancel := context.WithTimeout(ctx, r.publishTimeout)
	defer cancel()

	err = r.pub.Publish(ctx, subject, data)
	r.metrics.RecordRelay(kind, err)
	if err != nil {
		r.logger.Warn("relay publish failed", "subject", subject, "error", err)
		return
	}
	r.logger.Debug("event relayed", "subject", subject, "bytes", len(data))
}

// Subject returns the relay subject for a channel session
func Subject(prefix string, kind channel.Kind, params channel.Params) string {
	switch kind {
	case channel.KindNotifications:
		return prefix + ".notifications." + token(params.UserID)
	case channel.KindLocationShare:
		return prefix + ".location." + token(params.ShareID)
	default:
		return prefix + ".traffic"
	}
}

// StreamSubjects returns the wildcard subjects a stream needs to capture
// every relayed event
func StreamSubjects(prefix string) []string {
	return []string{prefix + ".>"}
}

func token(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		if r == '.' || r == '*' || r == '>' || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, id)
}
