package channel

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ScGaSe/smartlogistics-sub001/errors"
)

// WebSocket transport defaults
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultPingInterval     = 30 * time.Second
	DefaultPongWait         = 60 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultReadLimit        = 1 << 20
)

// WebSocketDialer opens live connections with gorilla/websocket
type WebSocketDialer struct {
	HandshakeTimeout time.Duration
	// PingInterval enables keepalive pings; 0 disables them and the read deadline
	PingInterval time.Duration
	PongWait     time.Duration
	WriteTimeout time.Duration
	ReadLimit    int64
	// TLSConfig is used for wss:// endpoints; nil uses the library default
	TLSConfig *tls.Config
}

// WebSocketOption configures a WebSocketDialer
type WebSocketOption func(*WebSocketDialer)

// WithHandshakeTimeout bounds the opening handshake
func WithHandshakeTimeout(d time.Duration) WebSocketOption {
	return func(w *WebSocketDialer) {
		if d > 0 {
			w.HandshakeTimeout = d
		}
	}
}

// WithKeepalive sets the ping interval and the pong wait. pongWait must
// exceed interval; otherwise it is set to twice the interval.
func WithKeepalive(interval, pongWait time.Duration) WebSocketOption {
	return func(w *WebSocketDialer) {
		w.PingInterval = interval
		if pongWait <= interval {
			pongWait = 2 * interval
		}
		w.PongWait = pongWait
	}
}

// WithWriteTimeout bounds every write
func WithWriteTimeout(d time.Duration) WebSocketOption {
	return func(w *WebSocketDialer) {
		if d > 0 {
			w.WriteTimeout = d
		}
	}
}

// WithTLSConfig sets the client TLS configuration for wss:// endpoints
func WithTLSConfig(cfg *tls.Config) WebSocketOption {
	return func(w *WebSocketDialer) {
		w.TLSConfig = cfg
	}
}

// NewWebSocketDialer creates a dialer with default timeouts
func NewWebSocketDialer(opts ...WebSocketOption) *WebSocketDialer {
	w := &WebSocketDialer{
		HandshakeTimeout: DefaultHandshakeTimeout,
		PingInterval:     DefaultPingInterval,
		PongWait:         DefaultPongWait,
		WriteTimeout:     DefaultWriteTimeout,
		ReadLimit:        DefaultReadLimit,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Mode implements Dialer
func (w *WebSocketDialer) Mode() string { return "live" }

// Dial implements Dialer. A non-empty endpoint token is sent as a bearer
// Authorization header.
func (w *WebSocketDialer) Dial(ctx context.Context, ep Endpoint) (Conn, error) {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: w.HandshakeTimeout,
		TLSClientConfig:  w.TLSConfig,
	}
	if dialer.HandshakeTimeout <= 0 {
		dialer.HandshakeTimeout = DefaultHandshakeTimeout
	}

	headers := http.Header{}
	if ep.Token != "" {
		headers.Set("Authorization", "Bearer "+ep.Token)
	}

	conn, resp, err := dialer.DialContext(ctx, ep.URL, headers)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w: status %d: %v", errors.ErrHandshakeFailed, resp.StatusCode, err)
		} else if isTimeout(err) {
			err = fmt.Errorf("%w: %v", errors.ErrConnectionTimeout, err)
		}
		return nil, errors.WrapTransient(err, "WebSocketDialer", "Dial", "open "+ep.Kind.String()+" connection")
	}

	if w.ReadLimit > 0 {
		conn.SetReadLimit(w.ReadLimit)
	}

	writeTimeout := w.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}

	c := &wsConn{
		conn:         conn,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
	if w.PingInterval > 0 && w.PongWait > 0 {
		c.pongWait = w.PongWait
		c.startKeepalive(w.PingInterval)
	}
	return c, nil
}

type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	pongWait     time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func (c *wsConn) startKeepalive(interval time.Duration) {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(c.writeTimeout)
				if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					// The read side sees the broken connection and reports it
					return
				}
			}
		}
	}()
}

// Read returns the next data frame. Control frames are handled internally.
func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		select {
		case <-c.done:
			return nil, errors.WrapTransient(errors.ErrClosed, "wsConn", "Read", "read frame")
		default:
		}
		if isTimeout(err) {
			return nil, errors.WrapTransient(fmt.Errorf("%w: no pong within %v", errors.ErrConnectionTimeout, c.pongWait),
				"wsConn", "Read", "read frame")
		}
		return nil, errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrConnectionLost, err),
			"wsConn", "Read", "read frame")
	}

	if c.pongWait > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	}
	return data, nil
}

// Write sends a text frame. Writes are serialized.
func (c *wsConn) Write(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return errors.WrapTransient(errors.ErrClosed, "wsConn", "Write", "write frame")
	default:
	}

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrWriteFailed, err), "wsConn", "Write", "write frame")
	}
	return nil
}

// Close sends a close frame with code and closes the socket
func (c *wsConn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
		err = c.conn.Close()
	})
	if err != nil && !stderrors.Is(err, net.ErrClosed) {
		return errors.WrapTransient(err, "wsConn", "Close", "close socket")
	}
	return nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
