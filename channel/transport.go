package channel

import "context"

// Close codes used when the supervisor closes a connection
const (
	CloseNormal    = 1000
	CloseGoingAway = 1001
)

// Dialer opens a transport connection to an endpoint
type Dialer interface {
	Dial(ctx context.Context, ep Endpoint) (Conn, error)
	// Mode names the dialer in logs and metrics ("live" or "fallback")
	Mode() string
}

// Conn is a full-duplex message stream owned by one supervisor session
type Conn interface {
	// Read blocks until the next frame arrives, the connection fails or it is
	// closed. ctx cancellation also unblocks it.
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	// Close is idempotent
	Close(code int, reason string) error
}
