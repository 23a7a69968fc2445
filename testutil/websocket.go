package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// WSServer is a scripted WebSocket backend
type WSServer struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	paths    []string
	headers  []http.Header
	accepted int
	reject   int

	received   chan []byte
	closeCodes chan int
}

// NewWSServer starts a server and stops it when the test ends
func NewWSServer(t testing.TB) *WSServer {
	t.Helper()

	s := &WSServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		received:   make(chan []byte, 64),
		closeCodes: make(chan int, 16),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// BaseURL returns the ws:// origin of the server
func (s *WSServer) BaseURL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

// HTTPURL returns the http:// origin of the server
func (s *WSServer) HTTPURL() string {
	return s.server.URL
}

// RejectNext makes the next n handshakes fail with 503
func (s *WSServer) RejectNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = n
}

func (s *WSServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.paths = append(s.paths, r.URL.Path)
	s.headers = append(s.headers, r.Header.Clone())
	if s.reject > 0 {
		s.reject--
		s.mu.Unlock()
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.accepted++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		for i, c := range s.conns {
			if c == conn {
				s.conns = append(s.conns[:i], s.conns[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ce, ok := err.(*websocket.CloseError); ok {
				select {
				case s.closeCodes <- ce.Code:
				default:
				}
			}
			return
		}
		select {
		case s.received <- data:
		default:
		}
	}
}

// Send writes frame to every connected client
func (s *WSServer) Send(frame []byte) error {
	s.mu.Lock()
	conns := append([]*websocket.Conn(nil), s.conns...)
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.SetWriteDeadline(time.Now().Add(time.Second))
		if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
			return err
		}
	}
	return nil
}

// SendString writes a text frame to every connected client
func (s *WSServer) SendString(frame string) error {
	return s.Send([]byte(frame))
}

// DropAll closes every client socket without a close frame
func (s *WSServer) DropAll() {
	s.mu.Lock()
	conns := append([]*websocket.Conn(nil), s.conns...)
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.UnderlyingConn().Close()
	}
}

// Accepted returns the number of successful handshakes
func (s *WSServer) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// Handshakes returns the number of handshake requests, rejected ones included
func (s *WSServer) Handshakes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}

// Connected returns the number of open client connections
func (s *WSServer) Connected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Paths returns the request paths of all handshakes
func (s *WSServer) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// LastHeader returns the headers of the latest handshake
func (s *WSServer) LastHeader() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.headers) == 0 {
		return http.Header{}
	}
	return s.headers[len(s.headers)-1]
}

// Received returns frames sent by clients
func (s *WSServer) Received() <-chan []byte {
	return s.received
}

// CloseCodes returns the close codes clients sent
func (s *WSServer) CloseCodes() <-chan int {
	return s.closeCodes
}

// Close drops all clients and stops the server
func (s *WSServer) Close() {
	s.DropAll()
	s.server.Close()
}
