package channel

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ScGaSe/smartlogistics-sub001/errors"
	"github.com/ScGaSe/smartlogistics-sub001/testutil"
)

func TestWebSocketDialer_RoundTrip(t *testing.T) {
	server := testutil.NewWSServer(t)
	ep := ResolveEndpoint(StaticEndpoint{URL: server.HTTPURL(), AuthToken: "tok"}, KindLocationShare, Params{ShareID: "s1"}, nil)

	conn, err := NewWebSocketDialer().Dial(context.Background(), ep)
	require.NoError(t, err)

	assert.Equal(t, []string{"/ws/share/s1"}, server.Paths())
	assert.Equal(t, "Bearer tok", server.LastHeader().Get("Authorization"))

	require.Eventually(t, func() bool { return server.Connected() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, server.SendString(`{"type":"location","latitude":1,"longitude":2}`))

	frame, err := conn.Read(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"location","latitude":1,"longitude":2}`, string(frame))

	require.NoError(t, conn.Write(context.Background(), []byte(`{"type":"location"}`)))
	select {
	case got := <-server.Received():
		assert.Equal(t, `{"type":"location"}`, string(got))
	case <-time.After(time.Second):
		t.Fatal("server did not receive frame")
	}

	require.NoError(t, conn.Close(CloseNormal, "bye"))
	select {
	case code := <-server.CloseCodes():
		assert.Equal(t, CloseNormal, code)
	case <-time.After(time.Second):
		t.Fatal("server did not see close frame")
	}

	_, err = conn.Read(context.Background())
	assert.Error(t, err)
	assert.Error(t, conn.Write(context.Background(), []byte("x")))
}

func TestWebSocketDialer_NoTokenNoHeader(t *testing.T) {
	server := testutil.NewWSServer(t)
	ep := ResolveEndpoint(StaticEndpoint{URL: server.BaseURL()}, KindTraffic, Params{}, nil)

	conn, err := NewWebSocketDialer().Dial(context.Background(), ep)
	require.NoError(t, err)
	defer conn.Close(CloseNormal, "")

	assert.Empty(t, server.LastHeader().Get("Authorization"))
}

func TestWebSocketDialer_HandshakeRejected(t *testing.T) {
	server := testutil.NewWSServer(t)
	server.RejectNext(1)
	ep := ResolveEndpoint(StaticEndpoint{URL: server.BaseURL()}, KindTraffic, Params{}, nil)

	_, err := NewWebSocketDialer().Dial(context.Background(), ep)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.ErrorIs(t, err, errors.ErrHandshakeFailed)
	assert.Contains(t, err.Error(), "503")
}

func TestWebSocketDialer_PeerDrop(t *testing.T) {
	server := testutil.NewWSServer(t)
	ep := ResolveEndpoint(StaticEndpoint{URL: server.BaseURL()}, KindTraffic, Params{}, nil)

	conn, err := NewWebSocketDialer().Dial(context.Background(), ep)
	require.NoError(t, err)
	defer conn.Close(CloseNormal, "")

	require.Eventually(t, func() bool { return server.Connected() == 1 }, time.Second, 5*time.Millisecond)
	server.DropAll()

	_, err = conn.Read(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConnectionLost)
}

func TestWebSocketDialer_KeepaliveHoldsIdleConnection(t *testing.T) {
	server := testutil.NewWSServer(t)
	ep := ResolveEndpoint(StaticEndpoint{URL: server.BaseURL()}, KindTraffic, Params{}, nil)

	d := NewWebSocketDialer(WithKeepalive(20*time.Millisecond, 60*time.Millisecond))
	conn, err := d.Dial(context.Background(), ep)
	require.NoError(t, err)
	defer conn.Close(CloseNormal, "")

	errs := make(chan error, 1)
	go func() {
		_, err := conn.Read(context.Background())
		errs <- err
	}()

	select {
	case err := <-errs:
		t.Fatalf("idle connection failed: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, server.SendString(`{"type":"traffic"}`))
	select {
	case err := <-errs:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("frame not read")
	}
}

func TestWithKeepalive_PongWaitExceedsInterval(t *testing.T) {
	d := NewWebSocketDialer(WithKeepalive(time.Second, time.Second))
	assert.Equal(t, 2*time.Second, d.PongWait)

	d = NewWebSocketDialer(WithHandshakeTimeout(time.Second), WithWriteTimeout(2*time.Second))
	assert.Equal(t, time.Second, d.HandshakeTimeout)
	assert.Equal(t, 2*time.Second, d.WriteTimeout)
	assert.Equal(t, "live", d.Mode())
}

func TestSupervisor_LiveReconnect(t *testing.T) {
	server := testutil.NewWSServer(t)
	s := newTestSupervisor(t, KindTraffic, NewWebSocketDialer(),
		WithEndpoint(StaticEndpoint{URL: server.BaseURL()}),
		WithPolicy(fastPolicy()),
	)
	events := record(s.SubscribeEvents())

	require.NoError(t, s.Connect(Params{}))
	require.Eventually(t, func() bool { return s.State() == Connected && server.Connected() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, server.SendString(`{"type":"tick"}`))
	require.Eventually(t, func() bool { return events.Len() == 1 }, time.Second, 5*time.Millisecond)

	server.DropAll()
	require.Eventually(t, func() bool { return server.Accepted() == 2 && s.State() == Connected }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, s.LastError())
	assert.Zero(t, s.Snapshot().Attempts)

	s.Disconnect()
	select {
	case code := <-server.CloseCodes():
		assert.Equal(t, CloseNormal, code)
	case <-time.After(time.Second):
		t.Fatal("server did not see normal closure")
	}
}

func TestWebSocketDialer_TLS(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"traffic"}`))
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	ep := ResolveEndpoint(StaticEndpoint{URL: "wss://" + strings.TrimPrefix(server.URL, "https://")}, KindTraffic, Params{}, nil)

	// self-signed server certificate is rejected by default
	_, err := NewWebSocketDialer(WithHandshakeTimeout(2*time.Second)).Dial(context.Background(), ep)
	require.Error(t, err)

	pool := x509.NewCertPool()
	pool.AddCert(server.Certificate())
	conn, err := NewWebSocketDialer(WithTLSConfig(&tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12})).
		Dial(context.Background(), ep)
	require.NoError(t, err)
	defer conn.Close(CloseNormal, "")

	frame, err := conn.Read(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"traffic"}`, string(frame))
}
