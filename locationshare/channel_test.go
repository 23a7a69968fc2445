package locationshare

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ScGaSe/smartlogistics-sub001/channel"
	"github.com/ScGaSe/smartlogistics-sub001/message"
	"github.com/ScGaSe/smartlogistics-sub001/pkg/retry"
	"github.com/ScGaSe/smartlogistics-sub001/testutil"
)

func newLive(t *testing.T, server *testutil.WSServer, token string) *Channel {
	t.Helper()
	c := New(WithChannelOptions(
		channel.WithEndpoint(channel.StaticEndpoint{URL: server.BaseURL(), AuthToken: token}),
		channel.WithPolicy(retry.LinearPolicy(channel.DefaultMaxAttempts, time.Millisecond)),
	))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func connect(t *testing.T, c *Channel, server *testutil.WSServer, shareID string) {
	t.Helper()
	require.NoError(t, c.Connect(shareID))
	require.Eventually(t, func() bool {
		return c.State() == channel.Connected && server.Connected() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestChannel_ReceivesPeerLocation(t *testing.T) {
	server := testutil.NewWSServer(t)
	c := newLive(t, server, "secret")
	connect(t, c, server, "share-7")

	assert.Equal(t, []string{"/ws/share/share-7"}, server.Paths())
	assert.Equal(t, "Bearer secret", server.LastHeader().Get("Authorization"))

	events := c.Subscribe()
	require.NoError(t, server.Send(testutil.LocationFrame(1.3521, 103.8198)))

	select {
	case ev := <-events:
		loc, ok := ev.(message.Location)
		require.True(t, ok)
		assert.InDelta(t, 1.3521, loc.Latitude, 1e-9)
	case <-time.After(time.Second):
		t.Fatal("location not delivered")
	}

	require.Eventually(t, func() bool { _, ok := c.Latest(); return ok }, time.Second, 5*time.Millisecond)
	latest, _ := c.Latest()
	assert.InDelta(t, 103.8198, latest.Longitude, 1e-9)
	require.NotNil(t, latest.Accuracy)
	assert.InDelta(t, 5.0, *latest.Accuracy, 1e-9)
}

func TestChannel_IgnoresOtherFrames(t *testing.T) {
	server := testutil.NewWSServer(t)
	c := newLive(t, server, "")
	connect(t, c, server, "share-7")
	events := c.Subscribe()

	require.NoError(t, server.SendString(`{"type":"location","latitude":1.0}`))
	require.NoError(t, server.SendString(`{"type":"location","latitude":100,"longitude":1}`))
	require.NoError(t, server.SendString(`{"type":"parking","title":"x"}`))
	require.NoError(t, server.SendString(`{"type":"ping"}`))

	select {
	case ev := <-events:
		t.Fatalf("unexpected event %v", ev)
	case <-time.After(100 * time.Millisecond):
	}

	_, ok := c.Latest()
	assert.False(t, ok)
	assert.Equal(t, channel.Connected, c.State())
	assert.Empty(t, server.LastHeader().Get("Authorization"))
}

func TestChannel_SendLocation(t *testing.T) {
	server := testutil.NewWSServer(t)
	c := newLive(t, server, "")

	loc := message.Location{Latitude: 1.35, Longitude: 103.98, Speed: message.Float(1.2)}
	assert.False(t, c.SendLocation(context.Background(), loc), "not connected")

	connect(t, c, server, "share-7")
	require.True(t, c.SendLocation(context.Background(), loc))

	select {
	case frame := <-server.Received():
		got, err := message.DecodeLocation(frame)
		require.NoError(t, err)
		assert.InDelta(t, 1.35, got.Latitude, 1e-9)
		require.NotNil(t, got.Speed)
		assert.InDelta(t, 1.2, *got.Speed, 1e-9)
		assert.False(t, got.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("location not received by peer")
	}

	assert.False(t, c.SendLocation(context.Background(), message.Location{Latitude: 91}))
}

func TestChannel_RequiresShareID(t *testing.T) {
	c := New()
	defer c.Close()

	assert.Error(t, c.Connect("  "))
	assert.Equal(t, channel.Disconnected, c.State())
}

func TestChannel_LinearReconnectDelay(t *testing.T) {
	p := channel.DefaultPolicy(channel.KindLocationShare)
	assert.Equal(t, 5*time.Second, p.Delay(1))
	assert.Equal(t, 15*time.Second, p.Delay(3))
	assert.Equal(t, channel.DefaultMaxAttempts, p.MaxAttempts)
}

func TestChannel_Reconnects(t *testing.T) {
	server := testutil.NewWSServer(t)
	c := newLive(t, server, "")
	connect(t, c, server, "share-7")

	server.DropAll()
	require.Eventually(t, func() bool {
		return c.State() == channel.Connected && server.Accepted() == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, c.Status().Attempts)
}

func TestChannel_FallbackMode(t *testing.T) {
	c := New(WithChannelOptions(channel.WithDialer(
		channel.NewFallbackDialer(FallbackFrames, 5*time.Millisecond, 10*time.Millisecond))))
	defer c.Close()
	events := c.Subscribe()

	require.NoError(t, c.Connect("demo"))

	var got []message.Location
	for len(got) < 2 {
		select {
		case ev := <-events:
			got = append(got, ev.(message.Location))
		case <-time.After(time.Second):
			t.Fatal("no simulated location")
		}
	}
	assert.InDelta(t, fallbackPath[0].lat, got[0].Latitude, 1e-9)
	assert.InDelta(t, fallbackPath[1].lat, got[1].Latitude, 1e-9)
	assert.True(t, c.SendLocation(context.Background(), message.Location{Latitude: 1, Longitude: 1}))
}
