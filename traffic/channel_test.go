package traffic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ScGaSe/smartlogistics-sub001/channel"
	"github.com/ScGaSe/smartlogistics-sub001/message"
	"github.com/ScGaSe/smartlogistics-sub001/pkg/retry"
	"github.com/ScGaSe/smartlogistics-sub001/testutil"
)

func newConnected(t *testing.T) (*Channel, *testutil.WSServer) {
	t.Helper()
	server := testutil.NewWSServer(t)
	c := New(WithChannelOptions(
		channel.WithEndpoint(channel.StaticEndpoint{URL: server.BaseURL()}),
		channel.WithPolicy(retry.FixedPolicy(channel.DefaultMaxAttempts, 5*time.Millisecond)),
	))
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Connect())
	require.Eventually(t, func() bool {
		return c.State() == channel.Connected && server.Connected() == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"/ws/traffic"}, server.Paths())
	return c, server
}

func waitSnapshot(t *testing.T, events <-chan any) message.TrafficSnapshot {
	t.Helper()
	select {
	case ev := <-events:
		snap, ok := ev.(message.TrafficSnapshot)
		require.True(t, ok, "unexpected event %T", ev)
		return snap
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
		return message.TrafficSnapshot{}
	}
}

func TestChannel_SnapshotReplacedWholesale(t *testing.T) {
	c, server := newConnected(t)
	events := c.Subscribe()

	_, ok := c.Snapshot()
	assert.False(t, ok)

	require.NoError(t, server.Send(testutil.TrafficFrame(
		map[string]int{"Gate_N1": 3, "Gate_S2": 7},
		map[string]float64{"road_1": 1.8},
	)))
	first := waitSnapshot(t, events)
	assert.Equal(t, 7, first.Gates["Gate_S2"])

	require.NoError(t, server.Send(testutil.TrafficFrame(map[string]int{"Gate_N1": 1}, nil)))
	waitSnapshot(t, events)

	require.Eventually(t, func() bool {
		snap, ok := c.Snapshot()
		return ok && snap.Gates["Gate_N1"] == 1
	}, time.Second, 5*time.Millisecond)

	snap, _ := c.Snapshot()
	assert.Equal(t, map[string]int{"Gate_N1": 1}, snap.Gates)
	assert.Empty(t, snap.Roads, "roads absent from the frame are dropped")
}

func TestChannel_MalformedFrameKeepsSnapshot(t *testing.T) {
	c, server := newConnected(t)
	events := c.Subscribe()

	require.NoError(t, server.Send(testutil.TrafficFrame(map[string]int{"Gate_N1": 3}, nil)))
	waitSnapshot(t, events)
	require.Eventually(t, func() bool { _, ok := c.Snapshot(); return ok }, time.Second, 5*time.Millisecond)
	before, _ := c.Snapshot()

	require.NoError(t, server.SendString(`{"type":"traffic","gates":`))
	require.NoError(t, server.SendString(`{"type":"parking","title":"wrong channel"}`))

	select {
	case ev := <-events:
		t.Fatalf("unexpected event %v", ev)
	case <-time.After(100 * time.Millisecond):
	}

	after, ok := c.Snapshot()
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, channel.Connected, c.State())
	assert.Empty(t, c.LastError())
}

func TestChannel_SnapshotIsACopy(t *testing.T) {
	c, server := newConnected(t)
	events := c.Subscribe()

	require.NoError(t, server.Send(testutil.TrafficFrame(map[string]int{"Gate_N1": 3}, nil)))
	waitSnapshot(t, events)
	require.Eventually(t, func() bool { _, ok := c.Snapshot(); return ok }, time.Second, 5*time.Millisecond)

	snap, _ := c.Snapshot()
	snap.Gates["Gate_N1"] = 99

	again, _ := c.Snapshot()
	assert.Equal(t, 3, again.Gates["Gate_N1"])
}

func TestChannel_Busiest(t *testing.T) {
	c, server := newConnected(t)
	assert.Nil(t, c.Busiest(1))

	events := c.Subscribe()
	require.NoError(t, server.Send(testutil.TrafficFrame(map[string]int{"Gate_N1": 3, "Gate_S1": 8, "Gate_N2": 5}, nil)))
	waitSnapshot(t, events)
	require.Eventually(t, func() bool { return len(c.Busiest(0)) == 3 }, time.Second, 5*time.Millisecond)

	top := c.Busiest(2)
	require.Len(t, top, 2)
	assert.Equal(t, message.GateQueue{Gate: "Gate_S1", Length: 8}, top[0])
	assert.Equal(t, message.GateQueue{Gate: "Gate_N2", Length: 5}, top[1])
}

func TestChannel_DisconnectKeepsLastSnapshot(t *testing.T) {
	c, server := newConnected(t)
	events := c.Subscribe()

	require.NoError(t, server.Send(testutil.TrafficFrame(map[string]int{"Gate_N1": 3}, nil)))
	waitSnapshot(t, events)
	require.Eventually(t, func() bool { _, ok := c.Snapshot(); return ok }, time.Second, 5*time.Millisecond)

	c.Disconnect()
	assert.Equal(t, channel.Disconnected, c.State())
	_, ok := c.Snapshot()
	assert.True(t, ok)
}

func TestChannel_FallbackMode(t *testing.T) {
	c := New(WithChannelOptions(channel.WithDialer(
		channel.NewFallbackDialer(FallbackFrames, 5*time.Millisecond, 10*time.Millisecond))))
	defer c.Close()
	events := c.Subscribe()

	require.NoError(t, c.Connect())
	first := waitSnapshot(t, events)
	second := waitSnapshot(t, events)

	assert.Equal(t, 4, first.Gates["Gate_N1"])
	assert.Equal(t, 9, second.Gates["Gate_N1"])
	assert.Equal(t, "fallback", c.Supervisor().Mode())
	assert.Equal(t, channel.Connected, c.State())
}

func TestFallbackFrames_Decode(t *testing.T) {
	frames := FallbackFrames(channel.Endpoint{})
	require.Len(t, frames, len(fallbackRotation))
	for _, f := range frames {
		snap, err := message.DecodeTraffic(f)
		require.NoError(t, err)
		assert.NotEmpty(t, snap.Gates)
		assert.NotEmpty(t, snap.Roads)
	}
}
