package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ScGaSe/smartlogistics-sub001/channel"
	"github.com/ScGaSe/smartlogistics-sub001/health"
	"github.com/ScGaSe/smartlogistics-sub001/message"
	"github.com/ScGaSe/smartlogistics-sub001/metric"
	"github.com/ScGaSe/smartlogistics-sub001/notification"
	"github.com/ScGaSe/smartlogistics-sub001/testutil"
)

func TestRegistry_LazySingleInstance(t *testing.T) {
	r := New(Options{Simulation: true})
	defer r.Close()

	assert.Empty(t, r.Snapshots())

	const callers = 16
	got := make([]*notification.Channel, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = r.Notifications()
		}(i)
	}
	wg.Wait()

	require.NotNil(t, got[0])
	for _, c := range got[1:] {
		assert.Same(t, got[0], c)
	}
	assert.Same(t, r.Traffic(), r.Traffic())
	assert.Same(t, r.LocationShare(), r.LocationShare())
	assert.Len(t, r.Snapshots(), 3)
}

func TestRegistry_SimulationMode(t *testing.T) {
	r := New(Options{
		Simulation:           true,
		FallbackConnectDelay: 5 * time.Millisecond,
		FallbackInterval:     10 * time.Millisecond,
	})
	defer r.Close()
	assert.Equal(t, "fallback", r.Mode())

	n := r.Notifications()
	tr := r.Traffic()
	assert.Equal(t, "fallback", n.Supervisor().Mode())

	require.NoError(t, n.Connect("42"))
	require.NoError(t, tr.Connect())

	require.Eventually(t, func() bool {
		_, ok := tr.Snapshot()
		return ok && n.UnreadCount() > 0
	}, 2*time.Second, 5*time.Millisecond)

	status := r.Health()
	assert.True(t, status.IsHealthy(), status.Message)
	assert.Equal(t, SystemName, status.Component)
	assert.Len(t, status.SubStatuses, 2)
}

func TestRegistry_LiveMode(t *testing.T) {
	server := testutil.NewWSServer(t)
	sink := testutil.NewRecordingSink()
	r := New(Options{
		Endpoint:       channel.StaticEndpoint{URL: server.BaseURL()},
		ReconnectDelay: time.Millisecond,
		Sink:           sink,
		HistorySize:    5,
		Metrics:        metric.NewMetricsRegistry(),
	})
	defer r.Close()
	assert.Equal(t, "live", r.Mode())

	n := r.Notifications()
	assert.Equal(t, "live", n.Supervisor().Mode())
	require.NoError(t, n.Connect("42"))
	require.Eventually(t, func() bool { return server.Connected() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, server.Send(testutil.NotificationFrame("parking", "P", "M")))
	require.Eventually(t, func() bool { return sink.Count() == 1 }, time.Second, 5*time.Millisecond)

	latest, ok := n.Latest()
	require.True(t, ok)
	assert.Equal(t, message.CategoryParking, latest.Category)
}

func TestRegistry_HealthReportsExhaustion(t *testing.T) {
	server := testutil.NewWSServer(t)
	server.RejectNext(1000)

	r := New(Options{
		Endpoint:       channel.StaticEndpoint{URL: server.BaseURL()},
		MaxAttempts:    2,
		ReconnectDelay: time.Millisecond,
	})
	defer r.Close()

	tr := r.Traffic()
	require.NoError(t, tr.Connect())
	require.Eventually(t, func() bool { return tr.Status().Exhausted }, 2*time.Second, 5*time.Millisecond)

	status := r.Health()
	assert.True(t, status.IsUnhealthy())
	require.Len(t, status.SubStatuses, 1)
	assert.Equal(t, "traffic", status.SubStatuses[0].Component)
	assert.Equal(t, 3, server.Handshakes())
}

func TestRegistry_Close(t *testing.T) {
	r := New(Options{Simulation: true, FallbackConnectDelay: time.Millisecond, FallbackInterval: time.Millisecond})

	loc := r.LocationShare()
	require.NoError(t, loc.Connect("share-1"))
	require.Eventually(t, func() bool { return loc.State() == channel.Connected }, time.Second, time.Millisecond)

	require.NoError(t, r.Close())
	assert.Equal(t, channel.Disconnected, loc.State())
	require.NoError(t, r.Close())
}

func TestRegistry_EmptyHealth(t *testing.T) {
	r := New(Options{})
	defer r.Close()
	assert.True(t, r.Health().IsHealthy())
}

func TestRegistry_HealthIncludesTrackedComponents(t *testing.T) {
	r := New(Options{})
	defer r.Close()

	level := health.LevelDegraded
	r.Track("nats", func() health.Status { return health.New(level, "nats", "reconnecting") })

	status := r.Health()
	assert.True(t, status.IsDegraded())
	require.Len(t, status.SubStatuses, 1)
	assert.Equal(t, "nats", status.SubStatuses[0].Component)

	level = health.LevelHealthy
	assert.True(t, r.Health().IsHealthy(), "checks run on every call")
}
