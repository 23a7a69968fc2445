package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"unix file path", "failed to open /etc/gatelink/config.yaml", "failed to open [PATH]"},
		{"websocket url", "dial ws://10.0.0.5:8000/ws/user/42 failed", "dial [URL] failed"},
		{"nats url", "cannot connect to nats://localhost:4222", "cannot connect to [URL]"},
		{"ip address", "timeout connecting to 192.168.1.100", "timeout connecting to [IP]"},
		{"port", "failed to bind to :8080", "failed to bind to [PORT]"},
		{"credential", "auth failed with token=abc123", "auth failed with [REDACTED]"},
		{"bearer", "rejected Bearer abc123", "rejected [REDACTED]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeErrorMessage(tt.input))
		})
	}
}

func TestFromChannel(t *testing.T) {
	changed := time.Now()

	tests := []struct {
		name     string
		info     ChannelInfo
		expected string
	}{
		{"connected", ChannelInfo{State: "connected"}, "healthy"},
		{"connecting", ChannelInfo{State: "connecting"}, "degraded"},
		{"reconnecting", ChannelInfo{State: "reconnecting", Attempts: 3, LastError: "Connection error: EOF"}, "degraded"},
		{"exhausted", ChannelInfo{State: "disconnected", Attempts: 10, Exhausted: true, LastError: "gave up"}, "unhealthy"},
		{"failed", ChannelInfo{State: "disconnected", LastError: "Connection error: EOF"}, "degraded"},
		{"idle", ChannelInfo{State: "disconnected"}, "healthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.info.LastChange = changed
			status := FromChannel("traffic", tt.info)

			assert.Equal(t, tt.expected, status.Status)
			assert.Equal(t, "traffic", status.Component)
			assert.Equal(t, tt.expected == "healthy", status.Healthy)
			require.NotNil(t, status.Details)
			assert.Equal(t, tt.info.State, status.Details.State)
			assert.Equal(t, tt.info.Attempts, status.Details.Attempts)
			assert.Equal(t, changed, status.Details.LastChange)
		})
	}
}

func TestFromChannel_SanitizesError(t *testing.T) {
	status := FromChannel("notifications", ChannelInfo{
		State:     "disconnected",
		LastError: "Connection error: dial tcp 10.1.2.3:8000: connection refused",
	})

	assert.NotContains(t, status.Message, "10.1.2.3")
	assert.NotContains(t, status.Message, "8000")
}

func TestWithSubStatus_SliceIsolation(t *testing.T) {
	original := Status{
		Component:   "parent",
		Status:      "healthy",
		SubStatuses: []Status{{Component: "child1", Status: "healthy"}},
	}

	modified := original.WithSubStatus(Status{Component: "child2", Status: "unhealthy"})

	assert.Len(t, original.SubStatuses, 1)
	assert.Len(t, modified.SubStatuses, 2)

	original.SubStatuses[0].Status = "degraded"
	assert.Equal(t, "healthy", modified.SubStatuses[0].Status)
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name     string
		subs     []Status
		expected string
	}{
		{"empty", nil, "healthy"},
		{"all healthy", []Status{NewHealthy("a", ""), NewHealthy("b", "")}, "healthy"},
		{"one degraded", []Status{NewHealthy("a", ""), NewDegraded("b", "")}, "degraded"},
		{"one unhealthy", []Status{NewDegraded("a", ""), NewUnhealthy("b", "")}, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := Aggregate("gatelink", tt.subs)
			assert.Equal(t, tt.expected, status.Status)
			assert.Len(t, status.SubStatuses, len(tt.subs))
		})
	}
}

func TestLevel(t *testing.T) {
	assert.Equal(t, "degraded", LevelDegraded.String())
	assert.Equal(t, "unknown", Level(7).String())
	assert.Equal(t, LevelHealthy, ParseLevel("healthy"))
	assert.Equal(t, LevelUnhealthy, ParseLevel("bogus"))
	assert.True(t, LevelUnhealthy > LevelDegraded)
}

func TestMonitor(t *testing.T) {
	m := NewMonitor()
	assert.Equal(t, 0, m.Len())

	m.Set("traffic", LevelHealthy, "ok")
	m.Set("relay", LevelDegraded, "publish to nats://10.0.0.1:4222 failed")
	m.Update("notifications", Status{Status: "healthy", Healthy: true})

	assert.Equal(t, 3, m.Len())

	relay, ok := m.Get("relay")
	require.True(t, ok)
	assert.True(t, relay.IsDegraded())
	assert.NotContains(t, relay.Message, "4222")

	n, ok := m.Get("notifications")
	require.True(t, ok)
	assert.Equal(t, "notifications", n.Component)
	assert.False(t, n.Timestamp.IsZero())

	agg := m.AggregateHealth("gatelink")
	assert.True(t, agg.IsDegraded())
	require.Len(t, agg.SubStatuses, 3)
	assert.Equal(t, "notifications", agg.SubStatuses[0].Component)
	assert.Equal(t, "traffic", agg.SubStatuses[2].Component)

	m.Set("traffic", LevelUnhealthy, "gave up")
	assert.True(t, m.AggregateHealth("gatelink").IsUnhealthy())

	m.Remove("traffic")
	_, ok = m.Get("traffic")
	assert.False(t, ok)
}

func TestMonitor_ConcurrentAccess(t *testing.T) {
	m := NewMonitor()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.Set("traffic", LevelHealthy, "ok")
		}()
		go func() {
			defer wg.Done()
			_ = m.AggregateHealth("gatelink")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, m.Len())
}

func TestHandler(t *testing.T) {
	current := NewHealthy("gatelink", "ok")
	srv := httptest.NewServer(Handler(func() Status { return current }))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)

	var decoded Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", decoded.Status)

	current = NewUnhealthy("gatelink", "down")
	resp, err = http.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
