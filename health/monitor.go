package health

import (
	"cmp"
	"maps"
	"slices"
	"sync"
	"time"
)

// Monitor holds the latest status per component
type Monitor struct {
	mu      sync.RWMutex
	entries map[string]Status
}

func NewMonitor() *Monitor {
	return &Monitor{entries: map[string]Status{}}
}

// Update stores status under name. Component and a missing timestamp are
// filled in.
func (m *Monitor) Update(name string, status Status) {
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}

	m.mu.Lock()
	m.entries[name] = status
	m.mu.Unlock()
}

// Set records a status at level with a sanitized message
func (m *Monitor) Set(name string, level Level, message string) {
	m.Update(name, New(level, name, sanitizeErrorMessage(message)))
}

func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.entries[name]
	return s, ok
}

func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	delete(m.entries, name)
	m.mu.Unlock()
}

func (m *Monitor) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// AggregateHealth rolls every tracked status into one, children ordered by
// component name.
func (m *Monitor) AggregateHealth(systemName string) Status {
	m.mu.RLock()
	children := slices.Collect(maps.Values(m.entries))
	m.mu.RUnlock()

	slices.SortFunc(children, func(a, b Status) int {
		return cmp.Compare(a.Component, b.Component)
	})
	return Aggregate(systemName, children)
}
