package health

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"
)

// Monitor tracks the health of named processors in a thread-safe manner
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMonitor creates a new health monitor
func NewMonitor() *Monitor {
	return &Monitor{
		statuses: make(map[string]Status),
	}
}

// Update replaces the status of name, keeping the counters of the previous
// status when the new one carries none.
func (m *Monitor) Update(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	if status.Metrics == nil {
		if prev, ok := m.statuses[name]; ok && prev.Metrics != nil {
			metrics := *prev.Metrics
			status.Metrics = &metrics
		}
	}
	m.statuses[name] = status
}

// RecordRun updates name after an evaluation step. A nil err marks it
// healthy, otherwise unhealthy with a sanitized message.
func (m *Monitor) RecordRun(name string, err error, duration time.Duration) {
	status := FromError(name, err)

	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := &Metrics{}
	if prev, ok := m.statuses[name]; ok && prev.Metrics != nil {
		*metrics = *prev.Metrics
	}
	metrics.Runs++
	if err != nil {
		metrics.ErrorCount++
	}
	metrics.LastDuration = duration.Seconds()
	metrics.LastActivity = status.Timestamp
	status.Metrics = metrics
	m.statuses[name] = status
}

// RecordSkip marks name degraded because it was not ready.
func (m *Monitor) RecordSkip(name, reason string) {
	status := NewDegraded(name, reason)

	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := &Metrics{}
	if prev, ok := m.statuses[name]; ok && prev.Metrics != nil {
		*metrics = *prev.Metrics
	}
	metrics.Skips++
	status.Metrics = metrics
	m.statuses[name] = status
}

// UpdateHealthy is a convenience method to update a processor as healthy
func (m *Monitor) UpdateHealthy(name, message string) {
	m.Update(name, NewHealthy(name, message))
}

// UpdateUnhealthy is a convenience method to update a processor as unhealthy
func (m *Monitor) UpdateUnhealthy(name, message string) {
	m.Update(name, NewUnhealthy(name, message))
}

// UpdateDegraded is a convenience method to update a processor as degraded
func (m *Monitor) UpdateDegraded(name, message string) {
	m.Update(name, NewDegraded(name, message))
}

// Get retrieves the health status for a named processor
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, exists := m.statuses[name]
	return status, exists
}

// Rename moves the status of oldName to newName.
func (m *Monitor) Rename(oldName, newName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if status, ok := m.statuses[oldName]; ok {
		delete(m.statuses, oldName)
		status.Component = newName
		m.statuses[newName] = status
	}
}

// Remove removes a processor from monitoring
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.statuses, name)
}

// AggregateHealth returns the aggregated status with sub-statuses sorted by name.
func (m *Monitor) AggregateHealth(systemName string) Status {
	m.mu.RLock()
	subStatuses := make([]Status, 0, len(m.statuses))
	for _, status := range m.statuses {
		subStatuses = append(subStatuses, status)
	}
	m.mu.RUnlock()

	slices.SortFunc(subStatuses, func(a, b Status) int { return strings.Compare(a.Component, b.Component) })
	return Aggregate(systemName, subStatuses)
}

// ListComponents returns the monitored names, sorted.
func (m *Monitor) ListComponents() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.statuses))
	for name := range m.statuses {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Count returns the number of processors being monitored
func (m *Monitor) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.statuses)
}

// Clear removes all processors from monitoring
func (m *Monitor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.statuses = make(map[string]Status)
}

// Handler serves the aggregate status as JSON. The response code is 503
// when the aggregate is unhealthy.
func (m *Monitor) Handler(systemName string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := m.AggregateHealth(systemName)
		w.Header().Set("Content-Type", "application/json")
		if status.IsUnhealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
}
