// Package metrics collects runtime counters for the pulse probe.
//
// The monitor tracks tick timing and per-sink write accounting. It is
// fed by the probe on every tick and dumped through the diagnostic
// logger at shutdown when verbose output is enabled.
package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Monitor provides runtime monitoring for the probe
type Monitor struct {
	logger *slog.Logger
	mu     sync.RWMutex

	ticks TickMetrics
	sinks map[string]*SinkMetrics
}

// TickMetrics tracks heartbeat loop timing
type TickMetrics struct {
	Count           int64         `json:"count"`
	TotalDuration   time.Duration `json:"total_duration"`
	AverageDuration time.Duration `json:"average_duration"`
	MinDuration     time.Duration `json:"min_duration"`
	MaxDuration     time.Duration `json:"max_duration"`
	LastTick        time.Time     `json:"last_tick"`
}

// SinkMetrics tracks write accounting for a single sink
type SinkMetrics struct {
	Name         string    `json:"name"`
	Writes       int64     `json:"writes"`
	Errors       int64     `json:"errors"`
	BytesWritten int64     `json:"bytes_written"`
	LastWrite    time.Time `json:"last_write"`
	LastError    string    `json:"last_error,omitempty"`
}

// NewMonitor creates a new monitor
func NewMonitor() *Monitor {
	return &Monitor{
		sinks: make(map[string]*SinkMetrics),
	}
}

// SetLogger sets the logger for metrics output
func (m *Monitor) SetLogger(logger *slog.Logger) {
	m.logger = logger.With(slog.String("component", "metrics"))
}

// RecordTick records the duration of one heartbeat tick (compose plus
// fan-out, excluding the sleep)
func (m *Monitor) RecordTick(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticks.Count == 0 {
		m.ticks.MinDuration = duration
		m.ticks.MaxDuration = duration
	}

	m.ticks.Count++
	m.ticks.TotalDuration += duration
	m.ticks.LastTick = time.Now()

	if duration < m.ticks.MinDuration {
		m.ticks.MinDuration = duration
	}
	if duration > m.ticks.MaxDuration {
		m.ticks.MaxDuration = duration
	}

	m.ticks.AverageDuration = time.Duration(int64(m.ticks.TotalDuration) / m.ticks.Count)
}

// RecordWrite records a sink write outcome
func (m *Monitor) RecordWrite(sink string, bytes int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sm, exists := m.sinks[sink]
	if !exists {
		sm = &SinkMetrics{Name: sink}
		m.sinks[sink] = sm
	}

	if err != nil {
		sm.Errors++
		sm.LastError = err.Error()
		return
	}

	sm.Writes++
	sm.BytesWritten += int64(bytes)
	sm.LastWrite = time.Now()
}

// GetTickMetrics returns a copy of the tick metrics
func (m *Monitor) GetTickMetrics() TickMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.ticks
}

// GetSinkMetrics returns metrics for a specific sink
func (m *Monitor) GetSinkMetrics(sink string) *SinkMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if sm, exists := m.sinks[sink]; exists {
		// Return a copy to avoid race conditions
		copy := *sm
		return &copy
	}
	return nil
}

// GetAllSinkMetrics returns all sink metrics
func (m *Monitor) GetAllSinkMetrics() map[string]*SinkMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]*SinkMetrics)
	for name, sm := range m.sinks {
		copy := *sm
		result[name] = &copy
	}
	return result
}

// LogSummary logs a summary of all collected metrics
func (m *Monitor) LogSummary(ctx context.Context) {
	if m.logger == nil {
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	m.logger.InfoContext(ctx, "Tick metrics",
		slog.Int64("count", m.ticks.Count),
		slog.Duration("avg_duration", m.ticks.AverageDuration),
		slog.Duration("min_duration", m.ticks.MinDuration),
		slog.Duration("max_duration", m.ticks.MaxDuration),
	)

	for _, sm := range m.sinks {
		m.logger.InfoContext(ctx, "Sink metrics",
			slog.String("sink", sm.Name),
			slog.Int64("writes", sm.Writes),
			slog.Int64("errors", sm.Errors),
			slog.Int64("bytes_written", sm.BytesWritten),
		)
	}
}

// Reset clears all metrics
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ticks = TickMetrics{}
	m.sinks = make(map[string]*SinkMetrics)
}

// Timer provides convenient timing for a single tick
type Timer struct {
	start   time.Time
	monitor *Monitor
}

// NewTimer starts a tick timer against the given monitor
func NewTimer(monitor *Monitor) *Timer {
	return &Timer{
		start:   time.Now(),
		monitor: monitor,
	}
}

// Stop stops the timer and records the tick duration
func (t *Timer) Stop() {
	t.monitor.RecordTick(time.Since(t.start))
}
