package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	cyclesRun      atomic.Uint64
	cyclesFailed   atomic.Uint64
	ordersCreated  atomic.Uint64
	ordersPaid     atomic.Uint64
	ordersExpired  atomic.Uint64
	notifyFailures atomic.Uint64

	// Cycle duration tracking
	cycleSumNs   atomic.Int64
	cycleSamples atomic.Uint64
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordCycle records a finished reconciliation cycle and its duration.
func (m *Metrics) RecordCycle(ok bool, elapsed time.Duration) {
	m.cyclesRun.Add(1)
	if !ok {
		m.cyclesFailed.Add(1)
	}
	m.cycleSumNs.Add(elapsed.Nanoseconds())
	m.cycleSamples.Add(1)
}

// RecordOrderCreated records a persisted new order.
func (m *Metrics) RecordOrderCreated() {
	m.ordersCreated.Add(1)
}

// RecordOrderPaid records an order archived as paid.
func (m *Metrics) RecordOrderPaid() {
	m.ordersPaid.Add(1)
}

// RecordOrderExpired records an order discarded by the age policy.
func (m *Metrics) RecordOrderExpired() {
	m.ordersExpired.Add(1)
}

// RecordNotifyFailure records a failed merchant notification attempt.
func (m *Metrics) RecordNotifyFailure() {
	m.notifyFailures.Add(1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	CyclesRun      uint64
	CyclesFailed   uint64
	OrdersCreated  uint64
	OrdersPaid     uint64
	OrdersExpired  uint64
	NotifyFailures uint64
	AvgCycleNs     int64
	Timestamp      time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgCycle int64
	samples := m.cycleSamples.Load()
	if samples > 0 {
		avgCycle = m.cycleSumNs.Load() / int64(samples)
	}

	return MetricsSnapshot{
		CyclesRun:      m.cyclesRun.Load(),
		CyclesFailed:   m.cyclesFailed.Load(),
		OrdersCreated:  m.ordersCreated.Load(),
		OrdersPaid:     m.ordersPaid.Load(),
		OrdersExpired:  m.ordersExpired.Load(),
		NotifyFailures: m.notifyFailures.Load(),
		AvgCycleNs:     avgCycle,
		Timestamp:      time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.cyclesRun.Store(0)
	m.cyclesFailed.Store(0)
	m.ordersCreated.Store(0)
	m.ordersPaid.Store(0)
	m.ordersExpired.Store(0)
	m.notifyFailures.Store(0)
	m.cycleSumNs.Store(0)
	m.cycleSamples.Store(0)
}
