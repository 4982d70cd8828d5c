package taskpool

import (
	"sync/atomic"
)

// MetricsPolicy defines hooks used by the scheduler to report
// cumulative task activity.
//
// Status counts are always derived from live state; these counters
// only ever grow and survive tasks moving between states.
// Implementations must be safe for concurrent use.
type MetricsPolicy interface {
	IncCreated()
	IncAssigned()
	IncCompleted()

	// IncPreempted counts tasks returned to the queue by worker removal.
	IncPreempted()
}

// AtomicMetrics is a lock-free metrics implementation backed by atomics.
//
// Writes happen on the scheduler goroutine.
// Reads are intended for cold-path observation from anywhere.
type AtomicMetrics struct {
	created   atomic.Uint64
	assigned  atomic.Uint64
	completed atomic.Uint64
	preempted atomic.Uint64
}

func (m *AtomicMetrics) Created() uint64   { return m.created.Load() }
func (m *AtomicMetrics) Assigned() uint64  { return m.assigned.Load() }
func (m *AtomicMetrics) Completed() uint64 { return m.completed.Load() }
func (m *AtomicMetrics) Preempted() uint64 { return m.preempted.Load() }

func (m *AtomicMetrics) IncCreated()   { m.created.Add(1) }
func (m *AtomicMetrics) IncAssigned()  { m.assigned.Add(1) }
func (m *AtomicMetrics) IncCompleted() { m.completed.Add(1) }
func (m *AtomicMetrics) IncPreempted() { m.preempted.Add(1) }

//------------- NoopMetrics ----------------------------------

// NoopMetrics is a MetricsPolicy implementation that discards
// all metric updates.
type NoopMetrics struct{}

func (m *NoopMetrics) IncCreated()   {}
func (m *NoopMetrics) IncAssigned()  {}
func (m *NoopMetrics) IncCompleted() {}
func (m *NoopMetrics) IncPreempted() {}
