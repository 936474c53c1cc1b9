// Package liveness derives the health signals a supervisor uses to decide
// whether the gateway should be restarted.
package liveness

import (
	"log/slog"
	"time"
)

// Policy holds the thresholds. The zero value never reports a fault.
type Policy struct {
	// StaleThreshold is the longest tolerated gap between accepted updates.
	StaleThreshold time.Duration
	// MemoryFloor is the least free memory, in bytes, considered healthy.
	MemoryFloor uint64
}

// Stuck reports whether no update has been accepted for longer than the
// stale threshold.
func (p Policy) Stuck(now, lastUpdate time.Time) bool {
	if p.StaleThreshold <= 0 {
		return false
	}
	return now.Sub(lastUpdate) > p.StaleThreshold
}

// LowMemory reports whether free memory is below the floor.
func (p Policy) LowMemory(free uint64) bool {
	return free < p.MemoryFloor
}

type LastUpdater interface {
	LastUpdate() time.Time
}

type MemoryProber interface {
	FreeMemory() (uint64, error)
}

// Status is one evaluation of the policy.
type Status struct {
	CheckedAt  time.Time
	LastUpdate time.Time
	FreeMemory uint64
	Stuck      bool
	LowMemory  bool
}

func (s Status) Healthy() bool {
	return !s.Stuck && !s.LowMemory
}

// Monitor evaluates a Policy against live inputs.
type Monitor struct {
	policy  Policy
	updates LastUpdater
	memory  MemoryProber
	now     func() time.Time
}

type MonitorOption func(*Monitor)

func WithClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) { m.now = now }
}

func NewMonitor(policy Policy, updates LastUpdater, memory MemoryProber, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		policy:  policy,
		updates: updates,
		memory:  memory,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Monitor) IsStuck() bool {
	return m.policy.Stuck(m.now(), m.updates.LastUpdate())
}

// IsLowMemory is false when free memory cannot be read.
func (m *Monitor) IsLowMemory() bool {
	_, low := m.freeMemory()
	return low
}

func (m *Monitor) Status() Status {
	now := m.now()
	last := m.updates.LastUpdate()
	free, low := m.freeMemory()
	return Status{
		CheckedAt:  now,
		LastUpdate: last,
		FreeMemory: free,
		Stuck:      m.policy.Stuck(now, last),
		LowMemory:  low,
	}
}

func (m *Monitor) freeMemory() (uint64, bool) {
	if m.memory == nil {
		return 0, false
	}
	free, err := m.memory.FreeMemory()
	if err != nil {
		slog.Warn("liveness: free memory unavailable", "error", err)
		return 0, false
	}
	return free, m.policy.LowMemory(free)
}
