// Package metrics implements the per-job metrics store and collector
// described in spec.md §4.9. The central invariant of this package — and
// the bug fix the spec calls out in §9 — is that phase snapshots are owned
// by the Store, not by the Collector: a Collector is a short-lived
// accumulator that snapshots into the Store on phase completion, and
// recreating or rebinding a Collector never clears or mutates a snapshot
// already written.
package metrics

import (
	"sync"
	"time"
)

// PhaseSnapshot is an immutable record of one phase's outcome metrics
// (spec.md §3). Once written to the Store it is never mutated in place;
// SnapshotPhase always writes a fresh value.
type PhaseSnapshot struct {
	Phase      string
	WallTime   time.Duration
	CPUTime    time.Duration
	DataBytes  int64
	Packages   int64
	PeakMemory uint64
	Start      time.Time
	End        time.Time
	Success    bool
}

// Accumulated sums snapshot fields across all phases, taking the max of
// PeakMemory, and folds in any live-metric values that exceed the summed
// total (spec.md §3, §4.9 accumulated()).
type Accumulated struct {
	CPUTime    time.Duration
	DataBytes  int64
	WallTime   time.Duration
	Packages   int64
	PeakMemory uint64
}

// liveMetrics holds the monotonically non-decreasing live counters
// (spec.md §3 "live-metrics cell").
type liveMetrics struct {
	cpuTime    time.Duration
	dataBytes  int64
	peakMemory uint64
}

// Store holds phase snapshots for one job. Its lifetime equals the owning
// tab's, outliving any number of PTY sessions and Collector instances for
// that job (spec.md §4.9, §9).
type Store struct {
	mu                 sync.Mutex
	snapshots          map[string]PhaseSnapshot
	currentPhase       string
	hasCompletedPhases bool
	live               liveMetrics
}

// NewStore returns an empty metrics store.
func NewStore() *Store {
	return &Store{snapshots: make(map[string]PhaseSnapshot)}
}

// StartPhase records the current-phase marker. No snapshot is taken.
func (s *Store) StartPhase(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentPhase = name
}

// CurrentPhase returns the phase name set by the most recent StartPhase
// not yet followed by a SnapshotPhase, or "" if none.
func (s *Store) CurrentPhase() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPhase
}

// SnapshotPhase writes (overwriting any prior value) the snapshot for
// name, clears the current-phase marker, and marks the store as having
// completed at least one phase.
func (s *Store) SnapshotPhase(name string, snap PhaseSnapshot) PhaseSnapshot {
	snap.Phase = name
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[name] = snap
	if s.currentPhase == name {
		s.currentPhase = ""
	}
	s.hasCompletedPhases = true
	return snap
}

// GetPhaseSnapshot returns the snapshot for name, if one has been written.
func (s *Store) GetPhaseSnapshot(name string) (PhaseSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[name]
	return snap, ok
}

// AllSnapshots returns a copy of every snapshot, keyed by phase name.
func (s *Store) AllSnapshots() map[string]PhaseSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]PhaseSnapshot, len(s.snapshots))
	for k, v := range s.snapshots {
		out[k] = v
	}
	return out
}

// HasCompletedPhases reports whether any phase has ever been snapshotted.
func (s *Store) HasCompletedPhases() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasCompletedPhases
}

// UpdateLive merges the given live-metric samples into the store. Each
// argument, if non-nil, may only move the stored value upward: cpuTime and
// dataBytes are monotonically increasing counters, peakMemory is a
// running max.
func (s *Store) UpdateLive(cpuTime *time.Duration, dataBytes *int64, peakMemory *uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cpuTime != nil && *cpuTime > s.live.cpuTime {
		s.live.cpuTime = *cpuTime
	}
	if dataBytes != nil && *dataBytes > s.live.dataBytes {
		s.live.dataBytes = *dataBytes
	}
	if peakMemory != nil && *peakMemory > s.live.peakMemory {
		s.live.peakMemory = *peakMemory
	}
}

// liveSnapshot returns the current live-metric reading without clearing it.
func (s *Store) liveSnapshot() liveMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// resetLive zeroes the live-metric counters so the next phase's
// UpdatePhaseStats calls build on a clean baseline instead of the
// just-completed phase's final readings.
func (s *Store) resetLive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = liveMetrics{}
}

// Accumulated sums every snapshot's fields (max for PeakMemory), then folds
// in any live-metric values that exceed the summed total, preserving the
// accumulated-monotonicity property (spec.md §8 property 6).
func (s *Store) Accumulated() Accumulated {
	s.mu.Lock()
	defer s.mu.Unlock()

	var acc Accumulated
	for _, snap := range s.snapshots {
		acc.CPUTime += snap.CPUTime
		acc.DataBytes += snap.DataBytes
		acc.WallTime += snap.WallTime
		acc.Packages += snap.Packages
		if snap.PeakMemory > acc.PeakMemory {
			acc.PeakMemory = snap.PeakMemory
		}
	}
	if s.live.cpuTime > acc.CPUTime {
		acc.CPUTime = s.live.cpuTime
	}
	if s.live.dataBytes > acc.DataBytes {
		acc.DataBytes = s.live.dataBytes
	}
	if s.live.peakMemory > acc.PeakMemory {
		acc.PeakMemory = s.live.peakMemory
	}
	return acc
}

// Reset clears every snapshot and live value. It is the only operation
// that may clear the store (spec.md §4.9 central invariant).
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = make(map[string]PhaseSnapshot)
	s.currentPhase = ""
	s.hasCompletedPhases = false
	s.live = liveMetrics{}
}
