package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// MinSampleInterval is the minimum enforced interval between live samples
// (spec.md §4.9 "at most once per second"). Sampling is driven by the phase
// runner's read loop, not a dedicated timer; the runner's sampling closure
// checks this interval, while Collect itself samples on every call.
const MinSampleInterval = time.Second

// PhaseMetrics is a live read of a job's current resource usage, returned
// by Collector.Collect. It degrades gracefully when the tracked pid is no
// longer accessible (spec.md §4.9, §7 Unavailable).
type PhaseMetrics struct {
	CPUPercent   float64
	RSS          uint64
	PeakRSS      uint64
	CPUTime      time.Duration
	NetBytesIn   uint64
	NetBytesOut  uint64
	DiskBytesIn  uint64
	DiskBytesOut uint64
	ETA          time.Duration
	Available    bool
	ErrorMessage string
}

// Collector is a short-lived, per-pid resource sampler. It holds only a
// reference to the Store it snapshots into (never owning it), generalizing
// pkg/collectors/sysmetrics.Collector's gopsutil sampling loop from a
// whole-machine sample to a single tracked process (spec.md §9, §4.9).
//
// A Collector is created fresh for each PTY session a job opens; Stop
// never touches the Store's snapshots, and a replacement Collector created
// afterwards for the next phase's PTY picks up exactly where the Store
// left off (update_pid / "rebind without losing accumulated snapshots").
type Collector struct {
	store *Store

	mu          sync.Mutex
	pid         int32
	proc        *process.Process
	baselineCPU float64
	baseTime    time.Time
	peakRSS     uint64
	lastSample  time.Time
	running     bool
}

// NewCollector returns a Collector that snapshots into store. store is
// shared (non-owning); it must outlive the Collector.
func NewCollector(store *Store) *Collector {
	return &Collector{store: store}
}

// Start takes a baseline sample for pid (CPU time) and begins
// tracking it. It never clears or resets the Store.
func (c *Collector) Start(ctx context.Context, pid int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pid = int32(pid)
	proc, err := process.NewProcessWithContext(ctx, c.pid)
	if err != nil {
		c.running = false
		return err
	}
	c.proc = proc
	c.running = true
	c.baseTime = time.Now()
	if times, err := proc.TimesWithContext(ctx); err == nil {
		c.baselineCPU = times.User + times.System
	}
	return nil
}

// UpdatePID rebinds the collector to a new child process (e.g. a phase's
// fresh PTY) without losing anything already written to the Store.
func (c *Collector) UpdatePID(ctx context.Context, pid int) error {
	return c.Start(ctx, pid)
}

// Stop marks the collector inactive. It never clears the Store and never
// nils out the store reference; a new Collector instantiated afterwards
// for the same job's next phase still sees every prior snapshot
// (spec.md §4.9 central invariant).
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
}

// StartPhase begins a new phase in the backing Store.
func (c *Collector) StartPhase(name string) {
	c.store.StartPhase(name)
}

// UpdatePhaseStats folds live samples for the current phase into the Store's
// monotonic live counters. Any nil argument is left unreported.
func (c *Collector) UpdatePhaseStats(cpuTime *time.Duration, dataBytes *int64, peakMemory *uint64) {
	c.store.UpdateLive(cpuTime, dataBytes, peakMemory)
}

// CompletePhase snapshots the phase's live metrics accumulated since the
// matching StartPhase into the Store, as of completion. packages is the
// Execute-phase items-done count (0 for Check/Download); CPUTime and
// DataBytes come from whatever UpdatePhaseStats calls landed during the
// phase, not from a final Collect, so a phase that ends before its next
// sample is due still gets the last live reading rather than zeros.
func (c *Collector) CompletePhase(name string, success bool, packages int64, wallTime time.Duration, start, end time.Time) PhaseSnapshot {
	live := c.store.liveSnapshot()
	snap := PhaseSnapshot{
		Phase:      name,
		WallTime:   wallTime,
		CPUTime:    live.cpuTime,
		DataBytes:  live.dataBytes,
		Packages:   packages,
		PeakMemory: live.peakMemory,
		Start:      start,
		End:        end,
		Success:    success,
	}
	out := c.store.SnapshotPhase(name, snap)
	c.store.resetLive()
	return out
}

// Collect reads the tracked process's current resource usage. If the pid
// is no longer accessible it returns a PhaseMetrics with Available=false
// and a descriptive ErrorMessage, rather than an error (spec.md §7
// Unavailable: "no fatal effect"). It fills CPUTime, CPUPercent, RSS and
// PeakRSS; the network, disk and ETA fields are left zero.
func (c *Collector) Collect(ctx context.Context) PhaseMetrics {
	c.mu.Lock()
	proc := c.proc
	baselineCPU := c.baselineCPU
	baseTime := c.baseTime
	running := c.running
	c.mu.Unlock()

	if !running || proc == nil {
		return PhaseMetrics{Available: false, ErrorMessage: "process not accessible"}
	}

	exists, err := proc.IsRunningWithContext(ctx)
	if err != nil || !exists {
		return PhaseMetrics{Available: false, ErrorMessage: "process not accessible"}
	}

	pm := PhaseMetrics{Available: true}

	if times, err := proc.TimesWithContext(ctx); err == nil {
		cpuTime := times.User + times.System
		pm.CPUTime = time.Duration(cpuTime * float64(time.Second))
		elapsed := time.Since(baseTime).Seconds()
		if elapsed > 0 {
			pm.CPUPercent = ((cpuTime - baselineCPU) / elapsed) * 100
		}
	} else {
		pm.ErrorMessage = err.Error()
	}

	if mi, err := proc.MemoryInfoWithContext(ctx); err == nil && mi != nil {
		pm.RSS = mi.RSS
		c.mu.Lock()
		if mi.RSS > c.peakRSS {
			c.peakRSS = mi.RSS
		}
		pm.PeakRSS = c.peakRSS
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.lastSample = time.Now()
	c.mu.Unlock()

	return pm
}
