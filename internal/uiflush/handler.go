// Package uiflush bridges the high-frequency stream-event pipeline to a
// human-paced UI (spec.md §4.8). Every event of a job, Output included, is
// appended to a per-tab queue; a background flusher drains every queue at
// up to max_fps Hz, in batches of up to max_batch_size, and folds them into
// a renderable TabState.
//
// Output events leave TabState unchanged when applied: the phase runner
// feeds a job's raw PTY bytes into its term.Screen synchronously and in
// order (preserving the ANSI/VT byte stream the emulator needs), so the
// screen is always current; the events that change TabState are progress,
// phase transitions, and completion — the parts that drive status text,
// ETA, and the tab's dirty flag, which is what actually needs rate
// limiting for a human-paced render loop (spec.md §9 Design Notes,
// "batching/rate-limit parameters must be exposed for tests").
//
// The tick/DataUpdateEvent shape follows the teacher's pkg/app
// (tick.go/events.go): a periodic Cmd feeding typed events into a model.
package uiflush

import (
	"sync"
	"time"

	"gitlab.com/tinyland/lab/pmrun/pkg/event"
)

// DefaultMaxFPS and DefaultMaxBatchSize are the spec.md §4.8 defaults.
const (
	DefaultMaxFPS       = 30
	DefaultMaxBatchSize = 100
	defaultQueueCap     = 1000
)

// TabState is the renderable, per-job state the flusher maintains.
// Consumers (the bubbletea program) read it under the handler's mutex via Handler.Tab.
type TabState struct {
	Plugin       string
	CurrentPhase event.Phase
	HasPhase     bool
	LastProgress event.ProgressPayload
	HasProgress  bool
	Status       string
	StatusError  string
	Dirty        bool
}

// Handler batches and rate-limits the event stream for every tab
// (spec.md §4.8).
type Handler struct {
	maxFPS       int
	batchSize    int
	queueCap     int
	tickInterval time.Duration

	mu      sync.Mutex
	queues  map[string][]event.Event
	dropped map[string]int
	tabs    map[string]*TabState

	stop chan struct{}
	once sync.Once
}

// New returns a Handler with the given tuning knobs; zero values take the
// spec.md §4.8 defaults. Tests set MaxFPS high and the interval low to get
// deterministic, fast batches (spec.md §9 Design Notes).
func New(maxFPS, maxBatchSize, queueCap int) *Handler {
	if maxFPS <= 0 {
		maxFPS = DefaultMaxFPS
	}
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	if queueCap <= 0 {
		queueCap = defaultQueueCap
	}
	return &Handler{
		maxFPS:       maxFPS,
		batchSize:    maxBatchSize,
		queueCap:     queueCap,
		tickInterval: time.Second / time.Duration(maxFPS),
		queues:       make(map[string][]event.Event),
		dropped:      make(map[string]int),
		tabs:         make(map[string]*TabState),
		stop:         make(chan struct{}),
	}
}

// Enqueue appends e to its plugin's queue. When the queue is already at
// capacity, the oldest queued event is dropped to make room (spec.md §5
// backpressure: "newest events are kept, oldest dropped with a drop
// counter exposed to tests").
func (h *Handler) Enqueue(e event.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	q := h.queues[e.Plugin]
	if len(q) >= h.queueCap {
		q = q[1:]
		h.dropped[e.Plugin]++
	}
	h.queues[e.Plugin] = append(q, e)
	if _, ok := h.tabs[e.Plugin]; !ok {
		h.tabs[e.Plugin] = &TabState{Plugin: e.Plugin}
	}
}

// Dropped returns how many events have been dropped for plugin so far.
func (h *Handler) Dropped(plugin string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped[plugin]
}

// Flush drains up to max_batch_size queued events per tab and folds them
// into that tab's TabState. Bursts larger than max_batch_size are left for
// the next Flush call (spec.md §4.8 "split across ticks").
func (h *Handler) Flush() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, q := range h.queues {
		if len(q) == 0 {
			continue
		}
		n := len(q)
		if n > h.batchSize {
			n = h.batchSize
		}
		batch := q[:n]
		h.queues[name] = q[n:]

		tab := h.tabs[name]
		if tab == nil {
			tab = &TabState{Plugin: name}
			h.tabs[name] = tab
		}
		for _, e := range batch {
			applyEvent(tab, e)
		}
		tab.Dirty = true
	}
}

func applyEvent(tab *TabState, e event.Event) {
	switch e.Kind {
	case event.KindPhaseStart:
		tab.CurrentPhase = e.PhaseStart.Phase
		tab.HasPhase = true
		tab.Status = "running"
	case event.KindPhaseEnd:
		tab.HasPhase = false
		if e.PhaseEnd.Success {
			tab.Status = "phase ok"
		} else {
			tab.Status = "phase failed"
			tab.StatusError = e.PhaseEnd.Error
		}
	case event.KindProgress:
		tab.LastProgress = *e.Progress
		tab.HasProgress = true
	case event.KindCompletion:
		tab.HasPhase = false
		if e.Completion.Success {
			tab.Status = "done"
		} else {
			tab.Status = "failed"
			tab.StatusError = e.Completion.Error
		}
	}
}

// Tab returns a copy of the named tab's current state.
func (h *Handler) Tab(plugin string) (TabState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.tabs[plugin]
	if !ok {
		return TabState{}, false
	}
	return *t, true
}

// ClearDirty resets the dirty flag for plugin, e.g. after the renderer has
// drawn the tab.
func (h *Handler) ClearDirty(plugin string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.tabs[plugin]; ok {
		t.Dirty = false
	}
}

// Run starts the background flusher, ticking at max_fps Hz until Stop is
// called. On shutdown it performs one final Flush so no queued events are
// lost (spec.md §4.8 "On shutdown, any queued events are drained before
// stopping").
func (h *Handler) Run() {
	ticker := time.NewTicker(h.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.Flush()
		case <-h.stop:
			h.Flush()
			return
		}
	}
}

// Stop halts the background flusher started by Run.
func (h *Handler) Stop() {
	h.once.Do(func() { close(h.stop) })
}
