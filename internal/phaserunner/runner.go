// Package phaserunner executes one plugin's Check/Download/Execute
// sequence as a single operation over one or more PTY sessions and
// produces the stream-event sequence consumed by the metrics collector
// and the terminal UI (spec.md §4.3).
//
// The shape — run blocking child-process work in a goroutine and report
// back through a typed event — is the same one the teacher's
// pkg/app/tick.go DataFetchCmd uses for its collector goroutines,
// generalized here from a single tea.Cmd return value to a streamed
// sequence of event.Event values delivered through a callback.
package phaserunner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"syscall"
	"time"

	"gitlab.com/tinyland/lab/pmrun/internal/metrics"
	"gitlab.com/tinyland/lab/pmrun/internal/mutexreg"
	"gitlab.com/tinyland/lab/pmrun/internal/plugin"
	"gitlab.com/tinyland/lab/pmrun/pkg/event"
	"gitlab.com/tinyland/lab/pmrun/pkg/ptysession"
	"gitlab.com/tinyland/lab/pmrun/pkg/term"
)

// PhaseStatus is the per-phase outcome recorded on a Job (spec.md §3).
type PhaseStatus int

const (
	StatusPending PhaseStatus = iota
	StatusRunning
	StatusSucceeded
	StatusFailed
	StatusSkipped
	StatusTimedOut
	StatusCancelled
)

func (s PhaseStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	case StatusTimedOut:
		return "timed_out"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// readPollInterval bounds how often the read loop checks for stall/cancel
// conditions between PTY reads.
const readPollInterval = 200 * time.Millisecond

// noUpdateSentinel is the literal line a Check phase prints to signal that
// Download/Execute should be skipped. The real plugin bodies are out of
// scope (spec.md §1); this is the demo/test convention this package uses,
// chosen because spec.md leaves the exact signal unspecified.
const noUpdateSentinel = "NO_UPDATE_NEEDED"

// Options configures one Runner invocation.
type Options struct {
	DryRun              bool
	PauseBetweenPhases  bool
	MaxRetries          int // fallback when the plugin descriptor sets none
	DefaultStallAfter   time.Duration
	CancelGracePeriod   time.Duration // default ptysession.DefaultGracePeriod
	Env                 []string
	Cwd                 string
	Cols, Rows          int
}

// Sink receives events as they are produced. Runner guarantees in-order
// delivery for a single plugin (spec.md §5 "within a job").
type Sink func(event.Event)

// Runner drives one plugin's phase sequence (spec.md §4.3).
type Runner struct {
	desc    plugin.PluginDescriptor
	mutexes *mutexreg.Registry
	store   *metrics.Store
	screen  *term.Screen
	sink    Sink
	opts    Options

	mu            sync.Mutex
	session       *ptysession.Session
	phaseStatus   map[event.Phase]PhaseStatus
	retries       map[event.Phase]int
	noUpdateFound bool
	lastPhase     event.Phase
	continueCh    chan struct{}
	paused        bool
}

// New returns a Runner for desc. store and screen are owned by the tab and
// outlive the Runner; mutexes is the orchestrator-wide registry.
func New(desc plugin.PluginDescriptor, mutexes *mutexreg.Registry, store *metrics.Store, screen *term.Screen, sink Sink, opts Options) *Runner {
	if opts.CancelGracePeriod <= 0 {
		opts.CancelGracePeriod = ptysession.DefaultGracePeriod
	}
	if opts.Cols <= 0 {
		opts.Cols = 80
	}
	if opts.Rows <= 0 {
		opts.Rows = 24
	}
	return &Runner{
		desc:        desc,
		mutexes:     mutexes,
		store:       store,
		screen:      screen,
		sink:        sink,
		opts:        opts,
		phaseStatus: make(map[event.Phase]PhaseStatus),
		retries:     make(map[event.Phase]int),
	}
}

// Write forwards keystroke bytes to the currently active phase's PTY, if
// any. It is a no-op (returns nil) between phases or once the run has
// finished, since there is no live session to receive them.
func (r *Runner) Write(data []byte) error {
	r.mu.Lock()
	sess := r.session
	r.mu.Unlock()
	if sess == nil {
		return nil
	}
	return sess.Write(data)
}

// Resize propagates a terminal resize to the currently active phase's PTY,
// if any, so SIGWINCH-driven reflow reaches the child process.
func (r *Runner) Resize(cols, rows int) error {
	r.mu.Lock()
	sess := r.session
	r.mu.Unlock()
	if sess == nil {
		return nil
	}
	return sess.Resize(cols, rows)
}

// PhaseStatus returns the last recorded status for phase.
func (r *Runner) PhaseStatus(p event.Phase) PhaseStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phaseStatus[p]
}

// Continue releases a job paused between phases (spec.md §4.6
// pause_between_phases); it is a no-op if the job is not currently paused.
func (r *Runner) Continue() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paused && r.continueCh != nil {
		close(r.continueCh)
		r.continueCh = nil
		r.paused = false
	}
}

// ErrRetryNotAllowed is returned by Retry when the job is neither paused
// between phases nor in a Failed/TimedOut terminal state, or when the
// plugin's retry cap has been exhausted (spec.md §4.3).
var ErrRetryNotAllowed = fmt.Errorf("phaserunner: retry not allowed in the current state")

func (r *Runner) phaseList() []struct {
	phase event.Phase
	spec  plugin.PhaseSpec
	run   bool
} {
	return []struct {
		phase event.Phase
		spec  plugin.PhaseSpec
		run   bool
	}{
		{event.PhaseCheck, r.desc.Check, true},
		{event.PhaseDownload, r.desc.Download, r.desc.SupportsSeparateDownload},
		{event.PhaseExecute, r.desc.Execute, true},
	}
}

// Run executes Check, then Download (if the plugin supports a separate
// download step), then Execute, and returns the final Completion payload
// (spec.md §4.3). When Check reports "no update needed", both Download and
// Execute are skipped.
func (r *Runner) Run(ctx context.Context) event.CompletionPayload {
	return r.runFrom(ctx, event.PhaseCheck)
}

// Retry re-enters the sequence at the phase that last failed. It is only
// valid when the job is paused between phases or its last phase ended
// Failed/TimedOut, and only while the plugin's retry cap (MaxRetries, or
// Options.MaxRetries as a fallback) has not been exhausted; otherwise it
// returns ErrRetryNotAllowed without touching any state. A successful call
// overwrites the snapshot of the retried phase (spec.md §4.3).
func (r *Runner) Retry(ctx context.Context) (event.CompletionPayload, error) {
	r.mu.Lock()
	failedPhase := r.lastPhase
	status := r.phaseStatus[failedPhase]
	paused := r.paused
	retryCap := r.desc.MaxRetries
	if retryCap <= 0 {
		retryCap = r.opts.MaxRetries
	}
	attempts := r.retries[failedPhase]
	r.mu.Unlock()

	if !paused && status != StatusFailed && status != StatusTimedOut {
		return event.CompletionPayload{}, ErrRetryNotAllowed
	}
	if retryCap > 0 && attempts >= retryCap {
		return event.CompletionPayload{}, ErrRetryNotAllowed
	}

	r.mu.Lock()
	r.retries[failedPhase]++
	r.paused = false
	r.mu.Unlock()

	return r.runFrom(ctx, failedPhase), nil
}

// runFrom executes the phase sequence starting at startAt (inclusive).
func (r *Runner) runFrom(ctx context.Context, startAt event.Phase) event.CompletionPayload {
	allPhases := r.phaseList()
	var phases []struct {
		phase event.Phase
		spec  plugin.PhaseSpec
		run   bool
	}
	started := false
	for _, p := range allPhases {
		if p.phase == startAt {
			started = true
		}
		if started {
			phases = append(phases, p)
		}
	}

	success := true
	lastExit := 0
	var packagesUpdated int64
	var lastErr string

	for i, p := range phases {
		if !p.run || r.skippedByNoUpdate() {
			r.setStatus(p.phase, StatusSkipped)
			continue
		}

		status, exitCode, items, errMsg := r.runOnePhase(ctx, p.phase, p.spec)
		r.setStatus(p.phase, status)
		lastExit = exitCode
		if p.phase == event.PhaseExecute {
			packagesUpdated += items
		}

		if status != StatusSucceeded && status != StatusSkipped {
			success = false
			lastErr = errMsg
			// A failed/cancelled/timed-out phase ends the sequence; later
			// phases are left Pending rather than Skipped, since they were
			// never reached (spec.md's Skipped is reserved for the
			// no-update-needed case).
			break
		}

		if r.opts.PauseBetweenPhases && i < len(phases)-1 {
			if !r.waitForContinue(ctx) {
				success = false
				lastErr = "cancelled"
				break
			}
		}
	}

	completion := event.CompletionPayload{
		Success:         success,
		ExitCode:        lastExit,
		PackagesUpdated: packagesUpdated,
		Error:           lastErr,
	}
	r.emit(event.NewCompletion(r.desc.Name, success, lastExit, packagesUpdated, lastErr, time.Now().UTC()))
	return completion
}

func (r *Runner) skippedByNoUpdate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.noUpdateFound
}

func (r *Runner) setStatus(p event.Phase, s PhaseStatus) {
	r.mu.Lock()
	r.phaseStatus[p] = s
	r.lastPhase = p
	r.mu.Unlock()
}

func (r *Runner) waitForContinue(ctx context.Context) bool {
	r.mu.Lock()
	ch := make(chan struct{})
	r.continueCh = ch
	r.paused = true
	r.mu.Unlock()

	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	}
}

// runOnePhase runs a single phase to completion (or cancellation/timeout)
// and returns its terminal status, exit code, items-done count (Execute
// only), and error message.
func (r *Runner) runOnePhase(ctx context.Context, phase event.Phase, spec plugin.PhaseSpec) (PhaseStatus, int, int64, string) {
	r.setStatus(phase, StatusRunning)

	if len(spec.MutexNames) > 0 {
		if err := r.mutexes.AcquireAll(ctx, spec.MutexNames); err != nil {
			errMsg := "cancelled"
			r.emit(event.NewPhaseStart(r.desc.Name, phase, time.Now().UTC()))
			r.emit(event.NewPhaseEnd(r.desc.Name, phase, false, errMsg, time.Now().UTC()))
			return StatusCancelled, -1, 0, errMsg
		}
		defer r.mutexes.ReleaseAll(spec.MutexNames)
	}

	r.emit(event.NewPhaseStart(r.desc.Name, phase, time.Now().UTC()))
	start := time.Now()

	if r.opts.DryRun && phase != event.PhaseCheck {
		r.store.StartPhase(phase.String())
		r.emit(event.NewOutput(r.desc.Name, "dry-run", event.StreamStdout, time.Now().UTC()))
		r.emit(event.NewPhaseEnd(r.desc.Name, phase, true, "", time.Now().UTC()))
		r.store.SnapshotPhase(phase.String(), metrics.PhaseSnapshot{
			WallTime: time.Since(start), Start: start, End: time.Now(), Success: true,
		})
		return StatusSucceeded, 0, 0, ""
	}

	status, exitCode, items, errMsg := r.pumpPhase(ctx, phase, spec, start)
	return status, exitCode, items, errMsg
}

func (r *Runner) pumpPhase(ctx context.Context, phase event.Phase, spec plugin.PhaseSpec, start time.Time) (PhaseStatus, int, int64, string) {
	sess, err := ptysession.Open(spec.Command, r.opts.Env, r.opts.Cwd, r.opts.Cols, r.opts.Rows)
	if err != nil {
		errMsg := err.Error()
		r.emit(event.NewPhaseEnd(r.desc.Name, phase, false, errMsg, time.Now().UTC()))
		return StatusFailed, -1, 0, errMsg
	}

	r.mu.Lock()
	r.session = sess
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.session = nil
		r.mu.Unlock()
	}()

	collector := metrics.NewCollector(r.store)
	_ = collector.Start(ctx, sess.Pid())
	collector.StartPhase(phase.String())
	defer collector.Stop()

	var itemsDone int64
	var bytesReceived int64
	var buf bytes.Buffer
	stallThreshold := r.desc.StallAfter
	if stallThreshold <= 0 {
		stallThreshold = r.opts.DefaultStallAfter
	}
	lastData := time.Now()
	lastSample := time.Now()
	stalled := false

	sampleMetrics := func() {
		if time.Since(lastSample) < metrics.MinSampleInterval {
			return
		}
		lastSample = time.Now()
		pm := collector.Collect(ctx)
		if !pm.Available {
			return
		}
		peak := pm.PeakRSS
		collector.UpdatePhaseStats(&pm.CPUTime, &bytesReceived, &peak)
	}

	var timeoutCh <-chan time.Time
	if spec.Timeout > 0 {
		timer := time.NewTimer(spec.Timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

readLoop:
	for {
		select {
		case <-ctx.Done():
			r.terminate(sess)
			errMsg := "cancelled"
			r.emit(event.NewPhaseEnd(r.desc.Name, phase, false, errMsg, time.Now().UTC()))
			sess.Close()
			return StatusCancelled, -1, itemsDone, errMsg
		case <-timeoutCh:
			r.terminate(sess)
			errMsg := fmt.Sprintf("phase timed out after %s", spec.Timeout)
			r.emit(event.NewPhaseEnd(r.desc.Name, phase, false, errMsg, time.Now().UTC()))
			sess.Close()
			return StatusTimedOut, -1, itemsDone, errMsg
		default:
		}

		data, err := sess.Read(readPollInterval)
		if err != nil {
			if err == ptysession.ErrReadTimedOut {
				if stallThreshold > 0 && time.Since(lastData) >= stallThreshold && !stalled {
					stalled = true
					r.emit(event.NewProgress(r.desc.Name, event.ProgressPayload{Phase: phase, Message: "stalled"}, time.Now().UTC()))
				}
				sampleMetrics()
				continue
			}
			// io.EOF or any other terminal read error ends the loop; the
			// child's exit code is the authority on success.
			break readLoop
		}

		stalled = false
		lastData = time.Now()
		r.screen.Feed(data)

		bytesReceived += int64(len(data))
		buf.Write(data)
		itemsDone += r.drainLines(&buf, phase)
		sampleMetrics()
	}
	// Flush any trailing partial line as output.
	if buf.Len() > 0 {
		r.emitLine(phase, buf.String())
	}

	exitCode, _ := sess.Wait(0)
	sess.Close()

	wallTime := time.Since(start)
	success := exitCode == 0
	errMsg := ""
	if !success {
		errMsg = fmt.Sprintf("exit code %d", exitCode)
	}

	collector.CompletePhase(phase.String(), success, itemsDone, wallTime, start, time.Now())

	r.emit(event.NewPhaseEnd(r.desc.Name, phase, success, errMsg, time.Now().UTC()))

	if success {
		return StatusSucceeded, exitCode, itemsDone, ""
	}
	return StatusFailed, exitCode, itemsDone, errMsg
}

// terminate sends SIGTERM, waits the cancel grace period, then SIGKILL.
func (r *Runner) terminate(sess *ptysession.Session) {
	_ = sess.SendSignal(syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		sess.Wait(0)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(r.opts.CancelGracePeriod):
		_ = sess.SendSignal(syscall.SIGKILL)
	}
}

// drainLines consumes complete newline-terminated lines from buf, emitting
// either a Progress event (for a recognised PROGRESS sentinel) or an
// Output event for each, and returns the sum of any items_completed
// reported for the Execute phase.
func (r *Runner) drainLines(buf *bytes.Buffer, phase event.Phase) int64 {
	var items int64
	for {
		data := buf.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			return items
		}
		line := string(data[:idx])
		buf.Next(idx + 1)
		items += r.emitLine(phase, strings.TrimRight(line, "\r"))
	}
}

// emitLine classifies one line of child output: a PROGRESS sentinel, the
// no-update-needed marker, or plain Output. It returns items_completed
// when the line carried an Execute-phase progress update.
func (r *Runner) emitLine(phase event.Phase, line string) int64 {
	trimmed := strings.TrimSpace(line)
	if trimmed == noUpdateSentinel {
		r.mu.Lock()
		r.noUpdateFound = true
		r.mu.Unlock()
		return 0
	}

	if payload, ok := parseProgressSentinel(line); ok {
		r.emit(event.NewProgress(r.desc.Name, payload, time.Now().UTC()))
		if payload.Phase == event.PhaseExecute && payload.ItemsDone != nil {
			return *payload.ItemsDone
		}
		return 0
	}

	r.emit(event.NewOutput(r.desc.Name, line, event.StreamStdout, time.Now().UTC()))
	return 0
}

// progressSentinelPrefix is checked cheaply before attempting a full JSON
// parse, per spec.md §9 Design Notes.
const progressSentinelPrefix = "PROGRESS:{"

// progressWire is the JSON shape of a PROGRESS:{...} sentinel line
// (spec.md §6).
type progressWire struct {
	Phase            string   `json:"phase"`
	Percent          *float64 `json:"percent"`
	Message          string   `json:"message"`
	BytesDownloaded  *int64   `json:"bytes_downloaded"`
	BytesTotal       *int64   `json:"bytes_total"`
	ItemsCompleted   *int64   `json:"items_completed"`
	ItemsTotal       *int64   `json:"items_total"`
}

// parseProgressSentinel matches "^PROGRESS:\{.*\}$" and parses its JSON
// body. Malformed JSON is treated as ordinary output (spec.md §6, §7
// ParseError).
func parseProgressSentinel(line string) (event.ProgressPayload, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, progressSentinelPrefix) || !strings.HasSuffix(trimmed, "}") {
		return event.ProgressPayload{}, false
	}
	body := strings.TrimPrefix(trimmed, "PROGRESS:")

	var w progressWire
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return event.ProgressPayload{}, false
	}

	return event.ProgressPayload{
		Phase:           event.ParsePhase(w.Phase),
		Percent:         w.Percent,
		Message:         w.Message,
		BytesDownloaded: w.BytesDownloaded,
		BytesTotal:      w.BytesTotal,
		ItemsDone:       w.ItemsCompleted,
		ItemsTotal:      w.ItemsTotal,
	}, true
}

func (r *Runner) emit(e event.Event) {
	if r.sink != nil {
		r.sink(e)
	}
}
