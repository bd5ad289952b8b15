// Package orchestrator implements the admission, concurrency, dependency,
// and lifecycle control described in spec.md §4.6: it turns a set of
// admitted plugins into a controlled, concurrent run under policies.
//
// The state-machine/focus bookkeeping shape follows the teacher's AppModel
// navigation and pkg/collectors.Registry map-of-named-things pattern,
// generalized from "collectors polled on an interval" to "jobs admitted
// under a concurrency budget, a dependency DAG, and named mutex locks".
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"gitlab.com/tinyland/lab/pmrun/internal/depgraph"
	"gitlab.com/tinyland/lab/pmrun/internal/metrics"
	"gitlab.com/tinyland/lab/pmrun/internal/mutexreg"
	"gitlab.com/tinyland/lab/pmrun/internal/phaserunner"
	"gitlab.com/tinyland/lab/pmrun/internal/plugin"
	"gitlab.com/tinyland/lab/pmrun/pkg/event"
	"gitlab.com/tinyland/lab/pmrun/pkg/term"
)

// JobState is a job's position in the spec.md §4.6 state machine.
type JobState int

const (
	JobPending JobState = iota
	JobWaiting
	JobRunning
	JobDone
	JobFailed
	JobSkipped
	JobCancelled
)

func (s JobState) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobWaiting:
		return "waiting"
	case JobRunning:
		return "running"
	case JobDone:
		return "done"
	case JobFailed:
		return "failed"
	case JobSkipped:
		return "skipped"
	case JobCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Config holds the global run policies (spec.md §4.6 "global options").
type Config struct {
	MaxConcurrent      int
	ContinueOnError    bool
	DryRun             bool
	PauseBetweenPhases bool
	MaxRetries         int
	DefaultStallAfter  time.Duration
	Env                []string
	Cwd                string
	Cols, Rows         int
}

// Job is the runtime instance of one plugin for one orchestrator run
// (spec.md §3). Its mutable fields are guarded by the owning Orchestrator's
// mutex; callers read it through Orchestrator.Jobs/Job.
type Job struct {
	Name            string
	State           JobState
	CurrentPhase    event.Phase
	HasCurrentPhase bool
	ExitCode        int
	Error           string
	PackagesUpdated int64
	WaitSince       time.Time

	Store  *metrics.Store
	Screen *term.Screen
	Runner *phaserunner.Runner

	desc plugin.PluginDescriptor
}

// ConfigError reports a pre-run validation failure (spec.md §7
// DepCycle/SelfDep/MissingDep); the CLI maps it to exit code 2.
type ConfigError struct {
	Cause error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("orchestrator: invalid configuration: %v", e.Cause) }
func (e *ConfigError) Unwrap() error  { return e.Cause }

// Sink receives every event produced by any job's phase runner, in
// per-job production order (spec.md §5).
type Sink func(event.Event)

// Orchestrator schedules and runs a set of plugins under Config (spec.md
// §4.6). It owns the mutex registry and dependency state; phase runners
// interact with those only through the methods this package exposes.
type Orchestrator struct {
	runID   string
	cfg     Config
	mutexes *mutexreg.Registry
	sink    Sink

	mu      sync.Mutex
	jobs    map[string]*Job
	order   []string
	graph   *depgraph.Graph
	running int

	doneForDeps map[string]bool // success, or failed-but-continue_on_error
	completions chan string

	hardErr error // set if a job goroutine panicked; a programmer-error path, not a job failure
}

// New builds an Orchestrator for the given plugin descriptors.
// ConfigError is returned (not a job-level failure) if the dependency
// graph is invalid; the run never starts in that case.
func New(descs []plugin.PluginDescriptor, cfg Config, sink Sink) (*Orchestrator, error) {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	names := make([]string, 0, len(descs))
	deps := make(map[string][]string, len(descs))
	for _, d := range descs {
		names = append(names, d.Name)
		deps[d.Name] = d.DependsOn
	}
	graph := depgraph.New(names, deps)
	if err := graph.Validate(); err != nil {
		return nil, &ConfigError{Cause: err}
	}

	o := &Orchestrator{
		runID:       uuid.NewString(),
		cfg:         cfg,
		mutexes:     mutexreg.NewRegistry(),
		sink:        sink,
		jobs:        make(map[string]*Job, len(descs)),
		order:       names,
		graph:       graph,
		doneForDeps: make(map[string]bool, len(descs)),
		completions: make(chan string, len(descs)),
	}

	now := time.Now()
	for _, d := range descs {
		store := metrics.NewStore()
		screen := term.NewScreen(cfg.Cols, cfg.Rows, 0)
		j := &Job{
			Name:      d.Name,
			State:     JobWaiting,
			WaitSince: now,
			Store:     store,
			Screen:    screen,
			desc:      d,
		}
		j.Runner = phaserunner.New(d, o.mutexes, store, screen, o.jobSink(d.Name), phaserunner.Options{
			DryRun:             cfg.DryRun,
			PauseBetweenPhases: cfg.PauseBetweenPhases,
			MaxRetries:         cfg.MaxRetries,
			DefaultStallAfter:  cfg.DefaultStallAfter,
			Env:                cfg.Env,
			Cwd:                cfg.Cwd,
			Cols:               cfg.Cols,
			Rows:               cfg.Rows,
		})
		o.jobs[d.Name] = j
	}
	return o, nil
}

// jobSink wraps the orchestrator-wide sink with the per-job bookkeeping
// (current phase, packages-updated tally) that the UI and Summary need.
func (o *Orchestrator) jobSink(name string) phaserunner.Sink {
	return func(e event.Event) {
		o.mu.Lock()
		j := o.jobs[name]
		switch e.Kind {
		case event.KindPhaseStart:
			j.CurrentPhase = e.PhaseStart.Phase
			j.HasCurrentPhase = true
		case event.KindPhaseEnd:
			j.HasCurrentPhase = false
		case event.KindCompletion:
			j.ExitCode = e.Completion.ExitCode
			j.Error = e.Completion.Error
			j.PackagesUpdated = e.Completion.PackagesUpdated
		}
		o.mu.Unlock()
		if o.sink != nil {
			o.sink(e)
		}
	}
}

// Run executes the main scheduling loop (spec.md §4.6) until every job
// reaches a terminal state, or ctx is cancelled, in which case every
// Running job is signalled to cancel and Run waits for their cleanup
// before returning.
//
// Per-job goroutines are supervised by an errgroup.Group (spec.md §5
// [ADD]): a job's own failure is a terminal state recorded on its Job and
// never returned as an error from the goroutine, but a panic recovered
// from a phase runner is a programmer error, propagated through the
// group so it cancels every other in-flight job's context and is
// retrievable via HardError after Run returns.
func (o *Orchestrator) Run(ctx context.Context) {
	runCtx, cancelAll := context.WithCancel(ctx)
	defer cancelAll()
	g, gctx := errgroup.WithContext(runCtx)

	for {
		o.admitReady(gctx, g)
		o.skipBlockedJobs()

		if o.allTerminal() {
			break
		}

		select {
		case <-ctx.Done():
			cancelAll()
			_ = g.Wait()
			o.mu.Lock()
			for _, name := range o.order {
				j := o.jobs[name]
				if j.State == JobRunning || j.State == JobWaiting {
					j.State = JobCancelled
					j.Error = "cancelled"
				}
			}
			o.mu.Unlock()
			return
		case name := <-o.completions:
			o.mu.Lock()
			j := o.jobs[name]
			o.running--
			if j.Error == "cancelled" {
				j.State = JobCancelled
			} else if j.ExitCode == 0 && j.Error == "" {
				j.State = JobDone
				o.doneForDeps[name] = true
			} else {
				j.State = JobFailed
				if o.cfg.ContinueOnError {
					o.doneForDeps[name] = true
				}
			}
			o.mu.Unlock()
		case <-time.After(20 * time.Millisecond):
			// Re-scan: a job may have become ready without a completion
			// (e.g. the very first admission pass).
		}
	}

	if err := g.Wait(); err != nil {
		o.mu.Lock()
		o.hardErr = err
		o.mu.Unlock()
	}
}

// HardError returns the programmer-error (panic) that stopped the run
// early, if any; nil for a normal run, even one with failed jobs.
func (o *Orchestrator) HardError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hardErr
}

// admitReady transitions every Waiting job whose dependencies are
// satisfied into Running, up to the concurrency budget, offering slots to
// the longest-waiting ready job first (spec.md §4.6 fairness).
func (o *Orchestrator) admitReady(ctx context.Context, g *errgroup.Group) {
	o.mu.Lock()
	if o.running >= o.cfg.MaxConcurrent {
		o.mu.Unlock()
		return
	}
	done := make(map[string]bool, len(o.doneForDeps))
	for k, v := range o.doneForDeps {
		done[k] = v
	}
	ready := o.graph.Ready(done)

	var candidates []*Job
	for _, name := range ready {
		j := o.jobs[name]
		if j.State == JobWaiting {
			candidates = append(candidates, j)
		}
	}
	sort.SliceStable(candidates, func(i, k int) bool {
		return candidates[i].WaitSince.Before(candidates[k].WaitSince)
	})

	var toStart []*Job
	for _, j := range candidates {
		if o.running >= o.cfg.MaxConcurrent {
			break
		}
		j.State = JobRunning
		o.running++
		toStart = append(toStart, j)
	}
	o.mu.Unlock()

	for _, j := range toStart {
		j := j
		g.Go(func() (hardErr error) {
			defer func() {
				if r := recover(); r != nil {
					hardErr = fmt.Errorf("orchestrator: job %q panicked: %v", j.Name, r)
					o.mu.Lock()
					j.Error = hardErr.Error()
					o.mu.Unlock()
					o.completions <- j.Name
				}
			}()
			completion := j.Runner.Run(ctx)
			o.mu.Lock()
			if completion.Error == "" && completion.Success {
				j.Error = ""
			} else {
				j.Error = completion.Error
			}
			j.ExitCode = completion.ExitCode
			o.mu.Unlock()
			o.completions <- j.Name
			return nil
		})
	}
}

// skipBlockedJobs marks any Waiting job as Skipped once it can never
// become ready: one of its (transitive) dependencies failed and
// continue_on_error is not set, so Ready() will never include it. Runs to
// a fixed point so multi-level dependency chains are fully propagated.
func (o *Orchestrator) skipBlockedJobs() {
	o.mu.Lock()
	defer o.mu.Unlock()

	changed := true
	for changed {
		changed = false
		for _, name := range o.order {
			j := o.jobs[name]
			if j.State != JobWaiting {
				continue
			}
			for _, dep := range o.graph.DepsOf(name) {
				depJob := o.jobs[dep]
				blocked := depJob.State == JobFailed || depJob.State == JobSkipped || depJob.State == JobCancelled
				if blocked && !o.doneForDeps[dep] {
					j.State = JobSkipped
					j.Error = fmt.Sprintf("dependency %q did not complete", dep)
					changed = true
					break
				}
			}
		}
	}
}

// allTerminal reports whether every job has reached Done, Failed, Skipped
// or Cancelled.
func (o *Orchestrator) allTerminal() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, name := range o.order {
		switch o.jobs[name].State {
		case JobDone, JobFailed, JobSkipped, JobCancelled:
		default:
			return false
		}
	}
	return true
}

// RunID returns the unique identifier generated for this orchestrator run,
// used to tag log lines and the summary table so multiple runs' output
// (e.g. in a CI log) can be told apart.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Jobs returns a stable-ordered snapshot of every job's current state.
func (o *Orchestrator) Jobs() []Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Job, 0, len(o.order))
	for _, name := range o.order {
		out = append(out, *o.jobs[name])
	}
	return out
}

// Job returns the named job, if present.
func (o *Orchestrator) Job(name string) (*Job, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	j, ok := o.jobs[name]
	return j, ok
}

// Mutexes exposes the run's mutex registry, e.g. for tests asserting
// exclusion/fairness directly.
func (o *Orchestrator) Mutexes() *mutexreg.Registry { return o.mutexes }

// SummaryRow is one line of the run-end summary table (spec.md §[ADD]
// "Run summary table", recovered from original_source/).
type SummaryRow struct {
	Plugin          string
	PhaseReached    string
	Status          string
	PackagesUpdated int64
	WallTime        time.Duration
}

// Summary builds the run-end summary table, one row per job, in
// registration order.
func (o *Orchestrator) Summary() []SummaryRow {
	o.mu.Lock()
	defer o.mu.Unlock()

	rows := make([]SummaryRow, 0, len(o.order))
	for _, name := range o.order {
		j := o.jobs[name]
		acc := j.Store.Accumulated()
		phase := "-"
		if snaps := j.Store.AllSnapshots(); len(snaps) > 0 {
			// Report the last phase with a snapshot, in Check/Download/Execute
			// order, as the phase reached.
			for _, p := range []event.Phase{event.PhaseExecute, event.PhaseDownload, event.PhaseCheck} {
				if _, ok := snaps[p.String()]; ok {
					phase = p.Display()
					break
				}
			}
		}
		rows = append(rows, SummaryRow{
			Plugin:          name,
			PhaseReached:    phase,
			Status:          j.State.String(),
			PackagesUpdated: j.PackagesUpdated,
			WallTime:        acc.WallTime,
		})
	}
	return rows
}

// ExitCode derives the process exit code from the run's outcome, per
// spec.md §6: 0 if everything enabled succeeded, 1 if anything failed
// (even under continue_on_error).
func (o *Orchestrator) ExitCode() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, name := range o.order {
		if o.jobs[name].State == JobFailed || o.jobs[name].State == JobCancelled {
			return 1
		}
	}
	return 0
}
