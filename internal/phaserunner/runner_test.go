package phaserunner

import (
	"context"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/pmrun/internal/metrics"
	"gitlab.com/tinyland/lab/pmrun/internal/mutexreg"
	"gitlab.com/tinyland/lab/pmrun/internal/plugin"
	"gitlab.com/tinyland/lab/pmrun/pkg/event"
	"gitlab.com/tinyland/lab/pmrun/pkg/term"
)

func TestParseProgressSentinel(t *testing.T) {
	p, ok := parseProgressSentinel(`PROGRESS:{"phase":"execute","percent":50,"items_completed":3}`)
	if !ok {
		t.Fatal("expected sentinel to parse")
	}
	if p.Phase != event.PhaseExecute {
		t.Errorf("Phase = %v, want execute", p.Phase)
	}
	if p.Percent == nil || *p.Percent != 50 {
		t.Errorf("Percent = %v, want 50", p.Percent)
	}
	if p.ItemsDone == nil || *p.ItemsDone != 3 {
		t.Errorf("ItemsDone = %v, want 3", p.ItemsDone)
	}
}

func TestParseProgressSentinelUnknownPhaseDefaultsToExecute(t *testing.T) {
	p, ok := parseProgressSentinel(`PROGRESS:{"phase":"bogus"}`)
	if !ok {
		t.Fatal("expected sentinel to parse")
	}
	if p.Phase != event.PhaseExecute {
		t.Errorf("unknown phase should map to execute, got %v", p.Phase)
	}
}

func TestParseProgressSentinelRejectsMalformedJSON(t *testing.T) {
	if _, ok := parseProgressSentinel(`PROGRESS:{not json}`); ok {
		t.Fatal("malformed JSON should not parse as a sentinel")
	}
}

func TestParseProgressSentinelRejectsNonMatchingLines(t *testing.T) {
	if _, ok := parseProgressSentinel("just some output"); ok {
		t.Fatal("ordinary output line should not parse as a sentinel")
	}
}

func TestRunSleepPluginSucceeds(t *testing.T) {
	r := newTestRunner(t, sleepPlugin("ok", 0))
	completion := r.Run(context.Background())
	if !completion.Success {
		t.Fatalf("completion = %+v, want success", completion)
	}
	if _, ok := r.store.GetPhaseSnapshot("check"); !ok {
		t.Error("expected a check snapshot")
	}
	if _, ok := r.store.GetPhaseSnapshot("execute"); !ok {
		t.Error("expected an execute snapshot")
	}
}

func TestRunFailingExecuteStopsSequence(t *testing.T) {
	desc := sleepPlugin("fail", 0)
	desc.Execute = plugin.PhaseSpec{Command: []string{"sh", "-c", "exit 1"}}
	r := newTestRunner(t, desc)
	completion := r.Run(context.Background())
	if completion.Success {
		t.Fatal("expected failure")
	}
	if completion.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", completion.ExitCode)
	}
}

func TestRunCancellationMarksCancelled(t *testing.T) {
	desc := plugin.PluginDescriptor{
		Name: "slow",
		Check: plugin.PhaseSpec{Command: []string{"sh", "-c", "sleep 0.05"}},
		Execute: plugin.PhaseSpec{Command: []string{"sh", "-c", "sleep 10"}},
	}
	r := newTestRunnerWithOpts(t, desc, Options{CancelGracePeriod: 200 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	completion := r.Run(ctx)
	if completion.Success {
		t.Fatal("expected cancellation to fail the job")
	}
	if completion.Error != "cancelled" {
		t.Errorf("Error = %q, want \"cancelled\"", completion.Error)
	}
}

func sleepPlugin(name string, n int) plugin.PluginDescriptor {
	return plugin.PluginDescriptor{
		Name: name,
		Check: plugin.PhaseSpec{Command: []string{
			"sh", "-c", `echo 'PROGRESS:{"phase":"check","percent":100}'`,
		}},
		Execute: plugin.PhaseSpec{Command: []string{
			"sh", "-c", `echo 'PROGRESS:{"phase":"execute","items_completed":2}'; echo done`,
		}},
	}
}

func newTestRunner(t *testing.T, desc plugin.PluginDescriptor) *Runner {
	t.Helper()
	return newTestRunnerWithOpts(t, desc, Options{})
}

func newTestRunnerWithOpts(t *testing.T, desc plugin.PluginDescriptor, opts Options) *Runner {
	t.Helper()
	store := metrics.NewStore()
	screen := term.NewScreen(80, 24, 0)
	mutexes := mutexreg.NewRegistry()
	r := New(desc, mutexes, store, screen, func(event.Event) {}, opts)
	return r
}
