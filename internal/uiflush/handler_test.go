package uiflush

import (
	"testing"
	"time"

	"gitlab.com/tinyland/lab/pmrun/pkg/event"
)

func TestFlushAppliesBatchedEvents(t *testing.T) {
	h := New(1000, 100, 10)
	now := time.Now().UTC()
	h.Enqueue(event.NewPhaseStart("apt", event.PhaseCheck, now))
	h.Enqueue(event.NewProgress("apt", event.ProgressPayload{Phase: event.PhaseCheck, Message: "hi"}, now))

	if _, ok := h.Tab("apt"); !ok {
		t.Fatal("tab should exist immediately on enqueue")
	}

	h.Flush()

	tab, ok := h.Tab("apt")
	if !ok {
		t.Fatal("expected tab apt")
	}
	if !tab.HasPhase || tab.CurrentPhase != event.PhaseCheck {
		t.Errorf("tab phase not applied: %+v", tab)
	}
	if !tab.HasProgress || tab.LastProgress.Message != "hi" {
		t.Errorf("progress not applied: %+v", tab)
	}
	if !tab.Dirty {
		t.Error("tab should be marked dirty after flush")
	}
}

func TestFlushSplitsBurstsAcrossTicks(t *testing.T) {
	h := New(1000, 2, 100)
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		h.Enqueue(event.NewOutput("apt", "line", event.StreamStdout, now))
	}

	h.Flush()
	h.mu.Lock()
	remaining := len(h.queues["apt"])
	h.mu.Unlock()
	if remaining != 3 {
		t.Fatalf("expected 3 events left after first flush of batch size 2, got %d", remaining)
	}

	h.Flush()
	h.Flush()
	h.mu.Lock()
	remaining = len(h.queues["apt"])
	h.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected queue drained after enough flushes, got %d", remaining)
	}
}

func TestBackpressureDropsOldestAndCountsDrops(t *testing.T) {
	h := New(1000, 100, 3)
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		h.Enqueue(event.NewOutput("apt", "line", event.StreamStdout, now))
	}

	if d := h.Dropped("apt"); d != 2 {
		t.Fatalf("Dropped = %d, want 2", d)
	}
	h.mu.Lock()
	qlen := len(h.queues["apt"])
	h.mu.Unlock()
	if qlen != 3 {
		t.Fatalf("queue length = %d, want capped at 3", qlen)
	}
}

func TestRunFlushesOnStop(t *testing.T) {
	h := New(1000, 100, 100)
	now := time.Now().UTC()
	h.Enqueue(event.NewPhaseStart("apt", event.PhaseCheck, now))

	done := make(chan struct{})
	go func() {
		h.Run()
		close(done)
	}()
	h.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}

	tab, ok := h.Tab("apt")
	if !ok || !tab.HasPhase {
		t.Fatalf("expected final flush to apply queued event before stop, got %+v ok=%v", tab, ok)
	}
}
