package metrics

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestCollectorCompletePhaseUsesLiveMetricsAndResetsThem(t *testing.T) {
	store := NewStore()
	c := NewCollector(store)
	if err := c.Start(context.Background(), os.Getpid()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	c.StartPhase("download")
	if got := store.CurrentPhase(); got != "download" {
		t.Fatalf("CurrentPhase() = %q, want download", got)
	}

	cpu := 20 * time.Millisecond
	dataBytes := int64(4096)
	peak := uint64(2048)
	c.UpdatePhaseStats(&cpu, &dataBytes, &peak)

	start := time.Now()
	snap := c.CompletePhase("download", true, 3, 500*time.Millisecond, start, start.Add(500*time.Millisecond))

	if snap.CPUTime != cpu || snap.DataBytes != dataBytes || snap.PeakMemory != peak {
		t.Fatalf("CompletePhase snapshot = %+v, want cpu=%v bytes=%d peak=%d", snap, cpu, dataBytes, peak)
	}
	if snap.Packages != 3 {
		t.Errorf("Packages = %d, want 3", snap.Packages)
	}
	if got, ok := store.GetPhaseSnapshot("download"); !ok || got != snap {
		t.Errorf("store snapshot mismatch: got=%+v ok=%v want=%+v", got, ok, snap)
	}
	if store.CurrentPhase() != "" {
		t.Errorf("CurrentPhase() after CompletePhase = %q, want empty", store.CurrentPhase())
	}

	// A second phase with no UpdatePhaseStats calls must not inherit the
	// previous phase's live readings.
	c.StartPhase("execute")
	snap2 := c.CompletePhase("execute", true, 1, 100*time.Millisecond, start, start.Add(100*time.Millisecond))
	if snap2.CPUTime != 0 || snap2.DataBytes != 0 || snap2.PeakMemory != 0 {
		t.Errorf("execute snapshot should start from reset live metrics, got %+v", snap2)
	}
}

func TestCollectorCollectReportsUnavailableBeforeStart(t *testing.T) {
	c := NewCollector(NewStore())
	pm := c.Collect(context.Background())
	if pm.Available {
		t.Error("Collect on an unstarted collector should report Available=false")
	}
	if pm.ErrorMessage == "" {
		t.Error("expected an ErrorMessage for an unavailable sample")
	}
}

func TestCollectorCollectLiveProcess(t *testing.T) {
	c := NewCollector(NewStore())
	if err := c.Start(context.Background(), os.Getpid()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	pm := c.Collect(context.Background())
	if !pm.Available {
		t.Fatalf("Collect on the running test process should be Available, got %+v", pm)
	}
}

func TestCollectorUpdatePIDPreservesStoreSnapshots(t *testing.T) {
	store := NewStore()
	store.SnapshotPhase("check", PhaseSnapshot{WallTime: time.Second, Success: true})

	c := NewCollector(store)
	_ = c.Start(context.Background(), os.Getpid())
	if err := c.UpdatePID(context.Background(), os.Getpid()); err != nil {
		t.Fatalf("UpdatePID: %v", err)
	}

	snap, ok := store.GetPhaseSnapshot("check")
	if !ok || snap.WallTime != time.Second {
		t.Fatalf("store mutated by UpdatePID: %+v ok=%v", snap, ok)
	}
}
