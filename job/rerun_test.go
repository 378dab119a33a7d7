package job

import (
	"sync"
	"testing"
	"time"

	"github.com/vexxhost/batchd/worktask"
)

type fakeMom struct {
	mu        sync.Mutex
	calls     []string
	neverAcks bool
}

func (m *fakeMom) SignalRerun(jobID string, reply func(ok bool)) {
	m.mu.Lock()
	m.calls = append(m.calls, jobID)
	m.mu.Unlock()
	if !m.neverAcks {
		reply(true)
	}
}

func newRunningExecutor(t *testing.T) *worktask.Executor {
	t.Helper()
	exec := worktask.NewExecutor(16)
	go exec.Run()
	t.Cleanup(exec.Stop)
	return exec
}

func TestRerunRejectsNonRunningJob(t *testing.T) {
	exec := newRunningExecutor(t)
	rr := &Rerunner{Exec: exec, Mom: &fakeMom{}}
	j := New("1.batchd", "workq")

	if err := rr.Rerun(j, false); err == nil {
		t.Fatal("expected error rerunning a job that is not running")
	}
}

func TestRerunNonForceReleasesHoldsAndSetsSubRerun(t *testing.T) {
	exec := newRunningExecutor(t)
	mom := &fakeMom{}
	rr := &Rerunner{Exec: exec, Mom: mom}
	j := New("1.batchd", "workq")
	j.Flags |= FlagHeld
	j.SetState(StateRunning, SubRunning)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50 && j.Sub != SubRerun; i++ {
			time.Sleep(10 * time.Millisecond)
		}
		close(done)
	}()
	if err := rr.Rerun(j, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for rerun to complete")
	}
	if j.Sub != SubRerun {
		t.Fatalf("want substate RERUN, got %d", j.Sub)
	}
	if j.Flags.Has(FlagHeld) {
		t.Fatal("want runone holds released")
	}
}

func TestRerunForceSetsDiscardingAndSchedulesWatchdog(t *testing.T) {
	exec := newRunningExecutor(t)
	mom := &fakeMom{}
	rr := &Rerunner{Exec: exec, Mom: mom, Timeout: 50 * time.Millisecond}
	j := New("1.batchd", "workq")
	j.SetState(StateRunning, SubRunning)

	if err := rr.Rerun(j, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.Sub != SubRerun3 {
		t.Fatalf("want SubRerun3 immediately after force rerun, got %d", j.Sub)
	}
	if !j.Flags.Has(FlagDiscarding) {
		t.Fatal("want discarding flag set")
	}
	if len(j.OutstandingTasks()) != 1 {
		t.Fatalf("want one watchdog task tracked, got %d", len(j.OutstandingTasks()))
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if j.St == StateQueued {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if j.St != StateQueued {
		t.Fatalf("want job requeued once mom acknowledges, got state %c", j.St)
	}
	if j.Flags.Has(FlagDiscarding) {
		t.Fatal("want discarding flag cleared after requeue")
	}
}

func TestRerunForceWatchdogFailsPendingRerunOnTimeout(t *testing.T) {
	exec := newRunningExecutor(t)
	mom := &fakeMom{neverAcks: true}
	rr := &Rerunner{Exec: exec, Mom: mom, Timeout: 20 * time.Millisecond}
	j := New("1.batchd", "workq")
	j.SetState(StateRunning, SubRunning)

	if err := rr.Rerun(j, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if j.St == StateQueued {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if j.St != StateQueued {
		t.Fatalf("want watchdog to force-requeue the job after timeout, got state %c", j.St)
	}
}
