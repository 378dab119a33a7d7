package worktask

import (
	"testing"
	"time"
)

func TestExecutorRunsScheduledImmediateTask(t *testing.T) {
	e := NewExecutor(4)
	go e.Run()
	defer e.Stop()

	done := make(chan any, 1)
	e.Schedule(Immediate, func(t *Task) { done <- t.Parm1 }, "hello", nil, nil)

	select {
	case v := <-done:
		if v != "hello" {
			t.Fatalf("want hello, got %v", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for scheduled task to run")
	}
}

func TestExecutorRunsTimedTaskAtDeadline(t *testing.T) {
	e := NewExecutor(4)
	go e.Run()
	defer e.Stop()

	done := make(chan struct{}, 1)
	e.ScheduleAt(time.Now().Add(20*time.Millisecond), func(t *Task) { close(done) }, nil, nil, nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for timed task to fire")
	}
}

func TestExecutorCancelMatchingPreventsDispatch(t *testing.T) {
	e := NewExecutor(4)
	go e.Run()
	defer e.Stop()

	fired := make(chan struct{}, 1)
	e.ScheduleAt(time.Now().Add(50*time.Millisecond), func(t *Task) { fired <- struct{}{} }, "job-1", nil, nil)

	n := e.CancelMatching(func(t *Task) bool { return t.Parm1 == "job-1" })
	if n != 1 {
		t.Fatalf("want 1 task canceled, got %d", n)
	}

	select {
	case <-fired:
		t.Fatal("expected canceled task to never dispatch")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestExecutorStopDrainsImmediateQueue(t *testing.T) {
	e := NewExecutor(4)
	doneCh := make(chan struct{})
	go func() {
		e.Run()
		close(doneCh)
	}()

	ran := make(chan struct{}, 1)
	e.Schedule(Immediate, func(t *Task) { ran <- struct{}{} }, nil, nil, nil)
	e.Stop()

	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Run to return after Stop")
	}
	select {
	case <-ran:
	default:
		t.Fatal("expected pending immediate task to run during drain")
	}
}

func TestTaskCancelIsIdempotent(t *testing.T) {
	task := &Task{}
	task.Cancel()
	task.Cancel()
	if !task.Canceled() {
		t.Fatal("expected task to be canceled")
	}
}
