package worktask

import (
	"testing"
	"time"
)

func TestTimedQueueOrdersByDeadline(t *testing.T) {
	q := NewTimedQueue()
	now := time.Now()
	late := &Task{When: now.Add(2 * time.Hour)}
	early := &Task{When: now.Add(time.Hour)}
	q.Insert(late)
	q.Insert(early)

	deadline, ok := q.NextDeadline()
	if !ok || !deadline.Equal(early.When) {
		t.Fatalf("want earliest deadline first, got %v", deadline)
	}
}

func TestTimedQueuePopDueOrdersAndExcludesFuture(t *testing.T) {
	q := NewTimedQueue()
	now := time.Now()
	t1 := &Task{When: now.Add(-2 * time.Minute)}
	t2 := &Task{When: now.Add(-1 * time.Minute)}
	future := &Task{When: now.Add(time.Hour)}
	q.Insert(future)
	q.Insert(t2)
	q.Insert(t1)

	due := q.PopDue(now)
	if len(due) != 2 {
		t.Fatalf("want 2 due tasks, got %d", len(due))
	}
	if due[0] != t1 || due[1] != t2 {
		t.Fatal("expected due tasks popped in deadline order")
	}
	if q.Len() != 1 {
		t.Fatalf("want 1 task remaining, got %d", q.Len())
	}
}

func TestTimedQueuePopDueDropsCanceled(t *testing.T) {
	q := NewTimedQueue()
	now := time.Now()
	t1 := &Task{When: now.Add(-time.Minute)}
	t1.Cancel()
	q.Insert(t1)

	due := q.PopDue(now)
	if len(due) != 0 {
		t.Fatalf("want canceled task dropped, got %d", len(due))
	}
}

func TestTimedQueueCancelMatching(t *testing.T) {
	q := NewTimedQueue()
	now := time.Now()
	a := &Task{When: now.Add(time.Hour), Parm1: "a"}
	b := &Task{When: now.Add(2 * time.Hour), Parm1: "b"}
	q.Insert(a)
	q.Insert(b)

	n := q.CancelMatching(func(t *Task) bool { return t.Parm1 == "a" })
	if n != 1 {
		t.Fatalf("want 1 cancellation, got %d", n)
	}
	if !a.Canceled() {
		t.Fatal("expected task a canceled")
	}
	if b.Canceled() {
		t.Fatal("expected task b untouched")
	}
}

func TestTimedQueueNextDeadlineEmpty(t *testing.T) {
	q := NewTimedQueue()
	if _, ok := q.NextDeadline(); ok {
		t.Fatal("expected no deadline on an empty queue")
	}
}
