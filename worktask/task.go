// Package worktask implements the single-threaded, cooperative executor
// described in spec.md section 5: one reactor serving an immediate-task
// channel and a deadline-ordered queue of timed tasks. It is grounded in
// original_source/src/include/work_task.h's work_task struct and
// work_type enum, replacing the C callback-pointer-plus-three-parameters
// shape with a Go closure per spec.md section 9's "Coroutines vs
// work-tasks" design note.
package worktask

import "time"

// Kind is the work_type enum of original_source/work_task.h, spec.md
// section 3 "Work task: Types".
type Kind int

const (
	Immediate Kind = iota
	Interleave
	Timed
	DeferredChild
	DeferredReply
	DeferredLocal
	DeferredOther
	DeferredCmd
)

func (k Kind) String() string {
	switch k {
	case Immediate:
		return "immediate"
	case Interleave:
		return "interleave"
	case Timed:
		return "timed"
	case DeferredChild:
		return "deferred_child"
	case DeferredReply:
		return "deferred_reply"
	case DeferredLocal:
		return "deferred_local"
	case DeferredOther:
		return "deferred_other"
	case DeferredCmd:
		return "deferred_cmd"
	default:
		return "unknown"
	}
}

// Callback is the continuation a Task runs when dispatched.
type Callback func(t *Task)

// Task is an enqueued continuation: event type, optional deadline, a
// callback, and up to three parameters, per spec.md section 3's "Work
// task" data model.
type Task struct {
	Kind     Kind
	EventID  int64
	When     time.Time // meaningful only for Kind == Timed
	Callback Callback
	Parm1    any
	Parm2    any
	Parm3    any

	canceled bool
	index    int // heap index, maintained by the timed queue
}

// Cancel marks the task canceled. Canceled tasks are skipped when the
// executor would otherwise dispatch them; cancellation is idempotent per
// spec.md section 5 "Cancellation".
func (t *Task) Cancel() {
	t.canceled = true
}

// Canceled reports whether Cancel has been called.
func (t *Task) Canceled() bool { return t.canceled }
