package worktask

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Executor is the single logical scheduler within the server process,
// spec.md section 5: a reactor serving a channel of immediate tasks plus
// a deadline-ordered queue of timed tasks. There is exactly one Executor
// per server; it must never be driven from more than one goroutine, which
// is the "no locks in the core" invariant of spec.md section 5.
type Executor struct {
	immediate chan *Task
	timed     *TimedQueue
	seq       int64
	mu        sync.Mutex // guards seq and stopped; the timed queue is only touched on the Run loop
	stop      chan struct{}
	stopped   bool
}

// NewExecutor returns an idle Executor. queueDepth bounds how many
// immediate tasks may be pending before Schedule blocks the caller.
func NewExecutor(queueDepth int) *Executor {
	return &Executor{
		immediate: make(chan *Task, queueDepth),
		timed:     NewTimedQueue(),
		stop:      make(chan struct{}),
	}
}

// nextEventID hands out a monotonically increasing event ID, used by
// callers that need to reference a task they scheduled (work-task
// cancellation keys, deferred-reply correlation).
func (e *Executor) nextEventID() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	return e.seq
}

// Schedule enqueues an immediate or interleave task. Safe to call from
// any goroutine (e.g. a completed RPC's callback arriving on its own
// goroutine); the task itself still only ever runs on the Executor's Run
// loop, preserving single-threaded semantics for all entity mutation.
func (e *Executor) Schedule(kind Kind, cb Callback, parm1, parm2, parm3 any) *Task {
	t := &Task{Kind: kind, EventID: e.nextEventID(), Callback: cb, Parm1: parm1, Parm2: parm2, Parm3: parm3}
	e.immediate <- t
	return t
}

// ScheduleAt enqueues a timed task to run at or after when. Timed tasks
// are only ever inserted and popped from the Run loop's own goroutine via
// a control message, to avoid a second lock-protected critical section;
// external callers go through ScheduleAt which marshals onto the loop.
func (e *Executor) ScheduleAt(when time.Time, cb Callback, parm1, parm2, parm3 any) *Task {
	t := &Task{Kind: Timed, EventID: e.nextEventID(), When: when, Callback: cb, Parm1: parm1, Parm2: parm2, Parm3: parm3}
	e.Schedule(Immediate, func(*Task) { e.timed.Insert(t) }, nil, nil, nil)
	return t
}

// CancelMatching cancels queued timed tasks matching the predicate and
// returns how many were canceled. Matches spec.md section 5's
// cancellation contract: immediate and idempotent, no dangling
// parm1 references once canceled (the task's closure still holds Parm1
// but Run skips canceled tasks before invoking the callback).
func (e *Executor) CancelMatching(match func(*Task) bool) int {
	done := make(chan int, 1)
	e.Schedule(Immediate, func(*Task) { done <- e.timed.CancelMatching(match) }, nil, nil, nil)
	return <-done
}

// Stop requests the Run loop to exit after draining pending immediate
// tasks; it does not run remaining timed tasks.
func (e *Executor) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.mu.Unlock()
	close(e.stop)
}

// Run drives the reactor until Stop is called. It must be invoked from
// exactly one goroutine for the lifetime of the Executor.
func (e *Executor) Run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		if deadline, ok := e.timed.NextDeadline(); ok {
			d := time.Until(deadline)
			if d < 0 {
				d = 0
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(d)
		}

		select {
		case <-e.stop:
			e.drainImmediate()
			return
		case t := <-e.immediate:
			e.dispatch(t)
		case <-timer.C:
			for _, due := range e.timed.PopDue(time.Now()) {
				e.dispatch(due)
			}
		}
	}
}

func (e *Executor) drainImmediate() {
	for {
		select {
		case t := <-e.immediate:
			e.dispatch(t)
		default:
			return
		}
	}
}

func (e *Executor) dispatch(t *Task) {
	if t.canceled {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.WithField("kind", t.Kind.String()).WithField("panic", r).Error("work-task panicked")
		}
	}()
	t.Callback(t)
}
