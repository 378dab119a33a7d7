// Package job implements the job state machine of spec.md section 4.3:
// the Q/H/R/E/X/M/B/S/T/W/U/F state diagram, svr_evaljobstate-style
// derivation, array job/subjob tracking, and the rerun/force-rerun path.
// Accounting trigger points fire through the accounting package as an
// observer of state-change events, per spec.md section 9's design note
// that accounting-emission should be centralized rather than called ad
// hoc at each site.
package job

import (
	"fmt"
	"time"

	"github.com/vexxhost/batchd/attribute"
)

// State is the single-character job state of spec.md section 3.
type State byte

const (
	StateQueued    State = 'Q'
	StateHeld      State = 'H'
	StateRunning   State = 'R'
	StateExiting   State = 'E'
	StateHistory   State = 'X'
	StateMoved     State = 'M'
	StateArrayBegun State = 'B'
	StateSuspended State = 'S'
	StateTransit   State = 'T'
	StateWaiting   State = 'W'
	StateUserSuspended State = 'U'
	StateFailedHistory State = 'F'
)

// Substate refines State; values follow the original's RUNNING/PRERUN/
// RERUN1..3/OBIT family named in spec.md section 3.
type Substate int

const (
	SubNone Substate = iota
	SubPrerun
	SubRunning
	SubSuspended
	SubRerun
	SubRerun1
	SubRerun2
	SubRerun3 // force-rerun, job marked discarding
	SubObit
	SubTransicm
	SubStagein
	SubStageout
)

// Flags are job-level server-flag bits influencing derived state.
type Flags uint32

const (
	FlagHeld Flags = 1 << iota
	FlagCheckpoint
	FlagStageIn
	FlagDiscarding // set during a force-rerun's unconditional local requeue
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Registry is the shared attribute Registry for job-owned attributes.
var Registry = attribute.NewRegistry("job")

// Job is the fixed header plus attribute array of spec.md section 3.
// Identified by <seq>.<server>[:<subjob>].
type Job struct {
	ID       string
	Queue    string
	St       State
	Sub      Substate
	Flags    Flags
	ExitCode int
	Ctime    time.Time // create
	Qtime    time.Time // enqueue
	Stime    time.Time // start
	Mtime    time.Time // modify

	ExecVnode string // the execvnode string, spec.md section 3 "Job"

	Attrs *attribute.Array

	ArrayParentID string    // non-empty if this is a materialized subjob
	Array         *ArrayTracking // non-nil if this is an array parent

	svrTasks []int64 // outstanding work-task event IDs, canceled at destruction per spec.md section 5
}

// New constructs a queued job.
func New(id, queue string) *Job {
	return &Job{
		ID:    id,
		Queue: queue,
		St:    StateQueued,
		Sub:   SubNone,
		Ctime: time.Now(),
		Attrs: attribute.NewArray(Registry),
	}
}

// TrackTask records an outstanding work-task event ID so it can be
// canceled at job destruction, spec.md section 5 "Cancellation": owners
// cancel outstanding tasks in their destructors.
func (j *Job) TrackTask(eventID int64) {
	j.svrTasks = append(j.svrTasks, eventID)
}

// OutstandingTasks returns the event IDs recorded via TrackTask, for the
// caller to cancel against its Executor.
func (j *Job) OutstandingTasks() []int64 { return j.svrTasks }

// Evaluate derives (state, substate) from the hold flag, the stage-in
// flag, and the current state and substate (FlagCheckpoint is not
// consulted), spec.md section 4.3
// "svr_evaljobstate(job, &state, &substate, update)". The update bool
// controls whether the derived values are written back to j (callers
// doing a pure query pass false); per spec.md section 9's open question,
// accounting emission is NOT performed here — callers that mutate state
// through Evaluate must emit via the accounting package themselves, one
// centralized call path, rather than scattering emission across call
// sites.
func (j *Job) Evaluate(update bool) (State, Substate) {
	st, sub := j.St, j.Sub

	if j.Flags.Has(FlagHeld) && st == StateQueued {
		st = StateHeld
	} else if !j.Flags.Has(FlagHeld) && st == StateHeld {
		st = StateQueued
		sub = SubNone
	}

	if j.Flags.Has(FlagStageIn) && st == StateQueued {
		sub = SubStagein
	}

	if update {
		j.St, j.Sub = st, sub
	}
	return st, sub
}

// Observer is called by SetState on every transition. Run, Obit, Clean,
// Suspend, Resume and the Rerunner all change state through SetState, so
// a state-change Observer (accounting, peer propagation) can be attached
// once instead of at each call site. Hold and Release change state
// through Evaluate, which does not notify observers.
type Observer func(j *Job, from State, fromSub Substate, to State, toSub Substate)

var observers []Observer

// Observe registers a state-change observer, e.g. the accounting
// package's EmitOnTransition.
func Observe(o Observer) {
	observers = append(observers, o)
}

// SetState performs a generic transition, notifying observers. Internal
// substate-only refinements that do not change State still invoke
// observers so accounting can see e.g. RUNNING -> RERUN3.
func (j *Job) SetState(to State, toSub Substate) {
	from, fromSub := j.St, j.Sub
	j.St, j.Sub = to, toSub
	j.Mtime = time.Now()
	for _, o := range observers {
		o(j, from, fromSub, to, toSub)
	}
}

// Run transitions Q -> R, recording Stime and ExecVnode. Every named
// vnode in execVnode must already have had its resources_assigned
// updated by the caller before Run is invoked — Run only records the
// state transition, keeping spec.md section 8 invariant 1
// ("resources_assigned reflects exactly once") the caller's
// responsibility at the single commit point, matching the two-pass
// discipline used elsewhere in this codebase.
func (j *Job) Run(execVnode string) error {
	if j.St != StateQueued {
		return fmt.Errorf("job %s: run requires state Q, have %c", j.ID, j.St)
	}
	j.ExecVnode = execVnode
	j.Stime = time.Now()
	j.SetState(StateRunning, SubRunning)
	return nil
}

// Obit transitions R/S/U -> E (and the caller subsequently drives E -> X
// on cleanup), spec.md section 4.3 state diagram.
func (j *Job) Obit(exitCode int) error {
	switch j.St {
	case StateRunning, StateSuspended, StateUserSuspended:
	default:
		return fmt.Errorf("job %s: obit requires a running-family state, have %c", j.ID, j.St)
	}
	j.ExitCode = exitCode
	j.SetState(StateExiting, SubObit)
	return nil
}

// Clean transitions E -> X (history), spec.md section 4.3 diagram
// "clean".
func (j *Job) Clean() error {
	if j.St != StateExiting {
		return fmt.Errorf("job %s: clean requires state E, have %c", j.ID, j.St)
	}
	j.SetState(StateHistory, SubNone)
	return nil
}

// Suspend transitions R -> S (admin suspend) or R -> U (user suspend).
func (j *Job) Suspend(byUser bool) error {
	if j.St != StateRunning {
		return fmt.Errorf("job %s: suspend requires state R, have %c", j.ID, j.St)
	}
	if byUser {
		j.SetState(StateUserSuspended, SubSuspended)
	} else {
		j.SetState(StateSuspended, SubSuspended)
	}
	return nil
}

// Resume transitions S or U back to R.
func (j *Job) Resume() error {
	if j.St != StateSuspended && j.St != StateUserSuspended {
		return fmt.Errorf("job %s: resume requires state S or U, have %c", j.ID, j.St)
	}
	j.SetState(StateRunning, SubRunning)
	return nil
}

// Hold transitions Q -> H.
func (j *Job) Hold() error {
	j.Flags |= FlagHeld
	_, _ = j.Evaluate(true)
	return nil
}

// Release transitions H -> Q.
func (j *Job) Release() error {
	j.Flags &^= FlagHeld
	_, _ = j.Evaluate(true)
	return nil
}
