// Package resv implements the reservation state machine of spec.md
// section 4.3: UNCONFIRMED -> CONFIRMED -> RUNNING -> FINISHED, the
// orthogonal DEGRADED flag and its retry loop, and the pre-alter
// snapshot/rollback path.
package resv

import (
	"fmt"
	"time"

	"github.com/vexxhost/batchd/attribute"
	"github.com/vexxhost/batchd/batcherr"
)

// Substate is the ri_state machine, spec.md section 3 "Reservation".
type Substate int

const (
	Unconfirmed Substate = iota
	Confirmed
	Running
	Finished
)

func (s Substate) String() string {
	switch s {
	case Unconfirmed:
		return "unconfirmed"
	case Confirmed:
		return "confirmed"
	case Running:
		return "running"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Flags holds the orthogonal ri_svrflags bits, principally DEGRADED.
type Flags uint32

const (
	FlagDegraded Flags = 1 << iota
	FlagASAP
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Registry is the shared attribute Registry for reservation attributes.
var Registry = attribute.NewRegistry("reservation")

// Reservation is identified by R<seq>.<server>, spec.md section 3.
type Reservation struct {
	ID       string
	Stime    time.Time
	Etime    time.Time
	Duration time.Duration
	St       Substate
	Flags    Flags
	Queue    string // ri_qp, the backing execution queue
	Vnodes   []string

	Attrs *attribute.Array

	RetryInit   time.Time
	RetryCutoff time.Time
	RetryCount  int

	alterSnapshot *alterSnapshot

	svrTasks []int64 // outstanding work-task event IDs, canceled at destruction
}

// New constructs an unconfirmed reservation over [stime, etime].
func New(id string, stime, etime time.Time) *Reservation {
	return &Reservation{
		ID:       id,
		Stime:    stime,
		Etime:    etime,
		Duration: etime.Sub(stime),
		St:       Unconfirmed,
		Attrs:    attribute.NewArray(Registry),
	}
}

// TrackTask records an outstanding work-task event ID for later
// cancellation, mirroring job.Job.TrackTask.
func (r *Reservation) TrackTask(eventID int64) {
	r.svrTasks = append(r.svrTasks, eventID)
}

// OutstandingTasks returns recorded event IDs.
func (r *Reservation) OutstandingTasks() []int64 { return r.svrTasks }

// Observer mirrors job.Observer: accounting attaches here too so
// reservation confirm/begin/end events produce accounting records the
// same way job transitions do.
type Observer func(r *Reservation, from, to Substate)

var observers []Observer

// Observe registers a reservation state-change observer.
func Observe(o Observer) {
	observers = append(observers, o)
}

func (r *Reservation) setState(to Substate) {
	from := r.St
	r.St = to
	for _, o := range observers {
		o(r, from, to)
	}
}

// Confirm validates the proposed vnode set and moves UNCONFIRMED ->
// CONFIRMED, spec.md section 4.3: "Confirm request arrives with a
// proposed vnode assignment; Server validates window against the node
// set, transitions UNCONFIRMED->CONFIRMED, sets a task at stime to flip
// to RUNNING and one at etime to finalize." The two scheduled tasks
// themselves are the caller's responsibility (it owns the Executor); this
// method only validates and flips state.
func (r *Reservation) Confirm(vnodes []string, windowOK func([]string, time.Time, time.Time) error) error {
	if r.St != Unconfirmed {
		return batcherr.State(batcherr.CodeBadState, fmt.Sprintf("reservation %s: confirm requires UNCONFIRMED, have %s", r.ID, r.St), nil)
	}
	if err := windowOK(vnodes, r.Stime, r.Etime); err != nil {
		return batcherr.Validation(batcherr.CodeBadRange, fmt.Sprintf("reservation %s: window/vnode validation failed", r.ID), err)
	}
	r.Vnodes = vnodes
	r.setState(Confirmed)
	return nil
}

// Begin transitions CONFIRMED -> RUNNING at stime.
func (r *Reservation) Begin() error {
	if r.St != Confirmed {
		return batcherr.State(batcherr.CodeBadState, fmt.Sprintf("reservation %s: begin requires CONFIRMED, have %s", r.ID, r.St), nil)
	}
	r.setState(Running)
	return nil
}

// End transitions RUNNING -> FINISHED at etime.
func (r *Reservation) End() error {
	if r.St != Running {
		return batcherr.State(batcherr.CodeBadState, fmt.Sprintf("reservation %s: end requires RUNNING, have %s", r.ID, r.St), nil)
	}
	r.setState(Finished)
	return nil
}

// Validate checks spec.md section 8 invariant 5: a CONFIRMED or RUNNING
// reservation's vnode list is non-empty. The complementary half of the
// invariant (each vnode's reservation list contains R) is enforced by the
// entity store that owns both reservations and vnodes.
func (r *Reservation) Validate() error {
	if (r.St == Confirmed || r.St == Running) && len(r.Vnodes) == 0 {
		return fmt.Errorf("reservation %s: state %s requires a non-empty vnode list", r.ID, r.St)
	}
	return nil
}
