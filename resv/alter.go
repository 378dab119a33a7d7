package resv

import (
	"fmt"
	"time"
)

// alterSnapshot is the resv_alter side-cell of spec.md section 4.3
// "Reservation alter": a pre-alter snapshot of (ri_state, ri_svrflags) —
// here (St, Flags) plus the window, since window changes are the typical
// reason an alter fails — so a failed alter can restore the pre-alter
// state atomically.
type alterSnapshot struct {
	St     Substate
	Flags  Flags
	Stime  time.Time
	Etime  time.Time
	Vnodes []string
}

// BeginAlter snapshots the reservation's current state before applying a
// requested window/vnode change. Must be paired with CommitAlter or
// RollbackAlter.
func (r *Reservation) BeginAlter() {
	vn := make([]string, len(r.Vnodes))
	copy(vn, r.Vnodes)
	r.alterSnapshot = &alterSnapshot{
		St: r.St, Flags: r.Flags, Stime: r.Stime, Etime: r.Etime, Vnodes: vn,
	}
}

// Apply sets the new window, per spec.md section 3's invariant that
// [stime, etime] is monotonically advancing "unless the user explicitly
// alters it via the dedicated modify path."
func (r *Reservation) Apply(newStime, newEtime time.Time, conflictCheck func(stime, etime time.Time) error) error {
	if r.alterSnapshot == nil {
		return fmt.Errorf("reservation %s: Apply called without BeginAlter", r.ID)
	}
	if err := conflictCheck(newStime, newEtime); err != nil {
		return err
	}
	r.Stime = newStime
	r.Etime = newEtime
	r.Duration = newEtime.Sub(newStime)
	return nil
}

// CommitAlter discards the snapshot, finalizing the alter.
func (r *Reservation) CommitAlter() {
	r.alterSnapshot = nil
}

// RollbackAlter restores the pre-alter snapshot atomically, spec.md
// section 4.3: "so a failed alter (e.g., new window conflicts with a
// confirmed job) can restore the pre-alter state atomically."
func (r *Reservation) RollbackAlter() error {
	if r.alterSnapshot == nil {
		return fmt.Errorf("reservation %s: no pending alter to roll back", r.ID)
	}
	s := r.alterSnapshot
	r.St, r.Flags, r.Stime, r.Etime, r.Vnodes = s.St, s.Flags, s.Stime, s.Etime, s.Vnodes
	r.Duration = r.Etime.Sub(r.Stime)
	r.alterSnapshot = nil
	return nil
}
