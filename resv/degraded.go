package resv

import (
	"time"

	"github.com/vexxhost/batchd/worktask"
)

// DefaultRetryInit and DefaultRetryCutoff are reserve_retry_init and
// reserve_retry_cutoff, spec.md section 4.3: "a degraded reservation ...
// enters a retry loop with a tunable reserve_retry_init /
// reserve_retry_cutoff pair."
const (
	DefaultRetryInit   = 30 * time.Second
	DefaultRetryCutoff = 30 * time.Minute
)

// VnodeUnavailable reports whether any of r's vnodes are currently
// unavailable, supplied by the caller (the entity store, which owns both
// reservations and vnodes) to avoid an import cycle between resv and
// node.
type VnodeUnavailable func(vnode string) bool

// ReplacementSearch asks the Scheduler to search for a replacement
// node-set for the degraded vnodes, returning the new vnode list or an
// error if none was found this attempt.
type ReplacementSearch func(r *Reservation) ([]string, error)

// Degrader drives the degraded-reservation retry loop.
type Degrader struct {
	Exec          *worktask.Executor
	Unavailable   VnodeUnavailable
	FindReplace   ReplacementSearch
	RetryInit     time.Duration
	RetryCutoff   time.Duration
}

// CheckDegradation marks r DEGRADED if any of its vnodes are unavailable,
// returning true if a transition occurred. Spec.md section 8 boundary:
// "Reservation transitions to CONFIRMED+DEGRADED within one reactor
// turn" after the vnode goes offline — CheckDegradation is the single
// synchronous call that performs that transition; the caller invokes it
// from the same work-task that processed the vnode state change.
func (d *Degrader) CheckDegradation(r *Reservation) bool {
	if r.Flags.Has(FlagDegraded) {
		return false
	}
	for _, v := range r.Vnodes {
		if d.Unavailable(v) {
			r.Flags |= FlagDegraded
			now := time.Now()
			r.RetryInit = now
			r.RetryCutoff = now.Add(d.cutoff())
			d.scheduleRetry(r)
			return true
		}
	}
	return false
}

func (d *Degrader) init() time.Duration {
	if d.RetryInit > 0 {
		return d.RetryInit
	}
	return DefaultRetryInit
}

func (d *Degrader) cutoff() time.Duration {
	if d.RetryCutoff > 0 {
		return d.RetryCutoff
	}
	return DefaultRetryCutoff
}

func (d *Degrader) scheduleRetry(r *Reservation) {
	t := d.Exec.ScheduleAt(time.Now().Add(d.init()), func(*worktask.Task) {
		d.retry(r)
	}, r.ID, nil, nil)
	r.TrackTask(t.EventID)
}

// retry attempts to replace the unavailable vnodes; on success the
// DEGRADED flag clears and the reservation returns to CONFIRMED (spec.md
// section 8 scenario S5: "Replace V with V'; at next retry, reservation
// returns to CONFIRMED."). On failure, if the cutoff has not passed, the
// retry reschedules itself; past cutoff the reservation remains degraded
// but active, per spec.md section 4.3.
func (d *Degrader) retry(r *Reservation) {
	if !r.Flags.Has(FlagDegraded) {
		return
	}
	newVnodes, err := d.FindReplace(r)
	if err == nil {
		r.Vnodes = newVnodes
		r.Flags &^= FlagDegraded
		r.RetryCount = 0
		return
	}
	r.RetryCount++
	if time.Now().After(r.RetryCutoff) {
		return // stays degraded but active; no further automatic retry
	}
	d.scheduleRetry(r)
}
