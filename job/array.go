package job

import (
	"fmt"
	"strconv"
	"strings"
)

// SubjobSlot is one entry in an array parent's tracking table, spec.md
// section 3: "each slot carrying its own (state, substate,
// child-job-pointer-or-NULL) -- a materialized subjob structure exists
// only while that subjob is live." Per spec.md section 9's "Subjob
// materialization" note, a slot holds a *Job only while running; it
// demotes back to a bare slot on obit.
type SubjobSlot struct {
	Index   int
	St      State
	Sub     Substate
	Child   *Job // nil unless materialized
	Deleted int  // deleted-subjob count, reset to zero on array-wide rerun per spec.md section 4.3
}

// ArrayTracking is the subjob tracking table an array-parent Job owns.
type ArrayTracking struct {
	Slots map[int]*SubjobSlot
	Order []int // index order for deterministic iteration
}

// NewArrayTracking builds a tracking table for indices lo..hi (step 1)
// all initialized to Queued.
func NewArrayTracking(lo, hi int) *ArrayTracking {
	at := &ArrayTracking{Slots: make(map[int]*SubjobSlot)}
	for i := lo; i <= hi; i++ {
		at.Slots[i] = &SubjobSlot{Index: i, St: StateQueued}
		at.Order = append(at.Order, i)
	}
	return at
}

// Select expands a selector of the form "n", "n-m", or "n-m:step" against
// the tracking table, spec.md section 4.3 "Array jobs": "the spec
// operator accepts R[n], R[n-m], and R[n-m:step]". Every matching slot is
// returned whether materialized or not.
func (at *ArrayTracking) Select(selector string) ([]*SubjobSlot, error) {
	lo, hi, step, err := parseSelector(selector)
	if err != nil {
		return nil, err
	}
	var out []*SubjobSlot
	for i := lo; i <= hi; i += step {
		if s, ok := at.Slots[i]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func parseSelector(selector string) (lo, hi, step int, err error) {
	step = 1
	body := selector
	if idx := strings.Index(body, ":"); idx >= 0 {
		step, err = strconv.Atoi(body[idx+1:])
		if err != nil || step <= 0 {
			return 0, 0, 0, fmt.Errorf("array selector: bad step in %q", selector)
		}
		body = body[:idx]
	}
	if idx := strings.Index(body, "-"); idx >= 0 {
		lo, err = strconv.Atoi(body[:idx])
		if err != nil {
			return 0, 0, 0, fmt.Errorf("array selector: bad range start in %q", selector)
		}
		hi, err = strconv.Atoi(body[idx+1:])
		if err != nil {
			return 0, 0, 0, fmt.Errorf("array selector: bad range end in %q", selector)
		}
		return lo, hi, step, nil
	}
	n, err := strconv.Atoi(body)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("array selector: bad index in %q", selector)
	}
	return n, n, step, nil
}

// Materialize promotes a slot to a live Job on run, spec.md section 9
// "Subjob materialization: materialize a full Job on promotion to R".
func (at *ArrayTracking) Materialize(index int, makeJob func() *Job) (*Job, error) {
	slot, ok := at.Slots[index]
	if !ok {
		return nil, fmt.Errorf("array: no slot at index %d", index)
	}
	if slot.Child == nil {
		slot.Child = makeJob()
	}
	slot.St = StateRunning
	slot.Sub = SubRunning
	slot.Child.St = StateRunning
	slot.Child.Sub = SubRunning
	return slot.Child, nil
}

// Demote returns a slot to a bare (non-materialized) state at obit,
// spec.md section 9: "demote back to a slot on obit."
func (at *ArrayTracking) Demote(index int, final State) {
	slot, ok := at.Slots[index]
	if !ok {
		return
	}
	slot.Child = nil
	slot.St = final
	slot.Sub = SubNone
}

// Doneness derives the array parent's aggregate state from the subjob
// slot tally, spec.md section 8 invariant 4: "B if any running, X if all
// finished, Q if none started yet." Ties update transactionally with
// each subjob state change per spec.md section 3's invariant list — the
// caller is expected to invoke Doneness immediately after any slot
// mutation and apply the result via Job.SetState on the parent.
func (at *ArrayTracking) Doneness() State {
	anyRunning := false
	allFinished := true
	noneStarted := true
	for _, i := range at.Order {
		s := at.Slots[i]
		switch s.St {
		case StateRunning, StateExiting, StateSuspended, StateUserSuspended:
			anyRunning = true
			allFinished = false
			noneStarted = false
		case StateHistory:
			noneStarted = false
		case StateQueued, StateHeld, StateWaiting, StateTransit:
			allFinished = false
		default:
			allFinished = false
		}
	}
	switch {
	case anyRunning:
		return StateArrayBegun
	case allFinished:
		return StateHistory
	case noneStarted:
		return StateQueued
	default:
		return StateArrayBegun
	}
}

// RerunAll recycles every subjob on a parent-job rerun, spec.md section
// 4.3: "materialized subjobs get a RERUN signal; non-materialized slots
// are reset to Q with their deleted-count zeroed."
func (at *ArrayTracking) RerunAll(signalMaterialized func(child *Job)) {
	for _, i := range at.Order {
		s := at.Slots[i]
		if s.Child != nil {
			signalMaterialized(s.Child)
			continue
		}
		s.St = StateQueued
		s.Sub = SubNone
		s.Deleted = 0
	}
}
