// Package sched implements the Scheduler dispatch loop of spec.md
// section 4.4: a per-partition Scheduler record carrying primary/
// secondary command streams (realized over NATS subjects per
// SPEC_FULL.md section 5.4, replacing the original's dual TPP streams),
// SC_IDLE/SC_SCHEDULING/SC_DOWN cycle state, the qrun deferral list, and
// the am_jobs alter-during-cycle guard.
package sched

import (
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
)

// CycleState is SC_IDLE/SC_SCHEDULING/SC_DOWN, spec.md section 4.4.
type CycleState int

const (
	Idle CycleState = iota
	Scheduling
	Down
)

func (s CycleState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduling:
		return "scheduling"
	case Down:
		return "down"
	default:
		return "unknown"
	}
}

// Command is a 32-bit command code sent to the Scheduler's primary
// subject, spec.md section 6 "Scheduler protocol".
type Command int32

const (
	CmdScheduleNormal Command = iota
	CmdScheduleFirst          // SCH_SCHEDULE_FIRST, sent exactly once per Server lifetime
	CmdScheduleAJob           // SCH_SCHEDULE_AJOB, followed by a job ID (qrun)
	CmdScheduleHigh           // SCH_SCHEDULE_HIGH: carries SCH_CONFIGURE / SCH_QUIT, never lost
	CmdConfigure
	CmdQuit
)

// QrunRequest is one manager/operator run-a-specific-job request queued
// against a Scheduler, spec.md section 4.4 "qrun deferral".
type QrunRequest struct {
	JobID   string
	Sent    bool // dr_sent
	ReplyCh chan error
}

// Scheduler is the per-partition record, spec.md section 4.4: a primary
// (Server -> Scheduler commands) subject and a secondary (Scheduler ->
// Server cycle-end + sub-queries) subject.
type Scheduler struct {
	Partition      string
	PrimarySubject string
	SecondarySubject string

	nc *nats.Conn

	mu          sync.Mutex
	state       CycleState
	firstSent   bool
	qruns       []*QrunRequest
	amJobs      map[string]bool // alter-during-cycle guard, spec.md section 4.4
	pendingCmd  bool            // a cycle was requested while Scheduling; consumed at cycle end
}

// New returns a Scheduler bound to a NATS connection, with subjects
// derived from the partition name the way the teacher's services derive
// per-resource subjects from a resource identifier.
func New(nc *nats.Conn, partition string) *Scheduler {
	return &Scheduler{
		Partition:        partition,
		PrimarySubject:   fmt.Sprintf("batchd.sched.%s.primary", partition),
		SecondarySubject: fmt.Sprintf("batchd.sched.%s.secondary", partition),
		nc:               nc,
		state:            Idle,
		amJobs:           make(map[string]bool),
	}
}

// State returns the current cycle state.
func (s *Scheduler) State() CycleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StartCycle sends a schedule command to the primary subject and
// transitions to SC_SCHEDULING, spec.md section 4.4: "Transition to
// SC_SCHEDULING happens when a command is flushed to the primary
// stream." If already scheduling, the request is recorded as pending and
// consumed at the next cycle end rather than sent immediately — "The
// Server never sends a second cycle command while in SC_SCHEDULING;
// instead it sets pending flags that are consumed when the current cycle
// ends." The first cycle sends CmdScheduleFirst alone; a queued qrun
// stays unsent until the next cycle, which EndCycle starts because an
// unsent qrun remains.
func (s *Scheduler) StartCycle() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Down {
		return fmt.Errorf("scheduler %s is down", s.Partition)
	}
	if s.state == Scheduling {
		s.pendingCmd = true
		return nil
	}

	var payload []byte
	var jobID string
	if !s.firstSent {
		payload = []byte(fmt.Sprintf("%d", CmdScheduleFirst))
	} else {
		payload, jobID = s.nextQrunPayload(CmdScheduleNormal)
	}
	if err := s.nc.Publish(s.PrimarySubject, payload); err != nil {
		return fmt.Errorf("sched: publish to %s: %w", s.PrimarySubject, err)
	}
	s.firstSent = true
	if jobID != "" {
		s.markQrunSent(jobID)
	}
	s.state = Scheduling
	return nil
}

// nextQrunPayload builds the wire payload for a cycle command, piggy-
// backing the first unsent qrun if one exists, spec.md section 4.4:
// "At cycle start, the first unsent qrun is piggybacked onto the cycle
// command."
func (s *Scheduler) nextQrunPayload(cmd Command) ([]byte, string) {
	for _, q := range s.qruns {
		if !q.Sent {
			return []byte(fmt.Sprintf("%d %s", CmdScheduleAJob, q.JobID)), q.JobID
		}
	}
	return []byte(fmt.Sprintf("%d", cmd)), ""
}

func (s *Scheduler) markQrunSent(jobID string) {
	for _, q := range s.qruns {
		if q.JobID == jobID {
			q.Sent = true
			return
		}
	}
}

// EndCycle processes the 32-bit end-of-cycle code read from the
// secondary subject, spec.md section 6: "0 = normal, nonzero = error,
// marks scheduler DOWN." It clears the alter-guard list, replies to any
// sent qruns, and re-cycles if a pending command or unsent qrun remains.
func (s *Scheduler) EndCycle(code int32) {
	s.mu.Lock()
	s.amJobs = make(map[string]bool)

	if code != 0 {
		s.state = Down
		s.failOutstandingQruns(fmt.Errorf("scheduler %s ended cycle with error %d", s.Partition, code))
		s.mu.Unlock()
		return
	}

	s.state = Idle
	s.replySentQruns()
	needsRecycle := s.pendingCmd || s.hasUnsentQrun()
	s.pendingCmd = false
	s.mu.Unlock()

	if needsRecycle {
		_ = s.StartCycle()
	}
}

func (s *Scheduler) hasUnsentQrun() bool {
	for _, q := range s.qruns {
		if !q.Sent {
			return true
		}
	}
	return false
}

func (s *Scheduler) replySentQruns() {
	remaining := s.qruns[:0]
	for _, q := range s.qruns {
		if q.Sent {
			q.ReplyCh <- nil
			continue
		}
		remaining = append(remaining, q)
	}
	s.qruns = remaining
}

// failOutstandingQruns implements spec.md section 4.4: "If the Scheduler
// closes its socket mid-cycle with unsent or sent-but-not-answered
// qruns, those are replied PBSE_INTERNAL and freed."
func (s *Scheduler) failOutstandingQruns(err error) {
	for _, q := range s.qruns {
		q.ReplyCh <- err
	}
	s.qruns = nil
}

// Qrun enqueues a manager/operator run-a-specific-job request and starts
// a cycle if one is not already underway.
func (s *Scheduler) Qrun(jobID string) <-chan error {
	ch := make(chan error, 1)
	s.mu.Lock()
	s.qruns = append(s.qruns, &QrunRequest{JobID: jobID, ReplyCh: ch})
	s.mu.Unlock()
	if err := s.StartCycle(); err != nil {
		ch <- err
	}
	return ch
}

// MarkAltered adds jobID to the alter-during-cycle guard list, spec.md
// section 4.4: called whenever a job is moved or altered between a
// SCH_SCHEDULE_* send and that cycle's end.
func (s *Scheduler) MarkAltered(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Scheduling {
		s.amJobs[jobID] = true
	}
}

// CheckRunRequest reports whether the Scheduler's run request for jobID
// must be rejected because the job was altered mid-cycle, spec.md
// section 4.4 and scenario S3.
func (s *Scheduler) CheckRunRequest(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.amJobs[jobID] {
		return fmt.Errorf("sched: job %s was altered during this cycle, Scheduler's view is stale", jobID)
	}
	return nil
}
