package job

import (
	"fmt"
	"time"

	"github.com/vexxhost/batchd/batcherr"
	"github.com/vexxhost/batchd/worktask"
)

// MomRerun is the opaque RPC channel to the execution daemon, spec.md
// section 1: "The core calls into it through an opaque RPC channel."
// Rerun only needs the one signal path named in spec.md section 4.3.
type MomRerun interface {
	SignalRerun(jobID string, reply func(ok bool))
}

// DefaultRequeueTimeout is job_requeue_timeout, spec.md section 4.3's
// rerun watchdog: "A watchdog timed work-task fails the pending rerun
// request after job_requeue_timeout so that the Scheduler does not block
// indefinitely."
const DefaultRequeueTimeout = 2 * time.Minute

// Rerunner drives the rerun path against one job, holding the
// collaborators it needs: the executor for the watchdog timer and the
// MoM RPC channel.
type Rerunner struct {
	Exec    *worktask.Executor
	Mom     MomRerun
	Timeout time.Duration
}

// Rerun implements spec.md section 4.3 "Rerun":
//   - reject if not currently running (BADSTATE)
//   - issue SIG_RERUN to MoM; on ack, release runone holds and move to
//     substate RERUN
//   - force=true unconditionally requeues locally, setting RERUN3 and
//     marking the job discarding; a watchdog fails the pending request
//     after Timeout.
func (rr *Rerunner) Rerun(j *Job, force bool) error {
	if j.St != StateRunning {
		return batcherr.State(batcherr.CodeBadState, fmt.Sprintf("job %s: rerun requires state R, have %c", j.ID, j.St), nil)
	}

	if force {
		j.Flags |= FlagDiscarding
		j.SetState(StateRunning, SubRerun3)

		watchdog := rr.Exec.ScheduleAt(time.Now().Add(rr.timeout()), func(t *worktask.Task) {
			rr.failPendingRerun(j)
		}, j.ID, nil, nil)
		j.TrackTask(watchdog.EventID)

		rr.Mom.SignalRerun(j.ID, func(ok bool) {
			rr.Exec.Schedule(worktask.DeferredReply, func(*worktask.Task) {
				watchdog.Cancel()
				rr.forceRequeue(j)
			}, j.ID, nil, nil)
		})
		return nil
	}

	rr.Mom.SignalRerun(j.ID, func(ok bool) {
		rr.Exec.Schedule(worktask.DeferredReply, func(*worktask.Task) {
			if !ok {
				return
			}
			j.releaseRunoneHolds()
			j.SetState(StateRunning, SubRerun)
		}, j.ID, nil, nil)
	})
	return nil
}

func (rr *Rerunner) timeout() time.Duration {
	if rr.Timeout > 0 {
		return rr.Timeout
	}
	return DefaultRequeueTimeout
}

// failPendingRerun is the watchdog's timeout action: the pending rerun
// request fails so the Scheduler is not blocked indefinitely, spec.md
// section 4.3.
func (rr *Rerunner) failPendingRerun(j *Job) {
	if j.Sub != SubRerun3 {
		return // already resolved by a MoM reply racing the watchdog
	}
	rr.forceRequeue(j)
}

// forceRequeue is force_reque: physically requeue the job, re-accumulate
// its held resources back to the node, and free them cleanly, spec.md
// section 4.3. Resource re-accumulation against the owning vnodes is the
// caller's responsibility (it holds the node Index this package does not
// import, to avoid a job<->node import cycle); forceRequeue only drives
// the job's own state and clears the discarding flag. Per spec.md section
// 8's boundary case, this must complete even though accounting already
// recorded an R record for the original run.
func (rr *Rerunner) forceRequeue(j *Job) {
	j.Flags &^= FlagDiscarding
	j.ExecVnode = ""
	j.SetState(StateQueued, SubNone)
}

func (j *Job) releaseRunoneHolds() {
	j.Flags &^= FlagHeld
}
