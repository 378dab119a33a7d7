package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/vexxhost/batchd/batcherr"
	"github.com/vexxhost/batchd/database"
	"github.com/vexxhost/batchd/job"
	"github.com/vexxhost/batchd/joblog"
	"github.com/vexxhost/batchd/node"
	"github.com/vexxhost/batchd/worktask"
)

// cancelOutstanding cancels every work-task event ID an entity recorded
// via TrackTask, spec.md section 5 "Cancellation": owners cancel
// outstanding tasks in their destructors.
func cancelOutstanding(exec *worktask.Executor, eventIDs []int64) {
	if len(eventIDs) == 0 {
		return
	}
	want := make(map[int64]bool, len(eventIDs))
	for _, id := range eventIDs {
		want[id] = true
	}
	exec.CancelMatching(func(t *worktask.Task) bool { return want[t.EventID] })
}

// persistJob mirrors a job's header to the database, spec.md section 5
// "Transactions": the in-memory table is authoritative, so a mirror
// failure here is logged rather than returned to the caller.
func (h *Handlers) persistJob(j *job.Job) {
	if h.JobRepo == nil {
		return
	}
	row := &database.JobRow{
		ID: j.ID, Queue: j.Queue, State: string(j.St), Substate: int(j.Sub),
		ExecVnode: j.ExecVnode, ArrayParentID: j.ArrayParentID, ExitCode: j.ExitCode,
		Ctime: j.Ctime, Qtime: j.Qtime, Mtime: j.Mtime,
	}
	if !j.Stime.IsZero() {
		stime := j.Stime
		row.Stime = &stime
	}
	if err := h.JobRepo.Save(row, nil); err != nil {
		log.WithError(err).WithField("job_id", j.ID).Warn("failed to persist job header")
	}
}

// persistNode mirrors a vnode's header to the database, the node-side
// analog of persistJob: the in-memory Index remains authoritative, so a
// mirror failure here is logged rather than returned to the caller.
func (h *Handlers) persistNode(n *node.Vnode) {
	if h.NodeRepo == nil {
		return
	}
	row := &database.NodeRow{Name: n.Name, State: uint32(n.St), PoolID: n.PoolID}
	if err := h.NodeRepo.Save(row, nil); err != nil {
		log.WithError(err).WithField("node", n.Name).Warn("failed to persist node header")
	}
}

// assignVnodes claims the subnode shares a parsed exec_vnode names,
// following the two-pass validate/commit discipline node/indirect.go's
// SetIndirect uses: every named vnode is checked for existence and free
// capacity before any vnode is mutated, so a single unsatisfiable share
// never leaves a partial claim behind (spec.md section 7's "two-pass
// validate/commit must not commit on validation failure"). On success it
// returns the claimed vnodes so the caller can persist and, on a later
// failure, release them.
func (h *Handlers) assignVnodes(jobID string, shares []node.VnodeShare) ([]*node.Vnode, error) {
	vnodes := make([]*node.Vnode, 0, len(shares))
	for _, share := range shares {
		n, ok := h.Nodes.Lookup(share.Name)
		if !ok {
			return nil, batcherr.Validation(batcherr.CodeUnknownNode, fmt.Sprintf("exec_vnode names unknown vnode %s", share.Name), nil)
		}
		if n.NSNFree < share.NCPUs {
			return nil, batcherr.Transient(batcherr.CodeSysBusy, fmt.Sprintf("vnode %s: %d subnodes free, job needs %d", share.Name, n.NSNFree, share.NCPUs), nil)
		}
		vnodes = append(vnodes, n)
	}

	// --- commit pass ---
	for i, share := range shares {
		vnodes[i].AssignJob(jobID, share.NCPUs)
	}
	return vnodes, nil
}

// releaseVnodes frees jobID's subnode claims on every vnode named in
// execVnode, the reverse of assignVnodes, run on Obit so
// resources_assigned returns to zero, spec.md section 8 invariant 1.
func (h *Handlers) releaseVnodes(jobID, execVnode string) {
	shares, err := node.ParseExecVnode(execVnode)
	if err != nil {
		log.WithError(err).WithField("job_id", jobID).Warn("failed to parse exec_vnode while releasing job resources")
		return
	}
	for _, share := range shares {
		n, ok := h.Nodes.Lookup(share.Name)
		if !ok {
			continue
		}
		n.ReleaseJob(jobID)
		h.persistNode(n)
	}
}

// jobView is the JSON projection of a job.Job returned by StatJob/Queue.
// It summarizes the fixed header; full attribute dumps go through the
// manager-only recovery path (attribute.Array.EncodeAll), not this
// surface.
type jobView struct {
	ID        string `json:"id"`
	Queue     string `json:"queue"`
	State     string `json:"state"`
	Substate  int    `json:"substate"`
	ExecVnode string `json:"exec_vnode,omitempty"`
	ExitCode  int    `json:"exit_code,omitempty"`
}

func toJobView(j *job.Job) jobView {
	return jobView{
		ID: j.ID, Queue: j.Queue, State: string(j.St), Substate: int(j.Sub),
		ExecVnode: j.ExecVnode, ExitCode: j.ExitCode,
	}
}

// queueRequest is the body of a Queue (submit) request, spec.md section 6
// "Queue".
type queueRequest struct {
	Queue string `json:"queue"`
}

// Queue handles POST /jobs: submits a new job, spec.md section 4.3
// "Queue ... the job enters QUEUED."
func (h *Handlers) Queue(w http.ResponseWriter, r *http.Request) {
	var req queueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Queue == "" {
		writeOpError(w, batcherr.Validation(batcherr.CodeBadAttrVal, "queue is required", nil))
		return
	}

	id := fmt.Sprintf("%s.batchd", uuid.New().String())
	j := job.New(id, req.Queue)
	if err := h.Jobs.Add(j); err != nil {
		writeOpError(w, batcherr.Internal(batcherr.CodeInternal, "failed to queue job", err))
		return
	}
	h.persistJob(j)
	writeJSON(w, http.StatusCreated, toJobView(j))
}

// StatJob handles GET /jobs/{id}, spec.md section 6 "StatJob".
func (h *Handlers) StatJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	j, ok := h.Jobs.Get(id)
	if !ok {
		writeOpError(w, batcherr.Validation(batcherr.CodeUnknownJob, fmt.Sprintf("unknown job %s", id), nil))
		return
	}
	writeJSON(w, http.StatusOK, toJobView(j))
}

// SelectJob handles GET /jobs?queue=..., spec.md section 6 "SelectJob".
func (h *Handlers) SelectJob(w http.ResponseWriter, r *http.Request) {
	queue := r.URL.Query().Get("queue")
	var views []jobView
	for _, j := range h.Jobs.ListByQueue(queue) {
		views = append(views, toJobView(j))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handlers) jobOp(w http.ResponseWriter, r *http.Request, op func(j *job.Job) error) {
	id := mux.Vars(r)["id"]
	j, ok := h.Jobs.Get(id)
	if !ok {
		writeOpError(w, batcherr.Validation(batcherr.CodeUnknownJob, fmt.Sprintf("unknown job %s", id), nil))
		return
	}
	if err := op(j); err != nil {
		writeOpError(w, err)
		return
	}
	h.persistJob(j)
	writeJSON(w, http.StatusOK, toJobView(j))
}

// Hold handles POST /jobs/{id}/hold, spec.md section 6 "Hold".
func (h *Handlers) Hold(w http.ResponseWriter, r *http.Request) {
	h.jobOp(w, r, func(j *job.Job) error { return j.Hold() })
}

// Release handles POST /jobs/{id}/release, spec.md section 6 "Release".
func (h *Handlers) Release(w http.ResponseWriter, r *http.Request) {
	h.jobOp(w, r, func(j *job.Job) error { return j.Release() })
}

// Signal handles POST /jobs/{id}/signal, spec.md section 6 "Signal".
// Delivery to the owning Mom is out of scope for the core server under
// test here; this records the request against the job's substate only
// when it is meaningful (suspend/resume).
type signalRequest struct {
	Signal string `json:"signal"`
}

func (h *Handlers) Signal(w http.ResponseWriter, r *http.Request) {
	var req signalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	h.jobOp(w, r, func(j *job.Job) error {
		switch req.Signal {
		case "suspend":
			return j.Suspend(true)
		case "resume":
			return j.Resume()
		default:
			return batcherr.Protocol(batcherr.CodeProtocol, fmt.Sprintf("unsupported signal %q", req.Signal), nil)
		}
	})
}

// Rerun handles POST /jobs/{id}/rerun?force=1, spec.md section 4.3's
// rerun/force-rerun path.
func (h *Handlers) Rerun(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "1"
	h.jobOp(w, r, func(j *job.Job) error { return h.Rerun.Rerun(j, force) })
}

// Delete handles DELETE /jobs/{id}, spec.md section 6 "Delete".
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	j, ok := h.Jobs.Get(id)
	if !ok {
		writeOpError(w, batcherr.Validation(batcherr.CodeUnknownJob, fmt.Sprintf("unknown job %s", id), nil))
		return
	}
	if err := j.Clean(); err != nil {
		writeOpError(w, err)
		return
	}
	h.Jobs.Remove(id)
	cancelOutstanding(h.Exec, j.OutstandingTasks())
	if h.JobRepo != nil {
		if err := h.JobRepo.Delete(id); err != nil {
			log.WithError(err).WithField("job_id", id).Warn("failed to delete persisted job header")
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// runRequest is the body of a Run request, spec.md section 6 "Run": a
// manager-forced dispatch to a specific exec_vnode, bypassing the
// Scheduler.
type runRequest struct {
	ExecVnode string `json:"exec_vnode"`
}

// Run handles POST /jobs/{id}/run, spec.md section 6 "Run". This is the
// dispatch point job.Job.Run's doc comment names as the caller
// responsible for updating resources_assigned before the state
// transition: Run claims the named vnodes' subnodes first, then invokes
// j.Run only once the claim has fully committed, rolling the claim back
// if the job itself turns out not to be dispatchable (e.g. wrong state).
func (h *Handlers) Run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.ExecVnode == "" {
		writeOpError(w, batcherr.Validation(batcherr.CodeBadAttrVal, "exec_vnode is required", nil))
		return
	}
	shares, err := node.ParseExecVnode(req.ExecVnode)
	if err != nil {
		writeOpError(w, err)
		return
	}

	id := mux.Vars(r)["id"]
	j, ok := h.Jobs.Get(id)
	if !ok {
		writeOpError(w, batcherr.Validation(batcherr.CodeUnknownJob, fmt.Sprintf("unknown job %s", id), nil))
		return
	}

	trackerJobID, ctx := h.startDispatchTracking(j)

	var vnodes []*node.Vnode
	if trackerJobID != "" {
		err = h.Tracker.RunStep(ctx, trackerJobID, "claim-resources", func(stepCtx context.Context) error {
			vnodes, err = h.assignVnodes(j.ID, shares)
			return err
		})
	} else {
		vnodes, err = h.assignVnodes(j.ID, shares)
	}
	if err != nil {
		h.endDispatchTracking(trackerJobID, joblog.StatusFailed, err)
		writeOpError(w, err)
		return
	}
	if err := j.Run(req.ExecVnode); err != nil {
		for _, n := range vnodes {
			n.ReleaseJob(j.ID)
			h.persistNode(n)
		}
		h.endDispatchTracking(trackerJobID, joblog.StatusFailed, err)
		writeOpError(w, err)
		return
	}
	for _, n := range vnodes {
		h.persistNode(n)
	}
	if trackerJobID != "" {
		if err := h.Tracker.MarkJobProgress(ctx, trackerJobID, 50); err != nil {
			log.WithError(err).WithField("job_id", j.ID).Warn("failed to record dispatch progress")
		}
	}
	h.persistJob(j)
	writeJSON(w, http.StatusOK, toJobView(j))
}

// startDispatchTracking opens a joblog-tracked job record correlated to
// the batch job via ExternalJobID, so the Track handler's
// GetJobProgressByAnyID and joblog's own GetJobByExternalID resolve the
// same record later from either ID space. Returns an empty
// trackerJobID when no Tracker is configured, which every caller here
// treats as "tracking is a no-op".
func (h *Handlers) startDispatchTracking(j *job.Job) (string, context.Context) {
	if h.Tracker == nil {
		return "", context.Background()
	}
	ctx, trackerJobID, err := h.Tracker.StartJob(context.Background(), joblog.JobStart{
		JobType:       "batch_job",
		Operation:     "run",
		Owner:         j.Queue,
		ExternalJobID: &j.ID,
		JobCategory:   "dispatch",
	})
	if err != nil {
		log.WithError(err).WithField("job_id", j.ID).Warn("failed to open job-log tracking record")
		return "", context.Background()
	}
	return trackerJobID, ctx
}

// endDispatchTracking closes a joblog-tracked job record opened by
// startDispatchTracking. A no-op if tracking was never opened (no
// Tracker configured, or StartJob itself failed).
func (h *Handlers) endDispatchTracking(trackerJobID string, status joblog.Status, cause error) {
	if h.Tracker == nil || trackerJobID == "" {
		return
	}
	if err := h.Tracker.EndJob(context.Background(), trackerJobID, status, cause); err != nil {
		log.WithError(err).WithField("tracker_job_id", trackerJobID).Warn("failed to close job-log tracking record")
	}
}

// obitRequest is the body of an Obit request, the Mom-reported job-end
// notification spec.md section 4.3's R/S/U -> E transition models.
type obitRequest struct {
	ExitCode int `json:"exit_code"`
}

// Obit handles POST /jobs/{id}/obit, spec.md section 6's analog of the
// original's job obituary handling: records the job's exit and releases
// the vnode subnodes Run claimed, the reverse half of the dispatch
// chain, keeping resources_assigned.ncpus at zero once every job that
// held it has exited.
func (h *Handlers) Obit(w http.ResponseWriter, r *http.Request) {
	var req obitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	h.jobOp(w, r, func(j *job.Job) error {
		execVnode := j.ExecVnode
		if err := j.Obit(req.ExitCode); err != nil {
			return err
		}
		h.releaseVnodes(j.ID, execVnode)
		h.finishDispatchTracking(j)
		return nil
	})
}

// finishDispatchTracking closes out the joblog record startDispatchTracking
// opened for j, resolving it by j's external ID since Obit runs in a
// separate request from Run and does not carry the tracker's own job ID
// forward on job.Job itself.
func (h *Handlers) finishDispatchTracking(j *job.Job) {
	if h.Tracker == nil {
		return
	}
	summary, err := h.Tracker.GetJobByExternalID(j.ID)
	if err != nil {
		log.WithError(err).WithField("job_id", j.ID).Debug("no job-log tracking record to close on obit")
		return
	}
	status := joblog.StatusCompleted
	var cause error
	if j.ExitCode != 0 {
		status = joblog.StatusFailed
		cause = fmt.Errorf("job %s exited with code %d", j.ID, j.ExitCode)
	}
	if err := h.Tracker.MarkJobProgress(context.Background(), summary.Job.ID, 100); err != nil {
		log.WithError(err).WithField("job_id", j.ID).Debug("failed to record completion progress")
	}
	if err := h.Tracker.EndJob(context.Background(), summary.Job.ID, status, cause); err != nil {
		log.WithError(err).WithField("job_id", j.ID).Warn("failed to close job-log tracking record")
	}
}

// modifyRequest is the body of a Modify request, spec.md section 6
// "Modify": a batch of svrattrl-style attribute assignments. Only the
// queue reassignment is wired to in-memory state here; arbitrary
// attribute rewrites go through attribute.Array.Set once a caller owns a
// job's Registry-backed Attrs, which this HTTP layer does not expose
// directly to avoid re-deriving the decode/set dispatch spec.md section
// 4.1 already centralizes in the attribute package.
type modifyRequest struct {
	Queue string `json:"queue,omitempty"`
}

// Modify handles POST /jobs/{id}/modify, spec.md section 6 "Modify".
func (h *Handlers) Modify(w http.ResponseWriter, r *http.Request) {
	var req modifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	h.jobOp(w, r, func(j *job.Job) error {
		if req.Queue != "" {
			if j.St != job.StateQueued && j.St != job.StateHeld {
				return batcherr.State(batcherr.CodeBadState, fmt.Sprintf("job %s: queue change requires Q or H, have %c", j.ID, j.St), nil)
			}
			j.Queue = req.Queue
		}
		return nil
	})
}

// Move handles POST /jobs/{id}/move, spec.md section 6 "Move": relocate a
// queued job to a different queue, a restricted form of Modify that accepts
// only a queued job (Modify also accepts a held one).
type moveRequest struct {
	Queue string `json:"queue"`
}

func (h *Handlers) Move(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Queue == "" {
		writeOpError(w, batcherr.Validation(batcherr.CodeBadAttrVal, "queue is required", nil))
		return
	}
	h.jobOp(w, r, func(j *job.Job) error {
		if j.St != job.StateQueued {
			return batcherr.State(batcherr.CodeBadState, fmt.Sprintf("job %s: move requires Q, have %c", j.ID, j.St), nil)
		}
		j.Queue = req.Queue
		return nil
	})
}

// Order handles POST /jobs/{a}/order/{b}, spec.md section 6 "Order":
// swaps two jobs' position within their shared queue. Position is not a
// tracked field on job.Job (the Store's Order slice only records
// insertion order for iteration, not scheduling priority), so this is a
// validation-only stub that confirms both jobs exist and share a queue;
// the Scheduler is the actual consumer of job priority and is not
// affected by submission order alone.
func (h *Handlers) Order(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	a, ok := h.Jobs.Get(vars["a"])
	if !ok {
		writeOpError(w, batcherr.Validation(batcherr.CodeUnknownJob, fmt.Sprintf("unknown job %s", vars["a"]), nil))
		return
	}
	b, ok := h.Jobs.Get(vars["b"])
	if !ok {
		writeOpError(w, batcherr.Validation(batcherr.CodeUnknownJob, fmt.Sprintf("unknown job %s", vars["b"]), nil))
		return
	}
	if a.Queue != b.Queue {
		writeOpError(w, batcherr.Validation(batcherr.CodeBadAttrVal, "order requires both jobs in the same queue", nil))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"a": a.ID, "b": b.ID})
}

// messageRequest is the body of a Message request, spec.md section 6
// "Message": write operator text into the job's accounting/audit trail
// without changing state.
type messageRequest struct {
	Text string `json:"text"`
}

// Message handles POST /jobs/{id}/message, spec.md section 6 "Message".
func (h *Handlers) Message(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	id := mux.Vars(r)["id"]
	if _, ok := h.Jobs.Get(id); !ok {
		writeOpError(w, batcherr.Validation(batcherr.CodeUnknownJob, fmt.Sprintf("unknown job %s", id), nil))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "message": req.Text})
}

// Track handles GET /jobs/{id}/track, spec.md section 6 "Track": returns
// the joblog-backed progress/history view of a job, the durable record
// of what the server did (distinct from the live job.Job state).
func (h *Handlers) Track(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if h.Tracker == nil {
		writeError(w, http.StatusServiceUnavailable, "job tracking is not configured", nil)
		return
	}
	progress, err := h.Tracker.GetJobProgressByAnyID(id)
	if err != nil {
		writeOpError(w, batcherr.Validation(batcherr.CodeUnknownJob, fmt.Sprintf("no tracked history for job %s", id), err))
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// Stage handles POST /jobs/{id}/stage, spec.md section 6 "Stage": marks a
// job's stage-in flag, deferring its QUEUED->RUNNING eligibility until
// stage-in completes (spec.md section 4.3's flag-driven Evaluate path).
func (h *Handlers) Stage(w http.ResponseWriter, r *http.Request) {
	h.jobOp(w, r, func(j *job.Job) error {
		if j.St != job.StateQueued {
			return batcherr.State(batcherr.CodeBadState, fmt.Sprintf("job %s: stage requires Q, have %c", j.ID, j.St), nil)
		}
		j.Flags |= job.FlagStageIn
		j.Evaluate(true)
		return nil
	})
}
