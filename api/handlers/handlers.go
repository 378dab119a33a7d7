// Package handlers implements the HTTP+JSON realization of spec.md
// section 6's client batch protocol, grouped the way the teacher's
// api/handlers package groups one file per resource family.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vexxhost/batchd/batcherr"
	"github.com/vexxhost/batchd/database"
	"github.com/vexxhost/batchd/job"
	"github.com/vexxhost/batchd/joblog"
	"github.com/vexxhost/batchd/node"
	"github.com/vexxhost/batchd/peer"
	"github.com/vexxhost/batchd/resv"
	"github.com/vexxhost/batchd/sched"
	"github.com/vexxhost/batchd/worktask"
)

// Handlers bundles every in-memory subsystem the HTTP surface reads and
// mutates, following the shape of the teacher's handlers.Handlers
// (one struct, one constructor, route methods grouped by resource). The
// repositories mirror create/delete operations to the database; per
// spec.md section 5 "Transactions" the in-memory tables remain
// authoritative, so a mirror failure is logged, not surfaced to the
// caller.
type Handlers struct {
	Nodes   *node.Index
	Jobs    *job.Store
	Resvs   *resv.Store
	Scheds  map[string]*sched.Scheduler
	Peers   map[string]*peer.Server
	Exec    *worktask.Executor
	Rerun   *job.Rerunner
	Tracker *joblog.Tracker

	NodeRepo *database.NodeRepository
	JobRepo  *database.JobRepository
	ResvRepo *database.ReservationRepository
}

// NewHandlers constructs a Handlers bundle over already-initialized
// subsystems; cmd/batchd/main.go owns their lifecycle.
func NewHandlers(nodes *node.Index, jobs *job.Store, resvs *resv.Store, scheds map[string]*sched.Scheduler, peers map[string]*peer.Server, exec *worktask.Executor, rerun *job.Rerunner, tracker *joblog.Tracker, nodeRepo *database.NodeRepository, jobRepo *database.JobRepository, resvRepo *database.ReservationRepository) *Handlers {
	return &Handlers{
		Nodes: nodes, Jobs: jobs, Resvs: resvs, Scheds: scheds,
		Peers: peers, Exec: exec, Rerun: rerun, Tracker: tracker,
		NodeRepo: nodeRepo, JobRepo: jobRepo, ResvRepo: resvRepo,
	}
}

// writeJSON writes a standardized JSON success response, matching the
// teacher's Server.writeJSONResponse.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeError writes a standardized JSON error response, matching the
// teacher's Server.writeErrorResponse.
func writeError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]interface{}{
		"error":     message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if err != nil {
		body["details"] = err.Error()
	}
	writeJSON(w, status, body)
}

// writeOpError classifies a batcherr.Error (or plain error) into the HTTP
// status spec.md section 7's taxonomy implies: Validation/Protocol -> 400,
// State -> 409, Transient -> 503, Internal -> 500, anything else -> 500.
func writeOpError(w http.ResponseWriter, err error) {
	var be *batcherr.Error
	status := http.StatusInternalServerError
	switch {
	case batcherr.Is(err, batcherr.KindValidation), batcherr.Is(err, batcherr.KindProtocol):
		status = http.StatusBadRequest
	case batcherr.Is(err, batcherr.KindState):
		status = http.StatusConflict
	case batcherr.Is(err, batcherr.KindTransient):
		status = http.StatusServiceUnavailable
	}
	if errors.As(err, &be) {
		writeError(w, status, be.Msg, be.Cause)
		return
	}
	writeError(w, status, err.Error(), nil)
}
