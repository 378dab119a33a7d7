package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vexxhost/batchd/batcherr"
)

// StatSvr handles GET /server, spec.md section 6 "StatSvr": a
// whole-server summary, the aggregate equivalent of StatNode/StatQue
// across every tracked entity.
func (h *Handlers) StatSvr(w http.ResponseWriter, r *http.Request) {
	peers := make(map[string]string, len(h.Peers))
	for name, p := range h.Peers {
		peers[name] = p.Status().String()
	}
	scheds := make(map[string]string, len(h.Scheds))
	for partition, s := range h.Scheds {
		scheds[partition] = s.State().String()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":         h.Jobs.Len(),
		"reservations": h.Resvs.Len(),
		"nodes":        h.Nodes.Total(),
		"peers":        peers,
		"schedulers":   scheds,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Connect handles POST /scheduler/{partition}/cycle, spec.md section 4.4:
// the Scheduler requesting a new dispatch cycle on its partition. Despite
// the route name this is the Scheduler-facing analog of PS_CONNECT's
// "kick off a round of activity" role, not the peer PS_CONNECT handled by
// the peer package's Transport.Connect.
func (h *Handlers) Connect(w http.ResponseWriter, r *http.Request) {
	partition := mux.Vars(r)["partition"]
	s, ok := h.Scheds[partition]
	if !ok {
		writeOpError(w, batcherr.Validation(batcherr.CodeSchedDown, fmt.Sprintf("no scheduler for partition %s", partition), nil))
		return
	}
	if err := s.StartCycle(); err != nil {
		writeOpError(w, batcherr.Transient(batcherr.CodeSchedDown, "failed to start scheduling cycle", err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"partition": partition, "state": s.State().String()})
}

// Disconnect handles POST /scheduler/{partition}/end?code=N, spec.md
// section 4.4 "EndCycle": the Scheduler reporting cycle completion.
func (h *Handlers) Disconnect(w http.ResponseWriter, r *http.Request) {
	partition := mux.Vars(r)["partition"]
	s, ok := h.Scheds[partition]
	if !ok {
		writeOpError(w, batcherr.Validation(batcherr.CodeSchedDown, fmt.Sprintf("no scheduler for partition %s", partition), nil))
		return
	}
	var code int32
	fmt.Sscanf(r.URL.Query().Get("code"), "%d", &code)
	s.EndCycle(code)
	writeJSON(w, http.StatusOK, map[string]string{"partition": partition, "state": s.State().String()})
}

// Failover handles POST /failover, spec.md section 6 "Failover": an
// operator-triggered handoff acknowledgment once this process has taken
// the failover lock (the lockfile package owns the actual lock
// acquisition; this endpoint only reports whether it is currently the
// active holder, which cmd/batchd/main.go wires in via a closure since
// the lock itself lives outside this package's dependency graph).
type FailoverStatus func() bool

func (h *Handlers) Failover(status FailoverStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"active": status()})
	}
}

// Health handles GET /health, matching the teacher's Server.handleHealth.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":   "batchd",
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready, spec.md section 4.5: "the ready endpoint
// waits on pending_replies == 0 on every peer" -- reported here as a
// point-in-time check rather than a blocking wait, leaving polling
// cadence to the caller.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	notReady := make([]string, 0)
	for name, p := range h.Peers {
		if !p.IsReady() {
			notReady = append(notReady, name)
		}
	}
	if len(notReady) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"ready": false, "pending_peers": notReady})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ready": true})
}
