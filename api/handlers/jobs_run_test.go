package handlers

import (
	"net/http"
	"testing"

	"github.com/vexxhost/batchd/job"
	"github.com/vexxhost/batchd/node"
)

func assignedNcpus(t *testing.T, n *node.Vnode) int64 {
	t.Helper()
	assigned := n.Attrs.Get(node.AttrResourcesAssigned)
	if assigned == nil {
		t.Fatal("resources_assigned not registered")
	}
	rl := assigned.Resources()
	if rl == nil {
		return 0
	}
	r := rl.Get("ncpus")
	if r == nil {
		return 0
	}
	return r.Value.Long()
}

func TestRunDispatchesJobAndClaimsVnodeResources(t *testing.T) {
	h := newTestHandlers()
	n := node.New("node1")
	n.ResizeSubnodes(2)
	h.Nodes.Add(n)
	j := job.New("1.batchd", "workq")
	h.Jobs.Add(j)

	rec := doJSON(t, "POST", "/jobs/{id}/run", "/jobs/1.batchd/run", h, h.Run, runRequest{ExecVnode: "(node1:ncpus=1)"})
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if j.St != job.StateRunning {
		t.Fatalf("want job running, got state %c", j.St)
	}
	if n.NSNFree != 1 {
		t.Fatalf("want 1 subnode free after claiming 1 of 2, got %d", n.NSNFree)
	}
	if got := assignedNcpus(t, n); got != 1 {
		t.Fatalf("want resources_assigned.ncpus=1 after run, got %d", got)
	}
}

func TestRunInsufficientSubnodesReturns503AndLeavesJobQueued(t *testing.T) {
	h := newTestHandlers()
	n := node.New("node1")
	n.ResizeSubnodes(1)
	h.Nodes.Add(n)
	j := job.New("1.batchd", "workq")
	h.Jobs.Add(j)

	rec := doJSON(t, "POST", "/jobs/{id}/run", "/jobs/1.batchd/run", h, h.Run, runRequest{ExecVnode: "(node1:ncpus=2)"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d: %s", rec.Code, rec.Body.String())
	}
	if j.St != job.StateQueued {
		t.Fatalf("want job left queued on a failed claim, got state %c", j.St)
	}
	if n.NSNFree != 1 {
		t.Fatalf("want no partial claim left behind, got %d free", n.NSNFree)
	}
}

func TestRunUnknownVnodeReturns400AndLeavesJobQueued(t *testing.T) {
	h := newTestHandlers()
	j := job.New("1.batchd", "workq")
	h.Jobs.Add(j)

	rec := doJSON(t, "POST", "/jobs/{id}/run", "/jobs/1.batchd/run", h, h.Run, runRequest{ExecVnode: "(ghost:ncpus=1)"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if j.St != job.StateQueued {
		t.Fatalf("want job left queued, got state %c", j.St)
	}
}

func TestObitReleasesVnodeResourcesBackToZero(t *testing.T) {
	h := newTestHandlers()
	n := node.New("node1")
	n.ResizeSubnodes(2)
	h.Nodes.Add(n)
	j := job.New("1.batchd", "workq")
	h.Jobs.Add(j)

	doJSON(t, "POST", "/jobs/{id}/run", "/jobs/1.batchd/run", h, h.Run, runRequest{ExecVnode: "(node1:ncpus=2)"})
	if got := assignedNcpus(t, n); got != 2 {
		t.Fatalf("want resources_assigned.ncpus=2 after run, got %d", got)
	}

	rec := doJSON(t, "POST", "/jobs/{id}/obit", "/jobs/1.batchd/obit", h, h.Obit, obitRequest{ExitCode: 0})
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if j.St != job.StateExiting {
		t.Fatalf("want job exiting after obit, got state %c", j.St)
	}
	if n.NSNFree != 2 {
		t.Fatalf("want both subnodes freed, got %d free", n.NSNFree)
	}
	if got := assignedNcpus(t, n); got != 0 {
		t.Fatalf("want resources_assigned.ncpus=0 after obit, got %d", got)
	}
}

func TestObitRequiresRunningFamilyState(t *testing.T) {
	h := newTestHandlers()
	j := job.New("1.batchd", "workq")
	h.Jobs.Add(j)

	rec := doJSON(t, "POST", "/jobs/{id}/obit", "/jobs/1.batchd/obit", h, h.Obit, obitRequest{ExitCode: 0})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("want obit of a queued job to fail (plain error, unclassified by batcherr), got %d: %s", rec.Code, rec.Body.String())
	}
}
