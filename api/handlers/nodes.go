package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/vexxhost/batchd/batcherr"
	"github.com/vexxhost/batchd/database"
	"github.com/vexxhost/batchd/node"
)

// nodeView is the JSON projection of a node.Vnode.
type nodeView struct {
	Name    string `json:"name"`
	State   uint32 `json:"state"`
	Alien   bool   `json:"alien"`
	NSNFree int    `json:"nsn_free"`
	PoolID  int    `json:"pool_id,omitempty"`
}

func toNodeView(n *node.Vnode) nodeView {
	return nodeView{Name: n.Name, State: uint32(n.St), Alien: n.IsAlien(), NSNFree: n.NSNFree, PoolID: n.PoolID}
}

// StatNode handles GET /nodes/{name}, spec.md section 6 "StatNode". With
// no name it falls back to listing every node (StatNode with no target
// reports all nodes in the original protocol).
func (h *Handlers) StatNode(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name == "" {
		var views []nodeView
		for _, n := range h.Nodes.Order {
			if vn, ok := h.Nodes.Lookup(n); ok {
				views = append(views, toNodeView(vn))
			}
		}
		writeJSON(w, http.StatusOK, views)
		return
	}

	vn, ok := h.Nodes.LookupAny(name)
	if !ok {
		writeOpError(w, batcherr.Validation(batcherr.CodeUnknownNode, fmt.Sprintf("unknown node %s", name), nil))
		return
	}
	writeJSON(w, http.StatusOK, toNodeView(vn))
}

// managerNodeRequest is the body of a Manager node-create/delete request,
// spec.md section 6 "Manager": privileged node-table administration.
type managerNodeRequest struct {
	Action string `json:"action"` // "create" or "delete"
	Name   string `json:"name"`
}

// Manager handles POST /manager/nodes, spec.md section 6 "Manager".
func (h *Handlers) Manager(w http.ResponseWriter, r *http.Request) {
	var req managerNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" {
		writeOpError(w, batcherr.Validation(batcherr.CodeBadAttrVal, "name is required", nil))
		return
	}

	switch req.Action {
	case "create":
		vn := node.New(req.Name)
		if err := h.Nodes.Add(vn); err != nil {
			writeOpError(w, batcherr.Validation(batcherr.CodeBadAttrVal, err.Error(), err))
			return
		}
		if h.NodeRepo != nil {
			row := &database.NodeRow{Name: vn.Name, State: uint32(vn.St), PoolID: vn.PoolID}
			if err := h.NodeRepo.Save(row, nil); err != nil {
				log.WithError(err).WithField("node", vn.Name).Warn("failed to persist node header")
			}
		}
		writeJSON(w, http.StatusCreated, toNodeView(vn))
	case "delete":
		if _, ok := h.Nodes.Remove(req.Name); !ok {
			writeOpError(w, batcherr.Validation(batcherr.CodeUnknownNode, fmt.Sprintf("unknown node %s", req.Name), nil))
			return
		}
		if h.NodeRepo != nil {
			if err := h.NodeRepo.Delete(req.Name); err != nil {
				log.WithError(err).WithField("node", req.Name).Warn("failed to delete persisted node header")
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeOpError(w, batcherr.Protocol(batcherr.CodeProtocol, fmt.Sprintf("unsupported manager action %q", req.Action), nil))
	}
}

// StatQue handles GET /queues/{name}/jobs, spec.md section 6 "StatQue":
// reports queue occupancy by counting tracked jobs in that queue.
func (h *Handlers) StatQue(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	jobs := h.Jobs.ListByQueue(name)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"queue": name,
		"count": len(jobs),
	})
}
