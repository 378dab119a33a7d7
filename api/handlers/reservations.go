package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/vexxhost/batchd/batcherr"
	"github.com/vexxhost/batchd/database"
	"github.com/vexxhost/batchd/resv"
)

// persistResv mirrors a reservation's header to the database, spec.md
// section 5 "Transactions": the in-memory table is authoritative, so a
// mirror failure here is logged rather than returned to the caller.
func (h *Handlers) persistResv(r *resv.Reservation) {
	if h.ResvRepo == nil {
		return
	}
	row := &database.ReservationRow{ID: r.ID, Stime: r.Stime, Etime: r.Etime, State: int(r.St), Flags: uint32(r.Flags), Queue: r.Queue}
	if err := h.ResvRepo.Save(row, r.Vnodes, nil); err != nil {
		log.WithError(err).WithField("resv_id", r.ID).Warn("failed to persist reservation header")
	}
}

type resvView struct {
	ID     string   `json:"id"`
	Stime  string   `json:"stime"`
	Etime  string   `json:"etime"`
	State  string   `json:"state"`
	Vnodes []string `json:"vnodes,omitempty"`
}

func toResvView(r *resv.Reservation) resvView {
	return resvView{ID: r.ID, Stime: r.Stime.UTC().Format(time.RFC3339), Etime: r.Etime.UTC().Format(time.RFC3339), State: r.St.String(), Vnodes: r.Vnodes}
}

// resvSubRequest is the body of a ResvSub request, spec.md section 6
// "ResvSub": submit a reservation over a time window with a proposed
// vnode set.
type resvSubRequest struct {
	Stime  time.Time `json:"stime"`
	Etime  time.Time `json:"etime"`
	Vnodes []string  `json:"vnodes"`
}

// ResvSub handles POST /reservations, spec.md section 6 "ResvSub".
func (h *Handlers) ResvSub(w http.ResponseWriter, r *http.Request) {
	var req resvSubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if !req.Etime.After(req.Stime) {
		writeOpError(w, batcherr.Validation(batcherr.CodeBadRange, "etime must be after stime", nil))
		return
	}

	id := fmt.Sprintf("R%s.batchd", uuid.New().String())
	resvObj := resv.New(id, req.Stime, req.Etime)
	if err := h.Resvs.Add(resvObj); err != nil {
		writeOpError(w, batcherr.Internal(batcherr.CodeInternal, "failed to create reservation", err))
		return
	}

	windowOK := func(vnodes []string, stime, etime time.Time) error {
		for _, name := range vnodes {
			if _, ok := h.Nodes.Lookup(name); !ok {
				return fmt.Errorf("unknown vnode %s", name)
			}
		}
		return nil
	}
	if err := resvObj.Confirm(req.Vnodes, windowOK); err != nil {
		h.Resvs.Remove(id)
		writeOpError(w, err)
		return
	}
	h.persistResv(resvObj)
	writeJSON(w, http.StatusCreated, toResvView(resvObj))
}

// DeleteReservation handles DELETE /reservations/{id}, spec.md section 6
// "DeleteReservation".
func (h *Handlers) DeleteReservation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	resvObj, ok := h.Resvs.Get(id)
	if !ok {
		writeOpError(w, batcherr.Validation(batcherr.CodeUnknownResv, fmt.Sprintf("unknown reservation %s", id), nil))
		return
	}
	h.Resvs.Remove(id)
	cancelOutstanding(h.Exec, resvObj.OutstandingTasks())
	if h.ResvRepo != nil {
		if err := h.ResvRepo.Delete(id); err != nil {
			log.WithError(err).WithField("resv_id", id).Warn("failed to delete persisted reservation header")
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// modifyResvRequest is the body of a ModifyReservation request, spec.md
// section 6 "ModifyReservation": the pre-alter snapshot/rollback path of
// resv/alter.go.
type modifyResvRequest struct {
	Stime time.Time `json:"stime"`
	Etime time.Time `json:"etime"`
}

// ModifyReservation handles POST /reservations/{id}/modify, spec.md
// section 6 "ModifyReservation".
func (h *Handlers) ModifyReservation(w http.ResponseWriter, r *http.Request) {
	var req modifyResvRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	id := mux.Vars(r)["id"]
	resvObj, ok := h.Resvs.Get(id)
	if !ok {
		writeOpError(w, batcherr.Validation(batcherr.CodeUnknownResv, fmt.Sprintf("unknown reservation %s", id), nil))
		return
	}

	resvObj.BeginAlter()
	conflictCheck := func(stime, etime time.Time) error {
		if !etime.After(stime) {
			return fmt.Errorf("etime must be after stime")
		}
		return nil
	}
	if err := resvObj.Apply(req.Stime, req.Etime, conflictCheck); err != nil {
		if rbErr := resvObj.RollbackAlter(); rbErr != nil {
			writeOpError(w, batcherr.Internal(batcherr.CodeInternal, "failed to roll back reservation alter", rbErr))
			return
		}
		writeOpError(w, err)
		return
	}
	resvObj.CommitAlter()
	h.persistResv(resvObj)
	writeJSON(w, http.StatusOK, toResvView(resvObj))
}

// StatResv handles GET /reservations/{id}, a read counterpart to StatJob
// the client batch protocol implies for reservations even though spec.md
// section 6 does not name it separately from ResvSub.
func (h *Handlers) StatResv(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	resvObj, ok := h.Resvs.Get(id)
	if !ok {
		writeOpError(w, batcherr.Validation(batcherr.CodeUnknownResv, fmt.Sprintf("unknown reservation %s", id), nil))
		return
	}
	writeJSON(w, http.StatusOK, toResvView(resvObj))
}
