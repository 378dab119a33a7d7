package accounting

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vexxhost/batchd/database"
	"github.com/vexxhost/batchd/job"
	"github.com/vexxhost/batchd/resv"
)

// Store is the persistence half of a Writer; database.AccountingRepository
// satisfies it.
type Store interface {
	Record(row *database.AccountingRow) error
}

// Writer appends accounting records to a flat file (spec.md section 6's
// wire format) and, when a Store is configured, mirrors each record into
// the database, where database.AccountingRepository can list job history
// without parsing log files. The flat-file append pattern follows the
// teacher's CentralLogger.writeToLogFile (open O_APPEND|O_CREATE|O_WRONLY,
// write one line, close) rather than holding the file open, so log
// rotation underneath the process (e.g. logrotate) is safe.
type Writer struct {
	path  string
	store Store

	mu sync.Mutex
}

// NewWriter returns a Writer appending to path. store may be nil to skip
// database mirroring (e.g. an in-memory server configuration).
func NewWriter(path string, store Store) *Writer {
	return &Writer{path: path, store: store}
}

// Write appends one record to the flat file and, if configured, to the
// database. A flat-file failure is logged but not fatal, matching
// spec.md section 7's classification of accounting emission as best
// effort relative to the authoritative in-memory state; a database
// failure is likewise logged rather than propagated, since accounting is
// observational and must never block a state transition.
func (w *Writer) Write(r *Record) {
	w.mu.Lock()
	defer w.mu.Unlock()

	line := Format(r)
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.WithError(err).WithField("path", w.path).Error("Failed to open accounting log")
	} else {
		if _, err := fmt.Fprintln(f, line); err != nil {
			log.WithError(err).Error("Failed to write accounting record")
		}
		f.Close()
	}

	if w.store != nil {
		row := &database.AccountingRow{
			Ts:     r.Ts,
			Type:   string(r.Type),
			JobID:  r.JobID,
			Fields: fieldsToString(r.Fields),
		}
		if err := w.store.Record(row); err != nil {
			log.WithError(err).WithField("job_id", r.JobID).Warn("Failed to mirror accounting record to database")
		}
	}
}

func fieldsToString(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, fields[k]))
	}
	return strings.Join(parts, ";")
}

// EmitOnTransition returns a job.Observer that emits accounting records
// for the transitions spec.md section 4.3 names as accounting events:
// job start (-> R), job end (-> E) and force rerun (substate RERUN3).
// The E -> X clean step emits nothing.
func (w *Writer) EmitOnTransition() job.Observer {
	return func(j *job.Job, from job.State, fromSub job.Substate, to job.State, toSub job.Substate) {
		switch {
		case from != job.StateRunning && to == job.StateRunning:
			w.Write(&Record{
				Ts:    time.Now(),
				Type:  TypeStart,
				JobID: j.ID,
				Fields: map[string]string{
					"queue":     j.Queue,
					"exec_vnode": j.ExecVnode,
				},
			})
		case to == job.StateExiting && from != job.StateExiting:
			w.Write(&Record{
				Ts:    time.Now(),
				Type:  TypeEnd,
				JobID: j.ID,
				Fields: map[string]string{
					"exit_status": fmt.Sprintf("%d", j.ExitCode),
				},
			})
		case toSub == job.SubRerun3:
			w.Write(&Record{
				Ts:     time.Now(),
				Type:   TypeRerun,
				JobID:  j.ID,
				Fields: map[string]string{"force": "1"},
			})
		}
	}
}

// EmitOnResvTransition returns a resv.Observer for reservation
// confirm/begin/end bookkeeping, kept separate from job accounting
// because reservation records carry no exit status.
func (w *Writer) EmitOnResvTransition() resv.Observer {
	return func(r *resv.Reservation, from, to resv.Substate) {
		var t Type
		switch to {
		case resv.Confirmed:
			t = TypeQueued
		case resv.Running:
			t = TypeStart
		case resv.Finished:
			t = TypeEnd
		default:
			return
		}
		w.Write(&Record{
			Ts:     time.Now(),
			Type:   t,
			JobID:  r.ID,
			Fields: map[string]string{"queue": r.Queue},
		})
	}
}
