package peer

import (
	"fmt"
	"sync"
)

// Op is the PS_RSC_UPDATE operator, spec.md section 4.5 and section 6.
type Op int

const (
	OpIncr Op = iota
	OpDecr
)

// Update is one entry of a PS_RSC_UPDATE payload, spec.md section 6:
// "{ jobid, op, execvnode, share_job }".
type Update struct {
	JobID     string
	Op        Op
	ExecVnode string
	ShareJob  bool
}

// Ledger tracks one peer's outstanding INCRs keyed by jobid, spec.md
// section 4.5: "The sender maintains per-peer an index of outstanding
// INCRs keyed by jobid; on DECR arrival both sides remove the entry."
type Ledger struct {
	mu      sync.Mutex
	entries map[string]Update
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]Update)}
}

// Apply folds an update into the ledger, matching spec.md section 4.5's
// idempotence contract (spec.md section 8): "A duplicate INCR for the
// same jobid is a protocol error and is dropped with a warning." It
// returns an error for the duplicate case so the caller can log it; the
// ledger is left unmodified by the duplicate.
func (l *Ledger) Apply(u Update) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch u.Op {
	case OpIncr:
		if _, exists := l.entries[u.JobID]; exists {
			return fmt.Errorf("peer: duplicate INCR for job %s", u.JobID)
		}
		l.entries[u.JobID] = u
	case OpDecr:
		delete(l.entries, u.JobID)
	}
	return nil
}

// Has reports whether jobID currently has an outstanding INCR.
func (l *Ledger) Has(jobID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[jobID]
	return ok
}

// Snapshot returns every outstanding entry, used to build a full
// PS_RSC_UPDATE_FULL push or to verify spec.md section 8 invariant 6:
// "the set of jobs the local Server has asserted to P via INCR is
// exactly rsc_idx[P]."
func (l *Ledger) Snapshot() []Update {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Update, 0, len(l.entries))
	for _, u := range l.entries {
		out = append(out, u)
	}
	return out
}

// ReverseAll clears the ledger and returns what was cleared, spec.md
// section 4.5 "Reconnect": "all saved outstanding INCRs for that peer are
// reversed locally (so the next full push can reinstate them)."
func (l *Ledger) ReverseAll() []Update {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Update, 0, len(l.entries))
	for _, u := range l.entries {
		out = append(out, u)
	}
	l.entries = make(map[string]Update)
	return out
}

// ReplaceAll discards the current ledger and installs a fresh set, the
// PS_RSC_UPDATE_FULL semantics: "implies 'discard prior INCRs from this
// peer first'."
func (l *Ledger) ReplaceAll(updates []Update) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]Update, len(updates))
	for _, u := range updates {
		if u.Op == OpIncr {
			l.entries[u.JobID] = u
		}
	}
}

// Len reports how many jobs currently have an outstanding INCR.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
