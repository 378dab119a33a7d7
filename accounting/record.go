// Package accounting implements the accounting-record emission described
// in spec.md section 4.3 and section 6 "Accounting file format": one line
// per event, "<timestamp>;<type>;<jobid>;<key=value ...>". It subscribes
// as an observer of job.Observe and resv.Observe rather than being called
// ad hoc from state-transition sites, per spec.md section 9's design
// note.
package accounting

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Type is the single-character record type of spec.md section 6: Q
// (queued), S (start), E (end), D (delete), R (rerun), C (checkpoint).
type Type byte

const (
	TypeQueued    Type = 'Q'
	TypeStart     Type = 'S'
	TypeEnd       Type = 'E'
	TypeDeleted   Type = 'D'
	TypeRerun     Type = 'R'
	TypeCheckpoint Type = 'C'
)

// Record is one accounting entry.
type Record struct {
	Ts     time.Time
	Type   Type
	JobID  string
	Fields map[string]string
}

// Format renders a Record in the wire format spec.md section 6 names:
// "<timestamp>;<type>;<jobid>;<key=value ...>". Fields are sorted by key
// so output is deterministic for tests and for diffing log files.
func Format(r *Record) string {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%s;%c;%s", r.Ts.Format("01/02/2006 15:04:05"), r.Type, r.JobID)
	for _, k := range keys {
		fmt.Fprintf(&b, ";%s=%s", k, r.Fields[k])
	}
	return b.String()
}
