package accounting

import (
	"testing"
	"time"
)

func TestFormatOrdersFieldsByKey(t *testing.T) {
	ts := time.Date(2026, 3, 5, 10, 30, 0, 0, time.UTC)
	r := &Record{
		Ts:    ts,
		Type:  TypeStart,
		JobID: "1.batchd",
		Fields: map[string]string{
			"queue":      "workq",
			"exec_vnode": "nodeA",
		},
	}
	got := Format(r)
	want := "03/05/2026 10:30:00;S;1.batchd;exec_vnode=nodeA;queue=workq"
	if got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func TestFormatNoFields(t *testing.T) {
	ts := time.Date(2026, 3, 5, 10, 30, 0, 0, time.UTC)
	r := &Record{Ts: ts, Type: TypeDeleted, JobID: "2.batchd"}
	got := Format(r)
	want := "03/05/2026 10:30:00;D;2.batchd"
	if got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}
