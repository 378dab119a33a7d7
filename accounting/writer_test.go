package accounting

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vexxhost/batchd/database"
	"github.com/vexxhost/batchd/job"
	"github.com/vexxhost/batchd/resv"
)

type fakeStore struct {
	rows []*database.AccountingRow
	err  error
}

func (f *fakeStore) Record(row *database.AccountingRow) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, row)
	return nil
}

func TestWriterWriteAppendsLineToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounting.log")
	w := NewWriter(path, nil)

	w.Write(&Record{Type: TypeQueued, JobID: "1.batchd", Fields: map[string]string{"queue": "workq"}})
	w.Write(&Record{Type: TypeStart, JobID: "1.batchd"})

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("unexpected error opening log: %v", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], ";Q;1.batchd;") {
		t.Fatalf("unexpected first line: %s", lines[0])
	}
	if !strings.Contains(lines[1], ";S;1.batchd") {
		t.Fatalf("unexpected second line: %s", lines[1])
	}
}

func TestWriterWriteMirrorsToStore(t *testing.T) {
	store := &fakeStore{}
	w := NewWriter(filepath.Join(t.TempDir(), "accounting.log"), store)

	w.Write(&Record{Type: TypeEnd, JobID: "1.batchd", Fields: map[string]string{"exit_status": "0"}})

	if len(store.rows) != 1 {
		t.Fatalf("want 1 mirrored row, got %d", len(store.rows))
	}
	if store.rows[0].JobID != "1.batchd" || store.rows[0].Type != "E" {
		t.Fatalf("unexpected mirrored row: %+v", store.rows[0])
	}
	if store.rows[0].Fields != "exit_status=0" {
		t.Fatalf("unexpected fields string: %s", store.rows[0].Fields)
	}
}

func TestWriterWriteToleratesStoreFailure(t *testing.T) {
	store := &fakeStore{err: errBoom}
	w := NewWriter(filepath.Join(t.TempDir(), "accounting.log"), store)

	w.Write(&Record{Type: TypeEnd, JobID: "1.batchd"})
	// must not panic; best-effort mirroring is logged, not surfaced.
}

var errBoom = errors.New("boom")

func TestEmitOnTransitionFiresOnStartAndEnd(t *testing.T) {
	store := &fakeStore{}
	w := NewWriter(filepath.Join(t.TempDir(), "accounting.log"), store)
	observe := w.EmitOnTransition()

	j := job.New("1.batchd", "workq")
	observe(j, job.StateQueued, job.SubNone, job.StateRunning, job.SubRunning)
	observe(j, job.StateRunning, job.SubRunning, job.StateExiting, job.SubNone)

	if len(store.rows) != 2 {
		t.Fatalf("want 2 accounting records, got %d", len(store.rows))
	}
	if store.rows[0].Type != "S" {
		t.Fatalf("want first record type S, got %s", store.rows[0].Type)
	}
	if store.rows[1].Type != "E" {
		t.Fatalf("want second record type E, got %s", store.rows[1].Type)
	}
}

func TestEmitOnTransitionFiresOnForceRerun(t *testing.T) {
	store := &fakeStore{}
	w := NewWriter(filepath.Join(t.TempDir(), "accounting.log"), store)
	observe := w.EmitOnTransition()

	j := job.New("1.batchd", "workq")
	observe(j, job.StateRunning, job.SubRunning, job.StateRunning, job.SubRerun3)

	if len(store.rows) != 1 || store.rows[0].Type != "R" {
		t.Fatalf("want 1 rerun record, got %+v", store.rows)
	}
}

func TestEmitOnTransitionIgnoresUnrelatedTransitions(t *testing.T) {
	store := &fakeStore{}
	w := NewWriter(filepath.Join(t.TempDir(), "accounting.log"), store)
	observe := w.EmitOnTransition()

	j := job.New("1.batchd", "workq")
	observe(j, job.StateQueued, job.SubNone, job.StateHeld, job.SubNone)

	if len(store.rows) != 0 {
		t.Fatalf("want no accounting records for hold transition, got %d", len(store.rows))
	}
}

func TestEmitOnResvTransitionMapsSubstatesToTypes(t *testing.T) {
	store := &fakeStore{}
	w := NewWriter(filepath.Join(t.TempDir(), "accounting.log"), store)
	observe := w.EmitOnResvTransition()

	r := &resv.Reservation{ID: "R1.batchd", Queue: "workq"}
	observe(r, resv.Unconfirmed, resv.Confirmed)
	observe(r, resv.Confirmed, resv.Running)
	observe(r, resv.Running, resv.Finished)

	if len(store.rows) != 3 {
		t.Fatalf("want 3 records, got %d", len(store.rows))
	}
	wantTypes := []string{"Q", "S", "E"}
	for i, want := range wantTypes {
		if store.rows[i].Type != want {
			t.Fatalf("record %d: want type %s, got %s", i, want, store.rows[i].Type)
		}
	}
}
