package peer

import "testing"

func TestLedgerApplyIncrThenDecr(t *testing.T) {
	l := NewLedger()
	if err := l.Apply(Update{JobID: "1.batchd", Op: OpIncr}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !l.Has("1.batchd") {
		t.Fatal("expected job present after INCR")
	}
	if l.Len() != 1 {
		t.Fatalf("want len 1, got %d", l.Len())
	}

	if err := l.Apply(Update{JobID: "1.batchd", Op: OpDecr}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Has("1.batchd") {
		t.Fatal("expected job removed after DECR")
	}
	if l.Len() != 0 {
		t.Fatalf("want len 0, got %d", l.Len())
	}
}

func TestLedgerApplyDuplicateIncrIsRejected(t *testing.T) {
	l := NewLedger()
	_ = l.Apply(Update{JobID: "1.batchd", Op: OpIncr})
	if err := l.Apply(Update{JobID: "1.batchd", Op: OpIncr}); err == nil {
		t.Fatal("expected error on duplicate INCR")
	}
	if l.Len() != 1 {
		t.Fatalf("want ledger unmodified by duplicate, len=%d", l.Len())
	}
}

func TestLedgerDecrOfUnknownJobIsNoop(t *testing.T) {
	l := NewLedger()
	if err := l.Apply(Update{JobID: "nonexistent", Op: OpDecr}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLedgerSnapshot(t *testing.T) {
	l := NewLedger()
	_ = l.Apply(Update{JobID: "1.batchd", Op: OpIncr})
	_ = l.Apply(Update{JobID: "2.batchd", Op: OpIncr})

	snap := l.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("want 2 entries, got %d", len(snap))
	}
}

func TestLedgerReverseAllClearsAndReturns(t *testing.T) {
	l := NewLedger()
	_ = l.Apply(Update{JobID: "1.batchd", Op: OpIncr})
	_ = l.Apply(Update{JobID: "2.batchd", Op: OpIncr})

	reversed := l.ReverseAll()
	if len(reversed) != 2 {
		t.Fatalf("want 2 reversed entries, got %d", len(reversed))
	}
	if l.Len() != 0 {
		t.Fatalf("want ledger empty after reverse, got %d", l.Len())
	}
}

func TestLedgerReplaceAllDiscardsStaleEntries(t *testing.T) {
	l := NewLedger()
	_ = l.Apply(Update{JobID: "1.batchd", Op: OpIncr})

	l.ReplaceAll([]Update{{JobID: "2.batchd", Op: OpIncr}, {JobID: "3.batchd", Op: OpIncr}})

	if l.Has("1.batchd") {
		t.Fatal("expected stale entry discarded by ReplaceAll")
	}
	if !l.Has("2.batchd") || !l.Has("3.batchd") {
		t.Fatal("expected new entries present after ReplaceAll")
	}
	if l.Len() != 2 {
		t.Fatalf("want len 2, got %d", l.Len())
	}
}

func TestLedgerReplaceAllIgnoresDecrEntries(t *testing.T) {
	l := NewLedger()
	l.ReplaceAll([]Update{{JobID: "1.batchd", Op: OpDecr}})
	if l.Len() != 0 {
		t.Fatalf("want DECR entries ignored in a full replace, got len %d", l.Len())
	}
}
