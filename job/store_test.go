package job

import "testing"

func TestStoreAddGetRemove(t *testing.T) {
	s := NewStore()
	j := New("1.batchd", "workq")
	if err := s.Add(j); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok := s.Get("1.batchd"); !ok || got != j {
		t.Fatal("expected to retrieve the same job back")
	}
	if s.Len() != 1 {
		t.Fatalf("want len 1, got %d", s.Len())
	}

	s.Remove("1.batchd")
	if _, ok := s.Get("1.batchd"); ok {
		t.Fatal("expected job to be gone after Remove")
	}
	if s.Len() != 0 {
		t.Fatalf("want len 0, got %d", s.Len())
	}
}

func TestStoreRejectsDuplicateID(t *testing.T) {
	s := NewStore()
	if err := s.Add(New("1.batchd", "workq")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Add(New("1.batchd", "otherq")); err == nil {
		t.Fatal("expected error adding a duplicate job id")
	}
}

func TestStoreListByQueue(t *testing.T) {
	s := NewStore()
	_ = s.Add(New("1.batchd", "workq"))
	_ = s.Add(New("2.batchd", "otherq"))
	_ = s.Add(New("3.batchd", "workq"))

	got := s.ListByQueue("workq")
	if len(got) != 2 {
		t.Fatalf("want 2 jobs in workq, got %d", len(got))
	}
	if got[0].ID != "1.batchd" || got[1].ID != "3.batchd" {
		t.Fatalf("unexpected jobs or order: %v %v", got[0].ID, got[1].ID)
	}
}

func TestStoreAllPreservesOrder(t *testing.T) {
	s := NewStore()
	_ = s.Add(New("1.batchd", "workq"))
	_ = s.Add(New("2.batchd", "workq"))
	_ = s.Add(New("3.batchd", "workq"))

	all := s.All()
	if len(all) != 3 {
		t.Fatalf("want 3 jobs, got %d", len(all))
	}
	for i, want := range []string{"1.batchd", "2.batchd", "3.batchd"} {
		if all[i].ID != want {
			t.Fatalf("position %d: want %s, got %s", i, want, all[i].ID)
		}
	}
}

func TestStoreRemoveMiddlePreservesOrderOfRemaining(t *testing.T) {
	s := NewStore()
	_ = s.Add(New("1.batchd", "workq"))
	_ = s.Add(New("2.batchd", "workq"))
	_ = s.Add(New("3.batchd", "workq"))

	s.Remove("2.batchd")
	all := s.All()
	if len(all) != 2 {
		t.Fatalf("want 2 jobs remaining, got %d", len(all))
	}
	if all[0].ID != "1.batchd" || all[1].ID != "3.batchd" {
		t.Fatalf("unexpected remaining order: %v %v", all[0].ID, all[1].ID)
	}
}

func TestStoreRemoveUnknownIsNoop(t *testing.T) {
	s := NewStore()
	_ = s.Add(New("1.batchd", "workq"))
	s.Remove("nonexistent.batchd")
	if s.Len() != 1 {
		t.Fatalf("want len 1, got %d", s.Len())
	}
}
