package resv

import (
	"testing"
	"time"
)

func newTestResv(id string) *Reservation {
	return New(id, time.Now(), time.Now().Add(time.Hour))
}

func TestStoreAddGetRemove(t *testing.T) {
	s := NewStore()
	r := newTestResv("R1.batchd")
	if err := s.Add(r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok := s.Get("R1.batchd"); !ok || got != r {
		t.Fatal("expected to retrieve the same reservation back")
	}
	if s.Len() != 1 {
		t.Fatalf("want len 1, got %d", s.Len())
	}

	s.Remove("R1.batchd")
	if _, ok := s.Get("R1.batchd"); ok {
		t.Fatal("expected reservation to be gone after Remove")
	}
	if s.Len() != 0 {
		t.Fatalf("want len 0, got %d", s.Len())
	}
}

func TestStoreRejectsDuplicateID(t *testing.T) {
	s := NewStore()
	if err := s.Add(newTestResv("R1.batchd")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Add(newTestResv("R1.batchd")); err == nil {
		t.Fatal("expected error adding a duplicate reservation id")
	}
}

func TestStoreAllPreservesOrder(t *testing.T) {
	s := NewStore()
	_ = s.Add(newTestResv("R1.batchd"))
	_ = s.Add(newTestResv("R2.batchd"))
	_ = s.Add(newTestResv("R3.batchd"))

	all := s.All()
	if len(all) != 3 {
		t.Fatalf("want 3 reservations, got %d", len(all))
	}
	for i, want := range []string{"R1.batchd", "R2.batchd", "R3.batchd"} {
		if all[i].ID != want {
			t.Fatalf("position %d: want %s, got %s", i, want, all[i].ID)
		}
	}
}

func TestStoreRemoveMiddlePreservesOrderOfRemaining(t *testing.T) {
	s := NewStore()
	_ = s.Add(newTestResv("R1.batchd"))
	_ = s.Add(newTestResv("R2.batchd"))
	_ = s.Add(newTestResv("R3.batchd"))

	s.Remove("R2.batchd")
	all := s.All()
	if len(all) != 2 {
		t.Fatalf("want 2 reservations remaining, got %d", len(all))
	}
	if all[0].ID != "R1.batchd" || all[1].ID != "R3.batchd" {
		t.Fatalf("unexpected remaining order: %v %v", all[0].ID, all[1].ID)
	}
}
