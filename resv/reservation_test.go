package resv

import (
	"errors"
	"testing"
	"time"
)

func windowAlwaysOK([]string, time.Time, time.Time) error { return nil }

func TestNewIsUnconfirmed(t *testing.T) {
	stime := time.Now()
	etime := stime.Add(time.Hour)
	r := New("R1.batchd", stime, etime)
	if r.St != Unconfirmed {
		t.Fatalf("want unconfirmed, got %v", r.St)
	}
	if r.Duration != time.Hour {
		t.Fatalf("want duration 1h, got %v", r.Duration)
	}
}

func TestConfirmRequiresUnconfirmed(t *testing.T) {
	r := New("R1.batchd", time.Now(), time.Now().Add(time.Hour))
	r.St = Running
	if err := r.Confirm([]string{"nodeA"}, windowAlwaysOK); err == nil {
		t.Fatal("expected error confirming a non-unconfirmed reservation")
	}
}

func TestConfirmRejectsBadWindow(t *testing.T) {
	r := New("R1.batchd", time.Now(), time.Now().Add(time.Hour))
	failWindow := func([]string, time.Time, time.Time) error { return errors.New("vnode busy") }
	if err := r.Confirm([]string{"nodeA"}, failWindow); err == nil {
		t.Fatal("expected error on window validation failure")
	}
	if r.St != Unconfirmed {
		t.Fatalf("want state unchanged on failure, got %v", r.St)
	}
}

func TestConfirmBeginEnd(t *testing.T) {
	r := New("R1.batchd", time.Now(), time.Now().Add(time.Hour))
	if err := r.Confirm([]string{"nodeA", "nodeB"}, windowAlwaysOK); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.St != Confirmed {
		t.Fatalf("want confirmed, got %v", r.St)
	}

	if err := r.Begin(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.St != Running {
		t.Fatalf("want running, got %v", r.St)
	}

	if err := r.End(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.St != Finished {
		t.Fatalf("want finished, got %v", r.St)
	}
}

func TestBeginRequiresConfirmed(t *testing.T) {
	r := New("R1.batchd", time.Now(), time.Now().Add(time.Hour))
	if err := r.Begin(); err == nil {
		t.Fatal("expected error beginning an unconfirmed reservation")
	}
}

func TestValidateRequiresVnodesWhenConfirmed(t *testing.T) {
	r := New("R1.batchd", time.Now(), time.Now().Add(time.Hour))
	r.St = Confirmed
	if err := r.Validate(); err == nil {
		t.Fatal("expected error validating a confirmed reservation with no vnodes")
	}
	r.Vnodes = []string{"nodeA"}
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestObserveNotifiedOnReservationTransition(t *testing.T) {
	var got []Substate
	Observe(func(r *Reservation, from, to Substate) {
		got = append(got, to)
	})

	r := New("R2.batchd", time.Now(), time.Now().Add(time.Hour))
	_ = r.Confirm([]string{"nodeA"}, windowAlwaysOK)
	_ = r.Begin()
	_ = r.End()

	if len(got) != 3 {
		t.Fatalf("want 3 observed transitions, got %d: %v", len(got), got)
	}
	if got[0] != Confirmed || got[1] != Running || got[2] != Finished {
		t.Fatalf("unexpected transition sequence: %v", got)
	}
}
