package peer

import "testing"

func TestNewServerStartsNeedsHello(t *testing.T) {
	s := NewServer("momhost", 15001)
	if s.Status() != StatusNeedsHello {
		t.Fatalf("want needs_hello, got %v", s.Status())
	}
	if s.IsReady() {
		t.Fatal("expected a fresh peer to not be ready")
	}
}

func TestPeerNameAndAddr(t *testing.T) {
	s := NewServer("momhost", 15001)
	if s.PeerName() != "momhost:15001" {
		t.Fatalf("unexpected peer name: %s", s.PeerName())
	}
	host, port := s.PeerAddr()
	if host != "momhost" || port != 15001 {
		t.Fatalf("unexpected peer addr: %s %d", host, port)
	}
}

func TestBeginFullPushThenAckReachesReady(t *testing.T) {
	s := NewServer("momhost", 15001)
	s.BeginFullPush(3)
	if s.IsReady() {
		t.Fatal("expected not ready with outstanding replies")
	}

	s.Ack(2)
	if s.IsReady() {
		t.Fatal("expected still not ready, 1 reply outstanding")
	}

	s.Ack(1)
	if !s.IsReady() {
		t.Fatal("expected ready once all replies are acked")
	}
}

func TestAckOvershootClampsToZeroAndReady(t *testing.T) {
	s := NewServer("momhost", 15001)
	s.BeginFullPush(2)
	s.Ack(5)
	if !s.IsReady() {
		t.Fatal("expected ready when ack count overshoots outstanding replies")
	}
}

func TestMarkNeedsHelloResetsPendingAndStatus(t *testing.T) {
	s := NewServer("momhost", 15001)
	s.BeginFullPush(3)
	s.Ack(3)
	if !s.IsReady() {
		t.Fatal("expected ready before disconnect")
	}

	s.MarkNeedsHello()
	if s.Status() != StatusNeedsHello {
		t.Fatalf("want needs_hello after disconnect, got %v", s.Status())
	}
	if s.IsReady() {
		t.Fatal("expected not ready after being marked needs_hello")
	}
}
