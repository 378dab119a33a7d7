// Package peer implements the peer-server resource-propagation layer of
// spec.md section 4.5: static peer topology, PS_CONNECT hello and
// full-push reply, per-peer outstanding-INCR ledger, reconnect/
// NEEDS_HELLO handling, and the rate-limited alien-node cache.
package peer

import (
	"fmt"
	"sync"
	"time"
)

// DaemonPeer is the name/address view of a daemon record. Server
// implements it; node.MomInfo, the Mom record, does not.
type DaemonPeer interface {
	PeerName() string
	PeerAddr() (host string, port int)
}

// Status is the peer connection lifecycle.
type Status int

const (
	StatusNeedsHello Status = iota
	StatusConnecting
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusNeedsHello:
		return "needs_hello"
	case StatusConnecting:
		return "connecting"
	case StatusReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Server is the server_t analog: one record per federated peer Server,
// spec.md section 3 "Mom record": "A peer-server reuses the same header
// via server_t, distinguished by mi_port == mi_rmport" — here expressed
// as a distinct type per spec.md section 9's recommendation rather than
// a shared struct with a discriminator field.
type Server struct {
	Host string
	Port int

	mu             sync.Mutex
	status         Status
	pendingReplies int // decremented by PS_RSC_UPDATE_ACK; Ready when it hits zero after a full push

	Ledger *Ledger
}

// NewServer returns a peer record in NEEDS_HELLO state.
func NewServer(host string, port int) *Server {
	return &Server{Host: host, Port: port, status: StatusNeedsHello, Ledger: NewLedger()}
}

// PeerName implements DaemonPeer.
func (s *Server) PeerName() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// PeerAddr implements DaemonPeer.
func (s *Server) PeerAddr() (string, int) { return s.Host, s.Port }

// Status returns the current connection status.
func (s *Server) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// IsReady reports whether this peer has acked every outstanding INCR from
// the most recent full push, spec.md section 4.5: "Until all peers ack,
// the Server is not 'ready' (the ready endpoint waits on
// pending_replies == 0 on every peer)."
func (s *Server) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusReady && s.pendingReplies == 0
}

// BeginFullPush marks n INCRs as outstanding ahead of a full resource
// push.
func (s *Server) BeginFullPush(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusConnecting
	s.pendingReplies = n
}

// Ack processes a PS_RSC_UPDATE_ACK, decrementing pendingReplies and
// flipping to Ready once it reaches zero.
func (s *Server) Ack(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingReplies -= count
	if s.pendingReplies <= 0 {
		s.pendingReplies = 0
		s.status = StatusReady
	}
}

// MarkNeedsHello transitions on stream EOF, spec.md section 4.5
// "Reconnect": "the peer's record is marked NEEDS_HELLO."
func (s *Server) MarkNeedsHello() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusNeedsHello
	s.pendingReplies = 0
}

// ReconnectBackoff is the delay before a reconnect work-task retries,
// matching spec.md section 4.5 "a reconnect work-task is scheduled."
const ReconnectBackoff = 5 * time.Second
