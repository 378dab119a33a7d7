package peer

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vexxhost/batchd/job"
)

// Publisher is the sending half of Transport's four message kinds that
// Propagator needs, narrowed to an interface (matching the
// accounting.Store precedent) so tests can inject a fake instead of a
// live NATS connection.
type Publisher interface {
	PublishUpdate(updates []Update) error
	PublishFullUpdate(updates []Update) error
}

// Propagator drives the sender half of spec.md section 4.5's resource
// propagation protocol from job state transitions, the same template as
// accounting.Writer.EmitOnTransition: a single job.Observer funneled
// through job.SetState rather than emission scattered across call
// sites. A job entering R broadcasts an INCR; a job reaching E or X
// broadcasts the matching DECR, satisfying spec.md section 8 invariant
// 6 ("the set of jobs the local Server has asserted to P via INCR is
// exactly rsc_idx[P]").
type Propagator struct {
	transport Publisher
	peers     map[string]*Server
}

// NewPropagator binds a Propagator to the Publisher it broadcasts
// PS_RSC_UPDATE messages over and the peer table whose per-peer ledgers
// it keeps in lockstep with every broadcast.
func NewPropagator(transport Publisher, peers map[string]*Server) *Propagator {
	return &Propagator{transport: transport, peers: peers}
}

// EmitOnTransition returns the job.Observer cmd/batchd wires in via
// job.Observe, mirroring what accounting.Writer does for accounting
// records.
func (p *Propagator) EmitOnTransition() job.Observer {
	return func(j *job.Job, from job.State, fromSub job.Substate, to job.State, toSub job.Substate) {
		var u Update
		switch {
		case from != job.StateRunning && to == job.StateRunning:
			u = Update{JobID: j.ID, Op: OpIncr, ExecVnode: j.ExecVnode}
		case to == job.StateExiting || to == job.StateHistory:
			u = Update{JobID: j.ID, Op: OpDecr, ExecVnode: j.ExecVnode}
		default:
			return
		}
		p.broadcast(u)
	}
}

// broadcast applies u to every known peer's ledger and publishes it over
// the transport. The transport subject is a single global broadcast
// (peer.Transport's documented simplification of TPP's per-link
// streams), so every peer's Ledger receives the same update and the loop
// here only maintains the local bookkeeping of what each peer has been
// told.
func (p *Propagator) broadcast(u Update) {
	for name, s := range p.peers {
		if err := s.Ledger.Apply(u); err != nil {
			log.WithError(err).WithField("peer", name).WithField("job_id", u.JobID).Warn("peer ledger rejected resource update")
		}
	}
	if err := p.transport.PublishUpdate([]Update{u}); err != nil {
		log.WithError(err).WithField("job_id", u.JobID).Warn("failed to publish PS_RSC_UPDATE")
	}
}

// FullPush sends a PS_RSC_UPDATE_FULL carrying peerName's entire
// outstanding-INCR ledger and marks that peer Connecting pending acks,
// spec.md section 4.5 "Reconnect": "all saved outstanding INCRs for that
// peer are reversed locally (so the next full push can reinstate
// them)." Callers invoke this once per peer after a transport reconnect
// or a fresh PS_CONNECT hello.
func (p *Propagator) FullPush(peerName string) error {
	s, ok := p.peers[peerName]
	if !ok {
		return fmt.Errorf("peer: unknown peer %s", peerName)
	}
	updates := s.Ledger.Snapshot()
	s.BeginFullPush(len(updates))
	return p.transport.PublishFullUpdate(updates)
}
