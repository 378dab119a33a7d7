package job

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// SubjectRerun is the NATS subject the core publishes SIG_RERUN requests
// on and the MoM execution daemon replies to, realizing spec.md section
// 1's "opaque RPC channel" over the domain stack's message bus rather
// than a bespoke socket protocol.
const SubjectRerun = "batchd.mom.rerun"

// NatsMom implements MomRerun over a request/reply NATS exchange,
// grounded on peer/transport_nats.go's publish-and-subscribe shape.
type NatsMom struct {
	nc      *nats.Conn
	timeout time.Duration
}

// NewNatsMom binds a NatsMom to an established NATS connection.
func NewNatsMom(nc *nats.Conn, timeout time.Duration) *NatsMom {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NatsMom{nc: nc, timeout: timeout}
}

type rerunRequest struct {
	JobID string `json:"job_id"`
}

type rerunReply struct {
	OK bool `json:"ok"`
}

// SignalRerun publishes SIG_RERUN and invokes reply asynchronously once
// the MoM acknowledges, matching the teacher's pattern of fire-and-reply
// rather than blocking the caller's goroutine on RPC latency.
func (m *NatsMom) SignalRerun(jobID string, reply func(ok bool)) {
	body, err := json.Marshal(rerunRequest{JobID: jobID})
	if err != nil {
		log.WithError(err).WithField("job_id", jobID).Error("failed to marshal rerun request")
		go reply(false)
		return
	}

	go func() {
		msg, err := m.nc.Request(SubjectRerun, body, m.timeout)
		if err != nil {
			log.WithError(err).WithField("job_id", jobID).Warn("rerun request to mom timed out or failed")
			reply(false)
			return
		}
		var rr rerunReply
		if err := json.Unmarshal(msg.Data, &rr); err != nil {
			log.WithError(err).WithField("job_id", jobID).Error("failed to unmarshal rerun reply")
			reply(false)
			return
		}
		reply(rr.OK)
	}()
}
