package peer

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Subjects for the peer protocol, spec.md section 6 "Peer protocol (TPP,
// protocol version 1)" realized over NATS subjects per SPEC_FULL.md
// section 3's domain-stack wiring. NATS's own reconnect-with-buffering
// (enabled by default on *nats.Conn) is what backs spec.md section 4.5's
// "Reconnect" paragraph at the transport layer; this package only has to
// react to the Disconnect/Reconnect callbacks.
const (
	SubjectConnect        = "batchd.peer.connect"
	SubjectRscUpdate      = "batchd.peer.rsc_update"
	SubjectRscUpdateFull  = "batchd.peer.rsc_update_full"
	SubjectRscUpdateAck   = "batchd.peer.rsc_update_ack"
	SubjectStatReply      = "batchd.peer.stat_reply"
)

// Transport wraps a NATS connection for the peer protocol's four message
// kinds.
type Transport struct {
	nc *nats.Conn
}

// NewTransport binds a Transport to an established NATS connection,
// registering disconnect/reconnect handlers that drive MarkNeedsHello and
// a reconnect work-task the caller schedules via the returned callbacks.
func NewTransport(nc *nats.Conn, onDisconnect func(err error), onReconnect func()) *Transport {
	nc.SetDisconnectErrHandler(func(_ *nats.Conn, err error) { onDisconnect(err) })
	nc.SetReconnectHandler(func(_ *nats.Conn) { onReconnect() })
	return &Transport{nc: nc}
}

// Connect sends PS_CONNECT, spec.md section 6: "hello. Receiver registers
// and schedules full push."
func (t *Transport) Connect(selfHost string, selfPort int) error {
	body, _ := json.Marshal(struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}{selfHost, selfPort})
	return t.nc.Publish(SubjectConnect, body)
}

// PublishUpdate sends a PS_RSC_UPDATE with one or more updates.
func (t *Transport) PublishUpdate(updates []Update) error {
	body, err := json.Marshal(updates)
	if err != nil {
		return fmt.Errorf("peer: marshal rsc_update: %w", err)
	}
	return t.nc.Publish(SubjectRscUpdate, body)
}

// PublishFullUpdate sends a PS_RSC_UPDATE_FULL, spec.md section 6:
// "same payload, implies discard prior INCRs from this peer first."
func (t *Transport) PublishFullUpdate(updates []Update) error {
	body, err := json.Marshal(updates)
	if err != nil {
		return fmt.Errorf("peer: marshal rsc_update_full: %w", err)
	}
	return t.nc.Publish(SubjectRscUpdateFull, body)
}

// Ack sends a PS_RSC_UPDATE_ACK for count matched INCRs.
func (t *Transport) Ack(count int) error {
	body, _ := json.Marshal(struct {
		Count int `json:"count"`
	}{count})
	return t.nc.Publish(SubjectRscUpdateAck, body)
}

// SubscribeUpdates registers a handler invoked for every incoming
// PS_RSC_UPDATE; full updates come through a separate subscription the
// caller sets up on SubjectRscUpdateFull with the same decode shape.
func (t *Transport) SubscribeUpdates(handle func([]Update)) (*nats.Subscription, error) {
	return t.nc.Subscribe(SubjectRscUpdate, func(msg *nats.Msg) {
		var updates []Update
		if err := json.Unmarshal(msg.Data, &updates); err != nil {
			return
		}
		handle(updates)
	})
}
