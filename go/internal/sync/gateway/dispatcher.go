package gateway

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/mediasync/go/internal/sync/admission"
	"github.com/mcdev12/mediasync/go/internal/sync/events"
	"github.com/mcdev12/mediasync/go/internal/sync/metrics"
	"github.com/mcdev12/mediasync/go/internal/sync/registry"
	"github.com/mcdev12/mediasync/go/internal/sync/relay"
)

// ReasonUnregisteredPeer drops messages that arrive from a peer the registry does not know
const ReasonUnregisteredPeer admission.DropReason = "unregistered_peer"

// Dispatcher routes transport callbacks into admission and relay
type Dispatcher struct {
	// mu serializes admit+relay so accepted events leave in admission order
	mu sync.Mutex

	peers   *registry.Registry
	engine  *admission.Engine
	relay   *relay.Relay
	metrics metrics.Collector
}

// NewDispatcher creates a dispatcher. m may be nil.
func NewDispatcher(peers *registry.Registry, engine *admission.Engine, r *relay.Relay, m metrics.Collector) *Dispatcher {
	if m == nil {
		m = metrics.NoOp{}
	}
	return &Dispatcher{
		peers:   peers,
		engine:  engine,
		relay:   r,
		metrics: m,
	}
}

// OnConnect registers a peer and starts its throttle at "never"
func (d *Dispatcher) OnConnect(peerID string, sender registry.Sender) {
	d.peers.Register(peerID, sender)

	log.Info().
		Str("peer_id", peerID).
		Int("peers", d.peers.Count()).
		Msg("peer connected")
}

// OnDisconnect unregisters a peer and discards its throttle state. Calling it
// again for the same peer is a no-op.
func (d *Dispatcher) OnDisconnect(peerID string) {
	if !d.peers.Unregister(peerID) {
		return
	}

	log.Info().
		Str("peer_id", peerID).
		Int("peers", d.peers.Count()).
		Msg("peer disconnected")
}

// PeerCount returns the number of registered peers
func (d *Dispatcher) PeerCount() int {
	return d.peers.Count()
}

// OnMessage decodes, admits and, when accepted, relays one message
func (d *Dispatcher) OnMessage(ctx context.Context, peerID string, data []byte) admission.Decision {
	ev := events.Decode(data)

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.peers.Has(peerID) {
		d.metrics.RecordDropped(string(ReasonUnregisteredPeer))
		log.Debug().Str("peer_id", peerID).Msg("message from unregistered peer ignored")
		return admission.Decision{Reason: ReasonUnregisteredPeer}
	}

	decision := d.engine.Admit(peerID, ev)
	if !decision.Accepted {
		d.metrics.RecordDropped(string(decision.Reason))
		log.Debug().
			Str("peer_id", peerID).
			Str("event_type", string(ev.Type)).
			Str("reason", string(decision.Reason)).
			Float64("current_time", ev.CurrentTime).
			Msg("event dropped")
		return decision
	}

	d.metrics.RecordAccepted(string(ev.Type))
	if _, err := d.relay.Relay(ctx, peerID, decision.Payload); err != nil {
		log.Error().
			Err(err).
			Str("peer_id", peerID).
			Str("event_type", string(ev.Type)).
			Msg("failed to relay event")
	}
	return decision
}
