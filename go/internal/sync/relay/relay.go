package relay

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/mediasync/go/internal/sync/events"
	"github.com/mcdev12/mediasync/go/internal/sync/metrics"
	"github.com/mcdev12/mediasync/go/internal/sync/registry"
)

// Publisher mirrors accepted events to an external feed
type Publisher interface {
	Publish(ctx context.Context, originID string, eventType events.EventType, data []byte) error
}

// Result summarizes one fan-out
type Result struct {
	Delivered int
	Failed    int
}

// Relay sends accepted events to every peer except the originator
type Relay struct {
	peers     *registry.Registry
	metrics   metrics.Collector
	publisher Publisher
}

// Option configures a Relay
type Option func(*Relay)

// WithMetrics sets the metrics collector
func WithMetrics(m metrics.Collector) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

// WithPublisher mirrors every relayed event to p
func WithPublisher(p Publisher) Option {
	return func(r *Relay) {
		r.publisher = p
	}
}

// New creates a relay over the peer registry
func New(peers *registry.Registry, opts ...Option) *Relay {
	r := &Relay{
		peers:   peers,
		metrics: metrics.NoOp{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Relay encodes payload once and sends it to every registered peer other than
// originID. A failed send is logged and counted; it never stops delivery to
// the remaining peers.
func (r *Relay) Relay(ctx context.Context, originID string, payload events.Payload) (Result, error) {
	data, err := payload.Encode()
	if err != nil {
		return Result{}, fmt.Errorf("relay: %w", err)
	}

	var res Result
	r.peers.ForEachExcept(originID, func(id string, sender registry.Sender) {
		if err := sender.Send(data); err != nil {
			res.Failed++
			r.metrics.RecordSendFailure(id)
			log.Warn().
				Err(err).
				Str("peer_id", id).
				Str("origin_id", originID).
				Str("event_type", string(payload.Type())).
				Msg("failed to send to peer")
			return
		}
		res.Delivered++
	})
	r.metrics.RecordDelivered(res.Delivered)

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, originID, payload.Type(), data); err != nil {
			log.Error().
				Err(err).
				Str("origin_id", originID).
				Str("event_type", string(payload.Type())).
				Msg("failed to publish event to feed")
		}
	}

	log.Debug().
		Str("origin_id", originID).
		Str("event_type", string(payload.Type())).
		Int("delivered", res.Delivered).
		Int("failed", res.Failed).
		Msg("event relayed")

	return res, nil
}
