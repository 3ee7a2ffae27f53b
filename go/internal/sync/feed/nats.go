package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/mediasync/go/internal/sync/events"
)

// OriginHeader carries the id of the peer that produced the event
const OriginHeader = "Mediasync-Origin"

// NATSConfig holds configuration for the NATS event feed
type NATSConfig struct {
	URL           string
	Subject       string // prefix, e.g. "mediasync.events"
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns default NATS feed configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Subject:       "mediasync.events",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Subject returns the subject an event of the given type is published on
func Subject(prefix string, eventType events.EventType) string {
	return fmt.Sprintf("%s.%s", prefix, eventType)
}

// NATSPublisher mirrors relayed events to NATS
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSPublisher connects to NATS
func NewNATSPublisher(config NATSConfig) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("mediasync-gateway"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	log.Info().
		Str("url", nc.ConnectedUrl()).
		Str("subject", config.Subject).
		Msg("NATS event feed connected")

	return &NATSPublisher{nc: nc, prefix: config.Subject}, nil
}

// Publish sends one encoded event
func (p *NATSPublisher) Publish(ctx context.Context, originID string, eventType events.EventType, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := nats.NewMsg(Subject(p.prefix, eventType))
	msg.Header.Set(OriginHeader, originID)
	msg.Data = data

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	return nil
}

// Connected reports whether the NATS connection is up
func (p *NATSPublisher) Connected() bool {
	return p.nc.IsConnected()
}

// Close drains and closes the NATS connection
func (p *NATSPublisher) Close() error {
	log.Info().Msg("closing NATS event feed")
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}
