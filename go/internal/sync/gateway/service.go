package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/mediasync/go/internal/sync/admission"
	"github.com/mcdev12/mediasync/go/internal/sync/feed"
	"github.com/mcdev12/mediasync/go/internal/sync/metrics"
	"github.com/mcdev12/mediasync/go/internal/sync/registry"
	"github.com/mcdev12/mediasync/go/internal/sync/relay"
	"github.com/mcdev12/mediasync/go/internal/sync/syncstate"
)

// Service is the sync gateway: WebSocket peers in, admitted events relayed out
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	dispatcher        *Dispatcher
	store             *syncstate.Store
	counters          *metrics.Counters
	publisher         *feed.NATSPublisher
	allowedOrigins    []string
}

// Config holds configuration for the sync gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	Admission        admission.Config
	// NATS is optional; an empty URL disables the event feed
	NATS           feed.NATSConfig
	AllowedOrigins []string
}

// DefaultConfig returns default configuration for the sync gateway
func DefaultConfig() Config {
	natsConfig := feed.DefaultNATSConfig()
	natsConfig.URL = ""
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		Admission:        admission.DefaultConfig(),
		NATS:             natsConfig,
		AllowedOrigins:   []string{"*"},
	}
}

// NewService wires the registry, state store, admission engine, relay and
// transport together. clock may be nil for the real clock.
func NewService(config Config, clock clockwork.Clock) (*Service, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	store := syncstate.NewStore()
	peers := registry.New(store)
	counters := metrics.NewCounters()
	engine := admission.NewEngine(config.Admission, store, clock)

	relayOpts := []relay.Option{relay.WithMetrics(counters)}

	var publisher *feed.NATSPublisher
	if config.NATS.URL != "" {
		var err error
		publisher, err = feed.NewNATSPublisher(config.NATS)
		if err != nil {
			return nil, fmt.Errorf("failed to create event feed: %w", err)
		}
		relayOpts = append(relayOpts, relay.WithPublisher(publisher))
	}

	dispatcher := NewDispatcher(peers, engine, relay.New(peers, relayOpts...), counters)
	connectionManager := NewConnectionManager(config.ConnectionConfig, dispatcher)

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager, store, counters),
		dispatcher:        dispatcher,
		store:             store,
		counters:          counters,
		publisher:         publisher,
		allowedOrigins:    config.AllowedOrigins,
	}, nil
}

// Start runs the service until ctx is cancelled
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting sync gateway service")

	s.connectionManager.Start(ctx)

	log.Info().Msg("sync gateway service shutting down")
	return s.Stop()
}

// Stop closes connections and the event feed
func (s *Service) Stop() error {
	s.connectionManager.CloseAll()

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close event feed")
		}
	}

	log.Info().Msg("sync gateway service stopped")
	return nil
}

// RegisterRoutes registers the gateway HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("sync gateway routes registered")
}

// Handler returns the full HTTP handler: routes wrapped with CORS and h2c
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
		AllowedOrigins: s.allowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	return h2c.NewHandler(c.Handler(mux), &http2.Server{})
}

// Dispatcher exposes the dispatcher for alternative transports
func (s *Service) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// State returns the current global playback state
func (s *Service) State() syncstate.PlaybackState {
	return s.store.Global()
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() StatsResponse {
	return StatsResponse{
		Peers:    s.dispatcher.PeerCount(),
		Snapshot: s.counters.Snapshot(),
	}
}
