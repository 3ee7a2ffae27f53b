package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/mediasync/go/internal/sync/metrics"
	"github.com/mcdev12/mediasync/go/internal/sync/syncstate"
)

// StatsResponse is the body of GET /stats
type StatsResponse struct {
	Peers int `json:"peers"`
	metrics.Snapshot
}

// WebSocketHandler serves the sync WebSocket and its read-only HTTP endpoints
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	store             *syncstate.Store
	counters          *metrics.Counters
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, store *syncstate.Store, counters *metrics.Counters) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		store:             store,
		counters:          counters,
	}
}

// HandleConnection upgrades a peer connection. The optional peer_id query
// parameter lets a client keep its identity across reconnects.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	peerID := r.URL.Query().Get("peer_id")
	if peerID != "" && h.connectionManager.Connected(peerID) {
		http.Error(w, ErrPeerIDInUse.Error(), http.StatusConflict)
		return
	}

	// on failure the upgrader has already answered the request
	if _, err := h.connectionManager.UpgradeConnection(w, r, peerID); err != nil {
		log.Error().
			Err(err).
			Str("peer_id", peerID).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleStats returns peer and admission counters
func (h *WebSocketHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, StatsResponse{
		Peers:    h.connectionManager.dispatcher.PeerCount(),
		Snapshot: h.counters.Snapshot(),
	})
}

// HandleState returns the global playback state
func (h *WebSocketHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.store.Global())
}

// HandleHealth is a liveness probe
func (h *WebSocketHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleConnection)
	mux.HandleFunc("GET /stats", h.HandleStats)
	mux.HandleFunc("GET /state", h.HandleState)
	mux.HandleFunc("GET /health", h.HandleHealth)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
