package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	// ErrSendBufferFull is returned when a peer is too slow to keep up; the connection is closed
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrConnectionClosed is returned by Send after the connection has gone away
	ErrConnectionClosed = errors.New("connection closed")
	// ErrPeerIDInUse is returned when a peer id is already connected
	ErrPeerIDInUse = errors.New("peer id already connected")
)

// ConnectionManager manages WebSocket connections for sync peers
type ConnectionManager struct {
	connections map[string]*Connection
	mu          sync.RWMutex

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	// Connection configuration
	config ConnectionConfig

	dispatcher *Dispatcher
}

// Connection represents a WebSocket connection to a peer
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Manager *ConnectionManager

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    54 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, dispatcher *Dispatcher) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:     config,
		dispatcher: dispatcher,
	}
}

// Start blocks until ctx is cancelled, then closes every connection
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")
	<-ctx.Done()
	log.Info().Msg("connection manager shutting down")
	cm.CloseAll()
}

// Connected reports whether peerID currently has a connection
func (cm *ConnectionManager) Connected(peerID string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	_, ok := cm.connections[peerID]
	return ok
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and registers the
// peer. An empty peerID gets a generated one. If peerID is already connected
// the new WebSocket is closed with a policy violation and ErrPeerIDInUse returned.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, peerID string) (*Connection, error) {
	if peerID == "" {
		peerID = uuid.New().String()
	}

	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	connection := &Connection{
		ID:          peerID,
		Conn:        conn,
		Manager:     cm,
		send:        make(chan []byte, cm.config.SendBufferSize),
		done:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		ConnectedAt: time.Now(),
	}

	if !cm.add(connection) {
		cancel()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ErrPeerIDInUse.Error()),
			time.Now().Add(cm.config.WriteTimeout))
		conn.Close()
		return nil, ErrPeerIDInUse
	}

	cm.dispatcher.OnConnect(peerID, connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("peer_id", peerID).
		Str("remote_addr", r.RemoteAddr).
		Int("connections", cm.Count()).
		Msg("WebSocket connection established")

	return connection, nil
}

func (cm *ConnectionManager) add(conn *Connection) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.connections[conn.ID]; exists {
		return false
	}
	cm.connections[conn.ID] = conn
	return true
}

// remove drops the connection and tells the dispatcher the peer is gone
func (cm *ConnectionManager) remove(conn *Connection) {
	cm.mu.Lock()
	current, exists := cm.connections[conn.ID]
	if exists && current == conn {
		delete(cm.connections, conn.ID)
	}
	cm.mu.Unlock()

	if exists && current == conn {
		cm.dispatcher.OnDisconnect(conn.ID)
	}
}

// CloseAll closes every open connection
func (cm *ConnectionManager) CloseAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for _, c := range cm.connections {
		conns = append(conns, c)
	}
	cm.mu.RUnlock()

	for _, c := range conns {
		c.Close()
	}
}

// Count returns the number of open connections
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// Send queues data for the peer without blocking. A peer whose buffer is full
// is disconnected.
func (c *Connection) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		log.Warn().
			Str("peer_id", c.ID).
			Msg("connection send buffer full, closing connection")
		c.Close()
		return ErrSendBufferFull
	}
}

// Close shuts the connection down. It is safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
	})
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("peer_id", c.ID).
					Msg("failed to write message to WebSocket")
				c.Close()
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("peer_id", c.ID).
					Msg("failed to send ping")
				c.Close()
				return
			}

		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Close()
		c.Manager.remove(c)
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("peer_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}

		c.Manager.dispatcher.OnMessage(c.ctx, c.ID, message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
