package syncstate

import (
	"sync"
	"time"
)

// PlaybackState is the room-wide last known playback position
type PlaybackState struct {
	CurrentTime float64 `json:"currentTime"`
	IsPlaying   bool    `json:"isPlaying"`
}

// Store holds the global playback state and, per tracked peer, the wall-clock
// time of that peer's last accepted sync. A zero time means "never".
//
// Both live behind one mutex so that an admission decision and the updates it
// causes happen atomically (see Do).
type Store struct {
	mu       sync.Mutex
	global   PlaybackState
	lastSync map[string]time.Time
}

// NewStore creates a store with the global state at {0, false}
func NewStore() *Store {
	return &Store{
		lastSync: make(map[string]time.Time),
	}
}

// Tx is the view of the store passed to Do. It must not escape the callback.
type Tx struct {
	s *Store
}

// Global returns the current global state
func (tx Tx) Global() PlaybackState {
	return tx.s.global
}

// SetGlobal replaces the global state
func (tx Tx) SetGlobal(state PlaybackState) {
	tx.s.global = state
}

// LastSync returns the peer's last accepted sync time, zero if never or untracked
func (tx Tx) LastSync(peerID string) time.Time {
	return tx.s.lastSync[peerID]
}

// MarkSync records an accepted sync for a tracked peer. Untracked peers are ignored
// so that no entry outlives its peer's registration.
func (tx Tx) MarkSync(peerID string, at time.Time) {
	if _, ok := tx.s.lastSync[peerID]; ok {
		tx.s.lastSync[peerID] = at
	}
}

// Do runs fn with exclusive access to the store
func (s *Store) Do(fn func(tx Tx)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(Tx{s: s})
}

// Global returns a copy of the current global state
func (s *Store) Global() PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.global
}

// Track creates a "never synced" throttle entry for the peer if it has none
func (s *Store) Track(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lastSync[peerID]; !ok {
		s.lastSync[peerID] = time.Time{}
	}
}

// Forget discards the peer's throttle entry. It reports whether one existed.
func (s *Store) Forget(peerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lastSync[peerID]
	delete(s.lastSync, peerID)
	return ok
}

// LastSync returns the peer's last accepted sync time and whether the peer is tracked
func (s *Store) LastSync(peerID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.lastSync[peerID]
	return at, ok
}

// Tracked returns the number of peers with a throttle entry
func (s *Store) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lastSync)
}
