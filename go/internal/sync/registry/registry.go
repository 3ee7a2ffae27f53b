package registry

import (
	"sync"
)

// Sender delivers an encoded message to one peer
type Sender interface {
	Send(data []byte) error
}

// ThrottleTracker owns per-peer throttle entries. The registry keeps it in
// step with registration so an entry exists exactly while its peer does.
type ThrottleTracker interface {
	Track(peerID string)
	Forget(peerID string) bool
}

// Registry tracks the currently connected peers
type Registry struct {
	peers    map[string]Sender
	mu       sync.RWMutex
	throttle ThrottleTracker
}

// New creates an empty registry. throttle may be nil.
func New(throttle ThrottleTracker) *Registry {
	return &Registry{
		peers:    make(map[string]Sender),
		throttle: throttle,
	}
}

// Register adds a peer. Registering a known id replaces its sender and keeps
// its throttle entry.
func (r *Registry) Register(id string, sender Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.peers[id] = sender
	if r.throttle != nil {
		r.throttle.Track(id)
	}
}

// Unregister removes a peer and its throttle entry. It reports whether the
// peer was registered.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.peers[id]
	delete(r.peers, id)
	if r.throttle != nil {
		r.throttle.Forget(id)
	}
	return ok
}

// Has reports whether id is registered
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.peers[id]
	return ok
}

// Count returns the number of registered peers
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// IDs returns the registered peer ids in no particular order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	return ids
}

// ForEachExcept calls fn for every registered peer other than except. fn runs
// on a snapshot taken under the lock, so it may register or unregister peers.
func (r *Registry) ForEachExcept(except string, fn func(id string, sender Sender)) {
	type target struct {
		id     string
		sender Sender
	}

	r.mu.RLock()
	targets := make([]target, 0, len(r.peers))
	for id, sender := range r.peers {
		if id == except {
			continue
		}
		targets = append(targets, target{id: id, sender: sender})
	}
	r.mu.RUnlock()

	for _, t := range targets {
		fn(t.id, t.sender)
	}
}
