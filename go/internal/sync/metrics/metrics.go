package metrics

import (
	"sync"
)

// Collector defines the interface for collecting relay metrics
type Collector interface {
	RecordAccepted(eventType string)
	RecordDropped(reason string)
	RecordDelivered(count int)
	RecordSendFailure(peerID string)
}

// NoOp is a no-op implementation for when metrics aren't needed
type NoOp struct{}

func (NoOp) RecordAccepted(eventType string) {}
func (NoOp) RecordDropped(reason string)     {}
func (NoOp) RecordDelivered(count int)       {}
func (NoOp) RecordSendFailure(peerID string) {}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	Accepted     map[string]uint64 `json:"accepted"`
	Dropped      map[string]uint64 `json:"dropped"`
	Delivered    uint64            `json:"delivered"`
	SendFailures uint64            `json:"send_failures"`
}

// Counters keeps in-memory totals, exposed through the stats endpoint
type Counters struct {
	mu           sync.Mutex
	accepted     map[string]uint64
	dropped      map[string]uint64
	delivered    uint64
	sendFailures uint64
}

func NewCounters() *Counters {
	return &Counters{
		accepted: make(map[string]uint64),
		dropped:  make(map[string]uint64),
	}
}

func (c *Counters) RecordAccepted(eventType string) {
	c.mu.Lock()
	c.accepted[eventType]++
	c.mu.Unlock()
}

func (c *Counters) RecordDropped(reason string) {
	c.mu.Lock()
	c.dropped[reason]++
	c.mu.Unlock()
}

func (c *Counters) RecordDelivered(count int) {
	if count <= 0 {
		return
	}
	c.mu.Lock()
	c.delivered += uint64(count)
	c.mu.Unlock()
}

func (c *Counters) RecordSendFailure(peerID string) {
	c.mu.Lock()
	c.sendFailures++
	c.mu.Unlock()
}

// Snapshot copies the current totals
func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Accepted:     make(map[string]uint64, len(c.accepted)),
		Dropped:      make(map[string]uint64, len(c.dropped)),
		Delivered:    c.delivered,
		SendFailures: c.sendFailures,
	}
	for k, v := range c.accepted {
		snap.Accepted[k] = v
	}
	for k, v := range c.dropped {
		snap.Dropped[k] = v
	}
	return snap
}
