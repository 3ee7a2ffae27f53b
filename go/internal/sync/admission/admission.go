package admission

import (
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/mediasync/go/internal/sync/events"
	"github.com/mcdev12/mediasync/go/internal/sync/syncstate"
)

// Config holds the admission thresholds
type Config struct {
	// SyncInterval is the minimum wall-clock spacing between accepted syncs from one peer
	SyncInterval time.Duration
	// Leeway is the position drift, in media seconds, a sync must exceed to count as a change
	Leeway float64
	// SeekThreshold is the position jump, in media seconds, a seek must exceed to be relayed
	SeekThreshold float64
}

// DefaultConfig returns the default thresholds
func DefaultConfig() Config {
	return Config{
		SyncInterval:  5 * time.Second,
		Leeway:        2,
		SeekThreshold: 0.5,
	}
}

// DropReason explains why an event was not relayed
type DropReason string

const (
	ReasonTooFrequent     DropReason = "too_frequent"
	ReasonWithinLeeway    DropReason = "within_leeway"
	ReasonWithinThreshold DropReason = "within_threshold"
	ReasonUnknownType     DropReason = "unknown_type"
)

// Input is everything Decide looks at
type Input struct {
	Event  events.Event
	Global syncstate.PlaybackState
	// LastSync is the peer's last accepted sync, zero when it never had one
	LastSync time.Time
	Now      time.Time
}

// Decision is the outcome of admitting one event
type Decision struct {
	Accepted bool
	Reason   DropReason
	Payload  events.Payload

	// State is the global state after the decision
	State syncstate.PlaybackState
	// StateChanged is set when State must replace the stored global state
	StateChanged bool
	// MarkSync is set when Now becomes the peer's last accepted sync
	MarkSync bool
}

func drop(reason DropReason, global syncstate.PlaybackState) Decision {
	return Decision{Reason: reason, State: global}
}

// Decide applies the admission rules. It has no side effects.
//
// Syncs are rate limited per peer and then filtered by drift or a play state
// change. Seeks are filtered by drift only, and keep the stored play state.
// Play, pause and stop always pass.
func Decide(cfg Config, in Input) Decision {
	ev := in.Event

	switch ev.Type {
	case events.EventTypeSync:
		if !in.LastSync.IsZero() && in.Now.Sub(in.LastSync) < cfg.SyncInterval {
			return drop(ReasonTooFrequent, in.Global)
		}

		drift := math.Abs(ev.CurrentTime - in.Global.CurrentTime)
		changed := ev.IsPlaying != in.Global.IsPlaying
		if !(drift > cfg.Leeway || changed) {
			return drop(ReasonWithinLeeway, in.Global)
		}

		return Decision{
			Accepted:     true,
			Payload:      events.SyncPayload(ev.CurrentTime, ev.IsPlaying),
			State:        syncstate.PlaybackState{CurrentTime: ev.CurrentTime, IsPlaying: ev.IsPlaying},
			StateChanged: true,
			MarkSync:     true,
		}

	case events.EventTypeSeeked:
		drift := math.Abs(ev.CurrentTime - in.Global.CurrentTime)
		if !(drift > cfg.SeekThreshold) {
			return drop(ReasonWithinThreshold, in.Global)
		}

		return Decision{
			Accepted:     true,
			Payload:      events.Echo(ev),
			State:        syncstate.PlaybackState{CurrentTime: ev.CurrentTime, IsPlaying: in.Global.IsPlaying},
			StateChanged: true,
		}

	case events.EventTypePlay, events.EventTypePause, events.EventTypeStop:
		return Decision{
			Accepted: true,
			Payload:  events.Echo(ev),
			State:    in.Global,
		}

	default:
		return drop(ReasonUnknownType, in.Global)
	}
}

// Engine binds Decide to a state store and a clock
type Engine struct {
	config Config
	store  *syncstate.Store
	clock  clockwork.Clock
}

// NewEngine creates an admission engine. In production pass clockwork.NewRealClock().
func NewEngine(config Config, store *syncstate.Store, clock clockwork.Clock) *Engine {
	return &Engine{
		config: config,
		store:  store,
		clock:  clock,
	}
}

// Config returns the engine's thresholds
func (e *Engine) Config() Config {
	return e.config
}

// Admit decides on one event from peerID and applies the resulting state
// updates. The read, decision and write happen under the store lock.
func (e *Engine) Admit(peerID string, ev events.Event) Decision {
	now := e.clock.Now()

	var d Decision
	e.store.Do(func(tx syncstate.Tx) {
		d = Decide(e.config, Input{
			Event:    ev,
			Global:   tx.Global(),
			LastSync: tx.LastSync(peerID),
			Now:      now,
		})
		if d.StateChanged {
			tx.SetGlobal(d.State)
		}
		if d.MarkSync {
			tx.MarkSync(peerID, now)
		}
	})
	return d
}
