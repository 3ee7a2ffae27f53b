package events

import (
	"encoding/json"
	"fmt"
)

// EventType is the "type" tag carried by every sync message
type EventType string

const (
	EventTypeSync   EventType = "sync"
	EventTypeSeeked EventType = "seeked"
	EventTypePlay   EventType = "play"
	EventTypePause  EventType = "pause"
	EventTypeStop   EventType = "stop"
)

// Wire field names
const (
	FieldType        = "type"
	FieldCurrentTime = "currentTime"
	FieldIsPlaying   = "isPlaying"
)

// Known reports whether the relay understands this event type
func (t EventType) Known() bool {
	switch t {
	case EventTypeSync, EventTypeSeeked, EventTypePlay, EventTypePause, EventTypeStop:
		return true
	default:
		return false
	}
}

// IsControl reports whether the type is a discrete transport control (play, pause, stop)
func (t EventType) IsControl() bool {
	return t == EventTypePlay || t == EventTypePause || t == EventTypeStop
}

// Event is a decoded inbound message with defaults applied.
// CurrentTime is the media position in seconds.
type Event struct {
	Type        EventType
	CurrentTime float64
	IsPlaying   bool

	// Fields holds every field of the original message, type included,
	// so that accepted events can be echoed unmodified.
	Fields map[string]json.RawMessage
}

// Decode parses a raw message. It never fails: anything that is not a JSON
// object decodes to an event with an empty (unknown) type, and missing or
// mistyped currentTime/isPlaying fields default to 0 and false.
func Decode(data []byte) Event {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return Event{Fields: map[string]json.RawMessage{}}
	}

	ev := Event{Fields: fields}

	var typ string
	if raw, ok := fields[FieldType]; ok && json.Unmarshal(raw, &typ) == nil {
		ev.Type = EventType(typ)
	}

	var currentTime float64
	if raw, ok := fields[FieldCurrentTime]; ok && json.Unmarshal(raw, &currentTime) == nil {
		ev.CurrentTime = currentTime
	}

	var isPlaying bool
	if raw, ok := fields[FieldIsPlaying]; ok && json.Unmarshal(raw, &isPlaying) == nil {
		ev.IsPlaying = isPlaying
	}

	return ev
}

// Payload is a flat outbound message: the type tag merged with the event fields
type Payload map[string]json.RawMessage

// Type returns the payload's type tag
func (p Payload) Type() EventType {
	var typ string
	if raw, ok := p[FieldType]; ok {
		_ = json.Unmarshal(raw, &typ)
	}
	return EventType(typ)
}

// Encode marshals the payload for the wire
func (p Payload) Encode() ([]byte, error) {
	data, err := json.Marshal(map[string]json.RawMessage(p))
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.Type(), err)
	}
	return data, nil
}

// SyncPayload builds the outbound message for an accepted sync
func SyncPayload(currentTime float64, isPlaying bool) Payload {
	return Payload{
		FieldType:        mustMarshal(string(EventTypeSync)),
		FieldCurrentTime: mustMarshal(currentTime),
		FieldIsPlaying:   mustMarshal(isPlaying),
	}
}

// Echo returns the event's original fields with its type tag, unmodified
func Echo(ev Event) Payload {
	p := make(Payload, len(ev.Fields)+1)
	for k, v := range ev.Fields {
		p[k] = v
	}
	p[FieldType] = mustMarshal(string(ev.Type))
	return p
}

// mustMarshal is only used for strings, finite floats and bools
func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("events: marshal %T: %v", v, err))
	}
	return data
}
