package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantType    EventType
		wantTime    float64
		wantPlaying bool
	}{
		{
			name:        "full sync",
			raw:         `{"type":"sync","currentTime":12.5,"isPlaying":true}`,
			wantType:    EventTypeSync,
			wantTime:    12.5,
			wantPlaying: true,
		},
		{
			name:     "missing fields default",
			raw:      `{"type":"seeked"}`,
			wantType: EventTypeSeeked,
		},
		{
			name:     "mistyped fields default",
			raw:      `{"type":"sync","currentTime":"ten","isPlaying":"yes"}`,
			wantType: EventTypeSync,
		},
		{
			name:     "null fields default",
			raw:      `{"type":"sync","currentTime":null,"isPlaying":null}`,
			wantType: EventTypeSync,
		},
		{
			name:     "unknown type kept verbatim",
			raw:      `{"type":"rewind","currentTime":3}`,
			wantType: EventType("rewind"),
			wantTime: 3,
		},
		{
			name:     "non string type",
			raw:      `{"type":42}`,
			wantType: EventType(""),
		},
		{
			name:     "not json",
			raw:      `not json`,
			wantType: EventType(""),
		},
		{
			name:     "json array",
			raw:      `[1,2,3]`,
			wantType: EventType(""),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Decode([]byte(tt.raw))

			assert.Equal(t, tt.wantType, ev.Type)
			assert.Equal(t, tt.wantTime, ev.CurrentTime)
			assert.Equal(t, tt.wantPlaying, ev.IsPlaying)
			assert.NotNil(t, ev.Fields)
		})
	}
}

func TestEventType_Known(t *testing.T) {
	for _, typ := range []EventType{EventTypeSync, EventTypeSeeked, EventTypePlay, EventTypePause, EventTypeStop} {
		assert.True(t, typ.Known(), typ)
	}
	assert.False(t, EventType("seek").Known())
	assert.False(t, EventType("").Known())

	assert.True(t, EventTypePause.IsControl())
	assert.False(t, EventTypeSeeked.IsControl())
}

func TestSyncPayload(t *testing.T) {
	data, err := SyncPayload(13, true).Encode()
	require.NoError(t, err)

	assert.JSONEq(t, `{"type":"sync","currentTime":13,"isPlaying":true}`, string(data))
}

func TestEcho_KeepsOriginalFields(t *testing.T) {
	ev := Decode([]byte(`{"type":"seeked","currentTime":13.6,"isPlaying":false,"source":"scrubber"}`))

	p := Echo(ev)
	assert.Equal(t, EventTypeSeeked, p.Type())

	data, err := p.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"seeked","currentTime":13.6,"isPlaying":false,"source":"scrubber"}`, string(data))
}

func TestEcho_DoesNotAliasEventFields(t *testing.T) {
	ev := Decode([]byte(`{"type":"play","currentTime":1}`))

	p := Echo(ev)
	p["extra"] = json.RawMessage(`true`)

	_, ok := ev.Fields["extra"]
	assert.False(t, ok)
}
