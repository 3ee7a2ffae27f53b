package relay

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/mediasync/go/internal/sync/events"
	"github.com/mcdev12/mediasync/go/internal/sync/metrics"
	"github.com/mcdev12/mediasync/go/internal/sync/registry"
)

type mockPeer struct {
	received [][]byte
	sendErr  error
	mu       sync.Mutex
}

func (m *mockPeer) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, data)
	return nil
}

func (m *mockPeer) getReceived() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received
}

type publishCall struct {
	originID  string
	eventType events.EventType
	data      []byte
}

type mockPublisher struct {
	calls []publishCall
	err   error
}

func (m *mockPublisher) Publish(ctx context.Context, originID string, eventType events.EventType, data []byte) error {
	m.calls = append(m.calls, publishCall{originID: originID, eventType: eventType, data: data})
	return m.err
}

func TestRelay_NoSelfEcho(t *testing.T) {
	peers := registry.New(nil)
	sender := &mockPeer{}
	recv1 := &mockPeer{}
	recv2 := &mockPeer{}
	peers.Register("sender", sender)
	peers.Register("recv1", recv1)
	peers.Register("recv2", recv2)

	res, err := New(peers).Relay(context.Background(), "sender", events.SyncPayload(10, true))
	require.NoError(t, err)

	assert.Equal(t, Result{Delivered: 2}, res)
	assert.Empty(t, sender.getReceived())
	require.Len(t, recv1.getReceived(), 1)
	require.Len(t, recv2.getReceived(), 1)
	assert.JSONEq(t, `{"type":"sync","currentTime":10,"isPlaying":true}`, string(recv1.getReceived()[0]))
}

func TestRelay_IsolatesSendFailures(t *testing.T) {
	peers := registry.New(nil)
	broken := &mockPeer{sendErr: errors.New("connection closed")}
	healthy := []*mockPeer{{}, {}, {}}
	peers.Register("origin", &mockPeer{})
	peers.Register("broken", broken)
	for i, p := range healthy {
		peers.Register(string(rune('a'+i)), p)
	}
	counters := metrics.NewCounters()

	res, err := New(peers, WithMetrics(counters)).Relay(context.Background(), "origin", events.SyncPayload(1, false))
	require.NoError(t, err)

	assert.Equal(t, Result{Delivered: 3, Failed: 1}, res)
	for _, p := range healthy {
		assert.Len(t, p.getReceived(), 1)
	}
	snap := counters.Snapshot()
	assert.Equal(t, uint64(1), snap.SendFailures)
	assert.Equal(t, uint64(3), snap.Delivered)
}

func TestRelay_Publisher(t *testing.T) {
	tests := []struct {
		name       string
		publishErr error
	}{
		{name: "publish succeeds"},
		{name: "publish failure does not fail the relay", publishErr: errors.New("nats down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peers := registry.New(nil)
			recv := &mockPeer{}
			peers.Register("origin", &mockPeer{})
			peers.Register("recv", recv)
			pub := &mockPublisher{err: tt.publishErr}

			ev := events.Decode([]byte(`{"type":"pause","currentTime":4}`))
			res, err := New(peers, WithPublisher(pub)).Relay(context.Background(), "origin", events.Echo(ev))
			require.NoError(t, err)

			assert.Equal(t, 1, res.Delivered)
			require.Len(t, pub.calls, 1)
			assert.Equal(t, "origin", pub.calls[0].originID)
			assert.Equal(t, events.EventTypePause, pub.calls[0].eventType)
			assert.Equal(t, recv.getReceived()[0], pub.calls[0].data)
		})
	}
}

func TestRelay_NoPeers(t *testing.T) {
	peers := registry.New(nil)
	peers.Register("origin", &mockPeer{})

	res, err := New(peers).Relay(context.Background(), "origin", events.SyncPayload(0, false))
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}
