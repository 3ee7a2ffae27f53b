package registry

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/mediasync/go/internal/sync/syncstate"
)

type mockSender struct{}

func (mockSender) Send(data []byte) error { return nil }

func collectExcept(r *Registry, except string) []string {
	var ids []string
	r.ForEachExcept(except, func(id string, _ Sender) {
		ids = append(ids, id)
	})
	sort.Strings(ids)
	return ids
}

func TestRegistry_ForEachExcept(t *testing.T) {
	tests := []struct {
		name   string
		peers  []string
		except string
		want   []string
	}{
		{name: "skips originator", peers: []string{"a", "b", "c"}, except: "a", want: []string{"b", "c"}},
		{name: "unknown originator", peers: []string{"a", "b"}, except: "z", want: []string{"a", "b"}},
		{name: "only originator", peers: []string{"a"}, except: "a", want: nil},
		{name: "empty", peers: nil, except: "a", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(nil)
			for _, id := range tt.peers {
				r.Register(id, mockSender{})
			}

			assert.Equal(t, tt.want, collectExcept(r, tt.except))
		})
	}
}

func TestRegistry_RegisterIsIdempotent(t *testing.T) {
	r := New(nil)

	r.Register("a", mockSender{})
	r.Register("a", mockSender{})

	assert.Equal(t, 1, r.Count())
	assert.Equal(t, []string{"a"}, r.IDs())
}

func TestRegistry_KeepsThrottleInStep(t *testing.T) {
	store := syncstate.NewStore()
	r := New(store)

	r.Register("a", mockSender{})
	r.Register("b", mockSender{})
	assert.Equal(t, 2, store.Tracked())

	require.True(t, r.Unregister("a"))
	assert.False(t, r.Has("a"))
	_, ok := store.LastSync("a")
	assert.False(t, ok)

	assert.False(t, r.Unregister("a"))
	assert.Equal(t, 1, store.Tracked())
}

func TestRegistry_CallbackMayUnregister(t *testing.T) {
	r := New(nil)
	r.Register("a", mockSender{})
	r.Register("b", mockSender{})
	r.Register("c", mockSender{})

	r.ForEachExcept("a", func(id string, _ Sender) {
		r.Unregister(id)
	})

	assert.Equal(t, []string{"a"}, r.IDs())
}

func TestRegistry_Concurrent(t *testing.T) {
	r := New(syncstate.NewStore())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(3)
		id := string(rune('a' + i))
		go func() {
			defer wg.Done()
			r.Register(id, mockSender{})
		}()
		go func() {
			defer wg.Done()
			r.ForEachExcept(id, func(string, Sender) {})
		}()
		go func() {
			defer wg.Done()
			_ = r.Count()
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, r.Count())
}
