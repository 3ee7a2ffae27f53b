package syncstate

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Defaults(t *testing.T) {
	s := NewStore()

	assert.Equal(t, PlaybackState{}, s.Global())
	assert.Equal(t, 0, s.Tracked())

	_, ok := s.LastSync("a")
	assert.False(t, ok)
}

func TestStore_TrackAndForget(t *testing.T) {
	s := NewStore()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s.Track("a")
	last, ok := s.LastSync("a")
	require.True(t, ok)
	assert.True(t, last.IsZero())

	s.Do(func(tx Tx) { tx.MarkSync("a", at) })

	// tracking again must not reset an existing entry
	s.Track("a")
	last, _ = s.LastSync("a")
	assert.Equal(t, at, last)

	assert.True(t, s.Forget("a"))
	assert.False(t, s.Forget("a"))

	s.Track("a")
	last, ok = s.LastSync("a")
	require.True(t, ok)
	assert.True(t, last.IsZero())
}

func TestStore_MarkSyncIgnoresUntrackedPeer(t *testing.T) {
	s := NewStore()

	s.Do(func(tx Tx) { tx.MarkSync("ghost", time.Now()) })

	_, ok := s.LastSync("ghost")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Tracked())
}

func TestStore_DoIsAtomic(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Do(func(tx Tx) {
				g := tx.Global()
				g.CurrentTime++
				tx.SetGlobal(g)
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(100), s.Global().CurrentTime)
}
