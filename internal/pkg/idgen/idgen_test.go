package idgen

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_NewID(t *testing.T) {
	g := New(7)

	var (
		mu   sync.Mutex
		seen = map[string]bool{}
		wg   sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				id := g.NewID()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 4000)
}

func TestGenerator_FallsBackToKSUID(t *testing.T) {
	g := New(-1)

	_, err := ksuid.Parse(g.NewID())
	assert.NoError(t, err)
}

func TestNewEventID(t *testing.T) {
	_, err := uuid.Parse(NewEventID())
	require.NoError(t, err)
	assert.NotEqual(t, NewEventID(), NewEventID())
}
