package pipeline

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuard_TryEnterIsExclusive(t *testing.T) {
	var g Guard
	assert.False(t, g.InProgress())
	assert.True(t, g.TryEnter())
	assert.False(t, g.TryEnter())
	assert.True(t, g.InProgress())
	g.Leave()
	assert.False(t, g.InProgress())
	assert.True(t, g.TryEnter())
}

func TestGuard_ForcedEntryKeepsCount(t *testing.T) {
	var g Guard
	g.Enter()
	g.Enter()
	g.Leave()
	assert.True(t, g.InProgress(), "one forced drain still running")
	g.Leave()
	assert.False(t, g.InProgress())
}

func TestGuard_OneWinnerUnderContention(t *testing.T) {
	var (
		g    Guard
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryEnter() {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
