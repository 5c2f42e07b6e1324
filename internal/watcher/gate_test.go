package watcher

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGate_AtMostN(t *testing.T) {
	const permits = 10
	gate := NewGate(permits)

	var current, peak, admitted int64
	var wg sync.WaitGroup

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !gate.TryAcquire() {
				return
			}
			defer gate.Release()

			atomic.AddInt64(&admitted, 1)
			n := atomic.AddInt64(&current, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			atomic.AddInt64(&current, -1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, int64(permits))
	assert.Greater(t, admitted, int64(0))
}

func TestGate_ReleaseRestoresCapacity(t *testing.T) {
	gate := NewGate(2)

	assert.True(t, gate.TryAcquire())
	assert.True(t, gate.TryAcquire())
	assert.False(t, gate.TryAcquire())

	gate.Release()
	assert.True(t, gate.TryAcquire())
}

func TestGate_MinimumSize(t *testing.T) {
	gate := NewGate(0)
	assert.Equal(t, int64(1), gate.Size())
	assert.True(t, gate.TryAcquire())
	assert.False(t, gate.TryAcquire())
}

func TestWatcher_MarkerMatch(t *testing.T) {
	logs := []string{
		"Program 675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8 invoke [1]",
		"Program log: initialize2: InitializeInstruction2",
		"Program success",
	}
	assert.True(t, containsMarker(logs, "initialize2: InitializeInstruction2"))
	assert.False(t, containsMarker(logs, "initialize3"))
	assert.False(t, containsMarker(nil, "initialize2"))
}
