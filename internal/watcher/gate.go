package watcher

import "golang.org/x/sync/semaphore"

// Gate bounds the number of pipeline runs in flight. Admission is
// non-blocking: an event arriving while all permits are taken is dropped
// rather than queued, since a stale pool-init is worthless.
type Gate struct {
	sem  *semaphore.Weighted
	size int64
}

func NewGate(size int64) *Gate {
	if size < 1 {
		size = 1
	}
	return &Gate{
		sem:  semaphore.NewWeighted(size),
		size: size,
	}
}

// TryAcquire takes one permit if available.
func (g *Gate) TryAcquire() bool {
	return g.sem.TryAcquire(1)
}

// Release returns one permit. Callers defer this immediately after a
// successful TryAcquire so a panicking run cannot leak the permit.
func (g *Gate) Release() {
	g.sem.Release(1)
}

// Size returns the configured permit count.
func (g *Gate) Size() int64 {
	return g.size
}
