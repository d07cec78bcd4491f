package indexer

import "sync/atomic"

// RunLock serializes indexing runs without blocking. Callers that fail
// to acquire it should report busy rather than queue a second run; two
// concurrent runs over the same stores would interleave deletes and
// inserts per file.
type RunLock struct {
	state atomic.Int32
}

// TryAcquire attempts to take the lock. Returns false if a run is
// already in progress.
func (l *RunLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release frees the lock. Only the acquiring goroutine may call it.
func (l *RunLock) Release() {
	l.state.Store(0)
}
