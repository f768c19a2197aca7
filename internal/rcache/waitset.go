package rcache

import (
	"sync"
	"time"

	"github.com/casualjim/databus/bus"
)

// WaitSet blocks a caller until one of its attached caches has pending
// samples. It spawns nothing: Wait runs entirely on the calling goroutine
// and is woken by pushes into attached caches.
type WaitSet struct {
	mu       sync.Mutex
	attached []*Cache
	wake     chan struct{}
}

// NewWaitSet creates an empty waitset.
func NewWaitSet() *WaitSet {
	return &WaitSet{wake: make(chan struct{}, 1)}
}

// Attach registers a cache; pushes into it will wake pending Waits.
func (w *WaitSet) Attach(c *Cache) {
	w.mu.Lock()
	w.attached = append(w.attached, c)
	w.mu.Unlock()
	c.addWatcher(w)
}

// Ready counts attached caches with pending samples.
func (w *WaitSet) Ready() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := 0
	for _, c := range w.attached {
		if c.Pending() > 0 {
			n++
		}
	}
	return n
}

// Wait blocks until at least one attached cache is ready or timeout elapses
// and returns the ready count; a timeout expiry is a zero count, not an
// error. A zero timeout polls once without blocking.
func (w *WaitSet) Wait(timeout time.Duration) (int, bus.Status) {
	if n := w.Ready(); n > 0 || timeout == 0 {
		return n, bus.StatusOK
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-w.wake:
			if n := w.Ready(); n > 0 {
				return n, bus.StatusOK
			}
		case <-timer.C:
			return w.Ready(), bus.StatusOK
		}
	}
}

// signal is a non-blocking wake; a pending wake token is enough because Wait
// rechecks readiness after every wake.
func (w *WaitSet) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}
