package rcache

import (
	"sync"

	"github.com/casualjim/databus/bus"
)

// Sample is one cached record: a runtime-owned pointer to the decoded value
// plus its metadata. Lifecycle notifications carry a nil Value and
// ValidData false.
type Sample struct {
	Value any
	Info  bus.SampleInfo
}

// Stats is a snapshot of a cache's counters, used by runtime doubles to
// verify the loan protocol without dereferencing returned memory.
type Stats struct {
	Pushed           int
	Dropped          int
	LoansOutstanding int
	LoanReturns      int
}

// Cache holds the samples a reader has received but not yet taken. Pushes
// enforce the history policy: KeepLast supersedes the oldest sample beyond
// the configured depth, KeepAll grows without bound until samples are taken.
//
// Retrievals loan the cached value pointers to the caller. Every retrieval,
// including an empty one, opens exactly one loan for the retrieved count;
// the loan must be returned once with that same count.
type Cache struct {
	mu       sync.Mutex
	history  bus.History
	depth    int
	samples  []Sample
	loans    []int // open loans, oldest first, by retrieved count
	returns  int
	pushed   int
	dropped  int
	watchers []*WaitSet
}

// New creates a cache enforcing the given policy.
func New(pol bus.Policy) *Cache {
	depth := int(pol.Depth)
	if depth < 1 {
		depth = 1
	}
	return &Cache{history: pol.History, depth: depth}
}

// Push appends one sample, superseding the oldest valid sample when a
// KeepLast cache is at depth, and wakes every attached waitset.
func (c *Cache) Push(s Sample) {
	c.mu.Lock()
	if c.history == bus.KeepLast && len(c.samples) >= c.depth {
		over := len(c.samples) - c.depth + 1
		c.samples = append(c.samples[:0], c.samples[over:]...)
		c.dropped += over
	}
	c.samples = append(c.samples, s)
	c.pushed++
	watchers := c.watchers
	c.mu.Unlock()

	for _, w := range watchers {
		w.signal()
	}
}

// Pending reports how many samples are cached.
func (c *Cache) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}

// TakeInto moves up to len(samples) cached samples into the caller's slices,
// removing them from the cache, and opens a loan for the moved count.
func (c *Cache) TakeInto(samples []any, infos []bus.SampleInfo) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.fill(samples, infos)
	c.samples = append(c.samples[:0], c.samples[n:]...)
	c.loans = append(c.loans, n)
	return n
}

// ReadInto copies up to len(samples) cached samples into the caller's slices
// without removing them, and opens a loan for the copied count.
func (c *Cache) ReadInto(samples []any, infos []bus.SampleInfo) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.fill(samples, infos)
	c.loans = append(c.loans, n)
	return n
}

func (c *Cache) fill(samples []any, infos []bus.SampleInfo) int {
	n := len(c.samples)
	if n > len(samples) {
		n = len(samples)
	}
	if len(infos) < n {
		n = len(infos)
	}
	for i := 0; i < n; i++ {
		samples[i] = c.samples[i].Value
		infos[i] = c.samples[i].Info
	}
	return n
}

// ReturnLoan closes the open loan matching n. Returning a count that was
// never loaned, or returning the same loan twice, fails with
// StatusPreconditionNotMet.
func (c *Cache) ReturnLoan(n int) bus.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, open := range c.loans {
		if open == n {
			c.loans = append(c.loans[:i], c.loans[i+1:]...)
			c.returns++
			return bus.StatusOK
		}
	}
	return bus.StatusPreconditionNotMet
}

// Stats snapshots the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Pushed:           c.pushed,
		Dropped:          c.dropped,
		LoansOutstanding: len(c.loans),
		LoanReturns:      c.returns,
	}
}

func (c *Cache) addWatcher(w *WaitSet) {
	c.mu.Lock()
	c.watchers = append(c.watchers, w)
	c.mu.Unlock()
}
