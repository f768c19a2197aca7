package databus

import (
	"time"

	"github.com/casualjim/databus/bus"
)

// Qos builds the delivery policy for a channel. It owns a configuration
// record, not a handle: its lifetime is independent of any entity it
// configures, because runtimes copy the policy at creation time. A zero-value
// Qos is not usable; start from NewQos or one of the profile constructors.
//
// Every mutator overwrites its own dimension and returns the receiver, so
// policies are built by chaining:
//
//	q := databus.NewQos().
//		ReliabilityReliable(time.Second).
//		HistoryKeepLast(10)
type Qos struct {
	policy *bus.Policy
}

// NewQos creates a builder holding the runtime's default configuration.
func NewQos() *Qos {
	p := bus.DefaultPolicy()
	return &Qos{policy: &p}
}

// Policy returns a snapshot of the current configuration. The snapshot is a
// copy; later mutations of the builder do not affect it.
func (q *Qos) Policy() *bus.Policy {
	p := *q.policy
	return &p
}

// ReliabilityReliable requests acknowledged delivery. A writer blocks up to
// maxBlocking when the runtime cannot accept a sample immediately.
func (q *Qos) ReliabilityReliable(maxBlocking time.Duration) *Qos {
	q.policy.Reliability = bus.Reliable
	q.policy.MaxBlocking = maxBlocking
	return q
}

// ReliabilityBestEffort requests unacknowledged delivery.
func (q *Qos) ReliabilityBestEffort() *Qos {
	q.policy.Reliability = bus.BestEffort
	q.policy.MaxBlocking = 0
	return q
}

// DurabilityVolatile limits samples to readers matched at write time.
func (q *Qos) DurabilityVolatile() *Qos {
	q.policy.Durability = bus.Volatile
	return q
}

// DurabilityTransientLocal retains written samples for late-joining readers,
// bounded by the history policy.
func (q *Qos) DurabilityTransientLocal() *Qos {
	q.policy.Durability = bus.TransientLocal
	return q
}

// HistoryKeepLast retains the most recent depth samples per channel.
func (q *Qos) HistoryKeepLast(depth int32) *Qos {
	q.policy.History = bus.KeepLast
	q.policy.Depth = depth
	return q
}

// HistoryKeepAll retains every sample until it is taken.
func (q *Qos) HistoryKeepAll() *Qos {
	q.policy.History = bus.KeepAll
	q.policy.Depth = 0
	return q
}
