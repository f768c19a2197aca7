package databus

import "time"

// ReliableCritical is the profile for data that must never be lost, including
// across a late-joining reader: reliable with a 10s blocking budget,
// transient-local durability, unbounded history.
func ReliableCritical() *Qos {
	return NewQos().
		ReliabilityReliable(10 * time.Second).
		DurabilityTransientLocal().
		HistoryKeepAll()
}

// ReliableStandard is the default profile for important data with bounded
// history: reliable with a 1s blocking budget, volatile, keep-last(depth).
// The canonical depth is 100.
func ReliableStandard(depth int32) *Qos {
	return NewQos().
		ReliabilityReliable(time.Second).
		DurabilityVolatile().
		HistoryKeepLast(depth)
}

// BestEffortProfile is the profile for high-rate, loss-tolerant data:
// best-effort, volatile, keep-last(depth). The canonical depth is 1.
func BestEffortProfile(depth int32) *Qos {
	return NewQos().
		ReliabilityBestEffort().
		DurabilityVolatile().
		HistoryKeepLast(depth)
}
