package bus

import "time"

// Reliability selects the delivery guarantee for a channel.
type Reliability int32

const (
	// BestEffort delivers samples without acknowledgement; samples may be
	// dropped under load.
	BestEffort Reliability = iota
	// Reliable blocks a writer up to Policy.MaxBlocking until the runtime
	// has accepted the sample.
	Reliable
)

// Durability controls whether samples outlive their delivery to readers that
// were present at write time.
type Durability int32

const (
	// Volatile samples exist only for readers matched at write time.
	Volatile Durability = iota
	// TransientLocal samples are retained by the writer and replayed to
	// late-joining readers, bounded by the writer's history policy.
	TransientLocal
)

// History controls how many samples a cache retains per channel.
type History int32

const (
	// KeepLast retains at most Policy.Depth samples; older samples are
	// superseded.
	KeepLast History = iota
	// KeepAll retains every sample until it is taken.
	KeepAll
)

// Policy is the configuration record a Qos builder produces. It is a plain
// value: runtimes copy it at entity creation and never retain the pointer
// they were given.
type Policy struct {
	Reliability Reliability
	MaxBlocking time.Duration
	Durability  Durability
	History     History
	Depth       int32
}

// DefaultPolicy returns the configuration an entity gets when no policy is
// supplied: best-effort, volatile, keep-last(1).
func DefaultPolicy() Policy {
	return Policy{
		Reliability: BestEffort,
		Durability:  Volatile,
		History:     KeepLast,
		Depth:       1,
	}
}
