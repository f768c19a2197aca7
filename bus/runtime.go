package bus

import "time"

// Schema is the opaque structural descriptor for a record type. The client
// library threads it through to topic creation unmodified; runtimes use it to
// name the wire type and to allocate blank records for decoding.
type Schema interface {
	// TypeName identifies the record layout on the wire.
	TypeName() string
	// New allocates a zero record of the described type, returned as a
	// pointer so a codec can decode into it.
	New() any
}

// SampleInfo describes one retrieved sample slot. Slots with ValidData false
// are lifecycle notifications (for example a matched writer going away) and
// carry no payload.
type SampleInfo struct {
	ValidData         bool
	SourceTimestamp   time.Time
	PublicationHandle Handle
}

// Runtime is the bus runtime's handle API. Creation calls follow the native
// convention: a positive return is the new handle, a non-positive return is
// the failure status cast to Handle. Callers own returned handles and must
// Delete each one exactly once.
//
// Take and Read fill the caller's slices with loaned sample pointers; the
// pointed-to memory belongs to the runtime until ReturnLoan is called with
// the retrieved count. Calling ReturnLoan twice for one retrieval, or with a
// count that was never loaned, is StatusPreconditionNotMet.
type Runtime interface {
	CreateParticipant(domain uint32) Handle
	CreateTopic(participant Handle, name string, schema Schema, pol *Policy) Handle
	CreateWriter(participant, topic Handle, pol *Policy) Handle
	CreateReader(participant, topic Handle, pol *Policy) Handle
	CreateWaitSet(participant Handle) Handle

	// WaitSetAttach registers an entity's readiness with a waitset.
	WaitSetAttach(waitset, entity Handle) Status

	// Wait blocks until at least one attached entity is ready or timeout
	// elapses, and returns the number of ready entities. A zero timeout is
	// a non-blocking poll.
	Wait(waitset Handle, timeout time.Duration) (int, Status)

	// Write hands one record to the runtime. The runtime copies the record
	// before returning; the pointer is not retained. A zero ts means the
	// runtime assigns the timestamp.
	Write(writer Handle, sample any, ts time.Time) Status

	// Take retrieves up to len(samples) samples, removing them from the
	// reader's cache. Read is identical but leaves them cached.
	Take(reader Handle, samples []any, infos []SampleInfo) (int, Status)
	Read(reader Handle, samples []any, infos []SampleInfo) (int, Status)

	// ReturnLoan gives the memory behind a retrieval back to the runtime.
	// n is the count the matching Take/Read returned.
	ReturnLoan(reader Handle, samples []any, n int) Status

	// Delete releases a handle and everything owned by it.
	Delete(entity Handle) Status
}
