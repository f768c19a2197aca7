package databus

import (
	"log/slog"

	"github.com/casualjim/databus/bus"
	"github.com/casualjim/databus/pkg/slogx"
)

// Entity is the sole owner of one bus handle. Every resource in this library
// (participant, topic, writer, reader, waitset) embeds one.
//
// Ownership is single and explicit: copying an Entity value does not duplicate
// ownership because only the original is ever closed by its wrapper, and
// Release is the move operation: it detaches the handle for hand-off to a
// different lifetime and leaves the source invalid. Close is idempotent; a
// released or already-closed Entity performs no runtime delete.
//
// An Entity must not be used from multiple goroutines without external
// synchronization.
type Entity struct {
	rt     bus.Runtime
	handle bus.Handle
}

// NewEntity takes ownership of the raw result of a creation call. It fails
// with *CreationError when the handle is not positive, mirroring the
// runtime's convention that negative values are status codes.
func NewEntity(rt bus.Runtime, handle bus.Handle, context string) (*Entity, error) {
	if !handle.Valid() {
		return nil, creationFailed(bus.Status(handle), context)
	}
	return &Entity{rt: rt, handle: handle}, nil
}

// Get returns the current handle without affecting ownership.
func (e *Entity) Get() bus.Handle { return e.handle }

// Valid reports whether the Entity still owns a live handle.
func (e *Entity) Valid() bool { return e != nil && e.handle.Valid() }

// Release detaches and returns the handle, leaving the Entity invalid. The
// caller assumes responsibility for deleting the returned handle.
func (e *Entity) Release() bus.Handle {
	h := e.handle
	e.handle = bus.HandleNil
	return h
}

// Close deletes the owned handle if there is one. Failures during teardown
// are logged and swallowed: a close on an unwind path must not mask the
// error that triggered the unwind. Close is safe to call more than once.
func (e *Entity) Close() {
	if !e.Valid() {
		return
	}
	h := e.handle
	e.handle = bus.HandleNil
	if st := e.rt.Delete(h); st != bus.StatusOK {
		slog.Warn("failed to delete bus entity",
			slog.Int64("handle", int64(h)),
			slogx.Stringer("status", st),
		)
	}
}
