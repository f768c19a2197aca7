// Package bus defines the handle-level contract between the typed client
// library in the root package and a bus runtime implementation.
//
// A runtime owns every resource it hands out: participants, topics, writers,
// readers and waitsets are all identified by an opaque Handle, and the memory
// backing retrieved samples stays runtime-owned until the loan taken by
// Take/Read is returned. The root package wraps these handles in single-owner
// Entity values; this package only describes the raw surface.
//
// Two implementations ship with this module: membus (in-process, used both as
// an embedded bus and as the deterministic double for tests) and natsbus
// (NATS-backed).
package bus
