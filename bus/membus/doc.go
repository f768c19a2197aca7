// Package membus is an in-process bus runtime. It implements the full
// bus.Runtime contract deterministically: history and durability policies are
// enforced exactly, writer teardown produces lifecycle notifications, and the
// loan ledger is observable through Stats. That makes it double duty: an
// embedded bus for single-process deployments and the reference double for
// testing code against the typed client library.
//
// Reliability is accepted but behaviorally inert: in-process delivery never
// drops, so Reliable and BestEffort only differ on a real transport.
package membus
