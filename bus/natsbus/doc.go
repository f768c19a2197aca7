// Package natsbus is a bus runtime backed by core NATS. Topics map to
// subjects, records travel as JSON envelopes, and the reader side reuses the
// same history-bounded cache and loan ledger as the in-process runtime.
//
// Policy mapping is deliberately thin. Reliable bounds each write by a
// connection flush with the policy's blocking budget; it does not add
// retransmission, which stays the broker's concern. TransientLocal is a
// bounded writer-side replay: a late-joining reader announces itself on a
// hello subject and matched writers republish their retained history to the
// reader's private inbox.
package natsbus
