// Package rcache implements the reader-side sample machinery shared by the
// bus runtime implementations: a history-bounded sample cache, the loan
// ledger that enforces the return-exactly-once protocol, and waitset
// signalling for bounded blocking waits.
package rcache
