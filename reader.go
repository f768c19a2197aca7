package databus

import (
	"log/slog"
	"time"

	"github.com/casualjim/databus/bus"
)

// Reader consumes records of type T from one (participant, topic) pair. It
// owns two entities: the reader itself and a waitset the reader is attached
// to, created together and torn down together. A Reader that fails anywhere
// in that sequence is never observable half-bound.
//
// Retrieval is loan-based. Take and Read copy records out of runtime-owned
// loan slots and give the loan back before returning, so any variable-length
// field (string, slice) in their results may alias memory the runtime is free
// to reuse; only scalar fields are safe to touch afterwards. TakeEach runs a
// callback per record while the loan is still held and is the right call
// whenever variable-length fields matter.
type Reader[T any] struct {
	entity  *Entity
	waitset *Entity
	rt      bus.Runtime
}

// NewReader binds a reader to the participant and topic, optionally with a
// policy built by qos, and attaches it to a fresh waitset for blocking waits.
func NewReader[T any](p *Participant, t *Topic, qos *Qos) (*Reader[T], error) {
	rt := p.Runtime()
	ent, err := NewEntity(rt, rt.CreateReader(p.Handle(), t.Handle(), policyOf(qos)), "create reader for "+t.Name())
	if err != nil {
		return nil, err
	}
	ws, err := NewEntity(rt, rt.CreateWaitSet(p.Handle()), "create waitset for "+t.Name())
	if err != nil {
		ent.Close()
		return nil, err
	}
	if st := rt.WaitSetAttach(ws.Get(), ent.Get()); st != bus.StatusOK {
		ws.Close()
		ent.Close()
		return nil, operationFailed(st, "waitset_attach")
	}
	slog.Debug("created reader", slog.String("topic", t.Name()))
	return &Reader[T]{entity: ent, waitset: ws, rt: rt}, nil
}

// Wait blocks until data is available or timeout elapses. It returns true
// when at least one attached condition is ready, false on timeout. A zero
// timeout polls the current readiness without blocking. There is no
// cancellation beyond the timeout; callers needing one should wait in short
// slices and check their own signal between calls.
func (r *Reader[T]) Wait(timeout time.Duration) (bool, error) {
	n, st := r.rt.Wait(r.waitset.Get(), timeout)
	if st < 0 {
		return false, operationFailed(st, "wait")
	}
	return n > 0, nil
}

// Take retrieves up to max records, removing them from the reader's cache.
// Slots without valid data (lifecycle notifications) are skipped. The loan is
// returned before Take does, so the aliasing caveat in the type comment
// applies to every element of the result.
func (r *Reader[T]) Take(max int) ([]T, error) {
	return r.collect(max, "take", r.rt.Take)
}

// Read is Take without consumption: records stay in the cache for repeated
// inspection.
func (r *Reader[T]) Read(max int) ([]T, error) {
	return r.collect(max, "read", r.rt.Read)
}

// TakeEach retrieves up to max records and invokes fn once per valid record
// while the loan is still held, so every field of *rec, strings and slices
// included, is safe to read for the duration of the call. The record
// behind *rec belongs to the runtime; copy what must outlive fn. Returns the
// number of valid records processed.
func (r *Reader[T]) TakeEach(fn func(rec *T), max int) (int, error) {
	samples := make([]any, max)
	infos := make([]bus.SampleInfo, max)

	n, st := r.rt.Take(r.entity.Get(), samples, infos)
	if st < 0 {
		return 0, operationFailed(st, "take")
	}

	valid := 0
	for i := 0; i < n; i++ {
		if infos[i].ValidData && samples[i] != nil {
			fn(samples[i].(*T))
			valid++
		}
	}

	r.rt.ReturnLoan(r.entity.Get(), samples, n)
	return valid, nil
}

type retrieveFunc func(reader bus.Handle, samples []any, infos []bus.SampleInfo) (int, bus.Status)

func (r *Reader[T]) collect(max int, op string, retrieve retrieveFunc) ([]T, error) {
	results := make([]T, 0, max)
	samples := make([]any, max)
	infos := make([]bus.SampleInfo, max)

	n, st := retrieve(r.entity.Get(), samples, infos)
	if st < 0 {
		return nil, operationFailed(st, op)
	}

	for i := 0; i < n; i++ {
		if infos[i].ValidData && samples[i] != nil {
			results = append(results, *samples[i].(*T))
		}
	}

	// Loan goes back exactly once, with the retrieved count, even when
	// nothing valid was copied out.
	r.rt.ReturnLoan(r.entity.Get(), samples, n)

	return results, nil
}

// Handle returns the reader's raw handle.
func (r *Reader[T]) Handle() bus.Handle { return r.entity.Get() }

// Valid reports whether both owned entities are still live.
func (r *Reader[T]) Valid() bool { return r.entity.Valid() && r.waitset.Valid() }

// Close releases the waitset, then the reader. Each release is independently
// idempotent, so a partially closed Reader never re-releases.
func (r *Reader[T]) Close() {
	r.waitset.Close()
	r.entity.Close()
}
