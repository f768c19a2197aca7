package databus

import (
	"log/slog"
	"time"

	"github.com/casualjim/databus/bus"
)

// Writer publishes records of type T on one (participant, topic) pair. It
// performs a single synchronous hand-off per call: no retries, no batching,
// no backpressure beyond what the configured policy makes the runtime apply.
type Writer[T any] struct {
	entity *Entity
	rt     bus.Runtime
}

// NewWriter binds a writer to the participant and topic, optionally with a
// policy built by qos. The builder is not retained.
func NewWriter[T any](p *Participant, t *Topic, qos *Qos) (*Writer[T], error) {
	rt := p.Runtime()
	ent, err := NewEntity(rt, rt.CreateWriter(p.Handle(), t.Handle(), policyOf(qos)), "create writer for "+t.Name())
	if err != nil {
		return nil, err
	}
	slog.Debug("created writer", slog.String("topic", t.Name()))
	return &Writer[T]{entity: ent, rt: rt}, nil
}

// Write hands one record to the runtime with a runtime-assigned timestamp.
func (w *Writer[T]) Write(rec T) error {
	if st := w.rt.Write(w.entity.Get(), &rec, time.Time{}); st != bus.StatusOK {
		return operationFailed(st, "write")
	}
	return nil
}

// WriteAt is Write with a caller-supplied source timestamp.
func (w *Writer[T]) WriteAt(rec T, ts time.Time) error {
	if st := w.rt.Write(w.entity.Get(), &rec, ts); st != bus.StatusOK {
		return operationFailed(st, "write_ts")
	}
	return nil
}

// Handle returns the writer's raw handle.
func (w *Writer[T]) Handle() bus.Handle { return w.entity.Get() }

// Valid reports whether the writer still owns its handle.
func (w *Writer[T]) Valid() bool { return w.entity.Valid() }

// Close releases the writer. Idempotent.
func (w *Writer[T]) Close() { w.entity.Close() }
