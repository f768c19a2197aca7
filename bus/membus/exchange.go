package membus

import (
	"reflect"
	"time"

	"github.com/casualjim/databus/bus"
	"github.com/casualjim/databus/internal/rcache"
)

// Write copies the record behind sample and delivers it to every reader
// matched on the writer's topic. The runtime owns the copy; the caller's
// pointer is not retained.
func (r *Runtime) Write(writer bus.Handle, sample any, ts time.Time) bus.Status {
	e, st := r.lookup(writer, kindWriter)
	if st != bus.StatusOK {
		return st
	}

	boxed, st := boxCopy(sample, e.writer.topic.schema)
	if st != bus.StatusOK {
		return st
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	s := rcache.Sample{
		Value: boxed,
		Info: bus.SampleInfo{
			ValidData:         true,
			SourceTimestamp:   ts,
			PublicationHandle: writer,
		},
	}

	e.writer.publish(s)
	return bus.StatusOK
}

// Take moves cached samples into the caller's slices under a new loan.
func (r *Runtime) Take(reader bus.Handle, samples []any, infos []bus.SampleInfo) (int, bus.Status) {
	e, st := r.lookup(reader, kindReader)
	if st != bus.StatusOK {
		return 0, st
	}
	return e.cache.TakeInto(samples, infos), bus.StatusOK
}

// Read copies cached samples into the caller's slices under a new loan,
// leaving them cached.
func (r *Runtime) Read(reader bus.Handle, samples []any, infos []bus.SampleInfo) (int, bus.Status) {
	e, st := r.lookup(reader, kindReader)
	if st != bus.StatusOK {
		return 0, st
	}
	return e.cache.ReadInto(samples, infos), bus.StatusOK
}

// ReturnLoan closes the loan opened by the matching Take or Read.
func (r *Runtime) ReturnLoan(reader bus.Handle, _ []any, n int) bus.Status {
	e, st := r.lookup(reader, kindReader)
	if st != bus.StatusOK {
		return st
	}
	return e.cache.ReturnLoan(n)
}

// WaitSetAttach registers a reader's cache with a waitset.
func (r *Runtime) WaitSetAttach(waitset, entity bus.Handle) bus.Status {
	w, st := r.lookup(waitset, kindWaitSet)
	if st != bus.StatusOK {
		return st
	}
	e, st := r.lookup(entity, kindReader)
	if st != bus.StatusOK {
		return st
	}
	w.waitset.Attach(e.cache)
	return bus.StatusOK
}

// Wait blocks until an attached reader has data or timeout elapses.
func (r *Runtime) Wait(waitset bus.Handle, timeout time.Duration) (int, bus.Status) {
	w, st := r.lookup(waitset, kindWaitSet)
	if st != bus.StatusOK {
		return 0, st
	}
	return w.waitset.Wait(timeout)
}

// publish fans a sample out to matched readers and retains it when the
// writer is transient-local.
func (w *writerState) publish(s rcache.Sample) {
	if w.policy.Durability == bus.TransientLocal {
		w.mu.Lock()
		if w.policy.History == bus.KeepLast && len(w.retained) >= int(max32(w.policy.Depth, 1)) {
			over := len(w.retained) - int(max32(w.policy.Depth, 1)) + 1
			w.retained = append(w.retained[:0], w.retained[over:]...)
		}
		w.retained = append(w.retained, s)
		w.mu.Unlock()
	}

	w.topic.mu.Lock()
	caches := make([]*rcache.Cache, 0, len(w.topic.readers))
	for _, c := range w.topic.readers {
		caches = append(caches, c)
	}
	w.topic.mu.Unlock()

	for _, c := range caches {
		c.Push(s)
	}
}

// replayTo pushes the retained history into a late-joining reader's cache.
func (w *writerState) replayTo(c *rcache.Cache) {
	if w.policy.Durability != bus.TransientLocal {
		return
	}
	w.mu.Lock()
	retained := make([]rcache.Sample, len(w.retained))
	copy(retained, w.retained)
	w.mu.Unlock()

	for _, s := range retained {
		c.Push(s)
	}
}

// retire detaches the writer from its topic and pushes a lifecycle
// notification (invalid sample) to every matched reader.
func (w *writerState) retire(h bus.Handle) {
	w.topic.mu.Lock()
	delete(w.topic.writers, h)
	caches := make([]*rcache.Cache, 0, len(w.topic.readers))
	for _, c := range w.topic.readers {
		caches = append(caches, c)
	}
	w.topic.mu.Unlock()

	gone := rcache.Sample{Info: bus.SampleInfo{
		ValidData:         false,
		SourceTimestamp:   time.Now(),
		PublicationHandle: h,
	}}
	for _, c := range caches {
		c.Push(gone)
	}
}

// boxCopy shallow-copies the record behind sample onto runtime-owned memory
// and checks it against the topic schema.
func boxCopy(sample any, schema bus.Schema) (any, bus.Status) {
	v := reflect.ValueOf(sample)
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() {
		return nil, bus.StatusBadParameter
	}
	if reflect.TypeOf(schema.New()) != v.Type() {
		return nil, bus.StatusBadParameter
	}
	p := reflect.New(v.Elem().Type())
	p.Elem().Set(v.Elem())
	return p.Interface(), bus.StatusOK
}

func max32(v int32, floor int32) int32 {
	if v < floor {
		return floor
	}
	return v
}
