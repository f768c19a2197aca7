package natsbus

import (
	"time"

	"github.com/casualjim/databus/bus"
)

// Take moves cached samples into the caller's slices under a new loan.
func (r *Runtime) Take(reader bus.Handle, samples []any, infos []bus.SampleInfo) (int, bus.Status) {
	e, st := r.lookup(reader, kindReader)
	if st != bus.StatusOK {
		return 0, st
	}
	return e.reader.cache.TakeInto(samples, infos), bus.StatusOK
}

// Read copies cached samples into the caller's slices under a new loan,
// leaving them cached.
func (r *Runtime) Read(reader bus.Handle, samples []any, infos []bus.SampleInfo) (int, bus.Status) {
	e, st := r.lookup(reader, kindReader)
	if st != bus.StatusOK {
		return 0, st
	}
	return e.reader.cache.ReadInto(samples, infos), bus.StatusOK
}

// ReturnLoan closes the loan opened by the matching Take or Read.
func (r *Runtime) ReturnLoan(reader bus.Handle, _ []any, n int) bus.Status {
	e, st := r.lookup(reader, kindReader)
	if st != bus.StatusOK {
		return st
	}
	return e.reader.cache.ReturnLoan(n)
}

// Wait blocks until an attached reader has data or timeout elapses.
func (r *Runtime) Wait(waitset bus.Handle, timeout time.Duration) (int, bus.Status) {
	w, st := r.lookup(waitset, kindWaitSet)
	if st != bus.StatusOK {
		return 0, st
	}
	return w.waitset.Wait(timeout)
}
