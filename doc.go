// Package databus is a typed client library for a publish/subscribe data
// bus. It manages the lifecycle of bus-side resources (domain participants,
// topics, writers and readers) behind single-owner Entity handles, builds
// delivery policies with a fluent Qos API, and implements the loan protocol
// for retrieving records that are physically owned by the bus runtime until
// explicitly released.
//
// The library is generic over the record type: a Writer[T] sends values of T,
// a Reader[T] retrieves them via Take, Read or the callback-scoped TakeEach.
// The bus runtime itself is pluggable through the bus.Runtime interface; the
// bus/membus package provides an embedded in-process runtime and bus/natsbus
// a NATS-backed one.
//
// A minimal round trip:
//
//	rt := membus.New()
//	p, _ := databus.NewParticipant(rt, 0)
//	defer p.Close()
//
//	topic, _ := databus.NewTopic(p, databus.SchemaOf[Speed]("vss_signal"), "rt/vss/speed", nil)
//	defer topic.Close()
//
//	w, _ := databus.NewWriter[Speed](p, topic, databus.ReliableStandard(10))
//	defer w.Close()
//	r, _ := databus.NewReader[Speed](p, topic, databus.ReliableStandard(10))
//	defer r.Close()
//
//	_ = w.Write(Speed{Value: 42})
//	if ready, _ := r.Wait(time.Second); ready {
//		_, _ = r.TakeEach(func(rec *Speed) { fmt.Println(rec.Value) }, 10)
//	}
//
// All operations are synchronous on the calling goroutine; the package
// spawns nothing and holds no locks of its own. Wait is the only call that
// blocks, and only up to its timeout.
package databus
