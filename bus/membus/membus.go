package membus

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/alphadose/haxmap"

	"github.com/casualjim/databus/bus"
	"github.com/casualjim/databus/internal/rcache"
)

type entityKind int

const (
	kindParticipant entityKind = iota
	kindTopic
	kindWriter
	kindReader
	kindWaitSet
)

type entity struct {
	kind   entityKind
	parent bus.Handle

	domain uint32

	// topic
	topic *topicState

	// writer
	writer *writerState

	// reader
	cache *rcache.Cache

	// waitset
	waitset *rcache.WaitSet
}

type topicState struct {
	mu      sync.Mutex
	domain  uint32
	name    string
	schema  bus.Schema
	writers map[bus.Handle]*writerState
	readers map[bus.Handle]*rcache.Cache
}

type writerState struct {
	handle   bus.Handle
	topic    *topicState
	policy   bus.Policy
	mu       sync.Mutex
	retained []rcache.Sample
}

var _ bus.Runtime = (*Runtime)(nil)

// Runtime is the in-process bus. The zero value is not usable; construct
// with New. Safe for concurrent use.
type Runtime struct {
	next     atomic.Int64
	entities *haxmap.Map[bus.Handle, *entity]
	topicsMu sync.Mutex
	topics   map[string]*topicState

	deletes atomic.Int64
}

// New creates an empty in-process bus runtime.
func New() *Runtime {
	return &Runtime{
		entities: haxmap.New[bus.Handle, *entity](),
		topics:   make(map[string]*topicState),
	}
}

func (r *Runtime) register(e *entity) bus.Handle {
	h := bus.Handle(r.next.Add(1))
	r.entities.Set(h, e)
	return h
}

func (r *Runtime) lookup(h bus.Handle, kind entityKind) (*entity, bus.Status) {
	e, ok := r.entities.Get(h)
	if !ok {
		return nil, bus.StatusAlreadyDeleted
	}
	if e.kind != kind {
		return nil, bus.StatusBadParameter
	}
	return e, bus.StatusOK
}

// CreateParticipant joins a domain. Participants on the same Runtime and
// domain exchange samples with each other.
func (r *Runtime) CreateParticipant(domain uint32) bus.Handle {
	return r.register(&entity{kind: kindParticipant, domain: domain})
}

// CreateTopic binds a name to a schema within the participant's domain. Two
// participants creating the same (domain, name) pair share one channel; a
// schema mismatch between them is a bad parameter.
func (r *Runtime) CreateTopic(participant bus.Handle, name string, schema bus.Schema, _ *bus.Policy) bus.Handle {
	p, st := r.lookup(participant, kindParticipant)
	if st != bus.StatusOK {
		return bus.Handle(st)
	}
	if name == "" || schema == nil {
		return bus.Handle(bus.StatusBadParameter)
	}

	r.topicsMu.Lock()
	key := fmt.Sprintf("%d/%s", p.domain, name)
	ts, ok := r.topics[key]
	if !ok {
		ts = &topicState{
			domain:  p.domain,
			name:    name,
			schema:  schema,
			writers: make(map[bus.Handle]*writerState),
			readers: make(map[bus.Handle]*rcache.Cache),
		}
		r.topics[key] = ts
	} else if ts.schema.TypeName() != schema.TypeName() {
		r.topicsMu.Unlock()
		return bus.Handle(bus.StatusBadParameter)
	}
	r.topicsMu.Unlock()

	return r.register(&entity{kind: kindTopic, parent: participant, domain: p.domain, topic: ts})
}

// CreateWriter binds a writer to the topic. A transient-local writer retains
// its history, bounded by the history policy, for replay to late joiners.
func (r *Runtime) CreateWriter(participant, topic bus.Handle, pol *bus.Policy) bus.Handle {
	if _, st := r.lookup(participant, kindParticipant); st != bus.StatusOK {
		return bus.Handle(st)
	}
	t, st := r.lookup(topic, kindTopic)
	if st != bus.StatusOK {
		return bus.Handle(st)
	}

	ws := &writerState{topic: t.topic, policy: effective(pol)}
	h := r.register(&entity{kind: kindWriter, parent: participant, domain: t.domain, writer: ws})
	ws.handle = h

	t.topic.mu.Lock()
	t.topic.writers[h] = ws
	t.topic.mu.Unlock()
	return h
}

// CreateReader binds a reader cache to the topic. Retained samples of
// transient-local writers are replayed into the new cache immediately.
func (r *Runtime) CreateReader(participant, topic bus.Handle, pol *bus.Policy) bus.Handle {
	if _, st := r.lookup(participant, kindParticipant); st != bus.StatusOK {
		return bus.Handle(st)
	}
	t, st := r.lookup(topic, kindTopic)
	if st != bus.StatusOK {
		return bus.Handle(st)
	}

	cache := rcache.New(effective(pol))
	h := r.register(&entity{kind: kindReader, parent: participant, domain: t.domain, cache: cache})

	ts := t.topic
	ts.mu.Lock()
	ts.readers[h] = cache
	writers := make([]*writerState, 0, len(ts.writers))
	for _, w := range ts.writers {
		writers = append(writers, w)
	}
	ts.mu.Unlock()

	for _, w := range writers {
		w.replayTo(cache)
	}
	return h
}

// CreateWaitSet creates an empty waitset owned by the participant.
func (r *Runtime) CreateWaitSet(participant bus.Handle) bus.Handle {
	if _, st := r.lookup(participant, kindParticipant); st != bus.StatusOK {
		return bus.Handle(st)
	}
	return r.register(&entity{kind: kindWaitSet, parent: participant, waitset: rcache.NewWaitSet()})
}

// Delete releases a handle. Deleting a participant deletes everything it
// owns; deleting a writer notifies matched readers with an invalid
// (lifecycle) sample.
func (r *Runtime) Delete(h bus.Handle) bus.Status {
	e, ok := r.entities.Get(h)
	if !ok {
		return bus.StatusAlreadyDeleted
	}
	r.entities.Del(h)
	r.deletes.Add(1)

	switch e.kind {
	case kindParticipant:
		var children []bus.Handle
		r.entities.ForEach(func(ch bus.Handle, ce *entity) bool {
			if ce.parent == h {
				children = append(children, ch)
			}
			return true
		})
		for _, ch := range children {
			r.Delete(ch)
		}
	case kindWriter:
		e.writer.retire(h)
	case kindReader:
		r.topicsMu.Lock()
		for _, ts := range r.topics {
			ts.mu.Lock()
			delete(ts.readers, h)
			ts.mu.Unlock()
		}
		r.topicsMu.Unlock()
	}
	return bus.StatusOK
}

// DeleteCount reports how many handles have been released, for tests that
// assert a released Entity triggers no further deletes.
func (r *Runtime) DeleteCount() int64 { return r.deletes.Load() }

// Stats mirrors a reader cache's counters. Tests use it to verify the loan
// protocol by call accounting instead of dereferencing returned memory.
type Stats struct {
	Pushed           int
	Dropped          int
	LoansOutstanding int
	LoanReturns      int
}

// ReaderStats snapshots a reader's cache counters; ok is false when the
// handle is not a live reader.
func (r *Runtime) ReaderStats(reader bus.Handle) (Stats, bool) {
	e, st := r.lookup(reader, kindReader)
	if st != bus.StatusOK {
		return Stats{}, false
	}
	return Stats(e.cache.Stats()), true
}

func effective(pol *bus.Policy) bus.Policy {
	if pol == nil {
		return bus.DefaultPolicy()
	}
	return *pol
}
