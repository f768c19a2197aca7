package natsbus

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/alphadose/haxmap"
	"github.com/fogfish/opts"
	"github.com/nats-io/nats.go"

	"github.com/casualjim/databus/bus"
	"github.com/casualjim/databus/internal/rcache"
)

// Configuration options for New.
var (
	// WithSubjectPrefix overrides the subject namespace, "databus" by
	// default. Two runtimes only exchange samples when their prefixes match.
	WithSubjectPrefix = opts.ForName[Runtime, string]("prefix")
)

var _ bus.Runtime = (*Runtime)(nil)

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
	topic  *topicInfo

	writer  *writerState
	reader  *readerState
	waitset *rcache.WaitSet
}

type topicInfo struct {
	domain uint32
	name   string
	schema bus.Schema
}

// Runtime is a bus.Runtime speaking core NATS. Safe for concurrent use.
type Runtime struct {
	nc       *nats.Conn
	prefix   string
	next     atomic.Int64
	entities *haxmap.Map[bus.Handle, *entity]
}

// New wraps an established NATS connection. The connection is borrowed: the
// runtime never closes it.
func New(nc *nats.Conn, options ...opts.Option[Runtime]) (*Runtime, error) {
	if nc == nil {
		return nil, fmt.Errorf("natsbus: a connected *nats.Conn is required")
	}
	rt := &Runtime{
		nc:       nc,
		prefix:   "databus",
		entities: haxmap.New[bus.Handle, *entity](),
	}
	if err := opts.Apply(rt, options); err != nil {
		return nil, err
	}
	return rt, nil
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

// CreateParticipant joins a domain. The domain is part of every subject, so
// participants on different domains never see each other's samples.
func (r *Runtime) CreateParticipant(domain uint32) bus.Handle {
	if r.nc.IsClosed() {
		return bus.Handle(bus.StatusPreconditionNotMet)
	}
	return r.register(&entity{kind: kindParticipant, domain: domain})
}

// CreateTopic records the (name, schema) binding; subjects are derived from
// it lazily by writers and readers.
func (r *Runtime) CreateTopic(participant bus.Handle, name string, schema bus.Schema, _ *bus.Policy) bus.Handle {
	p, st := r.lookup(participant, kindParticipant)
	if st != bus.StatusOK {
		return bus.Handle(st)
	}
	if name == "" || schema == nil {
		return bus.Handle(bus.StatusBadParameter)
	}
	return r.register(&entity{
		kind:   kindTopic,
		parent: participant,
		domain: p.domain,
		topic:  &topicInfo{domain: p.domain, name: name, schema: schema},
	})
}

// CreateWaitSet creates an empty waitset owned by the participant.
func (r *Runtime) CreateWaitSet(participant bus.Handle) bus.Handle {
	if _, st := r.lookup(participant, kindParticipant); st != bus.StatusOK {
		return bus.Handle(st)
	}
	return r.register(&entity{kind: kindWaitSet, parent: participant, waitset: rcache.NewWaitSet()})
}

// WaitSetAttach registers a reader's cache with a waitset.
func (r *Runtime) WaitSetAttach(waitset, ent bus.Handle) bus.Status {
	w, st := r.lookup(waitset, kindWaitSet)
	if st != bus.StatusOK {
		return st
	}
	e, st := r.lookup(ent, kindReader)
	if st != bus.StatusOK {
		return st
	}
	w.waitset.Attach(e.reader.cache)
	return bus.StatusOK
}

// Delete releases a handle, unsubscribing and notifying as the entity kind
// requires. Deleting a participant deletes everything it owns.
func (r *Runtime) Delete(h bus.Handle) bus.Status {
	e, ok := r.entities.Get(h)
	if !ok {
		return bus.StatusAlreadyDeleted
	}
	r.entities.Del(h)

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
		e.writer.retire(r, h)
	case kindReader:
		e.reader.close()
	}
	return bus.StatusOK
}

// dataSubject carries samples, helloSubject carries replay requests, and
// replaySubject is a reader's private inbox for retained history.
func (r *Runtime) dataSubject(t *topicInfo) string {
	return fmt.Sprintf("%s.%d.data.%s", r.prefix, t.domain, subjectToken(t.name))
}

func (r *Runtime) helloSubject(t *topicInfo) string {
	return fmt.Sprintf("%s.%d.hello.%s", r.prefix, t.domain, subjectToken(t.name))
}

func (r *Runtime) replaySubject(domain uint32, token string) string {
	return fmt.Sprintf("%s.%d.replay.%s", r.prefix, domain, token)
}

// subjectToken makes a topic name usable as a NATS subject token.
func subjectToken(name string) string {
	return strings.NewReplacer(".", "-", " ", "-", "*", "-", ">", "-", "/", ".").Replace(name)
}

type readerState struct {
	cache *rcache.Cache
	subs  []*nats.Subscription
	once  sync.Once
}

func (rs *readerState) close() {
	rs.once.Do(func() {
		for _, s := range rs.subs {
			_ = s.Unsubscribe()
		}
	})
}
