package natsbus

import (
	"log/slog"
	"reflect"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/casualjim/databus/bus"
	"github.com/casualjim/databus/internal/rcache"
	"github.com/casualjim/databus/pkg/slogx"
	"github.com/casualjim/databus/pkg/uuidx"
)

// envelope is the wire frame around one sample. Retirement frames have Valid
// false and no payload; readers surface them as lifecycle notifications.
type envelope struct {
	Type   string          `json:"type"`
	Pub    int64           `json:"pub"`
	TsNano int64           `json:"ts"`
	Valid  bool            `json:"valid"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// hello is a late joiner's replay request.
type hello struct {
	Inbox string `json:"inbox"`
}

type writerState struct {
	subject  string
	hello    string
	topic    *topicInfo
	policy   bus.Policy
	mu       sync.Mutex
	retained [][]byte
	helloSub *nats.Subscription
	once     sync.Once
}

// CreateWriter binds a writer to the topic's data subject. A transient-local
// writer additionally listens for hello frames and replays its retained
// history to the requesting inbox.
func (r *Runtime) CreateWriter(participant, topic bus.Handle, pol *bus.Policy) bus.Handle {
	if _, st := r.lookup(participant, kindParticipant); st != bus.StatusOK {
		return bus.Handle(st)
	}
	t, st := r.lookup(topic, kindTopic)
	if st != bus.StatusOK {
		return bus.Handle(st)
	}

	ws := &writerState{
		subject: r.dataSubject(t.topic),
		hello:   r.helloSubject(t.topic),
		topic:   t.topic,
		policy:  effective(pol),
	}
	if ws.policy.Durability == bus.TransientLocal {
		sub, err := r.nc.Subscribe(ws.hello, func(msg *nats.Msg) {
			var h hello
			if err := json.Unmarshal(msg.Data, &h); err != nil || h.Inbox == "" {
				return
			}
			ws.mu.Lock()
			retained := make([][]byte, len(ws.retained))
			copy(retained, ws.retained)
			ws.mu.Unlock()
			for _, frame := range retained {
				if err := r.nc.Publish(h.Inbox, frame); err != nil {
					slog.Warn("replay publish failed", slogx.Error(err))
					return
				}
			}
		})
		if err != nil {
			return bus.Handle(bus.StatusOutOfResources)
		}
		ws.helloSub = sub
		// The hello listener must be server-side before a late joiner can
		// announce itself.
		if err := r.nc.Flush(); err != nil {
			_ = sub.Unsubscribe()
			return bus.Handle(bus.StatusError)
		}
	}
	return r.register(&entity{kind: kindWriter, parent: participant, domain: t.domain, writer: ws})
}

// CreateReader subscribes a cache to the topic's data subject. When the
// reader policy is transient-local it also opens a private replay inbox and
// announces itself to matched writers.
func (r *Runtime) CreateReader(participant, topic bus.Handle, pol *bus.Policy) bus.Handle {
	if _, st := r.lookup(participant, kindParticipant); st != bus.StatusOK {
		return bus.Handle(st)
	}
	t, st := r.lookup(topic, kindTopic)
	if st != bus.StatusOK {
		return bus.Handle(st)
	}

	rs := &readerState{cache: rcache.New(effective(pol))}
	handler := func(msg *nats.Msg) {
		r.deliver(rs.cache, t.topic.schema, msg.Data)
	}

	sub, err := r.nc.Subscribe(r.dataSubject(t.topic), handler)
	if err != nil {
		return bus.Handle(bus.StatusOutOfResources)
	}
	rs.subs = append(rs.subs, sub)

	if effective(pol).Durability == bus.TransientLocal {
		inbox := r.replaySubject(t.domain, uuidx.NewString())
		replaySub, err := r.nc.Subscribe(inbox, handler)
		if err != nil {
			rs.close()
			return bus.Handle(bus.StatusOutOfResources)
		}
		rs.subs = append(rs.subs, replaySub)

		// Both subscriptions must be server-side before anything is
		// published against them.
		if err := r.nc.Flush(); err != nil {
			rs.close()
			return bus.Handle(bus.StatusError)
		}

		greeting, _ := json.Marshal(hello{Inbox: inbox})
		if err := r.nc.Publish(r.helloSubject(t.topic), greeting); err != nil {
			rs.close()
			return bus.Handle(bus.StatusError)
		}
	} else if err := r.nc.Flush(); err != nil {
		rs.close()
		return bus.Handle(bus.StatusError)
	}

	return r.register(&entity{kind: kindReader, parent: participant, domain: t.domain, reader: rs})
}

// deliver decodes one wire frame into the reader's cache.
func (r *Runtime) deliver(cache *rcache.Cache, schema bus.Schema, frame []byte) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		slog.Warn("dropping undecodable frame", slogx.Error(err))
		return
	}
	if env.Type != schema.TypeName() {
		slog.Warn("dropping frame with mismatched type",
			slog.String("got", env.Type),
			slog.String("want", schema.TypeName()),
		)
		return
	}

	info := bus.SampleInfo{
		ValidData:         env.Valid,
		SourceTimestamp:   time.Unix(0, env.TsNano),
		PublicationHandle: bus.Handle(env.Pub),
	}
	if !env.Valid {
		cache.Push(rcache.Sample{Info: info})
		return
	}

	rec := schema.New()
	if err := json.Unmarshal(env.Data, rec); err != nil {
		slog.Warn("dropping undecodable record", slogx.Error(err))
		return
	}
	cache.Push(rcache.Sample{Value: rec, Info: info})
}

// Write encodes the record and publishes it. Reliable writers flush the
// connection, bounded by the policy's blocking budget; a flush timeout is
// surfaced as StatusTimeout.
func (r *Runtime) Write(writer bus.Handle, sample any, ts time.Time) bus.Status {
	e, st := r.lookup(writer, kindWriter)
	if st != bus.StatusOK {
		return st
	}
	ws := e.writer

	v := reflect.ValueOf(sample)
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() {
		return bus.StatusBadParameter
	}
	if reflect.TypeOf(ws.topic.schema.New()) != v.Type() {
		return bus.StatusBadParameter
	}

	payload, err := json.Marshal(sample)
	if err != nil {
		return bus.StatusBadParameter
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	frame, err := json.Marshal(envelope{
		Type:   ws.topic.schema.TypeName(),
		Pub:    int64(writer),
		TsNano: ts.UnixNano(),
		Valid:  true,
		Data:   payload,
	})
	if err != nil {
		return bus.StatusError
	}

	if ws.policy.Durability == bus.TransientLocal {
		ws.mu.Lock()
		if ws.policy.History == bus.KeepLast {
			depth := int(ws.policy.Depth)
			if depth < 1 {
				depth = 1
			}
			if len(ws.retained) >= depth {
				over := len(ws.retained) - depth + 1
				ws.retained = append(ws.retained[:0], ws.retained[over:]...)
			}
		}
		ws.retained = append(ws.retained, frame)
		ws.mu.Unlock()
	}

	if err := r.nc.Publish(ws.subject, frame); err != nil {
		return bus.StatusError
	}
	if ws.policy.Reliability == bus.Reliable {
		budget := ws.policy.MaxBlocking
		if budget <= 0 {
			budget = time.Second
		}
		if err := r.nc.FlushTimeout(budget); err != nil {
			return bus.StatusTimeout
		}
	}
	return bus.StatusOK
}

// retire drops the hello listener and announces the writer's departure on
// the data subject so matched readers get a lifecycle notification.
func (w *writerState) retire(r *Runtime, h bus.Handle) {
	w.once.Do(func() {
		if w.helloSub != nil {
			_ = w.helloSub.Unsubscribe()
		}
		frame, err := json.Marshal(envelope{
			Type:   w.topic.schema.TypeName(),
			Pub:    int64(h),
			TsNano: time.Now().UnixNano(),
			Valid:  false,
		})
		if err != nil {
			return
		}
		if err := r.nc.Publish(w.subject, frame); err != nil {
			slog.Warn("writer retirement publish failed", slogx.Error(err))
		}
	})
}

func effective(pol *bus.Policy) bus.Policy {
	if pol == nil {
		return bus.DefaultPolicy()
	}
	return *pol
}
