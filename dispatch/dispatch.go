// Package dispatch maps named topics to typed readers and routes every valid
// record to a registered per-type callback.
//
// A Dispatcher polls each subscription with short bounded waits and drains it
// with the loan-scoped TakeEach, checking its context between waits. That is
// the cancellation model for this library: there is no way to interrupt a
// blocked wait, so shutdown latency is bounded by the poll timeout.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fogfish/opts"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/casualjim/databus"
	"github.com/casualjim/databus/bus"
	"github.com/casualjim/databus/pkg/slogx"
)

// Configuration options for New.
var (
	// WithPollTimeout bounds each blocking wait; it is also the worst-case
	// shutdown latency per subscription. Default 100ms.
	WithPollTimeout = opts.ForName[Dispatcher, time.Duration]("pollTimeout")
	// WithBatchSize caps how many records one drain retrieves. Default 64.
	WithBatchSize = opts.ForName[Dispatcher, int]("batchSize")
)

type subscription struct {
	topic *databus.Topic
	pump  func(ctx context.Context) error
	close func()
}

// Dispatcher owns the topics and readers it creates; Close releases them in
// reverse registration order. Register all subscriptions before calling Run.
type Dispatcher struct {
	participant *databus.Participant
	pollTimeout time.Duration
	batchSize   int
	subs        *orderedmap.OrderedMap[string, *subscription]
}

// New creates a dispatcher on the given participant.
func New(p *databus.Participant, options ...opts.Option[Dispatcher]) (*Dispatcher, error) {
	d := &Dispatcher{
		participant: p,
		pollTimeout: 100 * time.Millisecond,
		batchSize:   64,
		subs:        orderedmap.New[string, *subscription](),
	}
	if err := opts.Apply(d, options); err != nil {
		return nil, err
	}
	return d, nil
}

// Register creates the topic and a typed reader for it and routes each valid
// record to fn. fn runs while the retrieval loan is held, so every field of
// the record is safe to read inside it; anything that must outlive the call
// has to be copied.
func Register[T any](d *Dispatcher, topicName string, schema bus.Schema, qos *databus.Qos, fn func(ctx context.Context, rec *T)) error {
	if _, dup := d.subs.Get(topicName); dup {
		return fmt.Errorf("dispatch: topic %q already registered", topicName)
	}

	topic, err := databus.NewTopic(d.participant, schema, topicName, qos)
	if err != nil {
		return err
	}
	reader, err := databus.NewReader[T](d.participant, topic, qos)
	if err != nil {
		topic.Close()
		return err
	}

	d.subs.Set(topicName, &subscription{
		topic: topic,
		pump: func(ctx context.Context) error {
			ready, err := reader.Wait(d.pollTimeout)
			if err != nil {
				return err
			}
			if !ready {
				return nil
			}
			_, err = reader.TakeEach(func(rec *T) { fn(ctx, rec) }, d.batchSize)
			return err
		},
		close: reader.Close,
	})
	return nil
}

// Run pumps every registered subscription until ctx is cancelled, one
// goroutine per subscription. A subscription whose pump fails is logged and
// stopped; the others keep running. Run returns ctx.Err() once all pumps
// have stopped.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for pair := d.subs.Oldest(); pair != nil; pair = pair.Next() {
		name, sub := pair.Key, pair.Value
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if err := sub.pump(ctx); err != nil {
					slog.Error("subscription stopped", slogx.Topic(name), slogx.Error(err))
					return
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// Close releases every reader and topic in reverse registration order. Call
// it after Run has returned; it is idempotent because the underlying
// releases are.
func (d *Dispatcher) Close() {
	for pair := d.subs.Newest(); pair != nil; pair = pair.Prev() {
		pair.Value.close()
		pair.Value.topic.Close()
	}
}
