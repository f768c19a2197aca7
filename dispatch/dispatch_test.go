package dispatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casualjim/databus"
	"github.com/casualjim/databus/bus/membus"
)

type signal struct {
	Path  string  `json:"path"`
	Value float64 `json:"value"`
}

type event struct {
	Name string `json:"name"`
}

func setup(t *testing.T) (*databus.Participant, *Dispatcher) {
	t.Helper()
	p, err := databus.NewParticipant(membus.New(), 0)
	require.NoError(t, err)
	t.Cleanup(p.Close)

	d, err := New(p, WithPollTimeout(10*time.Millisecond), WithBatchSize(8))
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return p, d
}

func TestRegister(t *testing.T) {
	t.Run("duplicate topic is rejected", func(t *testing.T) {
		_, d := setup(t)
		schema := databus.SchemaOf[signal]("vss_signal")

		require.NoError(t, Register(d, "rt/vss/signals", schema, nil, func(context.Context, *signal) {}))
		err := Register(d, "rt/vss/signals", schema, nil, func(context.Context, *signal) {})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})
}

func TestRun(t *testing.T) {
	t.Run("routes records to the registered callback", func(t *testing.T) {
		p, d := setup(t)
		schema := databus.SchemaOf[signal]("vss_signal")

		var got atomic.Value
		require.NoError(t, Register(d, "rt/vss/signals", schema, databus.ReliableStandard(10),
			func(_ context.Context, rec *signal) {
				got.Store(*rec)
			}))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- d.Run(ctx) }()

		topic, err := databus.NewTopic(p, schema, "rt/vss/signals", nil)
		require.NoError(t, err)
		defer topic.Close()
		w, err := databus.NewWriter[signal](p, topic, databus.ReliableStandard(10))
		require.NoError(t, err)
		defer w.Close()

		require.NoError(t, w.Write(signal{Path: "Vehicle.Speed", Value: 88.0}))

		require.Eventually(t, func() bool {
			v, ok := got.Load().(signal)
			return ok && v.Value == 88.0 && v.Path == "Vehicle.Speed"
		}, 2*time.Second, 5*time.Millisecond)

		cancel()
		require.ErrorIs(t, <-done, context.Canceled)
	})

	t.Run("each topic gets its own callback", func(t *testing.T) {
		p, d := setup(t)
		signalSchema := databus.SchemaOf[signal]("vss_signal")
		eventSchema := databus.SchemaOf[event]("vehicle_event")

		var signals, events atomic.Int64
		require.NoError(t, Register(d, "rt/vss/signals", signalSchema, nil,
			func(context.Context, *signal) { signals.Add(1) }))
		require.NoError(t, Register(d, "rt/events/vehicle", eventSchema, nil,
			func(context.Context, *event) { events.Add(1) }))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- d.Run(ctx) }()

		sigTopic, err := databus.NewTopic(p, signalSchema, "rt/vss/signals", nil)
		require.NoError(t, err)
		defer sigTopic.Close()
		evTopic, err := databus.NewTopic(p, eventSchema, "rt/events/vehicle", nil)
		require.NoError(t, err)
		defer evTopic.Close()

		sw, err := databus.NewWriter[signal](p, sigTopic, nil)
		require.NoError(t, err)
		defer sw.Close()
		ew, err := databus.NewWriter[event](p, evTopic, nil)
		require.NoError(t, err)
		defer ew.Close()

		require.NoError(t, sw.Write(signal{Path: "Vehicle.Speed", Value: 1}))
		require.NoError(t, ew.Write(event{Name: "door_open"}))

		require.Eventually(t, func() bool {
			return signals.Load() == 1 && events.Load() == 1
		}, 2*time.Second, 5*time.Millisecond)

		cancel()
		<-done
	})

	t.Run("cancellation stops an idle dispatcher promptly", func(t *testing.T) {
		_, d := setup(t)
		require.NoError(t, Register(d, "rt/vss/signals", databus.SchemaOf[signal]("vss_signal"), nil,
			func(context.Context, *signal) {}))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- d.Run(ctx) }()

		time.Sleep(30 * time.Millisecond)
		start := time.Now()
		cancel()

		require.ErrorIs(t, <-done, context.Canceled)
		assert.Less(t, time.Since(start), time.Second, "shutdown bounded by the poll timeout")
	})
}
