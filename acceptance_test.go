package databus_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casualjim/databus"
	"github.com/casualjim/databus/bus"
	"github.com/casualjim/databus/bus/membus"
	"github.com/casualjim/databus/bus/natsbus"
	"github.com/casualjim/databus/pkg/uuidx"
)

// Speed is the double-schema record used throughout the scenarios.
type Speed struct {
	Value float64 `json:"value"`
}

// Health carries a variable-length field to exercise loan-scoped access.
type Health struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
}

// runtimeFactory creates a fresh runtime per scenario.
type runtimeFactory func(t *testing.T) bus.Runtime

// scenarioTopic returns a collision-free topic name so scenarios can run
// against a shared broker.
func scenarioTopic(base string) string {
	return fmt.Sprintf("%s/%s", base, uuidx.NewString())
}

type scenario struct {
	name string
	test func(t *testing.T, factory runtimeFactory)
}

// runScenarios exercises the client protocol against a runtime
// implementation.
func runScenarios(t *testing.T, name string, factory runtimeFactory) {
	scenarios := []scenario{
		{"wait with no writer times out", testWaitNoWriter},
		{"write then wait and take", testWriteWaitTake},
		{"keep last supersedes untaken samples", testKeepLastSupersedes},
		{"take each observes variable-length fields", testTakeEachStrings},
		{"read leaves samples cached", testReadLeavesCached},
		{"transient local replays to late joiner", testTransientLocalReplay},
		{"writer teardown never surfaces invalid samples", testInvalidSamplesFiltered},
	}
	for _, sc := range scenarios {
		t.Run(fmt.Sprintf("%s/%s", name, sc.name), func(t *testing.T) {
			sc.test(t, factory)
		})
	}
}

func TestScenariosMembus(t *testing.T) {
	runScenarios(t, "membus", func(t *testing.T) bus.Runtime {
		return membus.New()
	})
}

func TestScenariosNATS(t *testing.T) {
	nc, err := nats.Connect(nats.DefaultURL, nats.Timeout(time.Second))
	if err != nil {
		t.Skipf("no NATS server at %s: %v", nats.DefaultURL, err)
	}
	t.Cleanup(nc.Close)

	runScenarios(t, "nats", func(t *testing.T) bus.Runtime {
		rt, err := natsbus.New(nc)
		require.NoError(t, err)
		return rt
	})
}

func setupSpeed(t *testing.T, factory runtimeFactory, qos *databus.Qos) (*databus.Participant, *databus.Topic) {
	t.Helper()
	p, err := databus.NewParticipant(factory(t), 0)
	require.NoError(t, err)
	t.Cleanup(p.Close)

	topic, err := databus.NewTopic(p, databus.SchemaOf[Speed]("speed"), scenarioTopic("speed"), qos)
	require.NoError(t, err)
	t.Cleanup(topic.Close)
	return p, topic
}

func testWaitNoWriter(t *testing.T, factory runtimeFactory) {
	p, topic := setupSpeed(t, factory, databus.ReliableStandard(10))
	r, err := databus.NewReader[Speed](p, topic, databus.ReliableStandard(10))
	require.NoError(t, err)
	t.Cleanup(r.Close)

	const timeout = 50 * time.Millisecond
	start := time.Now()
	ready, err := r.Wait(timeout)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.False(t, ready)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+200*time.Millisecond, "wait overstayed the timeout")
}

func testWriteWaitTake(t *testing.T, factory runtimeFactory) {
	qos := databus.ReliableStandard(10)
	p, topic := setupSpeed(t, factory, qos)

	r, err := databus.NewReader[Speed](p, topic, qos)
	require.NoError(t, err)
	t.Cleanup(r.Close)

	w, err := databus.NewWriter[Speed](p, topic, qos)
	require.NoError(t, err)
	t.Cleanup(w.Close)

	require.NoError(t, w.Write(Speed{Value: 42.0}))

	ready, err := r.Wait(time.Second)
	require.NoError(t, err)
	require.True(t, ready)

	recs, err := r.Take(10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 42.0, recs[0].Value)
}

func testKeepLastSupersedes(t *testing.T, factory runtimeFactory) {
	qos := databus.NewQos().ReliabilityReliable(time.Second).HistoryKeepLast(1)
	p, topic := setupSpeed(t, factory, qos)

	r, err := databus.NewReader[Speed](p, topic, qos)
	require.NoError(t, err)
	t.Cleanup(r.Close)

	w, err := databus.NewWriter[Speed](p, topic, qos)
	require.NoError(t, err)
	t.Cleanup(w.Close)

	require.NoError(t, w.Write(Speed{Value: 1}))
	require.NoError(t, w.WriteAt(Speed{Value: 2}, time.Now()))

	// The second sample supersedes the first in a depth-1 cache. Poll with
	// Read until it has arrived; transports deliver asynchronously.
	require.Eventually(t, func() bool {
		recs, err := r.Read(10)
		return err == nil && len(recs) == 1 && recs[0].Value == 2
	}, 2*time.Second, 10*time.Millisecond)

	recs, err := r.Take(10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 2.0, recs[0].Value)
}

func testTakeEachStrings(t *testing.T, factory runtimeFactory) {
	qos := databus.ReliableStandard(10)
	p, err := databus.NewParticipant(factory(t), 0)
	require.NoError(t, err)
	t.Cleanup(p.Close)

	topic, err := databus.NewTopic(p, databus.SchemaOf[Health]("health"), scenarioTopic("health"), qos)
	require.NoError(t, err)
	t.Cleanup(topic.Close)

	r, err := databus.NewReader[Health](p, topic, qos)
	require.NoError(t, err)
	t.Cleanup(r.Close)

	w, err := databus.NewWriter[Health](p, topic, qos)
	require.NoError(t, err)
	t.Cleanup(w.Close)

	require.NoError(t, w.Write(Health{Name: "engine_ok", OK: true}))

	ready, err := r.Wait(time.Second)
	require.NoError(t, err)
	require.True(t, ready)

	var seen []string
	n, err := r.TakeEach(func(rec *Health) {
		seen = append(seen, rec.Name)
	}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"engine_ok"}, seen)
}

func testReadLeavesCached(t *testing.T, factory runtimeFactory) {
	qos := databus.ReliableStandard(10)
	p, topic := setupSpeed(t, factory, qos)

	r, err := databus.NewReader[Speed](p, topic, qos)
	require.NoError(t, err)
	t.Cleanup(r.Close)

	w, err := databus.NewWriter[Speed](p, topic, qos)
	require.NoError(t, err)
	t.Cleanup(w.Close)

	require.NoError(t, w.Write(Speed{Value: 3.5}))

	ready, err := r.Wait(time.Second)
	require.NoError(t, err)
	require.True(t, ready)

	first, err := r.Read(10)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := r.Read(10)
	require.NoError(t, err)
	require.Len(t, second, 1, "read must not consume")
	assert.Equal(t, first[0].Value, second[0].Value)

	taken, err := r.Take(10)
	require.NoError(t, err)
	require.Len(t, taken, 1)

	empty, err := r.Take(10)
	require.NoError(t, err)
	assert.Empty(t, empty, "take must consume")
}

func testTransientLocalReplay(t *testing.T, factory runtimeFactory) {
	qos := databus.ReliableCritical()
	p, topic := setupSpeed(t, factory, qos)

	w, err := databus.NewWriter[Speed](p, topic, qos)
	require.NoError(t, err)
	t.Cleanup(w.Close)

	require.NoError(t, w.Write(Speed{Value: 10}))
	require.NoError(t, w.Write(Speed{Value: 11}))

	// The reader joins after both writes and still sees them.
	r, err := databus.NewReader[Speed](p, topic, qos)
	require.NoError(t, err)
	t.Cleanup(r.Close)

	var got []float64
	require.Eventually(t, func() bool {
		n, err := r.TakeEach(func(rec *Speed) { got = append(got, rec.Value) }, 10)
		return err == nil && n >= 0 && len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []float64{10, 11}, got)
}

func testInvalidSamplesFiltered(t *testing.T, factory runtimeFactory) {
	qos := databus.ReliableStandard(10)
	p, topic := setupSpeed(t, factory, qos)

	r, err := databus.NewReader[Speed](p, topic, qos)
	require.NoError(t, err)
	t.Cleanup(r.Close)

	w, err := databus.NewWriter[Speed](p, topic, qos)
	require.NoError(t, err)
	require.NoError(t, w.Write(Speed{Value: 5}))

	ready, err := r.Wait(time.Second)
	require.NoError(t, err)
	require.True(t, ready)

	recs, err := r.Take(10)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	// Tearing the writer down produces a lifecycle notification. It wakes
	// the reader but never shows up as a record.
	w.Close()

	ready, err = r.Wait(time.Second)
	require.NoError(t, err)
	require.True(t, ready, "lifecycle notification must trigger readiness")

	recs, err = r.Take(10)
	require.NoError(t, err)
	assert.Empty(t, recs, "invalid samples must be filtered out")
}
