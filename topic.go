package databus

import (
	"log/slog"

	"github.com/casualjim/databus/bus"
)

// Topic names a data channel bound to a schema. The schema token is opaque
// here; it is passed through to the runtime unmodified.
type Topic struct {
	entity *Entity
	name   string
	schema bus.Schema
}

// NewTopic creates a topic on the participant's domain. The name is kept for
// diagnostics.
func NewTopic(p *Participant, schema bus.Schema, name string, qos *Qos) (*Topic, error) {
	rt := p.Runtime()
	ent, err := NewEntity(rt, rt.CreateTopic(p.Handle(), name, schema, policyOf(qos)), "create topic "+name)
	if err != nil {
		return nil, err
	}
	slog.Debug("created topic", slog.String("topic", name))
	return &Topic{entity: ent, name: name, schema: schema}, nil
}

// Handle returns the topic's raw handle.
func (t *Topic) Handle() bus.Handle { return t.entity.Get() }

// Name returns the topic name.
func (t *Topic) Name() string { return t.name }

// Schema returns the structural descriptor the topic was created with.
func (t *Topic) Schema() bus.Schema { return t.schema }

// Valid reports whether the topic still owns its handle.
func (t *Topic) Valid() bool { return t.entity.Valid() }

// Close releases the topic. Idempotent.
func (t *Topic) Close() { t.entity.Close() }

// policyOf unwraps an optional builder; a nil Qos means runtime defaults.
func policyOf(q *Qos) *bus.Policy {
	if q == nil {
		return nil
	}
	return q.Policy()
}
