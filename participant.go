package databus

import (
	"log/slog"

	"github.com/casualjim/databus/bus"
)

// Participant is the entry point to a bus domain. Topics, writers and readers
// are all created against a participant.
type Participant struct {
	entity *Entity
	rt     bus.Runtime
	domain uint32
}

// NewParticipant joins the given domain on the given runtime.
func NewParticipant(rt bus.Runtime, domain uint32) (*Participant, error) {
	ent, err := NewEntity(rt, rt.CreateParticipant(domain), "create participant")
	if err != nil {
		return nil, err
	}
	slog.Debug("joined bus domain", slog.Uint64("domain", uint64(domain)))
	return &Participant{entity: ent, rt: rt, domain: domain}, nil
}

// Handle returns the participant's raw handle.
func (p *Participant) Handle() bus.Handle { return p.entity.Get() }

// Runtime returns the bus runtime this participant was created on.
func (p *Participant) Runtime() bus.Runtime { return p.rt }

// Domain returns the domain identifier.
func (p *Participant) Domain() uint32 { return p.domain }

// Valid reports whether the participant still owns its handle.
func (p *Participant) Valid() bool { return p.entity.Valid() }

// Close leaves the domain. Idempotent; teardown failures are logged, never
// returned.
func (p *Participant) Close() { p.entity.Close() }
