package core

import (
	"github.com/vovakirdan/wireroom-server/internal/proto"
	"github.com/vovakirdan/wireroom-server/internal/wire"
)

// Dirty bits tracked per participant between ticks.
const (
	dirtyEverything uint8 = 1 << iota
	dirtyName
	dirtyColor
	dirtyPosition
)

// Default cursor position of a new participant.
const (
	defaultX = 200
	defaultY = 100
)

// Participant is one identity's presence inside one room.
type Participant struct {
	ID       uint64
	room     *Room
	identity *Identity
	X, Y     uint16

	dirty   uint8
	clients map[*Client]struct{}
}

func newParticipant(id uint64, room *Room, ident *Identity) *Participant {
	return &Participant{
		ID:       id,
		room:     room,
		identity: ident,
		X:        defaultX,
		Y:        defaultY,
		dirty:    dirtyEverything,
		clients:  make(map[*Client]struct{}),
	}
}

// EncodeUpdate writes the fields that changed since the last update and
// clears the dirty bits. The identity id is only sent with everything.
func (p *Participant) EncodeUpdate(w *wire.Writer) {
	d := p.dirty
	p.dirty = 0
	if d&dirtyEverything != 0 {
		p.EncodeFull(w)
		return
	}

	m := proto.Member{ID: p.ID}
	profile := p.identity.Profile
	if d&dirtyName != 0 {
		name := profile.Name
		m.Name = &name
	}
	if d&dirtyColor != 0 {
		c := profile.Color
		m.Color = &c
	}
	if d&dirtyPosition != 0 {
		m.Position = &[2]uint16{p.X, p.Y}
	}
	proto.WriteMember(w, m)
}

// EncodeFull writes every field. Dirty bits are left untouched.
func (p *Participant) EncodeFull(w *wire.Writer) {
	id := p.identity.ID
	name := p.identity.Profile.Name
	c := p.identity.Profile.Color
	proto.WriteMember(w, proto.Member{
		ID:       p.ID,
		Identity: &id,
		Name:     &name,
		Color:    &c,
		Position: &[2]uint16{p.X, p.Y},
	})
}

func (p *Participant) setPosition(x, y uint16) {
	p.X, p.Y = x, y
	p.dirty |= dirtyPosition
	p.room.participantUpdated(p)
}

func (p *Participant) profileChanged(name, color bool) {
	if name {
		p.dirty |= dirtyName
	}
	if color {
		p.dirty |= dirtyColor
	}
	p.room.participantUpdated(p)
}
