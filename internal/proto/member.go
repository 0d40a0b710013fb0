package proto

import "github.com/vovakirdan/wireroom-server/internal/wire"

// Member field flags.
const (
	memberIdentity = 0
	memberName     = 1
	memberColor    = 2
	memberPosition = 3
)

// Member is one participant encoding. Nil fields are absent on the wire.
type Member struct {
	ID       uint64
	Identity *wire.IdentityID
	Name     *string
	Color    *wire.Color
	Position *[2]uint16
}

// WriteMember encodes m: varlong id, flag byte, then the present fields in
// the order identity, name, color, position.
func WriteMember(w *wire.Writer, m Member) {
	var flags byte
	flags |= flag(m.Identity != nil, memberIdentity)
	flags |= flag(m.Name != nil, memberName)
	flags |= flag(m.Color != nil, memberColor)
	flags |= flag(m.Position != nil, memberPosition)

	w.WriteVarlong(m.ID)
	w.WriteUint8(flags)
	if m.Identity != nil {
		w.WriteIdentityID(*m.Identity)
	}
	if m.Name != nil {
		w.WriteString(*m.Name)
	}
	if m.Color != nil {
		w.WriteColor(*m.Color)
	}
	if m.Position != nil {
		w.WriteUint16(m.Position[0])
		w.WriteUint16(m.Position[1])
	}
}

// ReadMember decodes one participant encoding.
func ReadMember(r *wire.Reader) (Member, error) {
	var m Member
	var err error
	if m.ID, err = r.ReadVarlong(); err != nil {
		return m, err
	}
	flags, err := r.ReadUint8()
	if err != nil {
		return m, err
	}
	if bit(flags, memberIdentity) {
		id, err := r.ReadIdentityID()
		if err != nil {
			return m, err
		}
		m.Identity = &id
	}
	if bit(flags, memberName) {
		name, err := r.ReadString()
		if err != nil {
			return m, err
		}
		m.Name = &name
	}
	if bit(flags, memberColor) {
		c, err := r.ReadColor()
		if err != nil {
			return m, err
		}
		m.Color = &c
	}
	if bit(flags, memberPosition) {
		x, err := r.ReadUint16()
		if err != nil {
			return m, err
		}
		y, err := r.ReadUint16()
		if err != nil {
			return m, err
		}
		m.Position = &[2]uint16{x, y}
	}
	return m, nil
}
