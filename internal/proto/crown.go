package proto

import "github.com/vovakirdan/wireroom-server/internal/wire"

// CrownBlock is the wire view of a room's crown.
type CrownBlock struct {
	Dropped        bool
	Holder         wire.IdentityID
	HolderID       uint64 // participant id, 0 while unclaimed
	DropTimeMillis uint64
	StartX, StartY uint16
	EndX, EndY     uint16
}

// WriteCrown encodes the crown block.
func WriteCrown(w *wire.Writer, c CrownBlock) {
	w.WriteUint8(flag(c.Dropped, 0))
	w.WriteIdentityID(c.Holder)
	w.WriteVarlong(c.HolderID)
	w.WriteVarlong(c.DropTimeMillis)
	w.WriteUint16(c.StartX)
	w.WriteUint16(c.StartY)
	w.WriteUint16(c.EndX)
	w.WriteUint16(c.EndY)
}

// ReadCrown decodes the crown block.
func ReadCrown(r *wire.Reader) (CrownBlock, error) {
	var c CrownBlock
	flags, err := r.ReadUint8()
	if err != nil {
		return c, err
	}
	c.Dropped = bit(flags, 0)
	if c.Holder, err = r.ReadIdentityID(); err != nil {
		return c, err
	}
	if c.HolderID, err = r.ReadVarlong(); err != nil {
		return c, err
	}
	if c.DropTimeMillis, err = r.ReadVarlong(); err != nil {
		return c, err
	}
	for _, dst := range []*uint16{&c.StartX, &c.StartY, &c.EndX, &c.EndY} {
		if *dst, err = r.ReadUint16(); err != nil {
			return c, err
		}
	}
	return c, nil
}
