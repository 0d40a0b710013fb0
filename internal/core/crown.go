package core

import (
	"math"
	"time"

	"github.com/vovakirdan/wireroom-server/internal/proto"
	"github.com/vovakirdan/wireroom-server/internal/wire"
)

// CrownCooldown is how long a dropped crown stays reserved for its holder.
const CrownCooldown = 15 * time.Second

// Crown is the per-room privilege token of a plain room.
type Crown struct {
	// Holder is the identity that holds or last held the crown.
	Holder wire.IdentityID
	// HolderID is the holding participant, 0 while dropped or unclaimed.
	HolderID uint64
	DropTime time.Time

	StartX, StartY uint16
	EndX, EndY     uint16
}

func newCrown(creator wire.IdentityID, now time.Time) *Crown {
	const mid = math.MaxUint16 / 2
	return &Crown{
		Holder:   creator,
		DropTime: now,
		StartX:   mid,
		StartY:   mid,
		EndX:     mid,
		EndY:     mid,
	}
}

// Dropped reports whether no participant currently holds the crown.
func (c *Crown) Dropped() bool {
	return c.HolderID == 0
}

func (c *Crown) block() proto.CrownBlock {
	return proto.CrownBlock{
		Dropped:        c.Dropped(),
		Holder:         c.Holder,
		HolderID:       c.HolderID,
		DropTimeMillis: uint64(c.DropTime.UnixMilli()),
		StartX:         c.StartX,
		StartY:         c.StartY,
		EndX:           c.EndX,
		EndY:           c.EndY,
	}
}

// Landing band for a dropped crown, in fractions of the uint16 range.
const (
	landMinX = 0.10
	landMaxX = 0.90
	landMinY = 0.70
	landMaxY = 0.90
)

// canGive checks whether requester may give the crown to target at now.
// A nil error with ok=false means the request is a no-op.
func (c *Crown) canGive(requester *Participant, target *Participant, now time.Time) (ok bool, err error) {
	if c.Holder == requester.identity.ID {
		if !c.Dropped() && target == requester {
			return false, nil
		}
		return true, nil
	}
	if !c.Dropped() {
		return false, coreError(ErrCodeNotCrownHolder, "crown is held by someone else")
	}
	if now.Sub(c.DropTime) < CrownCooldown {
		return false, coreError(ErrCodeCrownCooldown, "crown was dropped too recently")
	}
	return true, nil
}

func (c *Crown) give(p *Participant) {
	c.Holder = p.identity.ID
	c.HolderID = p.ID
}

// drop releases the crown from p's last position. landY in [0,1) picks the
// vertical landing spot.
func (c *Crown) drop(p *Participant, now time.Time, landY float64) {
	c.HolderID = 0
	c.DropTime = now
	c.StartX, c.StartY = p.X, p.Y
	c.EndX = clampUint16(p.X, landMinX, landMaxX)
	c.EndY = uint16(math.MaxUint16 * (landMinY + landY*(landMaxY-landMinY)))
}

func clampUint16(v uint16, lo, hi float64) uint16 {
	floor := uint16(math.MaxUint16 * lo)
	ceil := uint16(math.MaxUint16 * hi)
	switch {
	case v < floor:
		return floor
	case v > ceil:
		return ceil
	default:
		return v
	}
}
