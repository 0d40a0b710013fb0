package proto

import "github.com/vovakirdan/wireroom-server/internal/wire"

// Encoders for inbound records. The server never calls them; they exist for
// clients, the smoke tool and tests. Several records may be written into
// one Writer and sent as a single message.

// Note is one entry of a notes record.
type Note struct {
	Key      byte
	Velocity byte
}

func WriteHandshake(w *wire.Writer, slot uint64) {
	w.WriteUint8(OpHandshake)
	w.WriteVarlong(slot)
}

// WriteJoin writes a join record. patch is only honoured by the server
// when the join creates the room.
func WriteJoin(w *wire.Writer, roomID string, patch *Patch) {
	w.WriteUint8(OpJoin)
	w.WriteString(roomID)
	if patch == nil {
		w.WriteUint8(0)
		return
	}
	w.WriteUint8(1)
	WritePatch(w, *patch)
}

func WritePing(w *wire.Writer) {
	w.WriteUint8(OpPing)
}

func WriteChat(w *wire.Writer, text string) {
	w.WriteUint8(OpChat)
	w.WriteString(text)
}

func WriteNotes(w *wire.Writer, timeMillis uint64, notes []Note) {
	w.WriteUint8(OpNotes)
	w.WriteVarlong(timeMillis)
	w.WriteVarlong(uint64(len(notes)))
	for _, n := range notes {
		w.WriteUint8(n.Key)
		w.WriteUint8(n.Velocity)
		w.WriteUint8(0)
	}
}

func WritePosition(w *wire.Writer, x, y uint16) {
	w.WriteUint8(OpPosition)
	w.WriteUint16(x)
	w.WriteUint16(y)
}

func WriteProfile(w *wire.Writer, name *string, color *wire.Color) {
	w.WriteUint8(OpProfile)
	w.WriteUint8(flag(name != nil, 0) | flag(color != nil, 1))
	if name != nil {
		w.WriteString(*name)
	}
	if color != nil {
		w.WriteColor(*color)
	}
}

// WriteCrownDrop asks to drop the crown.
func WriteCrownDrop(w *wire.Writer) {
	w.WriteUint8(OpCrown)
	w.WriteUint8(CrownDrop)
}

// WriteCrownGive asks to give the crown to participant target, or to the
// sender when target is nil.
func WriteCrownGive(w *wire.Writer, target *uint64) {
	w.WriteUint8(OpCrown)
	if target == nil {
		w.WriteUint8(0)
		return
	}
	w.WriteUint8(CrownTarget)
	w.WriteVarlong(*target)
}

func WriteSettingsPatch(w *wire.Writer, p Patch) {
	w.WriteUint8(OpSettings)
	WritePatch(w, p)
}

func WriteBan(w *wire.Writer, target wire.IdentityID, millis uint64) {
	w.WriteUint8(OpBan)
	w.WriteIdentityID(target)
	w.WriteVarlong(millis)
}

func WriteUnban(w *wire.Writer, target wire.IdentityID) {
	w.WriteUint8(OpUnban)
	w.WriteIdentityID(target)
}

func WriteDirectory(w *wire.Writer, sub byte) {
	w.WriteUint8(OpDirectory)
	w.WriteUint8(sub)
}
