package proto

import (
	"fmt"

	"github.com/vovakirdan/wireroom-server/internal/wire"
)

// Descriptor summarises one room in snapshots and directory frames.
type Descriptor struct {
	ID       string
	Count    uint64
	Settings Settings
	Crown    *CrownBlock // nil for non-plain rooms
}

// WriteDescriptor encodes d. The crown block follows only for plain rooms.
func WriteDescriptor(w *wire.Writer, d Descriptor) {
	w.WriteString(d.ID)
	w.WriteVarlong(d.Count)
	WriteSettings(w, d.Settings)
	if !d.Settings.NonPlain && d.Crown != nil {
		WriteCrown(w, *d.Crown)
	}
}

// ReadDescriptor decodes one room descriptor.
func ReadDescriptor(r *wire.Reader) (Descriptor, error) {
	var d Descriptor
	var err error
	if d.ID, err = r.ReadString(); err != nil {
		return d, err
	}
	if d.Count, err = r.ReadVarlong(); err != nil {
		return d, err
	}
	if d.Settings, err = ReadSettings(r); err != nil {
		return d, err
	}
	if !d.Settings.NonPlain {
		c, err := ReadCrown(r)
		if err != nil {
			return d, err
		}
		d.Crown = &c
	}
	return d, nil
}

// ChatEntry is one chat message as broadcast and kept in history.
type ChatEntry struct {
	Participant uint64
	TimeMillis  uint64
	Text        string
}

// AppendChatEntry returns the encoded entry without an opcode.
func AppendChatEntry(dst []byte, e ChatEntry) []byte {
	dst = wire.AppendVarlong(dst, e.Participant)
	dst = wire.AppendVarlong(dst, e.TimeMillis)
	dst = wire.AppendVarlong(dst, uint64(len(e.Text)))
	return append(dst, e.Text...)
}

// ReadChatEntry decodes one chat entry.
func ReadChatEntry(r *wire.Reader) (ChatEntry, error) {
	var e ChatEntry
	var err error
	if e.Participant, err = r.ReadVarlong(); err != nil {
		return e, err
	}
	if e.TimeMillis, err = r.ReadVarlong(); err != nil {
		return e, err
	}
	if e.Text, err = r.ReadString(); err != nil {
		return e, err
	}
	return e, nil
}

// Ack is the handshake reply.
type Ack struct {
	TimeMillis uint64
	Identity   wire.IdentityID
	Name       string
	Color      wire.Color
}

// EncodeAck builds a complete 0x00 frame.
func EncodeAck(a Ack) []byte {
	w := wire.NewWriter()
	w.WriteUint8(OutAck)
	w.WriteVarlong(a.TimeMillis)
	w.WriteIdentityID(a.Identity)
	w.WriteString(a.Name)
	w.WriteColor(a.Color)
	return w.Bytes()
}

// EncodePong builds a complete 0x02 frame.
func EncodePong(timeMillis uint64) []byte {
	w := wire.NewWriter()
	w.WriteUint8(OutPong)
	w.WriteVarlong(timeMillis)
	return w.Bytes()
}

// EncodeYouWereBanned builds the notice sent to a banned identity's
// connections before they are moved out of the room.
func EncodeYouWereBanned(millis uint64, roomID string) []byte {
	w := wire.NewWriter()
	w.WriteUint8(OutModeration)
	w.WriteUint8(NoticeYouWereBanned)
	w.WriteVarlong(millis)
	w.WriteString(roomID)
	return w.Bytes()
}

// EncodeTargetBanned builds the notice broadcast to the room.
func EncodeTargetBanned(banner, target wire.IdentityID, millis uint64) []byte {
	w := wire.NewWriter()
	w.WriteUint8(OutModeration)
	w.WriteUint8(NoticeTargetBanned)
	w.WriteIdentityID(banner)
	w.WriteIdentityID(target)
	w.WriteVarlong(millis)
	return w.Bytes()
}

// EncodeBannedFromRoom builds the notice sent when a banned identity tries
// to join.
func EncodeBannedFromRoom(remainingMillis uint64, roomID string) []byte {
	w := wire.NewWriter()
	w.WriteUint8(OutModeration)
	w.WriteUint8(NoticeBannedFromRoom)
	w.WriteVarlong(remainingMillis)
	w.WriteString(roomID)
	return w.Bytes()
}

// Snapshot is the decoded form of a 0x01 frame body.
type Snapshot struct {
	Room    Descriptor
	Self    uint64
	Members []Member
	Chat    []ChatEntry
}

// ReadSnapshot decodes a snapshot body; the opcode must already be consumed.
func ReadSnapshot(r *wire.Reader) (Snapshot, error) {
	var s Snapshot
	var err error
	if s.Room, err = ReadDescriptor(r); err != nil {
		return s, err
	}
	if s.Self, err = r.ReadVarlong(); err != nil {
		return s, err
	}
	n, err := readCount(r)
	if err != nil {
		return s, err
	}
	for range n {
		m, err := ReadMember(r)
		if err != nil {
			return s, err
		}
		s.Members = append(s.Members, m)
	}
	n, err = readCount(r)
	if err != nil {
		return s, err
	}
	for range n {
		e, err := ReadChatEntry(r)
		if err != nil {
			return s, err
		}
		s.Chat = append(s.Chat, e)
	}
	return s, nil
}

// Directory is the decoded form of a 0x05 frame body.
type Directory struct {
	Incremental bool
	Rooms       []Descriptor
	Removed     []string
}

// ReadDirectory decodes a directory body; the opcode must already be
// consumed.
func ReadDirectory(r *wire.Reader) (Directory, error) {
	var d Directory
	sub, err := r.ReadUint8()
	if err != nil {
		return d, err
	}
	switch sub {
	case DirectoryFull:
	case DirectoryIncremental:
		d.Incremental = true
	default:
		return d, fmt.Errorf("directory sub-opcode %d: %w", sub, wire.ErrMalformed)
	}
	n, err := readCount(r)
	if err != nil {
		return d, err
	}
	for range n {
		desc, err := ReadDescriptor(r)
		if err != nil {
			return d, err
		}
		d.Rooms = append(d.Rooms, desc)
	}
	if !d.Incremental {
		return d, nil
	}
	n, err = readCount(r)
	if err != nil {
		return d, err
	}
	for range n {
		id, err := r.ReadString()
		if err != nil {
			return d, err
		}
		d.Removed = append(d.Removed, id)
	}
	return d, nil
}

// readCount reads a varlong element count, rejecting counts that cannot
// fit in the remaining input at one byte per element.
func readCount(r *wire.Reader) (int, error) {
	n, err := r.ReadVarlong()
	if err != nil {
		return 0, err
	}
	if n > uint64(r.Remaining()) {
		return 0, wire.ErrMalformed
	}
	return int(n), nil
}
