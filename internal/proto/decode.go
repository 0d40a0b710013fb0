package proto

import (
	"fmt"

	"github.com/vovakirdan/wireroom-server/internal/wire"
)

// Notice is a decoded moderation notice. Banner and Target are only set for
// NoticeTargetBanned; Room only for the other kinds.
type Notice struct {
	Kind   byte
	Millis uint64
	Room   string
	Banner wire.IdentityID
	Target wire.IdentityID
}

// NotesEvent is a relayed note batch. Payload holds the body exactly as the
// sender wrote it: timestamp, count and notes.
type NotesEvent struct {
	Participant uint64
	TimeMillis  uint64
	Notes       []Note
	Payload     []byte
}

// Record is one decoded outbound record. Only the field matching Op is set.
type Record struct {
	Op         byte
	Ack        Ack
	Snapshot   Snapshot
	PongMillis uint64
	Members    []Member
	Removed    []uint64
	Directory  Directory
	Notice     Notice
	Chat       ChatEntry
	Notes      NotesEvent
	Settings   Settings
	Crown      CrownBlock
}

// DecodeFrame splits an outbound frame into its records.
func DecodeFrame(frame []byte) ([]Record, error) {
	var out []Record
	r := wire.NewReader(frame)
	for !r.EOF() {
		rec, err := ReadRecord(r)
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReadRecord decodes the next outbound record, opcode included.
func ReadRecord(r *wire.Reader) (Record, error) {
	op, err := r.ReadUint8()
	if err != nil {
		return Record{}, err
	}
	rec := Record{Op: op}
	switch op {
	case OutAck:
		rec.Ack, err = readAck(r)
	case OutSnapshot:
		rec.Snapshot, err = ReadSnapshot(r)
	case OutPong:
		rec.PongMillis, err = r.ReadVarlong()
	case OutUpdates:
		rec.Members, err = readMembers(r)
	case OutRemovals:
		rec.Removed, err = readRemovals(r)
	case OutDirectory:
		rec.Directory, err = ReadDirectory(r)
	case OutModeration:
		rec.Notice, err = readNotice(r)
	case OutChat:
		rec.Chat, err = ReadChatEntry(r)
	case OutNotes:
		rec.Notes, err = readNotes(r)
	case OutSettings:
		rec.Settings, err = ReadSettings(r)
	case OutCrown:
		rec.Crown, err = ReadCrown(r)
	default:
		err = fmt.Errorf("outbound opcode 0x%02x: %w", op, wire.ErrMalformed)
	}
	return rec, err
}

func readAck(r *wire.Reader) (Ack, error) {
	var a Ack
	var err error
	if a.TimeMillis, err = r.ReadVarlong(); err != nil {
		return a, err
	}
	if a.Identity, err = r.ReadIdentityID(); err != nil {
		return a, err
	}
	if a.Name, err = r.ReadString(); err != nil {
		return a, err
	}
	a.Color, err = r.ReadColor()
	return a, err
}

func readMembers(r *wire.Reader) ([]Member, error) {
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	members := make([]Member, 0, n)
	for range n {
		m, err := ReadMember(r)
		if err != nil {
			return members, err
		}
		members = append(members, m)
	}
	return members, nil
}

func readRemovals(r *wire.Reader) ([]uint64, error) {
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, n)
	for range n {
		id, err := r.ReadVarlong()
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func readNotice(r *wire.Reader) (Notice, error) {
	var n Notice
	var err error
	if n.Kind, err = r.ReadUint8(); err != nil {
		return n, err
	}
	switch n.Kind {
	case NoticeTargetBanned:
		if n.Banner, err = r.ReadIdentityID(); err != nil {
			return n, err
		}
		if n.Target, err = r.ReadIdentityID(); err != nil {
			return n, err
		}
		n.Millis, err = r.ReadVarlong()
	case NoticeYouWereBanned, NoticeBannedFromRoom:
		if n.Millis, err = r.ReadVarlong(); err != nil {
			return n, err
		}
		n.Room, err = r.ReadString()
	default:
		err = fmt.Errorf("notice kind %d: %w", n.Kind, wire.ErrMalformed)
	}
	return n, err
}

func readNotes(r *wire.Reader) (NotesEvent, error) {
	var e NotesEvent
	var err error
	if e.Participant, err = r.ReadVarlong(); err != nil {
		return e, err
	}
	start := r.Pos()
	if e.TimeMillis, err = r.ReadVarlong(); err != nil {
		return e, err
	}
	n, err := r.ReadVarlong()
	if err != nil {
		return e, err
	}
	if n > uint64(r.Remaining()/NoteLen) {
		return e, wire.ErrMalformed
	}
	e.Notes = make([]Note, 0, n)
	for range n {
		b, _ := r.ReadBytes(NoteLen)
		e.Notes = append(e.Notes, Note{Key: b[0], Velocity: b[1]})
	}
	e.Payload = r.Slice(start)
	return e, nil
}
