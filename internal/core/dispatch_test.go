package core

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wireroom-server/internal/proto"
	"github.com/vovakirdan/wireroom-server/internal/wire"
)

func handleRaw(h *Hub, c *Client, build func(w *wire.Writer)) error {
	w := wire.NewWriter()
	build(w)
	return h.handle(c, w.Bytes())
}

func countOp(recs []record, op byte) int {
	n := 0
	for _, rec := range recs {
		if rec.op == op {
			n++
		}
	}
	return n
}

func TestPingReturnsServerTime(t *testing.T) {
	h, _ := newTestHub(t)
	c := newTestClient(h, "1.1.1.1")

	send(t, h, c, proto.WritePing)
	recs := records(t, c)
	require.Len(t, recs, 1)
	require.Equal(t, proto.OutPong, recs[0].op)
	require.Equal(t, uint64(testEpoch.UnixMilli()), recs[0].millis)
}

func TestUnknownOpcodeAbortsMessage(t *testing.T) {
	h, _ := newTestHub(t)
	c := newTestClient(h, "1.1.1.1")

	err := handleRaw(h, c, func(w *wire.Writer) {
		proto.WritePing(w)
		w.WriteUint8(0xEE)
		proto.WritePing(w)
	})
	require.ErrorIs(t, err, ErrUnknownOpcode)
	require.Equal(t, 1, countOp(records(t, c), proto.OutPong))

	// The connection stays usable.
	send(t, h, c, proto.WritePing)
	require.Equal(t, 1, countOp(records(t, c), proto.OutPong))
}

func TestMalformedRecordAbortsRest(t *testing.T) {
	h, _ := newTestHub(t)
	c := joined(t, h, "1.1.1.1", "r")

	err := handleRaw(h, c, func(w *wire.Writer) {
		proto.WritePing(w)
		w.WriteUint8(proto.OpChat)
		w.WriteVarlong(5)
		w.WriteBytes([]byte("a"))
	})
	require.ErrorIs(t, err, wire.ErrMalformed)
	require.Equal(t, 1, countOp(records(t, c), proto.OutPong))
	require.Empty(t, c.room.pendingChat)
}

func TestPolicyViolationSkipsOnlyThatRecord(t *testing.T) {
	h, _ := newTestHub(t)
	c := joined(t, h, "1.1.1.1", "r")

	send(t, h, c, func(w *wire.Writer) {
		proto.WriteChat(w, strings.Repeat("x", proto.MaxChatLen+1))
		proto.WritePing(w)
		proto.WriteChat(w, strings.Repeat("y", proto.MaxChatLen))
	})
	require.Equal(t, 1, countOp(records(t, c), proto.OutPong))
	require.Len(t, c.room.pendingChat, 1)
}

func TestRecordsRequireHandshake(t *testing.T) {
	h, _ := newTestHub(t)
	c := newTestClient(h, "1.1.1.1")

	send(t, h, c, func(w *wire.Writer) {
		proto.WriteJoin(w, "r", nil)
		proto.WriteChat(w, "hi")
		proto.WriteDirectory(w, proto.DirectorySubscribe)
		proto.WriteHandshake(w, 0)
	})
	require.Nil(t, c.room)
	require.False(t, c.dirSubscribed)
	require.NotNil(t, c.identity)
	require.Empty(t, h.rooms)
}

func TestSecondHandshakeIsIgnored(t *testing.T) {
	h, _ := newTestHub(t)
	c := identified(t, h, "1.1.1.1")
	first := c.identity

	send(t, h, c, func(w *wire.Writer) { proto.WriteHandshake(w, 2) })
	require.Same(t, first, c.identity)
	require.Empty(t, drain(c))
}

func TestJoinRejectsBadRoomIDs(t *testing.T) {
	h, _ := newTestHub(t)
	c := identified(t, h, "1.1.1.1")

	send(t, h, c, func(w *wire.Writer) { proto.WriteJoin(w, "", nil) })
	require.Nil(t, c.room)

	send(t, h, c, func(w *wire.Writer) { proto.WriteJoin(w, strings.Repeat("r", proto.MaxRoomIDLen+1), nil) })
	require.Nil(t, c.room)

	long := strings.Repeat("r", proto.MaxRoomIDLen)
	send(t, h, c, func(w *wire.Writer) { proto.WriteJoin(w, long, nil) })
	require.NotNil(t, c.room)
	require.Equal(t, long, c.room.ID)
}

func TestRejoinSameRoomIsNoop(t *testing.T) {
	h, _ := newTestHub(t)
	c := joined(t, h, "1.1.1.1", "r")
	p := c.participant

	send(t, h, c, func(w *wire.Writer) { proto.WriteJoin(w, "r", nil) })
	require.Same(t, p, c.participant)
	require.Empty(t, drain(c))
}

func TestPositionUpdateBroadcast(t *testing.T) {
	h, _ := newTestHub(t)
	a := joined(t, h, "1.1.1.1", "r")
	b := joined(t, h, "2.2.2.2", "r")
	tick(h)
	drain(b)

	send(t, h, a, func(w *wire.Writer) { proto.WritePosition(w, 300, 400) })
	tick(h)

	rec, ok := findRecord(records(t, b), proto.OutUpdates)
	require.True(t, ok)
	require.Len(t, rec.members, 1)
	m := rec.members[0]
	require.Equal(t, a.participant.ID, m.ID)
	require.Equal(t, &[2]uint16{300, 400}, m.Position)
	require.Nil(t, m.Name)
	require.Nil(t, m.Identity)
}

func TestProfileNameLimit(t *testing.T) {
	h, _ := newTestHub(t)
	c := identified(t, h, "1.1.1.1")

	ok := strings.Repeat("é", proto.MaxNameRunes)
	send(t, h, c, func(w *wire.Writer) { proto.WriteProfile(w, &ok, nil) })
	require.Equal(t, ok, c.identity.Profile.Name)

	tooLong := strings.Repeat("a", proto.MaxNameRunes+1)
	send(t, h, c, func(w *wire.Writer) { proto.WriteProfile(w, &tooLong, nil) })
	require.Equal(t, ok, c.identity.Profile.Name)
}

func TestInvalidUTF8IsReplacedBeforeRelay(t *testing.T) {
	h, _ := newTestHub(t)
	a := joined(t, h, "1.1.1.1", "r")
	b := joined(t, h, "2.2.2.2", "r")
	tick(h)
	drain(a)

	name := "\xc3"
	send(t, h, b, func(w *wire.Writer) {
		proto.WriteProfile(w, &name, nil)
		proto.WriteChat(w, "bad\xff\xfe")
	})
	require.Equal(t, "\uFFFD", b.identity.Profile.Name)
	require.True(t, utf8.ValidString(b.identity.Profile.Name))

	tick(h)
	require.Len(t, a.room.history, 1)
	require.True(t, bytes.HasSuffix(a.room.history[0], []byte("bad\uFFFD")))

	recs := records(t, a)
	chat, ok := findRecord(recs, proto.OutChat)
	require.True(t, ok)
	require.Equal(t, "bad\uFFFD", chat.chat.Text)
	upd, ok := findRecord(recs, proto.OutUpdates)
	require.True(t, ok)
	require.Equal(t, "\uFFFD", *upd.members[0].Name)
}

func TestNameLimitCountsReplacedRunes(t *testing.T) {
	h, _ := newTestHub(t)
	c := identified(t, h, "1.1.1.1")
	before := c.identity.Profile.Name

	// 41 runes once each stray byte becomes U+FFFD.
	tooLong := strings.Repeat("\xffa", proto.MaxNameRunes/2) + "\xff"
	send(t, h, c, func(w *wire.Writer) { proto.WriteProfile(w, &tooLong, nil) })
	require.Equal(t, before, c.identity.Profile.Name)

	ok := strings.Repeat("\xffa", proto.MaxNameRunes/2)
	send(t, h, c, func(w *wire.Writer) { proto.WriteProfile(w, &ok, nil) })
	require.Equal(t, strings.Repeat("\uFFFDa", proto.MaxNameRunes/2), c.identity.Profile.Name)
}

func TestProfileChangeReachesEveryRoom(t *testing.T) {
	h, _ := newTestHub(t)
	a := joined(t, h, "1.1.1.1", "one")
	a2 := joined(t, h, "1.1.1.1", "two")
	watcher1 := joined(t, h, "2.2.2.2", "one")
	watcher2 := joined(t, h, "3.3.3.3", "two")
	tick(h)
	drain(watcher1)
	drain(watcher2)

	name := "alice"
	color := wire.Color(0x123456)
	send(t, h, a, func(w *wire.Writer) { proto.WriteProfile(w, &name, &color) })
	tick(h)

	for _, tc := range []struct {
		watcher *Client
		pid     uint64
	}{
		{watcher1, a.participant.ID},
		{watcher2, a2.participant.ID},
	} {
		rec, ok := findRecord(records(t, tc.watcher), proto.OutUpdates)
		require.True(t, ok)
		require.Len(t, rec.members, 1)
		require.Equal(t, tc.pid, rec.members[0].ID)
		require.Equal(t, name, *rec.members[0].Name)
		require.Equal(t, color, *rec.members[0].Color)
		require.Nil(t, rec.members[0].Position)
	}
}

func TestNotesValidation(t *testing.T) {
	h, _ := newTestHub(t)
	a := joined(t, h, "1.1.1.1", "r")
	b := joined(t, h, "2.2.2.2", "r")
	tick(h)
	drain(b)

	send(t, h, a, func(w *wire.Writer) {
		proto.WriteNotes(w, 7, []proto.Note{{Key: 20, Velocity: 10}})
		proto.WriteNotes(w, 8, []proto.Note{{Key: 60, Velocity: 128}})
		proto.WriteNotes(w, 9, []proto.Note{
			{Key: proto.MinNote, Velocity: proto.MaxVelocity},
			{Key: proto.MaxNote, Velocity: proto.VelocityNoteOff},
		})
	})
	tick(h)

	recs := records(t, b)
	require.Equal(t, 1, countOp(recs, proto.OutNotes))
	rec, _ := findRecord(recs, proto.OutNotes)
	require.Equal(t, a.participant.ID, rec.notesPID)

	w := wire.NewWriter()
	proto.WriteNotes(w, 9, []proto.Note{
		{Key: proto.MinNote, Velocity: proto.MaxVelocity},
		{Key: proto.MaxNote, Velocity: proto.VelocityNoteOff},
	})
	require.Equal(t, w.Bytes()[1:], rec.notes, "payload is relayed verbatim")
}

func TestNotesCountBeyondInputIsMalformed(t *testing.T) {
	h, _ := newTestHub(t)
	c := joined(t, h, "1.1.1.1", "r")

	err := handleRaw(h, c, func(w *wire.Writer) {
		w.WriteUint8(proto.OpNotes)
		w.WriteVarlong(0)
		w.WriteVarlong(3)
		w.WriteBytes([]byte{60, 60, 0})
	})
	require.ErrorIs(t, err, wire.ErrMalformed)
	require.Empty(t, c.room.adhoc)
}

func TestCrownSoloRestrictsNotes(t *testing.T) {
	h, _ := newTestHub(t)
	owner := joined(t, h, "1.1.1.1", "r")
	guest := joined(t, h, "2.2.2.2", "r")
	send(t, h, owner, func(w *wire.Writer) {
		proto.WriteSettingsPatch(w, proto.Patch{Visible: true, Chat: true, CrownSolo: true, Color: plainColor})
	})
	note := []proto.Note{{Key: 60, Velocity: 64}}

	send(t, h, guest, func(w *wire.Writer) { proto.WriteNotes(w, 0, note) })
	require.Empty(t, owner.room.adhoc)

	send(t, h, owner, func(w *wire.Writer) { proto.WriteNotes(w, 0, note) })
	require.Len(t, owner.room.adhoc, 1)
}

func TestMessagesFromUnknownClientAreIgnored(t *testing.T) {
	h, _ := newTestHub(t)
	c := NewClient("ghost", "1.1.1.1", 8)

	w := wire.NewWriter()
	proto.WriteHandshake(w, 0)
	require.NoError(t, h.handle(c, w.Bytes()))
	require.Nil(t, c.identity)
	require.Empty(t, drain(c))
}

func TestSlowConsumerIsKicked(t *testing.T) {
	h, _ := newTestHub(t)
	c := NewClient("slow", "1.1.1.1", 1)
	h.register(c)

	send(t, h, c, func(w *wire.Writer) {
		proto.WritePing(w)
		proto.WritePing(w)
	})
	select {
	case <-c.Done():
	default:
		t.Fatal("client with a full queue was not kicked")
	}
	require.Len(t, drain(c), 1)
}
