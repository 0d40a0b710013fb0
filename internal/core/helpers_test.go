package core

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wireroom-server/internal/proto"
	"github.com/vovakirdan/wireroom-server/internal/pubsub"
	"github.com/vovakirdan/wireroom-server/internal/wire"
)

var testEpoch = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

// newTestHub returns a hub that is driven synchronously: tests call
// handle and tick directly instead of running the loop.
func newTestHub(t *testing.T) (*Hub, *clock.Mock) {
	t.Helper()

	clk := clock.NewMock()
	clk.Set(testEpoch)
	opts := DefaultOptions()
	opts.Clock = clk
	opts.IDSalt = "test-salt"
	opts.CustomIDLimit = 4
	return NewHub(opts, pubsub.NewBroker(), nil, nil), clk
}

func newTestClient(h *Hub, ip string) *Client {
	c := NewClient("client-"+ip, ip, 256)
	h.register(c)
	return c
}

func send(t *testing.T, h *Hub, c *Client, build func(w *wire.Writer)) {
	t.Helper()

	w := wire.NewWriter()
	build(w)
	require.NoError(t, h.handle(c, w.Bytes()))
}

// identified registers a client and completes the handshake.
func identified(t *testing.T, h *Hub, ip string) *Client {
	t.Helper()

	c := newTestClient(h, ip)
	send(t, h, c, func(w *wire.Writer) { proto.WriteHandshake(w, 0) })
	require.NotNil(t, c.identity)
	drain(c)
	return c
}

// joined returns an identified client that has entered room.
func joined(t *testing.T, h *Hub, ip, room string) *Client {
	t.Helper()

	c := identified(t, h, ip)
	send(t, h, c, func(w *wire.Writer) { proto.WriteJoin(w, room, nil) })
	require.NotNil(t, c.room)
	drain(c)
	return c
}

func drain(c *Client) [][]byte {
	var frames [][]byte
	for {
		select {
		case f := <-c.send:
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func tick(h *Hub) {
	h.tick(context.Background())
}

// record is one decoded outbound record.
type record struct {
	op       byte
	ack      proto.Ack
	snapshot proto.Snapshot
	members  []proto.Member
	removed  []uint64
	dir      proto.Directory
	notice   byte
	millis   uint64
	roomID   string
	chat     proto.ChatEntry
	notesPID uint64
	notes    []byte
	settings proto.Settings
	crown    proto.CrownBlock
}

// parseFrame splits one outbound frame into its records.
func parseFrame(t *testing.T, frame []byte) []record {
	t.Helper()

	decoded, err := proto.DecodeFrame(frame)
	require.NoError(t, err)

	out := make([]record, 0, len(decoded))
	for _, d := range decoded {
		rec := record{
			op:       d.Op,
			ack:      d.Ack,
			snapshot: d.Snapshot,
			members:  d.Members,
			removed:  d.Removed,
			dir:      d.Directory,
			notice:   d.Notice.Kind,
			millis:   d.Notice.Millis,
			roomID:   d.Notice.Room,
			chat:     d.Chat,
			notesPID: d.Notes.Participant,
			notes:    d.Notes.Payload,
			settings: d.Settings,
			crown:    d.Crown,
		}
		if d.Op == proto.OutPong {
			rec.millis = d.PongMillis
		}
		out = append(out, rec)
	}
	return out
}

// records decodes every queued frame for c.
func records(t *testing.T, c *Client) []record {
	t.Helper()

	var out []record
	for _, f := range drain(c) {
		out = append(out, parseFrame(t, f)...)
	}
	return out
}

func findRecord(recs []record, op byte) (record, bool) {
	for _, rec := range recs {
		if rec.op == op {
			return rec, true
		}
	}
	return record{}, false
}

func opcodes(recs []record) []byte {
	ops := make([]byte, 0, len(recs))
	for _, rec := range recs {
		ops = append(ops, rec.op)
	}
	return ops
}
