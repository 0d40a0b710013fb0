package core

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wireroom-server/internal/proto"
	"github.com/vovakirdan/wireroom-server/internal/store"
	"github.com/vovakirdan/wireroom-server/internal/store/memory"
	"github.com/vovakirdan/wireroom-server/internal/wire"
)

type runningHub struct {
	*Hub
	clk    *clock.Mock
	cancel context.CancelFunc
	done   chan error
}

func startHub(t *testing.T, profiles store.ProfileStore, tune ...func(*Options)) *runningHub {
	t.Helper()

	clk := clock.NewMock()
	clk.Set(testEpoch)
	opts := DefaultOptions()
	opts.Clock = clk
	opts.IDSalt = "test-salt"
	for _, f := range tune {
		f(&opts)
	}
	h := NewHub(opts, nil, profiles, nil)
	require.NoError(t, h.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()
	rh := &runningHub{Hub: h, clk: clk, cancel: cancel, done: done}
	t.Cleanup(func() { rh.stop(t) })
	return rh
}

func (rh *runningHub) stop(t *testing.T) {
	t.Helper()
	rh.cancel()
	select {
	case err := <-rh.done:
		require.NoError(t, err)
		rh.done <- err
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
}

// sync returns once every op queued before it has run.
func (rh *runningHub) sync(t *testing.T) {
	t.Helper()
	_, err := rh.Rooms(context.Background())
	require.NoError(t, err)
}

func (rh *runningHub) connect(t *testing.T, ip string) *Client {
	t.Helper()
	c := NewClient("client-"+ip, ip, 256)
	require.NoError(t, rh.RegisterClient(c))
	return c
}

func (rh *runningHub) message(t *testing.T, c *Client, build func(w *wire.Writer)) {
	t.Helper()
	w := wire.NewWriter()
	build(w)
	require.NoError(t, rh.HandleMessage(c, w.Bytes()))
}

// mustRecord waits for a record with op on c, discarding anything before it.
func mustRecord(t *testing.T, c *Client, op byte) record {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case frame := <-c.Send():
			for _, rec := range parseFrame(t, frame) {
				if rec.op == op {
					return rec
				}
			}
		case <-deadline:
			t.Fatalf("expected record 0x%02x not received", op)
			return record{}
		}
	}
}

func TestHubChatReachesRoomOnNextTick(t *testing.T) {
	rh := startHub(t, nil)
	a := rh.connect(t, "1.1.1.1")
	b := rh.connect(t, "2.2.2.2")

	for _, c := range []*Client{a, b} {
		rh.message(t, c, func(w *wire.Writer) {
			proto.WriteHandshake(w, 0)
			proto.WriteJoin(w, "r", nil)
		})
	}
	bSelf := mustRecord(t, b, proto.OutSnapshot).snapshot.Self
	mustRecord(t, a, proto.OutSnapshot)

	rh.message(t, b, func(w *wire.Writer) { proto.WriteChat(w, "hi") })
	rh.sync(t)
	rh.clk.Add(rh.opts.TickInterval)

	for _, c := range []*Client{a, b} {
		rec := mustRecord(t, c, proto.OutChat)
		require.Equal(t, bSelf, rec.chat.Participant)
		require.Equal(t, "hi", rec.chat.Text)
		require.Equal(t, uint64(testEpoch.UnixMilli()), rec.chat.TimeMillis)
	}
}

func TestHubRooms(t *testing.T) {
	rh := startHub(t, nil)
	c := rh.connect(t, "1.1.1.1")
	rh.message(t, c, func(w *wire.Writer) {
		proto.WriteHandshake(w, 0)
		proto.WriteJoin(w, "zeta", nil)
		proto.WriteJoin(w, "alpha", nil)
	})
	other := rh.connect(t, "2.2.2.2")
	rh.message(t, other, func(w *wire.Writer) {
		proto.WriteHandshake(w, 0)
		proto.WriteJoin(w, "lobby", nil)
	})

	infos, err := rh.Rooms(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)
	require.Equal(t, "alpha", infos[0].ID)
	require.Equal(t, "plain", infos[0].Kind)
	require.Equal(t, 1, infos[0].Count)
	require.Equal(t, "#3b5054", infos[0].Color)
	require.NotEmpty(t, infos[0].CrownHolder)
	require.False(t, infos[0].CrownDropped)
	require.Equal(t, "lobby", infos[1].ID)
	require.Empty(t, infos[1].CrownHolder)
}

func TestHubLoadRestoresProfiles(t *testing.T) {
	profiles := memory.New()
	id, _ := DeriveIdentity("test-salt", "1.1.1.1", 0, 0)
	require.NoError(t, profiles.PutProfile(context.Background(), store.Profile{
		ID: id, Name: "bob", Color: 0x010203, UpdatedAt: testEpoch,
	}))

	rh := startHub(t, profiles)
	c := rh.connect(t, "1.1.1.1")
	rh.message(t, c, func(w *wire.Writer) { proto.WriteHandshake(w, 0) })

	ack := mustRecord(t, c, proto.OutAck).ack
	require.Equal(t, id, ack.Identity)
	require.Equal(t, "bob", ack.Name)
	require.Equal(t, wire.Color(0x010203), ack.Color)
}

func TestHubSavesProfilesPeriodically(t *testing.T) {
	profiles := memory.New()
	// The mock clock fires every tick it passes; keep them few.
	rh := startHub(t, profiles, func(o *Options) { o.TickInterval = o.SaveInterval })
	c := rh.connect(t, "1.1.1.1")
	name := "alice"
	rh.message(t, c, func(w *wire.Writer) {
		proto.WriteHandshake(w, 0)
		proto.WriteProfile(w, &name, nil)
	})
	rh.sync(t)

	rh.clk.Add(rh.opts.SaveInterval)
	id, _ := DeriveIdentity("test-salt", "1.1.1.1", 0, 0)
	require.Eventually(t, func() bool {
		p, err := profiles.GetProfile(context.Background(), id)
		return err == nil && p.Name == "alice"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubShutdownKicksClientsAndSaves(t *testing.T) {
	profiles := memory.New()
	rh := startHub(t, profiles)
	c := rh.connect(t, "1.1.1.1")
	name := "carol"
	rh.message(t, c, func(w *wire.Writer) {
		proto.WriteHandshake(w, 0)
		proto.WriteProfile(w, &name, nil)
	})
	rh.sync(t)

	rh.stop(t)
	select {
	case <-c.Done():
	default:
		t.Fatal("client was not kicked on shutdown")
	}

	all, err := profiles.ListProfiles(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "carol", all[0].Name)

	require.ErrorIs(t, rh.RegisterClient(NewClient("late", "1.1.1.1", 1)), ErrHubStopped)
}

func TestHubSaveDataDisabled(t *testing.T) {
	profiles := memory.New()
	clk := clock.NewMock()
	clk.Set(testEpoch)
	opts := DefaultOptions()
	opts.Clock = clk
	opts.SaveData = false
	h := NewHub(opts, nil, profiles, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	c := NewClient("c", "1.1.1.1", 16)
	require.NoError(t, h.RegisterClient(c))
	w := wire.NewWriter()
	proto.WriteHandshake(w, 0)
	require.NoError(t, h.HandleMessage(c, w.Bytes()))
	_, err := h.Rooms(context.Background())
	require.NoError(t, err)

	cancel()
	require.NoError(t, <-done)
	all, err := profiles.ListProfiles(context.Background())
	require.NoError(t, err)
	require.Empty(t, all)
}
