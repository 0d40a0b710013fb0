package core

import (
	"context"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vovakirdan/wireroom-server/internal/metrics"
	"github.com/vovakirdan/wireroom-server/internal/proto"
	"github.com/vovakirdan/wireroom-server/internal/pubsub"
	"github.com/vovakirdan/wireroom-server/internal/store"
)

const (
	tracerName  = "github.com/vovakirdan/wireroom-server/internal/core"
	saveTimeout = 30 * time.Second
)

// Options tune the hub. Zero values fall back to DefaultOptions.
type Options struct {
	TickInterval  time.Duration
	SaveInterval  time.Duration
	SaveData      bool
	FallbackRoom  string
	IDSalt        string
	CustomIDLimit int
	RandomIDs     bool

	Clock   clock.Clock
	Metrics *metrics.Metrics
}

// DefaultOptions returns the production tick and save cadence.
func DefaultOptions() Options {
	return Options{
		TickInterval: 50 * time.Millisecond,
		SaveInterval: 5 * time.Minute,
		SaveData:     true,
		FallbackRoom: "test/awkward",
	}
}

// Hub owns every room, identity and participant. All state is touched only
// by the goroutine running Run; other goroutines talk to it through ops.
type Hub struct {
	opts    Options
	log     *zerolog.Logger
	clock   clock.Clock
	broker  *pubsub.Broker
	store   store.ProfileStore
	metrics *metrics.Metrics
	tracer  trace.Tracer

	ops     chan func()
	stopped chan struct{}

	registry *Registry
	rooms    map[string]*Room
	clients  map[*Client]struct{}
	dir      *directory
	lastPID  uint64
	rng      *rand.Rand
}

// NewHub creates a hub publishing through broker. profiles may be nil, in
// which case nothing is loaded or saved.
func NewHub(opts Options, broker *pubsub.Broker, profiles store.ProfileStore, logger *zerolog.Logger) *Hub {
	def := DefaultOptions()
	if opts.TickInterval <= 0 {
		opts.TickInterval = def.TickInterval
	}
	if opts.SaveInterval <= 0 {
		opts.SaveInterval = def.SaveInterval
	}
	if opts.FallbackRoom == "" {
		opts.FallbackRoom = def.FallbackRoom
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if broker == nil {
		broker = pubsub.NewBroker()
	}
	seed := uint64(opts.Clock.Now().UnixNano())

	return &Hub{
		opts:     opts,
		log:      logger,
		clock:    opts.Clock,
		broker:   broker,
		store:    profiles,
		metrics:  opts.Metrics,
		tracer:   otel.Tracer(tracerName),
		ops:      make(chan func()),
		stopped:  make(chan struct{}),
		registry: NewRegistry(opts.Clock.Now),
		rooms:    make(map[string]*Room),
		clients:  make(map[*Client]struct{}),
		dir:      newDirectory(),
		rng:      rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

// Load preloads every stored profile. Call it before Run.
func (h *Hub) Load(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	profiles, err := h.store.ListProfiles(ctx)
	if err != nil {
		return err
	}
	h.registry.Load(profiles)
	h.log.Info().Int("profiles", len(profiles)).Msg("profiles loaded")
	return nil
}

// Run processes ops, ticks and profile saves until ctx is cancelled. On
// return every client has been kicked and dirty profiles have been saved.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.stopped)

	tick := h.clock.Ticker(h.opts.TickInterval)
	defer tick.Stop()

	var (
		saveC     <-chan time.Time
		saves     chan []store.Profile
		saverDone chan struct{}
	)
	if h.store != nil && h.opts.SaveData {
		save := h.clock.Ticker(h.opts.SaveInterval)
		defer save.Stop()
		saveC = save.C
		saves = make(chan []store.Profile, 1)
		saverDone = make(chan struct{})
		go h.saver(saves, saverDone)
	}

	h.log.Info().Dur("tick", h.opts.TickInterval).Msg("hub started")
	for {
		select {
		case op := <-h.ops:
			op()
		case <-tick.C:
			h.tick(ctx)
		case <-saveC:
			if batch := h.registry.DrainDirty(); len(batch) > 0 {
				select {
				case saves <- batch:
				default:
					// Saver still busy; keep the batch for the next interval.
					h.registry.markDirty(batch)
				}
			}
		case <-ctx.Done():
			for c := range h.clients {
				c.Kick()
			}
			if saves != nil {
				if batch := h.registry.DrainDirty(); len(batch) > 0 {
					saves <- batch
				}
				close(saves)
				<-saverDone
			}
			h.log.Info().Msg("hub stopped")
			return nil
		}
	}
}

func (h *Hub) saver(saves <-chan []store.Profile, done chan<- struct{}) {
	defer close(done)
	for batch := range saves {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		err := h.store.PutProfiles(ctx, batch)
		cancel()
		if err != nil {
			h.log.Error().Err(err).Int("profiles", len(batch)).Msg("failed to save profiles")
			continue
		}
		h.log.Debug().Int("profiles", len(batch)).Msg("profiles saved")
	}
}

// do runs op on the hub goroutine and waits until it has been accepted.
func (h *Hub) do(ctx context.Context, op func()) error {
	select {
	case h.ops <- op:
		return nil
	case <-h.stopped:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterClient makes c known to the hub.
func (h *Hub) RegisterClient(c *Client) error {
	return h.do(context.Background(), func() { h.register(c) })
}

// UnregisterClient tears down everything c was part of.
func (h *Hub) UnregisterClient(c *Client) error {
	return h.do(context.Background(), func() { h.unregister(c) })
}

// HandleMessage queues one inbound binary message from c.
func (h *Hub) HandleMessage(c *Client, msg []byte) error {
	return h.do(context.Background(), func() { _ = h.handle(c, msg) })
}

// RoomInfo is the JSON view of a visible room.
type RoomInfo struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	Count        int    `json:"count"`
	Chat         bool   `json:"chat"`
	Color        string `json:"color"`
	CrownHolder  string `json:"crown_holder,omitempty"`
	CrownDropped bool   `json:"crown_dropped,omitempty"`
}

// Rooms lists the visible rooms ordered by id.
func (h *Hub) Rooms(ctx context.Context) ([]RoomInfo, error) {
	result := make(chan []RoomInfo, 1)
	if err := h.do(ctx, func() { result <- h.roomInfos() }); err != nil {
		return nil, err
	}
	select {
	case infos := <-result:
		return infos, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) roomInfos() []RoomInfo {
	infos := make([]RoomInfo, 0, len(h.rooms))
	for _, r := range h.rooms {
		if !r.Settings.Visible {
			continue
		}
		info := RoomInfo{
			ID:    r.ID,
			Kind:  r.Kind.String(),
			Count: r.Count(),
			Chat:  r.Settings.Chat,
			Color: r.Settings.Color.String(),
		}
		if r.Crown != nil {
			info.CrownHolder = r.Crown.Holder.String()
			info.CrownDropped = r.Crown.Dropped()
		}
		infos = append(infos, info)
	}
	slices.SortFunc(infos, func(a, b RoomInfo) int { return strings.Compare(a.ID, b.ID) })
	return infos
}

func (h *Hub) register(c *Client) {
	c.metrics = h.metrics
	h.clients[c] = struct{}{}
	h.log.Debug().Str("client_id", c.ID).Str("ip", c.IP).Msg("client registered")
}

func (h *Hub) unregister(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	if c.room != nil {
		h.leaveRoom(c)
	}
	h.broker.UnsubscribeAll(c)
	c.dirSubscribed = false
	if c.identity != nil {
		h.registry.removeClient(c.identity, c)
		c.identity = nil
	}
	delete(h.clients, c)
	h.log.Debug().Str("client_id", c.ID).Msg("client unregistered")
}

func (h *Hub) nextParticipantID() uint64 {
	h.lastPID++
	return h.lastPID
}

func (h *Hub) nowMillis() uint64 {
	return uint64(h.clock.Now().UnixMilli())
}

func (h *Hub) getOrCreateRoom(id string, patch *proto.Patch, creator *Identity) *Room {
	if r, ok := h.rooms[id]; ok {
		return r
	}
	r := newRoom(h, id, patch, creator.ID)
	h.rooms[id] = r
	h.log.Debug().Str("room", id).Str("kind", r.Kind.String()).Msg("room created")
	return r
}

func (h *Hub) destroyRoom(r *Room) {
	delete(h.rooms, r.ID)
	h.dir.hide(r)
	h.log.Debug().Str("room", r.ID).Msg("room destroyed")
}

// join moves c into room id, redirecting away from full lobbies and rooms
// that ban c's identity.
func (h *Hub) join(c *Client, id string, patch *proto.Patch) {
	ident := c.identity
	// Each redirect lands on an existing full lobby or a new room, so the
	// number of live rooms bounds the walk.
	for attempts := len(h.rooms) + 2; attempts > 0; attempts-- {
		r := h.getOrCreateRoom(id, patch, ident)
		switch r.Kind {
		case KindLobby:
			if _, present := r.byIdentity[ident.ID]; r.isFull() && !present {
				id = nextLobby(id)
				patch = nil
				continue
			}
		case KindPlain:
			if remaining, banned := r.IsBanned(ident.ID); banned {
				c.Deliver(proto.EncodeBannedFromRoom(uint64(remaining.Milliseconds()), r.ID))
				h.moveToFallback(c)
				return
			}
		}
		h.setRoom(c, r)
		return
	}
	h.log.Warn().Str("client_id", c.ID).Str("room", id).Msg("no lobby with free space")
}

// setRoom leaves the current room, if any, and enters r.
func (h *Hub) setRoom(c *Client, r *Room) {
	if c.room == r {
		return
	}
	if c.room != nil {
		h.leaveRoom(c)
	}
	p := r.getOrCreateParticipant(c.identity)
	p.clients[c] = struct{}{}
	c.room = r
	c.participant = p
	h.broker.Subscribe(c, r.topic)
	c.Deliver(r.snapshot(p))
}

func (h *Hub) leaveRoom(c *Client) {
	r, p := c.room, c.participant
	h.broker.Unsubscribe(c, r.topic)
	c.room, c.participant = nil, nil

	delete(p.clients, c)
	if len(p.clients) > 0 {
		return
	}
	if empty := r.removeParticipant(p); empty {
		h.destroyRoom(r)
	}
}

func (h *Hub) moveToFallback(c *Client) {
	h.setRoom(c, h.getOrCreateRoom(h.opts.FallbackRoom, nil, c.identity))
}

func (h *Hub) publish(topic string, frame []byte) {
	h.broker.Publish(topic, frame)
	h.metrics.Published(len(frame))
}

// tick flushes every room, then the directory.
func (h *Hub) tick(ctx context.Context) {
	started := time.Now()
	_, span := h.tracer.Start(ctx, "hub.tick")
	defer span.End()

	frames := 0
	for _, r := range h.rooms {
		if frame := r.flush(); frame != nil {
			h.publish(r.topic, frame)
			frames++
		}
	}
	if frame := h.dir.flush(); frame != nil {
		h.publish(directoryTopic, frame)
		frames++
	}

	span.SetAttributes(
		attribute.Int("rooms", len(h.rooms)),
		attribute.Int("frames", frames),
	)
	h.metrics.ObserveTick(time.Since(started))
	h.metrics.SetRooms(len(h.rooms))
	h.metrics.SetClients(len(h.clients))
	h.metrics.SetIdentities(h.registry.LiveCount())
}
