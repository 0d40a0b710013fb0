package core

import (
	"slices"
	"time"

	"github.com/vovakirdan/wireroom-server/internal/proto"
	"github.com/vovakirdan/wireroom-server/internal/wire"
)

// HistoryLimit is the number of chat entries a room replays to new members.
const HistoryLimit = 32

// Default room colors.
const (
	plainColor     wire.Color = 0x3b5054
	nonPlainColor  wire.Color = 0x73b3cc
	nonPlainColor2 wire.Color = 0x273546
)

// Room owns membership, settings, the crown, chat history and the bans of
// one named room, plus everything queued for its next tick frame.
type Room struct {
	ID       string
	Kind     RoomKind
	Settings proto.Settings
	Crown    *Crown // nil unless plain

	hub        *Hub
	topic      string
	byIdentity map[wire.IdentityID]*Participant
	byID       map[uint64]*Participant
	history    [][]byte
	bans       map[wire.IdentityID]time.Time // nil unless plain
	listed     bool

	// Pending for the next tick.
	updates         []*Participant
	queued          map[*Participant]struct{}
	adhoc           [][]byte
	removals        []uint64
	pendingChat     [][]byte
	settingsChanged bool
	crownChanged    bool
}

// newRoom builds a room. patch only applies to plain rooms.
func newRoom(h *Hub, id string, patch *proto.Patch, creator wire.IdentityID) *Room {
	r := &Room{
		ID:         id,
		Kind:       kindOf(id),
		hub:        h,
		topic:      roomTopic(id),
		byIdentity: make(map[wire.IdentityID]*Participant),
		byID:       make(map[uint64]*Participant),
		queued:     make(map[*Participant]struct{}),
	}
	if r.Kind != KindPlain {
		c2 := nonPlainColor2
		r.Settings = proto.Settings{
			NonPlain: true,
			Visible:  true,
			Chat:     true,
			Color:    nonPlainColor,
			Color2:   &c2,
		}
		return r
	}

	r.Settings = proto.Settings{Visible: true, Chat: true, Color: plainColor}
	if patch != nil {
		r.Settings.Apply(*patch)
	}
	r.Crown = newCrown(creator, h.clock.Now())
	r.bans = make(map[wire.IdentityID]time.Time)
	return r
}

func roomTopic(id string) string {
	return "r/" + id
}

// Plain reports whether the room has a crown and a ban list.
func (r *Room) Plain() bool {
	return r.Kind == KindPlain
}

// Count returns the number of participants.
func (r *Room) Count() int {
	return len(r.byIdentity)
}

// Participant looks up a member by participant id.
func (r *Room) Participant(id uint64) (*Participant, bool) {
	p, ok := r.byID[id]
	return p, ok
}

func (r *Room) isFull() bool {
	return r.Kind == KindLobby && len(r.byIdentity) >= lobbyCapacity
}

// isOwner reports whether p currently holds the crown.
func (r *Room) isOwner(p *Participant) bool {
	return r.Crown != nil && !r.Crown.Dropped() && r.Crown.HolderID == p.ID
}

func (r *Room) descriptor() proto.Descriptor {
	d := proto.Descriptor{
		ID:       r.ID,
		Count:    uint64(len(r.byIdentity)),
		Settings: r.Settings,
	}
	if r.Crown != nil {
		c := r.Crown.block()
		d.Crown = &c
	}
	return d
}

// getOrCreateParticipant returns ident's participant, creating it when the
// identity is not yet present.
func (r *Room) getOrCreateParticipant(ident *Identity) *Participant {
	if p, ok := r.byIdentity[ident.ID]; ok {
		return p
	}
	p := newParticipant(r.hub.nextParticipantID(), r, ident)
	r.byIdentity[ident.ID] = p
	r.byID[p.ID] = p
	ident.participants[p] = struct{}{}
	r.participantUpdated(p)

	if r.Crown != nil && r.Crown.Dropped() && r.Crown.Holder == ident.ID {
		// The first member already learns about the crown from its snapshot.
		r.giveCrown(p, len(r.byIdentity) == 1)
	}
	r.touchDirectory()
	return p
}

// removeParticipant unregisters p, drops the crown if p held it, and
// reports whether the room is now empty.
func (r *Room) removeParticipant(p *Participant) (empty bool) {
	delete(r.byIdentity, p.identity.ID)
	delete(r.byID, p.ID)
	delete(p.identity.participants, p)
	r.removals = append(r.removals, p.ID)
	if _, ok := r.queued[p]; ok {
		delete(r.queued, p)
		r.updates = slices.DeleteFunc(r.updates, func(q *Participant) bool { return q == p })
	}

	if r.isOwner(p) {
		r.dropCrown(p)
	}
	if len(r.byIdentity) == 0 {
		return true
	}
	r.touchDirectory()
	return false
}

func (r *Room) participantUpdated(p *Participant) {
	if _, ok := r.queued[p]; ok {
		return
	}
	r.queued[p] = struct{}{}
	r.updates = append(r.updates, p)
}

// queue appends a pre-encoded frame fragment to the next tick.
func (r *Room) queue(frame []byte) {
	r.adhoc = append(r.adhoc, frame)
}

func (r *Room) sendChat(p *Participant, text string, now time.Time) {
	entry := proto.AppendChatEntry(nil, proto.ChatEntry{
		Participant: p.ID,
		TimeMillis:  uint64(now.UnixMilli()),
		Text:        text,
	})
	frame := make([]byte, 0, 1+len(entry))
	frame = append(frame, proto.OutChat)
	frame = append(frame, entry...)
	r.queue(frame)
	r.pendingChat = append(r.pendingChat, entry)
}

func (r *Room) sendNotes(p *Participant, payload []byte) {
	frame := make([]byte, 0, 1+wire.MaxVarlongLen+len(payload))
	frame = append(frame, proto.OutNotes)
	frame = wire.AppendVarlong(frame, p.ID)
	frame = append(frame, payload...)
	r.queue(frame)
}

// setSettings merges patch and schedules a settings block.
func (r *Room) setSettings(patch proto.Patch) {
	r.Settings.Apply(patch)
	r.settingsChanged = true
	r.touchDirectory()
}

// giveCrown hands the crown to p. silent skips the crown block broadcast.
func (r *Room) giveCrown(p *Participant, silent bool) {
	r.Crown.give(p)
	if silent {
		return
	}
	r.crownChanged = true
	r.touchDirectory()
}

func (r *Room) dropCrown(p *Participant) {
	r.Crown.drop(p, r.hub.clock.Now(), r.hub.rng.Float64())
	r.crownChanged = true
	r.touchDirectory()
}

// touchDirectory reports the room's descriptor as changed, or as gone when
// it is hidden.
func (r *Room) touchDirectory() {
	if r.Settings.Visible {
		r.hub.dir.mark(r)
	} else {
		r.hub.dir.hide(r)
	}
}

// pending reports whether the next tick has anything to send.
func (r *Room) pending() bool {
	return len(r.updates) > 0 || len(r.adhoc) > 0 || len(r.removals) > 0 ||
		r.settingsChanged || r.crownChanged
}

// flush builds this tick's frame and resets the pending state. It returns
// nil when nothing changed.
func (r *Room) flush() []byte {
	if !r.pending() {
		return nil
	}
	w := wire.NewWriter()

	if len(r.updates) > 0 {
		w.WriteUint8(proto.OutUpdates)
		w.WriteVarlong(uint64(len(r.updates)))
		for _, p := range r.updates {
			p.EncodeUpdate(w)
		}
		r.updates = r.updates[:0]
		clear(r.queued)
	}

	for _, frame := range r.adhoc {
		w.WriteBytes(frame)
	}
	r.adhoc = nil

	if len(r.removals) > 0 {
		w.WriteUint8(proto.OutRemovals)
		w.WriteVarlong(uint64(len(r.removals)))
		for _, id := range r.removals {
			w.WriteVarlong(id)
		}
		r.removals = r.removals[:0]
	}

	r.appendHistory()

	if r.crownChanged {
		w.WriteUint8(proto.OutCrown)
		proto.WriteCrown(w, r.Crown.block())
		r.crownChanged = false
	}
	if r.settingsChanged {
		w.WriteUint8(proto.OutSettings)
		proto.WriteSettings(w, r.Settings)
		r.settingsChanged = false
	}
	return w.Bytes()
}

// appendHistory moves this tick's chat entries into the history, keeping
// only the newest HistoryLimit.
func (r *Room) appendHistory() {
	if len(r.pendingChat) == 0 {
		return
	}
	if len(r.pendingChat) >= HistoryLimit {
		r.history = slices.Clone(r.pendingChat[len(r.pendingChat)-HistoryLimit:])
	} else {
		if excess := len(r.history) + len(r.pendingChat) - HistoryLimit; excess > 0 {
			r.history = slices.Delete(r.history, 0, excess)
		}
		r.history = append(r.history, r.pendingChat...)
	}
	r.pendingChat = nil
}

// snapshot encodes the join frame for self.
func (r *Room) snapshot(self *Participant) []byte {
	w := wire.NewWriter()
	w.WriteUint8(proto.OutSnapshot)
	proto.WriteDescriptor(w, r.descriptor())
	w.WriteVarlong(self.ID)

	members := make([]*Participant, 0, len(r.byID))
	for _, p := range r.byID {
		members = append(members, p)
	}
	slices.SortFunc(members, func(a, b *Participant) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	w.WriteVarlong(uint64(len(members)))
	for _, p := range members {
		p.EncodeFull(w)
	}

	w.WriteVarlong(uint64(len(r.history)))
	for _, entry := range r.history {
		w.WriteBytes(entry)
	}
	return w.Bytes()
}

// IsBanned returns the remaining ban time for id. Expired bans are swept
// when a lookup misses.
func (r *Room) IsBanned(id wire.IdentityID) (time.Duration, bool) {
	if r.bans == nil {
		return 0, false
	}
	now := r.hub.clock.Now()
	if until, ok := r.bans[id]; ok && until.After(now) {
		return until.Sub(now), true
	}
	for bid, until := range r.bans {
		if !until.After(now) {
			delete(r.bans, bid)
		}
	}
	return 0, false
}

// ban records a ban for target, moves every connection of target in this
// room to the fallback room, and tells the room.
func (r *Room) ban(banner *Identity, target wire.IdentityID, d time.Duration) {
	r.bans[target] = r.hub.clock.Now().Add(d)
	millis := uint64(d.Milliseconds())

	if p, ok := r.byIdentity[target]; ok {
		notice := proto.EncodeYouWereBanned(millis, r.ID)
		clients := make([]*Client, 0, len(p.clients))
		for c := range p.clients {
			clients = append(clients, c)
		}
		for _, c := range clients {
			c.Deliver(notice)
			r.hub.moveToFallback(c)
		}
	}
	r.queue(proto.EncodeTargetBanned(banner.ID, target, millis))
}

func (r *Room) unban(target wire.IdentityID) {
	delete(r.bans, target)
}
