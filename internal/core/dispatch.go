package core

import (
	"bytes"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/vovakirdan/wireroom-server/internal/proto"
	"github.com/vovakirdan/wireroom-server/internal/wire"
)

// handlerFunc decodes one record body from r and applies it. A *CoreError
// skips the record; any other error abandons the rest of the message.
type handlerFunc func(h *Hub, c *Client, r *wire.Reader) error

var handlers = [proto.InboundOpcodes]handlerFunc{
	proto.OpHandshake: (*Hub).handleHandshake,
	proto.OpJoin:      (*Hub).handleJoin,
	proto.OpPing:      (*Hub).handlePing,
	proto.OpChat:      (*Hub).handleChat,
	proto.OpNotes:     (*Hub).handleNotes,
	proto.OpPosition:  (*Hub).handlePosition,
	proto.OpProfile:   (*Hub).handleProfile,
	proto.OpCrown:     (*Hub).handleCrown,
	proto.OpSettings:  (*Hub).handleSettings,
	proto.OpBan:       (*Hub).handleBan,
	proto.OpUnban:     (*Hub).handleUnban,
	proto.OpDirectory: (*Hub).handleDirectory,
}

// handle runs every record of one inbound message in order.
func (h *Hub) handle(c *Client, msg []byte) error {
	if _, ok := h.clients[c]; !ok {
		return nil
	}
	h.metrics.InboundFrame()

	r := wire.NewReader(msg)
	for !r.EOF() {
		op, _ := r.ReadUint8()
		if int(op) >= len(handlers) || handlers[op] == nil {
			h.metrics.MalformedFrame()
			h.log.Debug().Str("client_id", c.ID).Uint8("op", op).Msg("unknown opcode")
			return ErrUnknownOpcode
		}
		err := handlers[op](h, c, r)
		if err == nil {
			continue
		}
		var ce *CoreError
		if errors.As(err, &ce) {
			h.metrics.PolicyViolation(ce.Code)
			h.log.Debug().Str("client_id", c.ID).Uint8("op", op).Str("code", ce.Code).Msg(ce.Message)
			continue
		}
		h.metrics.MalformedFrame()
		h.log.Debug().Err(err).Str("client_id", c.ID).Uint8("op", op).Int("pos", r.Pos()).Msg("malformed message")
		return err
	}
	return nil
}

func requireIdentity(c *Client) error {
	if c.identity == nil {
		return coreError(ErrCodeNotIdentified, "handshake required")
	}
	return nil
}

func requireRoom(c *Client) error {
	if c.room == nil {
		return coreError(ErrCodeNotInRoom, "not in a room")
	}
	return nil
}

func requirePlain(c *Client) error {
	if err := requireRoom(c); err != nil {
		return err
	}
	if !c.room.Plain() {
		return coreError(ErrCodeNotPlainRoom, "room has no crown")
	}
	return nil
}

func requireOwner(c *Client) error {
	if err := requirePlain(c); err != nil {
		return err
	}
	if !c.room.isOwner(c.participant) {
		return coreError(ErrCodeNotCrownHolder, "crown required")
	}
	return nil
}

func (h *Hub) handleHandshake(c *Client, r *wire.Reader) error {
	slot, err := r.ReadVarlong()
	if err != nil {
		return err
	}
	if c.identity != nil {
		return coreError(ErrCodeAlreadyIdentified, "handshake already done")
	}

	var (
		id    wire.IdentityID
		color wire.Color
	)
	if h.opts.RandomIDs {
		id, color = RandomIdentity()
	} else {
		id, color = DeriveIdentity(h.opts.IDSalt, c.IP, slot, h.opts.CustomIDLimit)
	}
	ident := h.registry.GetOrCreate(id, color)
	h.registry.addClient(ident, c)
	c.identity = ident

	c.Deliver(proto.EncodeAck(proto.Ack{
		TimeMillis: h.nowMillis(),
		Identity:   ident.ID,
		Name:       ident.Profile.Name,
		Color:      ident.Profile.Color,
	}))
	h.log.Debug().Str("client_id", c.ID).Str("identity", id.String()).Msg("handshake")
	return nil
}

func (h *Hub) handleJoin(c *Client, r *wire.Reader) error {
	id, err := r.ReadString()
	if err != nil {
		return err
	}
	hasPatch, err := r.ReadBitflag(0)
	if err != nil {
		return err
	}
	if err := r.Skip(1); err != nil {
		return err
	}
	var patch *proto.Patch
	if hasPatch {
		p, err := proto.ReadPatch(r)
		if err != nil {
			return err
		}
		patch = &p
	}

	if err := requireIdentity(c); err != nil {
		return err
	}
	if id == "" || len(id) > proto.MaxRoomIDLen {
		return coreError(ErrCodeBadRoomID, "room id must be 1-512 bytes")
	}
	h.join(c, id, patch)
	return nil
}

func (h *Hub) handlePing(c *Client, _ *wire.Reader) error {
	c.Deliver(proto.EncodePong(h.nowMillis()))
	return nil
}

func (h *Hub) handleChat(c *Client, r *wire.Reader) error {
	text, err := r.ReadString()
	if err != nil {
		return err
	}
	if err := requireRoom(c); err != nil {
		return err
	}
	if len(text) > proto.MaxChatLen {
		return coreError(ErrCodeTextTooLong, "chat message too long")
	}
	c.room.sendChat(c.participant, text, h.clock.Now())
	return nil
}

func (h *Hub) handleNotes(c *Client, r *wire.Reader) error {
	start := r.Pos()
	if _, err := r.ReadVarlong(); err != nil {
		return err
	}
	count, err := r.ReadVarlong()
	if err != nil {
		return err
	}
	if count > uint64(r.Remaining()/proto.NoteLen) {
		return wire.ErrMalformed
	}
	valid := true
	for range count {
		note, _ := r.ReadBytes(proto.NoteLen)
		key, velocity := note[0], note[1]
		if key < proto.MinNote || key > proto.MaxNote {
			valid = false
		}
		if velocity > proto.MaxVelocity && velocity != proto.VelocityNoteOff {
			valid = false
		}
	}
	payload := bytes.Clone(r.Slice(start))

	if err := requireRoom(c); err != nil {
		return err
	}
	if c.room.Settings.CrownSolo && !c.room.isOwner(c.participant) {
		return coreError(ErrCodeNotCrownHolder, "only the crown holder may play here")
	}
	if !valid {
		return coreError(ErrCodeNoteRange, "note or velocity out of range")
	}
	c.room.sendNotes(c.participant, payload)
	return nil
}

func (h *Hub) handlePosition(c *Client, r *wire.Reader) error {
	x, err := r.ReadUint16()
	if err != nil {
		return err
	}
	y, err := r.ReadUint16()
	if err != nil {
		return err
	}
	if err := requireRoom(c); err != nil {
		return err
	}
	c.participant.setPosition(x, y)
	return nil
}

func (h *Hub) handleProfile(c *Client, r *wire.Reader) error {
	hasName, err := r.ReadBitflag(0)
	if err != nil {
		return err
	}
	hasColor, err := r.ReadBitflag(1)
	if err != nil {
		return err
	}
	if err := r.Skip(1); err != nil {
		return err
	}
	var (
		name  *string
		color *wire.Color
	)
	if hasName {
		s, err := r.ReadString()
		if err != nil {
			return err
		}
		name = &s
	}
	if hasColor {
		col, err := r.ReadColor()
		if err != nil {
			return err
		}
		color = &col
	}

	if err := requireIdentity(c); err != nil {
		return err
	}
	if name != nil && utf8.RuneCountInString(*name) > proto.MaxNameRunes {
		return coreError(ErrCodeNameTooLong, "name too long")
	}
	h.registry.SetProfile(c.identity, name, color)
	return nil
}

func (h *Hub) handleCrown(c *Client, r *wire.Reader) error {
	kind, err := r.ReadUint8()
	if err != nil {
		return err
	}
	var targetID uint64
	if kind == proto.CrownTarget {
		if targetID, err = r.ReadVarlong(); err != nil {
			return err
		}
	}

	if err := requirePlain(c); err != nil {
		return err
	}
	room, self := c.room, c.participant

	if kind == proto.CrownDrop {
		if !room.isOwner(self) {
			return coreError(ErrCodeNotCrownHolder, "only the holder can drop the crown")
		}
		room.dropCrown(self)
		return nil
	}

	target := self
	if kind == proto.CrownTarget {
		p, ok := room.Participant(targetID)
		if !ok {
			return coreError(ErrCodeUnknownTarget, "no such participant")
		}
		target = p
	}
	ok, err := room.Crown.canGive(self, target, h.clock.Now())
	if err != nil || !ok {
		return err
	}
	room.giveCrown(target, false)
	return nil
}

func (h *Hub) handleSettings(c *Client, r *wire.Reader) error {
	patch, err := proto.ReadPatch(r)
	if err != nil {
		return err
	}
	if err := requireOwner(c); err != nil {
		return err
	}
	c.room.setSettings(patch)
	return nil
}

func (h *Hub) handleBan(c *Client, r *wire.Reader) error {
	target, err := r.ReadIdentityID()
	if err != nil {
		return err
	}
	millis, err := r.ReadVarlong()
	if err != nil {
		return err
	}

	if err := requireOwner(c); err != nil {
		return err
	}
	if millis > proto.MaxBanMillis {
		return coreError(ErrCodeBanDuration, "ban longer than one hour")
	}
	if _, known := h.registry.Profile(target); !known {
		return coreError(ErrCodeUnknownTarget, "no such identity")
	}
	if _, banned := c.room.IsBanned(target); banned {
		return coreError(ErrCodeAlreadyBanned, "identity is already banned")
	}
	c.room.ban(c.identity, target, time.Duration(millis)*time.Millisecond)
	return nil
}

func (h *Hub) handleUnban(c *Client, r *wire.Reader) error {
	target, err := r.ReadIdentityID()
	if err != nil {
		return err
	}
	if err := requireOwner(c); err != nil {
		return err
	}
	c.room.unban(target)
	return nil
}

func (h *Hub) handleDirectory(c *Client, r *wire.Reader) error {
	sub, err := r.ReadUint8()
	if err != nil {
		return err
	}
	if err := requireIdentity(c); err != nil {
		return err
	}
	switch sub {
	case proto.DirectorySubscribe:
		if c.dirSubscribed {
			return nil
		}
		c.dirSubscribed = true
		h.broker.Subscribe(c, directoryTopic)
		c.Deliver(h.dir.full(h.rooms))
	case proto.DirectoryUnsubscribe:
		if !c.dirSubscribed {
			return nil
		}
		c.dirSubscribed = false
		h.broker.Unsubscribe(c, directoryTopic)
	}
	return nil
}
