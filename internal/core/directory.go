package core

import (
	"slices"
	"strings"

	"github.com/vovakirdan/wireroom-server/internal/proto"
	"github.com/vovakirdan/wireroom-server/internal/wire"
)

const directoryTopic = "directory"

// directory tracks which rooms changed since the last tick and caches the
// full listing sent to new subscribers.
type directory struct {
	changed []*Room
	pending map[*Room]struct{}
	removed []string
	cache   []byte
}

func newDirectory() *directory {
	return &directory{pending: make(map[*Room]struct{})}
}

// mark queues a visible room's descriptor for the next incremental frame.
func (d *directory) mark(r *Room) {
	d.cache = nil
	d.removed = slices.DeleteFunc(d.removed, func(id string) bool { return id == r.ID })
	if _, ok := d.pending[r]; ok {
		return
	}
	d.pending[r] = struct{}{}
	d.changed = append(d.changed, r)
}

// hide withdraws a room that was destroyed or made invisible. Subscribers
// are only told about rooms they could have seen.
func (d *directory) hide(r *Room) {
	d.cache = nil
	if _, ok := d.pending[r]; ok {
		delete(d.pending, r)
		d.changed = slices.DeleteFunc(d.changed, func(q *Room) bool { return q == r })
	}
	if r.listed {
		r.listed = false
		d.removed = append(d.removed, r.ID)
	}
}

// flush returns the incremental frame for this tick, or nil.
func (d *directory) flush() []byte {
	if len(d.changed) == 0 && len(d.removed) == 0 {
		return nil
	}
	w := wire.NewWriter()
	w.WriteUint8(proto.OutDirectory)
	w.WriteUint8(proto.DirectoryIncremental)
	w.WriteVarlong(uint64(len(d.changed)))
	for _, r := range d.changed {
		proto.WriteDescriptor(w, r.descriptor())
		r.listed = true
	}
	w.WriteVarlong(uint64(len(d.removed)))
	for _, id := range d.removed {
		w.WriteString(id)
	}

	d.changed = d.changed[:0]
	clear(d.pending)
	d.removed = d.removed[:0]
	return w.Bytes()
}

// full returns the cached listing of every visible room.
func (d *directory) full(rooms map[string]*Room) []byte {
	if d.cache != nil {
		return d.cache
	}
	visible := make([]*Room, 0, len(rooms))
	for _, r := range rooms {
		if r.Settings.Visible {
			visible = append(visible, r)
		}
	}
	slices.SortFunc(visible, func(a, b *Room) int { return strings.Compare(a.ID, b.ID) })

	w := wire.NewWriter()
	w.WriteUint8(proto.OutDirectory)
	w.WriteUint8(proto.DirectoryFull)
	w.WriteVarlong(uint64(len(visible)))
	for _, r := range visible {
		proto.WriteDescriptor(w, r.descriptor())
		r.listed = true
	}
	d.cache = w.Bytes()
	return d.cache
}
