package core

import (
	"crypto/rand"
	"crypto/sha256"
	"strconv"
	"time"

	"github.com/vovakirdan/wireroom-server/internal/store"
	"github.com/vovakirdan/wireroom-server/internal/wire"
)

// Identity is a live user: a profile plus every connection and room
// presence currently attached to it.
type Identity struct {
	ID      wire.IdentityID
	Profile *store.Profile

	clients      map[*Client]struct{}
	participants map[*Participant]struct{}
}

// DeriveIdentity hashes the salt, address and optional slot into an
// identity id and default color. The slot only counts when limit > 1 and
// 0 < slot <= limit.
func DeriveIdentity(salt, ip string, slot uint64, limit int) (wire.IdentityID, wire.Color) {
	input := salt + "-" + ip
	if limit > 1 && slot > 0 && slot <= uint64(limit) {
		input += "-" + strconv.FormatUint(slot, 10)
	}
	sum := sha256.Sum256([]byte(input))
	return splitDigest(sum[:])
}

// RandomIdentity returns an id and color drawn from crypto/rand.
func RandomIdentity() (wire.IdentityID, wire.Color) {
	var buf [wire.IdentityIDLen + wire.ColorLen]byte
	_, _ = rand.Read(buf[:])
	return splitDigest(buf[:])
}

func splitDigest(b []byte) (wire.IdentityID, wire.Color) {
	var id wire.IdentityID
	copy(id[:], b[:wire.IdentityIDLen])
	c := b[wire.IdentityIDLen:]
	return id, wire.Color(c[0])<<16 | wire.Color(c[1])<<8 | wire.Color(c[2])
}

// Registry owns every profile ever seen and the identities that are live.
// Profiles outlive identities; changed profiles are collected by
// DrainDirty for persistence.
type Registry struct {
	profiles map[wire.IdentityID]*store.Profile
	live     map[wire.IdentityID]*Identity
	dirty    map[wire.IdentityID]struct{}
	now      func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry(now func() time.Time) *Registry {
	return &Registry{
		profiles: make(map[wire.IdentityID]*store.Profile),
		live:     make(map[wire.IdentityID]*Identity),
		dirty:    make(map[wire.IdentityID]struct{}),
		now:      now,
	}
}

// Load seeds the registry with stored profiles.
func (reg *Registry) Load(profiles []store.Profile) {
	for i := range profiles {
		p := profiles[i]
		reg.profiles[p.ID] = &p
	}
}

// Profile returns the known profile for id.
func (reg *Registry) Profile(id wire.IdentityID) (*store.Profile, bool) {
	p, ok := reg.profiles[id]
	return p, ok
}

// LiveCount returns the number of live identities.
func (reg *Registry) LiveCount() int {
	return len(reg.live)
}

// GetOrCreate returns the live identity for id, creating it (and a default
// profile with color when none exists) if needed.
func (reg *Registry) GetOrCreate(id wire.IdentityID, color wire.Color) *Identity {
	if ident, ok := reg.live[id]; ok {
		return ident
	}
	profile, ok := reg.profiles[id]
	if !ok {
		profile = &store.Profile{ID: id, Name: store.DefaultName, Color: color, UpdatedAt: reg.now()}
		reg.profiles[id] = profile
		reg.dirty[id] = struct{}{}
	}
	ident := &Identity{
		ID:           id,
		Profile:      profile,
		clients:      make(map[*Client]struct{}),
		participants: make(map[*Participant]struct{}),
	}
	reg.live[id] = ident
	return ident
}

func (reg *Registry) addClient(ident *Identity, c *Client) {
	ident.clients[c] = struct{}{}
}

// removeClient detaches c and destroys the identity with its last client.
func (reg *Registry) removeClient(ident *Identity, c *Client) {
	delete(ident.clients, c)
	if len(ident.clients) == 0 {
		delete(reg.live, ident.ID)
	}
}

// SetProfile applies the non-nil fields and reports which ones changed.
// Every participant of the identity is flagged accordingly.
func (reg *Registry) SetProfile(ident *Identity, name *string, color *wire.Color) (nameChanged, colorChanged bool) {
	p := ident.Profile
	if name != nil && *name != p.Name {
		p.Name = *name
		nameChanged = true
	}
	if color != nil && *color != p.Color {
		p.Color = *color
		colorChanged = true
	}
	if !nameChanged && !colorChanged {
		return false, false
	}
	p.UpdatedAt = reg.now()
	reg.dirty[ident.ID] = struct{}{}
	for part := range ident.participants {
		part.profileChanged(nameChanged, colorChanged)
	}
	return nameChanged, colorChanged
}

// DrainDirty returns copies of every changed profile and clears the set.
func (reg *Registry) DrainDirty() []store.Profile {
	if len(reg.dirty) == 0 {
		return nil
	}
	out := make([]store.Profile, 0, len(reg.dirty))
	for id := range reg.dirty {
		if p, ok := reg.profiles[id]; ok {
			out = append(out, *p)
		}
	}
	clear(reg.dirty)
	return out
}

func (reg *Registry) markDirty(profiles []store.Profile) {
	for _, p := range profiles {
		reg.dirty[p.ID] = struct{}{}
	}
}
