package proto

import "github.com/vovakirdan/wireroom-server/internal/wire"

// Settings flag bits shared by the inbound patch and the outbound block.
const (
	settingNonPlain  = 0
	settingVisible   = 1
	settingChat      = 2
	settingCrownSolo = 3
	settingFilter    = 4
	settingColor2    = 5
)

// Settings is a room's user-visible configuration.
type Settings struct {
	NonPlain  bool
	Visible   bool
	Chat      bool
	CrownSolo bool
	Filter    bool
	Color     wire.Color
	Color2    *wire.Color
}

// Patch is the client-supplied part of Settings. A nil Color2 clears the
// secondary color.
type Patch struct {
	Visible   bool
	Chat      bool
	CrownSolo bool
	Filter    bool
	Color     wire.Color
	Color2    *wire.Color
}

// Apply merges p into s. NonPlain is not client-controlled.
func (s *Settings) Apply(p Patch) {
	s.Visible = p.Visible
	s.Chat = p.Chat
	s.CrownSolo = p.CrownSolo
	s.Filter = p.Filter
	s.Color = p.Color
	if p.Color2 != nil {
		c := *p.Color2
		s.Color2 = &c
	} else {
		s.Color2 = nil
	}
}

// ReadPatch decodes a settings patch: flag byte, color, optional color2.
func ReadPatch(r *wire.Reader) (Patch, error) {
	var p Patch
	flags, err := r.ReadUint8()
	if err != nil {
		return p, err
	}
	p.Visible = bit(flags, settingVisible)
	p.Chat = bit(flags, settingChat)
	p.CrownSolo = bit(flags, settingCrownSolo)
	p.Filter = bit(flags, settingFilter)

	if p.Color, err = r.ReadColor(); err != nil {
		return p, err
	}
	if bit(flags, settingColor2) {
		c, err := r.ReadColor()
		if err != nil {
			return p, err
		}
		p.Color2 = &c
	}
	return p, nil
}

// WritePatch encodes p in the layout ReadPatch expects.
func WritePatch(w *wire.Writer, p Patch) {
	var flags byte
	flags |= flag(p.Visible, settingVisible)
	flags |= flag(p.Chat, settingChat)
	flags |= flag(p.CrownSolo, settingCrownSolo)
	flags |= flag(p.Filter, settingFilter)
	flags |= flag(p.Color2 != nil, settingColor2)
	w.WriteUint8(flags)
	w.WriteColor(p.Color)
	if p.Color2 != nil {
		w.WriteColor(*p.Color2)
	}
}

// WriteSettings encodes the outbound settings block.
func WriteSettings(w *wire.Writer, s Settings) {
	var flags byte
	flags |= flag(s.NonPlain, settingNonPlain)
	flags |= flag(s.Visible, settingVisible)
	flags |= flag(s.Chat, settingChat)
	flags |= flag(s.CrownSolo, settingCrownSolo)
	flags |= flag(s.Filter, settingFilter)
	flags |= flag(s.Color2 != nil, settingColor2)
	w.WriteUint8(flags)
	w.WriteColor(s.Color)
	if s.Color2 != nil {
		w.WriteColor(*s.Color2)
	}
}

// ReadSettings decodes the outbound settings block.
func ReadSettings(r *wire.Reader) (Settings, error) {
	var s Settings
	flags, err := r.ReadUint8()
	if err != nil {
		return s, err
	}
	s.NonPlain = bit(flags, settingNonPlain)
	s.Visible = bit(flags, settingVisible)
	s.Chat = bit(flags, settingChat)
	s.CrownSolo = bit(flags, settingCrownSolo)
	s.Filter = bit(flags, settingFilter)
	if s.Color, err = r.ReadColor(); err != nil {
		return s, err
	}
	if bit(flags, settingColor2) {
		c, err := r.ReadColor()
		if err != nil {
			return s, err
		}
		s.Color2 = &c
	}
	return s, nil
}

func bit(b byte, n uint) bool {
	return b>>n&1 == 1
}

func flag(set bool, n uint) byte {
	if set {
		return 1 << n
	}
	return 0
}
