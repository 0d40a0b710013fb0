package wire

import (
	"encoding/hex"
	"fmt"
)

// IdentityIDLen is the on-wire width of an identity id.
const IdentityIDLen = 12

// IdentityID is the stable opaque identifier of a user.
type IdentityID [IdentityIDLen]byte

// String returns the lowercase hex form used in logs and storage.
func (id IdentityID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero value.
func (id IdentityID) IsZero() bool {
	return id == IdentityID{}
}

// ParseIdentityID decodes the hex form produced by String.
func ParseIdentityID(s string) (IdentityID, error) {
	var id IdentityID
	if len(s) != IdentityIDLen*2 {
		return id, fmt.Errorf("identity id %q: want %d hex chars", s, IdentityIDLen*2)
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("identity id %q: %w", s, err)
	}
	return id, nil
}

// ColorLen is the on-wire width of a color.
const ColorLen = 3

// Color is a 24-bit RGB value stored as 0xRRGGBB.
type Color uint32

// RGB splits the color into its channels.
func (c Color) RGB() (r, g, b byte) {
	return byte(c >> 16), byte(c >> 8), byte(c)
}

// String returns the "#rrggbb" form.
func (c Color) String() string {
	return fmt.Sprintf("#%06x", uint32(c)&0xFFFFFF)
}
