// Package wire implements the binary encoding shared by every inbound and
// outbound frame: unsigned bytes, little-endian uint16, base-128 varlongs,
// fixed 12-byte identity ids, 3-byte RGB colors and varlong-prefixed UTF-8
// strings.
//
// A Reader never panics on hostile input. Any read past the end of the
// buffer returns ErrMalformed and the caller is expected to discard the
// rest of the message.
package wire
