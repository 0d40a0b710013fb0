package wire

import (
	"errors"
	"strings"
)

// ErrMalformed is returned by every Reader method when the input is
// truncated or structurally invalid.
var ErrMalformed = errors.New("wire: malformed input")

// Reader decodes values from a byte slice. The zero value is an empty reader.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the current cursor.
func (r *Reader) Pos() int {
	return r.pos
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// EOF reports whether every byte has been consumed.
func (r *Reader) EOF() bool {
	return r.pos >= len(r.buf)
}

// Slice returns the bytes between from and the cursor. The result aliases
// the reader's buffer.
func (r *Reader) Slice(from int) []byte {
	if from < 0 || from > r.pos {
		return nil
	}
	return r.buf[from:r.pos]
}

func (r *Reader) need(n int) error {
	if n < 0 || r.pos+n > len(r.buf) {
		return ErrMalformed
	}
	return nil
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

// ReadUint8 reads one byte.
func (r *Reader) ReadUint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// ReadUint16 reads a little-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := uint16(r.buf[r.pos]) | uint16(r.buf[r.pos+1])<<8
	r.pos += 2
	return v, nil
}

// ReadVarlong reads a base-128 little-endian unsigned integer. The cursor
// is left untouched when the encoding is truncated or overflows 64 bits.
func (r *Reader) ReadVarlong() (uint64, error) {
	var v uint64
	var shift uint
	pos := r.pos
	for {
		if pos >= len(r.buf) {
			return 0, ErrMalformed
		}
		b := r.buf[pos]
		pos++
		if shift == 63 && b > 1 {
			return 0, ErrMalformed
		}
		v |= uint64(b&0x7F) << shift
		if b < 0x80 {
			r.pos = pos
			return v, nil
		}
		shift += 7
		if shift > 63 {
			return 0, ErrMalformed
		}
	}
}

// ReadIdentityID reads a fixed-width identity id.
func (r *Reader) ReadIdentityID() (IdentityID, error) {
	var id IdentityID
	if err := r.need(IdentityIDLen); err != nil {
		return id, err
	}
	copy(id[:], r.buf[r.pos:r.pos+IdentityIDLen])
	r.pos += IdentityIDLen
	return id, nil
}

// ReadColor reads three bytes in R, G, B order.
func (r *Reader) ReadColor() (Color, error) {
	if err := r.need(ColorLen); err != nil {
		return 0, err
	}
	c := Color(r.buf[r.pos])<<16 | Color(r.buf[r.pos+1])<<8 | Color(r.buf[r.pos+2])
	r.pos += ColorLen
	return c, nil
}

// ReadString reads a varlong length followed by that many bytes. Invalid
// UTF-8 sequences are replaced with U+FFFD, so the result may be longer than
// the encoded length.
func (r *Reader) ReadString() (string, error) {
	start := r.pos
	n, err := r.ReadVarlong()
	if err != nil {
		return "", err
	}
	if n > uint64(r.Remaining()) {
		r.pos = start
		return "", ErrMalformed
	}
	s := strings.ToValidUTF8(string(r.buf[r.pos:r.pos+int(n)]), "\uFFFD")
	r.pos += int(n)
	return s, nil
}

// ReadBytes reads exactly n raw bytes. The result aliases the buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadBitflag returns bit number bit of the current byte without advancing.
// Several flags can be read from the same byte before Skip(1) consumes it.
func (r *Reader) ReadBitflag(bit uint) (bool, error) {
	if err := r.need(1); err != nil {
		return false, err
	}
	return r.buf[r.pos]>>bit&1 == 1, nil
}
