package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	id := IdentityID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

	w := NewWriter()
	w.WriteUint8(0x07)
	w.WriteUint16(0xBEEF)
	w.WriteVarlong(300)
	w.WriteIdentityID(id)
	w.WriteColor(0x3b5054)
	w.WriteString("héllo")
	w.WriteBytes([]byte{0xAA, 0xBB})
	w.WriteBytes(nil)

	buf := w.Bytes()

	r := NewReader(buf)
	op, err := r.ReadUint8()
	require.NoError(t, err)
	require.Equal(t, uint8(0x07), op)

	u16, err := r.ReadUint16()
	require.NoError(t, err)
	require.Equal(t, uint16(0xBEEF), u16)

	v, err := r.ReadVarlong()
	require.NoError(t, err)
	require.Equal(t, uint64(300), v)

	gotID, err := r.ReadIdentityID()
	require.NoError(t, err)
	require.Equal(t, id, gotID)

	c, err := r.ReadColor()
	require.NoError(t, err)
	require.Equal(t, Color(0x3b5054), c)

	s, err := r.ReadString()
	require.NoError(t, err)
	require.Equal(t, "héllo", s)

	raw, err := r.ReadBytes(2)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xBB}, raw)
	require.True(t, r.EOF())
}

func TestUint16IsLittleEndian(t *testing.T) {
	w := NewWriter()
	w.WriteUint16(0x0102)
	require.Equal(t, []byte{0x02, 0x01}, w.Bytes())
}

func TestColorIsBigEndianChannels(t *testing.T) {
	w := NewWriter()
	w.WriteColor(0x112233)
	require.Equal(t, []byte{0x11, 0x22, 0x33}, w.Bytes())
}

func TestReaderBoundsLeaveCursor(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		read func(r *Reader) error
	}{
		{"uint8", nil, func(r *Reader) error { _, err := r.ReadUint8(); return err }},
		{"uint16", []byte{1}, func(r *Reader) error { _, err := r.ReadUint16(); return err }},
		{"identity", make([]byte, IdentityIDLen-1), func(r *Reader) error { _, err := r.ReadIdentityID(); return err }},
		{"color", []byte{1, 2}, func(r *Reader) error { _, err := r.ReadColor(); return err }},
		{"string", []byte{5, 'a', 'b'}, func(r *Reader) error { _, err := r.ReadString(); return err }},
		{"bytes", []byte{1, 2, 3}, func(r *Reader) error { _, err := r.ReadBytes(4); return err }},
		{"negative", []byte{1}, func(r *Reader) error { _, err := r.ReadBytes(-1); return err }},
		{"skip", []byte{1}, func(r *Reader) error { return r.Skip(2) }},
		{"bitflag", nil, func(r *Reader) error { _, err := r.ReadBitflag(0); return err }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewReader(tc.buf)
			require.ErrorIs(t, tc.read(r), ErrMalformed)
			require.Equal(t, 0, r.Pos())
		})
	}
}

func TestBitflagsShareLeadingByte(t *testing.T) {
	r := NewReader([]byte{0b0010_0101, 0xFF})

	for bit, want := range []bool{true, false, true, false, false, true, false, false} {
		got, err := r.ReadBitflag(uint(bit))
		require.NoError(t, err)
		require.Equal(t, want, got, "bit %d", bit)
	}
	require.Equal(t, 0, r.Pos())

	require.NoError(t, r.Skip(1))
	b, err := r.ReadUint8()
	require.NoError(t, err)
	require.Equal(t, uint8(0xFF), b)
}

func TestSliceReturnsConsumedRange(t *testing.T) {
	r := NewReader([]byte{9, 1, 2, 3})
	require.NoError(t, r.Skip(1))
	start := r.Pos()
	_, err := r.ReadBytes(3)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, r.Slice(start))
	require.Nil(t, r.Slice(10))
}

func TestIdentityIDHex(t *testing.T) {
	id := IdentityID{0xAB, 0xCD}
	s := id.String()
	require.Equal(t, "abcd"+strings.Repeat("0", 20), s)

	back, err := ParseIdentityID(s)
	require.NoError(t, err)
	require.Equal(t, id, back)

	_, err = ParseIdentityID("abc")
	require.Error(t, err)
	require.True(t, IdentityID{}.IsZero())
}

func TestColorString(t *testing.T) {
	require.Equal(t, "#73b3cc", Color(0x73b3cc).String())
	require.Equal(t, "#000001", Color(1).String())
}

func TestReadStringRepairsInvalidUTF8(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"valid", "héllo", "héllo"},
		{"stray_bytes", "bad\xff\xfe", "bad\uFFFD"},
		{"truncated_rune", "\xc3", "\uFFFD"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := NewWriter()
			w.WriteString(tc.in)
			w.WriteUint8(0x2A)

			r := NewReader(w.Bytes())
			s, err := r.ReadString()
			require.NoError(t, err)
			require.Equal(t, tc.want, s)

			// The cursor advances by the encoded length, not the repaired one.
			next, err := r.ReadUint8()
			require.NoError(t, err)
			require.Equal(t, uint8(0x2A), next)
		})
	}
}
