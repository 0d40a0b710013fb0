package wire

import "encoding/binary"

// Writer accumulates encoded chunks and joins them once in Bytes.
// Chunks passed to WriteBytes are retained, not copied.
type Writer struct {
	chunks [][]byte
	size   int
}

// NewWriter returns an empty writer.
func NewWriter() *Writer {
	return &Writer{chunks: make([][]byte, 0, 16)}
}

func (w *Writer) push(b []byte) {
	w.chunks = append(w.chunks, b)
	w.size += len(b)
}

// WriteUint8 appends one byte.
func (w *Writer) WriteUint8(v uint8) {
	w.push([]byte{v})
}

// WriteUint16 appends a little-endian uint16.
func (w *Writer) WriteUint16(v uint16) {
	w.push(binary.LittleEndian.AppendUint16(make([]byte, 0, 2), v))
}

// WriteVarlong appends the minimal varlong encoding of v.
func (w *Writer) WriteVarlong(v uint64) {
	w.push(AppendVarlong(make([]byte, 0, VarlongLen(v)), v))
}

// WriteIdentityID appends the 12 id bytes.
func (w *Writer) WriteIdentityID(id IdentityID) {
	b := make([]byte, IdentityIDLen)
	copy(b, id[:])
	w.push(b)
}

// WriteColor appends the color as R, G, B.
func (w *Writer) WriteColor(c Color) {
	r, g, b := c.RGB()
	w.push([]byte{r, g, b})
}

// WriteString appends a varlong length prefix and the string bytes.
func (w *Writer) WriteString(s string) {
	b := AppendVarlong(make([]byte, 0, VarlongLen(uint64(len(s)))+len(s)), uint64(len(s)))
	w.push(append(b, s...))
}

// WriteBytes appends raw bytes without a length prefix.
func (w *Writer) WriteBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	w.push(b)
}

// Bytes concatenates every chunk in write order.
func (w *Writer) Bytes() []byte {
	out := make([]byte, 0, w.size)
	for _, c := range w.chunks {
		out = append(out, c...)
	}
	return out
}
