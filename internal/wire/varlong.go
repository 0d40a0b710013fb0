package wire

// MaxVarlongLen is the longest encoding of a uint64.
const MaxVarlongLen = 10

// AppendVarlong appends the minimal base-128 encoding of v to dst.
// Every byte except the last has its high bit set.
func AppendVarlong(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// VarlongLen returns the number of bytes AppendVarlong emits for v.
func VarlongLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		n++
		v >>= 7
	}
	return n
}
