package wire

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVarlongRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value uint64
		bytes int
	}{
		{"zero", 0, 1},
		{"max_1byte", 127, 1},
		{"min_2byte", 128, 2},
		{"max_2byte", 16383, 2},
		{"min_3byte", 16384, 3},
		{"millis", 1_760_000_000_000, 6},
		{"max_safe", 1<<53 - 1, 8},
		{"max_uint64", ^uint64(0), 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			enc := AppendVarlong(nil, tc.value)
			require.Len(t, enc, tc.bytes)
			require.Equal(t, tc.bytes, VarlongLen(tc.value))

			got, err := NewReader(enc).ReadVarlong()
			require.NoError(t, err)
			require.Equal(t, tc.value, got)
		})
	}
}

func TestVarlongMinimalEncoding(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 10_000 {
		v := rng.Uint64N(1 << 53)
		enc := AppendVarlong(nil, v)

		for i, b := range enc {
			last := i == len(enc)-1
			require.Equal(t, !last, b&0x80 != 0, "continuation bit at byte %d of %x", i, enc)
		}
		if len(enc) > 1 {
			require.NotZero(t, enc[len(enc)-1], "trailing zero group makes %x non-minimal", enc)
		}

		r := NewReader(enc)
		got, err := r.ReadVarlong()
		require.NoError(t, err)
		require.Equal(t, v, got)
		require.True(t, r.EOF())
	}
}

func TestVarlongTruncated(t *testing.T) {
	r := NewReader([]byte{0x80, 0x80})
	_, err := r.ReadVarlong()
	require.ErrorIs(t, err, ErrMalformed)
	require.Equal(t, 0, r.Pos(), "failed read must not move the cursor")
}

func TestVarlongOverflow(t *testing.T) {
	enc := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x02}
	_, err := NewReader(enc).ReadVarlong()
	require.ErrorIs(t, err, ErrMalformed)

	enc = []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	_, err = NewReader(enc).ReadVarlong()
	require.ErrorIs(t, err, ErrMalformed)
}

func FuzzReadVarlong(f *testing.F) {
	f.Add([]byte{0x00})
	f.Add([]byte{0x80, 0x01})
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01})

	f.Fuzz(func(t *testing.T, data []byte) {
		r := NewReader(data)
		v, err := r.ReadVarlong()
		if err != nil {
			return
		}
		if got := AppendVarlong(nil, v); len(got) > r.Pos() {
			t.Fatalf("decoded %d from %d bytes but minimal encoding is %d bytes", v, r.Pos(), len(got))
		}
	})
}
