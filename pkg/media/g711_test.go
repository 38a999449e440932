package media

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulawRoundTripBounded(t *testing.T) {
	for s := math.MinInt16; s <= math.MaxInt16; s++ {
		sample := int16(s)
		encoded := LinearToMulaw(sample)
		require.NotEqual(t, byte(0x00), encoded, "sample %d", s)

		// шаг квантования сегмента
		exponent := ((^encoded) >> 4) & 0x07
		step := int32(1) << (exponent + 3)

		decoded := MulawToLinear(encoded)
		diff := int32(decoded) - int32(sample)
		if diff < 0 {
			diff = -diff
		}
		if encoded == 0x02 {
			// zero-trap: 0x00 заменен соседним кодом
			continue
		}
		require.LessOrEqual(t, diff, step, "sample %d -> 0x%02x -> %d", s, encoded, decoded)
	}
}

func TestMulawKnownValues(t *testing.T) {
	assert.Equal(t, byte(0xFF), LinearToMulaw(0))
	assert.Equal(t, int16(0), MulawToLinear(0xFF))
	assert.Equal(t, int16(0), MulawToLinear(0x7F))

	// максимальная амплитуда
	assert.Equal(t, byte(0x80), LinearToMulaw(math.MaxInt16))
	assert.Equal(t, int16(32124), MulawToLinear(0x80))
	assert.Equal(t, byte(0x02), LinearToMulaw(math.MinInt16))
	assert.Equal(t, int16(-32124), MulawToLinear(0x00))
}

func TestMulawSymmetry(t *testing.T) {
	for _, s := range []int16{1, 100, 1000, 8000, 20000, 30000} {
		pos := MulawToLinear(LinearToMulaw(s))
		neg := MulawToLinear(LinearToMulaw(-s))
		assert.Equal(t, pos, -neg, "sample %d", s)
	}
}

func TestDecodeMulawDoublesLength(t *testing.T) {
	payload := []byte{0xFF, 0x80, 0x7F, 0x00, 0x42}
	pcm := DecodeMulaw(payload)
	require.Len(t, pcm, len(payload)*2)

	for i, b := range payload {
		got := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		assert.Equal(t, MulawToLinear(b), got)
	}
}

func TestEncodeMulaw(t *testing.T) {
	pcm := make([]byte, 6)
	binary.LittleEndian.PutUint16(pcm[0:], uint16(0))
	binary.LittleEndian.PutUint16(pcm[2:], uint16(math.MaxInt16))
	binary.LittleEndian.PutUint16(pcm[4:], 0xFFFF) // -1

	out := EncodeMulaw(append(pcm, 0x01)) // нечетный байт отбрасывается
	require.Len(t, out, 3)
	assert.Equal(t, []byte{0xFF, 0x80, LinearToMulaw(-1)}, out)
}
