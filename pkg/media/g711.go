package media

import "encoding/binary"

// PayloadType тип RTP payload (RFC 3551).
type PayloadType uint8

const (
	// PayloadTypePCMU G.711 μ-law, 8000 Гц
	PayloadTypePCMU PayloadType = 0
)

const (
	mulawBias = 0x84
	mulawClip = 32635
)

// mulawExpLUT таблица сегментов G.711: индекс — старшие биты смещенной амплитуды (sample >> 7).
var mulawExpLUT = buildMulawExpLUT()

// mulawExpTable базовые амплитуды сегментов для декодирования.
var mulawExpTable = [8]int32{0, 132, 396, 924, 1980, 4092, 8316, 16764}

func buildMulawExpLUT() [256]uint8 {
	var lut [256]uint8
	for i := 1; i < 256; i++ {
		exp := uint8(0)
		for v := i >> 1; v > 0; v >>= 1 {
			exp++
		}
		lut[i] = exp
	}
	return lut
}

// LinearToMulaw кодирует один 16-битный линейный отсчет в μ-law (ITU-T G.711).
// Нулевой результат заменяется на 0x02.
func LinearToMulaw(sample int16) byte {
	s := int32(sample)
	sign := int32(0)
	if s < 0 {
		sign = 0x80
		s = -s
	}
	if s > mulawClip {
		s = mulawClip
	}
	s += mulawBias

	exponent := int32(mulawExpLUT[(s>>7)&0xFF])
	mantissa := (s >> (exponent + 3)) & 0x0F
	ulaw := byte(^(sign | exponent<<4 | mantissa))
	if ulaw == 0 {
		ulaw = 0x02
	}
	return ulaw
}

// MulawToLinear декодирует μ-law байт в 16-битный линейный отсчет.
func MulawToLinear(b byte) int16 {
	u := ^b
	sign := u & 0x80
	exponent := (u >> 4) & 0x07
	mantissa := int32(u & 0x0F)

	sample := mulawExpTable[exponent] + mantissa<<(exponent+3)
	if sign != 0 {
		sample = -sample
	}
	return int16(sample)
}

// DecodeMulaw преобразует μ-law payload в PCM16 little-endian. Длина результата равна 2×len(payload).
func DecodeMulaw(payload []byte) []byte {
	out := make([]byte, len(payload)*2)
	for i, b := range payload {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(MulawToLinear(b)))
	}
	return out
}

// EncodeMulaw преобразует PCM16 little-endian в μ-law. Нечетный последний байт отбрасывается.
func EncodeMulaw(pcm []byte) []byte {
	out := make([]byte, len(pcm)/2)
	for i := range out {
		out[i] = LinearToMulaw(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return out
}
