// Package audio implements the narrowband DSP pipeline used by the call
// bridge: G.711 μ-law transcoding, 8k↔24k resampling, and outbound-only
// conditioning. Everything here operates on plain slices and is safe to
// call concurrently on disjoint buffers.
package audio

const (
	// MuLawSilence is the μ-law encoding of a zero sample, used for frame padding.
	MuLawSilence byte = 0xFF

	mulawBias = 0x84
	mulawClip = 32635
)

// EncodeMuLaw converts 16-bit linear PCM to G.711 μ-law, one byte per sample.
func EncodeMuLaw(pcm []int16) []byte {
	out := make([]byte, len(pcm))
	for i, s := range pcm {
		out[i] = linearToMuLaw(s)
	}
	return out
}

// DecodeMuLaw converts G.711 μ-law bytes back to 16-bit linear PCM.
func DecodeMuLaw(data []byte) []int16 {
	out := make([]int16, len(data))
	for i, b := range data {
		out[i] = muLawToLinear(b)
	}
	return out
}

func linearToMuLaw(sample int16) byte {
	var sign byte
	s := int(sample)
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > mulawClip {
		s = mulawClip
	}
	s += mulawBias

	// Segment is the position of the highest set bit above the mantissa.
	exponent := 7
	for mask := 0x4000; exponent > 0 && s&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := (s >> (exponent + 3)) & 0x0F
	return ^(sign | byte(exponent)<<4 | byte(mantissa))
}

func muLawToLinear(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F

	value := (int(mantissa) << 3) + mulawBias
	value <<= exponent
	value -= mulawBias
	if sign != 0 {
		value = -value
	}
	return int16(value)
}
