package audio

import "encoding/binary"

// PCMToBytes serializes 16-bit samples as little-endian bytes, the layout
// both transports use on the wire.
func PCMToBytes(pcm []int16) []byte {
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToPCM parses little-endian 16-bit samples. A trailing odd byte is
// dropped.
func BytesToPCM(data []byte) []int16 {
	n := len(data) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}
