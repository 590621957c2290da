package speech

import "encoding/binary"

// G.711 μ-law codec helpers. Carrier media streams carry 8kHz mono μ-law;
// the speech engines want (and produce) linear PCM.

const muLawBias = 0x84

// DecodeMuLaw expands μ-law samples to 16-bit linear PCM.
func DecodeMuLaw(in []byte) []int16 {
	out := make([]int16, len(in))
	for i, b := range in {
		out[i] = decodeMuLawSample(b)
	}
	return out
}

// EncodeMuLaw compresses 16-bit linear PCM to μ-law.
func EncodeMuLaw(in []int16) []byte {
	out := make([]byte, len(in))
	for i, s := range in {
		out[i] = encodeMuLawSample(s)
	}
	return out
}

func decodeMuLawSample(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F
	sample := (int16(mantissa)<<3 + muLawBias) << exponent
	sample -= muLawBias
	if sign != 0 {
		return -sample
	}
	return sample
}

func encodeMuLawSample(s int16) byte {
	sign := byte(0)
	if s < 0 {
		sign = 0x80
		if s == -32768 {
			s = -32767
		}
		s = -s
	}
	v := int32(s) + muLawBias
	if v > 0x7FFF {
		v = 0x7FFF
	}
	exponent := byte(7)
	for mask := int32(0x4000); exponent > 0 && v&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((v >> (exponent + 3)) & 0x0F)
	return ^(sign | exponent<<4 | mantissa)
}

// wavFromPCM16 wraps little-endian 16-bit mono PCM in a minimal WAV
// container, which is what the transcription API expects as input.
func wavFromPCM16(samples []int16, sampleRate int) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, 44+dataLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(s))
	}
	return buf
}

// downsamplePCM16 reduces the sample rate by an integer factor using
// plain decimation. Good enough for speech headed to an 8kHz trunk.
func downsamplePCM16(in []int16, factor int) []int16 {
	if factor <= 1 {
		return in
	}
	out := make([]int16, 0, len(in)/factor+1)
	for i := 0; i < len(in); i += factor {
		out = append(out, in[i])
	}
	return out
}

// pcm16FromBytes converts little-endian byte pairs to samples.
func pcm16FromBytes(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}
