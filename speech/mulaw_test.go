package speech

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestMuLawRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 100, -100, 1000, -1000, 8000, -8000, 30000, -30000, 32767, -32768}
	decoded := DecodeMuLaw(EncodeMuLaw(samples))
	if len(decoded) != len(samples) {
		t.Fatalf("length %d, want %d", len(decoded), len(samples))
	}
	for i, want := range samples {
		got := decoded[i]
		// μ-law is lossy; error grows with amplitude but stays within one
		// quantization step of the matching segment.
		diff := int(got) - int(want)
		if diff < 0 {
			diff = -diff
		}
		limit := 64 + abs(int(want))/16
		if diff > limit {
			t.Errorf("sample %d: %d -> %d (diff %d > %d)", i, want, got, diff, limit)
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestMuLawSilence(t *testing.T) {
	// Encoded zero must decode back to exactly zero.
	if got := decodeMuLawSample(encodeMuLawSample(0)); got != 0 {
		t.Fatalf("silence round trip = %d, want 0", got)
	}
}

func TestMuLawSignPreserved(t *testing.T) {
	for _, s := range []int16{500, 5000, 20000} {
		if got := decodeMuLawSample(encodeMuLawSample(s)); got <= 0 {
			t.Errorf("positive %d decoded to %d", s, got)
		}
		if got := decodeMuLawSample(encodeMuLawSample(-s)); got >= 0 {
			t.Errorf("negative %d decoded to %d", -s, got)
		}
	}
}

func TestWavHeader(t *testing.T) {
	samples := []int16{1, 2, 3, 4}
	wav := wavFromPCM16(samples, 8000)

	if len(wav) != 44+len(samples)*2 {
		t.Fatalf("wav length %d, want %d", len(wav), 44+len(samples)*2)
	}
	if !bytes.Equal(wav[0:4], []byte("RIFF")) || !bytes.Equal(wav[8:12], []byte("WAVE")) {
		t.Fatal("missing RIFF/WAVE markers")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 8000 {
		t.Fatalf("sample rate %d, want 8000", rate)
	}
	if dataLen := binary.LittleEndian.Uint32(wav[40:44]); dataLen != 8 {
		t.Fatalf("data length %d, want 8", dataLen)
	}
	if got := pcm16FromBytes(wav[44:]); got[0] != 1 || got[3] != 4 {
		t.Fatalf("payload = %v", got)
	}
}

func TestDownsample(t *testing.T) {
	in := []int16{0, 1, 2, 3, 4, 5, 6, 7, 8}
	got := downsamplePCM16(in, 3)
	want := []int16{0, 3, 6}
	if len(got) != len(want) {
		t.Fatalf("length %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	// Factor 1 passes through untouched.
	if out := downsamplePCM16(in, 1); len(out) != len(in) {
		t.Fatalf("factor 1 changed length: %d", len(out))
	}
}

func TestPCM16FromBytesDropsOddTail(t *testing.T) {
	got := pcm16FromBytes([]byte{0x01, 0x00, 0x02, 0x00, 0xFF})
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("got %v", got)
	}
}
