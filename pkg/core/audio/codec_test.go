package audio

import (
	"encoding/base64"
	"math"
	"testing"
	"time"
)

func TestFloat32ToPCM16_Saturates(t *testing.T) {
	t.Parallel()

	pcm := Float32ToPCM16([]float32{0, 0.5, -0.5, 1, -1, 2, -2})
	want := []int16{0, 16384, -16384, 32767, -32768, 32767, -32768}
	for i, w := range want {
		got := int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8)
		if got != w {
			t.Fatalf("sample %d = %d, want %d", i, got, w)
		}
	}
}

func TestPCM16RoundTrip(t *testing.T) {
	t.Parallel()

	in := []float32{0, 0.25, -0.25, 0.75, -1}
	out := PCM16ToFloat32(Float32ToPCM16(in))
	if len(out) != len(in) {
		t.Fatalf("len=%d, want %d", len(out), len(in))
	}
	for i := range in {
		if math.Abs(float64(out[i]-in[i])) > 1.0/32768 {
			t.Fatalf("sample %d = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestPCM16ToFloat32_IgnoresOddByte(t *testing.T) {
	if got := len(PCM16ToFloat32([]byte{0, 0, 1})); got != 1 {
		t.Fatalf("len=%d, want 1", got)
	}
}

func TestEncodeBlob(t *testing.T) {
	t.Parallel()

	blob := EncodeBlob(make([]float32, FrameSize), InputSampleRate)
	if blob.MIMEType != "audio/pcm;rate=16000" {
		t.Fatalf("MIMEType=%q, want audio/pcm;rate=16000", blob.MIMEType)
	}
	raw, err := base64.StdEncoding.DecodeString(blob.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(raw) != FrameSize*2 {
		t.Fatalf("len(raw)=%d, want %d", len(raw), FrameSize*2)
	}
}

func TestDecodeBuffer(t *testing.T) {
	t.Parallel()

	data := base64.StdEncoding.EncodeToString(make([]byte, 48000))
	buf, err := DecodeBuffer(data, OutputSampleRate, 1)
	if err != nil {
		t.Fatalf("DecodeBuffer() error = %v", err)
	}
	if buf.Duration() != time.Second {
		t.Fatalf("Duration=%v, want 1s", buf.Duration())
	}
	if _, err := DecodeBuffer("not base64!", OutputSampleRate, 1); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRMS(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
		want    float64
	}{
		{"silence", []float32{0, 0, 0}, 0},
		{"full scale", []float32{1, -1, 1, -1}, 1},
		{"half", []float32{0.5, -0.5}, 0.5},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RMS(tt.samples); math.Abs(got-tt.want) > 0.001 {
				t.Errorf("RMS=%.3f, want %.3f", got, tt.want)
			}
		})
	}
}

func TestBytesToDuration(t *testing.T) {
	if got := BytesToDuration(960, OutputSampleRate); got != 20*time.Millisecond {
		t.Fatalf("BytesToDuration(960)=%v, want 20ms", got)
	}
	if got := BytesToDuration(960, 0); got != 0 {
		t.Fatalf("BytesToDuration with zero rate=%v, want 0", got)
	}
}
