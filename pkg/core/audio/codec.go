// Package audio converts between float samples and the 16-bit PCM wire format
// and schedules decoded buffers for gapless playback.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Wire rates are fixed by the live API.
const (
	InputSampleRate  = 16000
	OutputSampleRate = 24000

	// FrameSize is the number of samples captured per realtime-input message.
	FrameSize = 4096

	bytesPerSample = 2
)

// Blob is a base64 framed chunk of audio as it travels over the wire.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// PCMMIMEType returns the mime tag for raw 16-bit PCM at rate.
func PCMMIMEType(rate int) string {
	return fmt.Sprintf("audio/pcm;rate=%d", rate)
}

// Float32ToPCM16 converts samples in [-1, 1] to little-endian signed 16-bit PCM.
// Out-of-range samples saturate.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		v := float64(s) * 32768
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(int16(v)))
	}
	return out
}

// PCM16ToFloat32 converts little-endian signed 16-bit PCM to float samples.
// A trailing odd byte is ignored.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / bytesPerSample
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*bytesPerSample:]))
		out[i] = float32(sample) / 32768.0
	}
	return out
}

// EncodeBlob frames captured samples for a realtime-input message.
func EncodeBlob(samples []float32, rate int) Blob {
	return Blob{
		MIMEType: PCMMIMEType(rate),
		Data:     base64.StdEncoding.EncodeToString(Float32ToPCM16(samples)),
	}
}

// Buffer is decoded audio ready to be scheduled.
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// DecodeBuffer decodes base64 PCM16 into a buffer at rate with the given
// channel count.
func DecodeBuffer(data string, rate, channels int) (Buffer, error) {
	if rate <= 0 {
		return Buffer{}, fmt.Errorf("invalid sample rate %d", rate)
	}
	if channels <= 0 {
		channels = 1
	}
	pcm, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return Buffer{}, fmt.Errorf("decode audio: %w", err)
	}
	return Buffer{Samples: PCM16ToFloat32(pcm), SampleRate: rate, Channels: channels}, nil
}

// Frames returns the number of sample frames.
func (b Buffer) Frames() int {
	if b.Channels <= 1 {
		return len(b.Samples)
	}
	return len(b.Samples) / b.Channels
}

// Duration is the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// PCM16 re-encodes the buffer for byte-oriented sinks.
func (b Buffer) PCM16() []byte {
	return Float32ToPCM16(b.Samples)
}

// RMS is the root-mean-square level of samples in [0, 1].
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// BytesToDuration returns the playback length of n bytes of mono PCM16 at rate.
func BytesToDuration(n int, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(n/bytesPerSample) * time.Second / time.Duration(rate)
}
