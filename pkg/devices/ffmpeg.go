// Package devices provides the audio devices of a live conversation: the local
// microphone and speaker through ffmpeg and ffplay, and a websocket bridge to
// a browser's devices.
package devices

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/vango-go/vai-studio/pkg/core/audio"
)

// FFmpegMic captures mono s16le audio from the default input device.
type FFmpegMic struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	pcm    *pcmFrameReader
	once   sync.Once
}

// StartFFmpegMic starts capture at rate. goos selects the capture backend.
func StartFFmpegMic(path, goos string, rate int) (*FFmpegMic, error) {
	if path == "" {
		path = "ffmpeg"
	}
	if _, err := exec.LookPath(path); err != nil {
		return nil, errors.New("ffmpeg is required for microphone capture (install ffmpeg and ensure it is in PATH)")
	}
	args, err := MicArgs(goos, rate)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open ffmpeg stdout: %w", err)
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg mic capture: %w", err)
	}
	return &FFmpegMic{cmd: cmd, stdout: stdout, pcm: newPCMFrameReader(stdout)}, nil
}

// MicArgs returns the ffmpeg arguments that capture mono s16le at rate.
func MicArgs(goos string, rate int) ([]string, error) {
	var input []string
	switch goos {
	case "darwin":
		input = []string{"-f", "avfoundation", "-i", ":0"}
	case "linux":
		input = []string{"-f", "pulse", "-i", "default"}
	default:
		return nil, fmt.Errorf("microphone capture is not implemented for %s; supported platforms: darwin, linux", goos)
	}
	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, input...)
	return append(args,
		"-ac", "1", "-ar", strconv.Itoa(rate),
		"-f", "s16le", "-",
	), nil
}

// Read implements live.Microphone.
func (m *FFmpegMic) Read(frame []float32) (int, error) {
	return m.pcm.Read(frame)
}

// Close stops capture. Read returns an error afterwards.
func (m *FFmpegMic) Close() error {
	m.once.Do(func() {
		if m.cmd.Process != nil {
			_ = m.cmd.Process.Kill()
			_ = m.cmd.Wait()
		}
	})
	return nil
}

// pcmFrameReader turns a PCM16 byte stream into float frames.
type pcmFrameReader struct {
	r   io.Reader
	buf []byte
}

func newPCMFrameReader(r io.Reader) *pcmFrameReader {
	return &pcmFrameReader{r: r}
}

// Read fills frame with whole samples. A short final read returns the samples
// it got before the error.
func (p *pcmFrameReader) Read(frame []float32) (int, error) {
	need := len(frame) * 2
	if cap(p.buf) < need {
		p.buf = make([]byte, need)
	}
	buf := p.buf[:need]
	n, err := io.ReadFull(p.r, buf)
	samples := audio.PCM16ToFloat32(buf[:n-n%2])
	copy(frame, samples)
	if err != nil {
		if len(samples) > 0 && errors.Is(err, io.ErrUnexpectedEOF) {
			return len(samples), nil
		}
		return len(samples), err
	}
	return len(samples), nil
}
