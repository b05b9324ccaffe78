package live

import (
	"context"

	"github.com/vango-go/vai-studio/pkg/core/audio"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

// Status is the lifecycle state of a live conversation.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusConnected
	StatusError
	StatusEnded
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	case StatusEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Terminal reports whether the run has finished.
func (s Status) Terminal() bool {
	return s == StatusError || s == StatusEnded
}

// ConnectConfig configures the streaming session.
type ConnectConfig struct {
	Model string

	// InputTranscription and OutputTranscription request transcripts of the
	// user's and the model's speech.
	InputTranscription  bool
	OutputTranscription bool

	// InputSampleRate is the rate of audio sent upstream.
	InputSampleRate int
}

// DefaultConnectConfig returns the native-audio model with both
// transcriptions enabled.
func DefaultConnectConfig() ConnectConfig {
	return ConnectConfig{
		Model:               types.LiveModel,
		InputTranscription:  true,
		OutputTranscription: true,
		InputSampleRate:     audio.InputSampleRate,
	}
}

// ServerMessage is one message of the streaming session.
type ServerMessage struct {
	// Audio holds inline PCM16 parts of the model turn.
	Audio []audio.Blob

	InputTranscript  string
	OutputTranscript string

	TurnComplete bool
	Interrupted  bool
}

// Conn is an open streaming session.
type Conn interface {
	// SendAudio sends one realtime input blob.
	SendAudio(ctx context.Context, blob audio.Blob) error

	// Receive blocks for the next server message. It returns io.EOF once the
	// server closes the session.
	Receive(ctx context.Context) (*ServerMessage, error)

	Close() error
}

// Connector opens streaming sessions.
type Connector interface {
	Connect(ctx context.Context, cfg ConnectConfig) (Conn, error)
}

// Microphone is an open capture device.
type Microphone interface {
	// Read fills frame with mono samples in [-1, 1] and returns the count.
	// It unblocks with an error once Close is called.
	Read(frame []float32) (int, error)
	Close() error
}

// OutputDevice is an open playback context.
type OutputDevice interface {
	audio.Output
	Close() error
}

// Devices opens the audio contexts of a run.
type Devices interface {
	OpenOutput(ctx context.Context, sampleRate int) (OutputDevice, error)
	OpenMicrophone(ctx context.Context, sampleRate int) (Microphone, error)
}

// Recorder observes live runs.
type Recorder interface {
	LiveStatus(status string)
	AudioScheduled(d float64)
}
