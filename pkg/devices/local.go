package devices

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/vango-go/vai-studio/pkg/core/audio"
	"github.com/vango-go/vai-studio/pkg/core/live"
)

var _ live.Devices = Local{}

// Local opens this machine's microphone through ffmpeg and its speaker
// through ffplay.
type Local struct {
	FFmpegPath string
	FFplayPath string
	Logger     *slog.Logger
}

// OpenMicrophone implements live.Devices.
func (l Local) OpenMicrophone(ctx context.Context, sampleRate int) (live.Microphone, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mic, err := StartFFmpegMic(l.FFmpegPath, runtime.GOOS, sampleRate)
	if err != nil {
		return nil, err
	}
	l.logger().Debug("microphone opened", "sample_rate", sampleRate)
	return mic, nil
}

// OpenOutput implements live.Devices.
func (l Local) OpenOutput(ctx context.Context, sampleRate int) (live.OutputDevice, error) {
	out, err := l.OpenSpeaker(ctx, sampleRate)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// OpenSpeaker opens a clocked output context over ffplay.
func (l Local) OpenSpeaker(ctx context.Context, sampleRate int) (*audio.TimedOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sink, err := NewFFplaySink(l.FFplayPath, sampleRate)
	if err != nil {
		return nil, err
	}
	l.logger().Debug("speaker opened", "sample_rate", sampleRate)
	return audio.NewTimedOutput(sink), nil
}

func (l Local) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}
