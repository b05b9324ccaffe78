package live

import (
	"strings"

	"github.com/vango-go/vai-studio/pkg/core/audio"
)

// handleMessage applies one server message: transcripts accumulate until the
// turn completes, audio is scheduled gaplessly and an interruption drops all
// queued playback.
func (c *Controller) handleMessage(r *run, msg *ServerMessage) {
	if msg.InputTranscript != "" {
		r.input.WriteString(msg.InputTranscript)
	}
	if msg.OutputTranscript != "" {
		r.output.WriteString(msg.OutputTranscript)
	}
	if msg.TurnComplete {
		c.flushTranscripts(r)
	}

	for _, blob := range msg.Audio {
		buf, err := audio.DecodeBuffer(blob.Data, audio.OutputSampleRate, 1)
		if err != nil {
			r.logger.Warn("dropping undecodable audio", "error", err)
			continue
		}
		if buf.Frames() == 0 {
			continue
		}
		if _, err := r.sched.Schedule(buf); err != nil {
			r.logger.Warn("failed to schedule audio", "error", err)
			continue
		}
		if c.recorder != nil {
			c.recorder.AudioScheduled(buf.Duration().Seconds())
		}
	}

	if msg.Interrupted {
		r.sched.Interrupt()
		r.logger.Debug("playback interrupted by user speech")
		c.emit(&InterruptedUpdate{})
	}
}

// flushTranscripts records both accumulated utterances and resets them.
func (c *Controller) flushTranscripts(r *run) {
	var flushed []Transcript
	if text := strings.TrimSpace(r.input.String()); text != "" {
		flushed = append(flushed, Transcript{Speaker: SpeakerUser, Text: text})
	}
	if text := strings.TrimSpace(r.output.String()); text != "" {
		flushed = append(flushed, Transcript{Speaker: SpeakerModel, Text: text})
	}
	r.input.Reset()
	r.output.Reset()
	if len(flushed) == 0 {
		return
	}

	c.mu.Lock()
	if c.run == r {
		c.transcripts = append(c.transcripts, flushed...)
	}
	c.mu.Unlock()
	for _, t := range flushed {
		c.emit(&TranscriptUpdate{Transcript: t})
	}
}
