package devices

import (
	"encoding/json"
	"fmt"
)

// Frame types sent to the browser.
const (
	FrameStatus     = "status"
	FrameTranscript = "transcript"
	FrameAudio      = "audio"
	FrameStop       = "stop"
	FrameLevel      = "level"
	FrameDrained    = "drained"
	FrameError      = "error"
)

// Control types sent by the browser.
const (
	ControlStart = "start"
	ControlStop  = "stop"
)

// StatusFrame reports the live status.
type StatusFrame struct {
	Type   string `json:"type"`
	RunID  string `json:"run_id,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// TranscriptFrame carries one finished utterance.
type TranscriptFrame struct {
	Type    string `json:"type"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// AudioFrame schedules PCM at StartAtMS on the bridge clock.
type AudioFrame struct {
	Type       string `json:"type"`
	ID         uint64 `json:"id"`
	StartAtMS  int64  `json:"start_at"`
	SampleRate int    `json:"sample_rate"`
	Data       string `json:"data"`
}

// StopFrame stops a scheduled audio frame.
type StopFrame struct {
	Type string `json:"type"`
	ID   uint64 `json:"id"`
}

// LevelFrame carries the microphone input level.
type LevelFrame struct {
	Type  string  `json:"type"`
	Level float64 `json:"level"`
}

// DrainedFrame reports that scheduled playback has finished.
type DrainedFrame struct {
	Type string `json:"type"`
}

// ErrorFrame reports a bridge protocol problem.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ControlFrame is a text frame from the browser.
type ControlFrame struct {
	Type string `json:"type"`
}

// DecodeControl parses a control frame.
func DecodeControl(data []byte) (ControlFrame, error) {
	var c ControlFrame
	if err := json.Unmarshal(data, &c); err != nil {
		return ControlFrame{}, fmt.Errorf("decode control frame: %w", err)
	}
	switch c.Type {
	case ControlStart, ControlStop:
		return c, nil
	default:
		return ControlFrame{}, fmt.Errorf("unknown control frame type %q", c.Type)
	}
}
