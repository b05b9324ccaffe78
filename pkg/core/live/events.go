package live

import "github.com/vango-go/vai-studio/pkg/core/audio"

// Speaker identifies the side of a transcript.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerModel Speaker = "model"
)

// Transcript is one finished utterance.
type Transcript struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Update is the interface for all updates streamed to the shell.
type Update interface {
	// UpdateType returns the update type string for serialization.
	UpdateType() string
}

// StatusUpdate is emitted when the status changes.
type StatusUpdate struct {
	RunID  string `json:"run_id"`
	Status Status `json:"-"`
	Error  string `json:"error,omitempty"`
}

func (u *StatusUpdate) UpdateType() string { return "status" }

// TranscriptUpdate is emitted when a transcript is flushed at turn end.
type TranscriptUpdate struct {
	Transcript Transcript `json:"transcript"`
}

func (u *TranscriptUpdate) UpdateType() string { return "transcript" }

// InputLevelUpdate carries the RMS level of one captured frame.
type InputLevelUpdate struct {
	Level float64 `json:"level"`
}

func (u *InputLevelUpdate) UpdateType() string { return "level" }

// InterruptedUpdate is emitted when the server reports barge-in.
type InterruptedUpdate struct{}

func (u *InterruptedUpdate) UpdateType() string { return "interrupted" }

// DrainedUpdate is emitted when queued playback has finished.
type DrainedUpdate struct{}

func (u *DrainedUpdate) UpdateType() string { return "drained" }

// event is an item of the dispatcher queue.
type event interface {
	isEvent()
}

type openEvent struct{}

type messageEvent struct {
	msg *ServerMessage
}

type errorEvent struct {
	err error
}

type closeEvent struct{}

func (openEvent) isEvent()    {}
func (messageEvent) isEvent() {}
func (errorEvent) isEvent()   {}
func (closeEvent) isEvent()   {}

// frameBlob encodes one captured frame for upstream.
func frameBlob(frame []float32) audio.Blob {
	return audio.EncodeBlob(frame, audio.InputSampleRate)
}
