package types

// ChatReply is the result of sending a message through a chat handle.
type ChatReply struct {
	Text string
}

// Modality selects the kind of output requested from GenerateContent.
type Modality string

const (
	ModalityText  Modality = "TEXT"
	ModalityImage Modality = "IMAGE"
	ModalityAudio Modality = "AUDIO"
)

// ContentRequest is a one-shot generation request.
type ContentRequest struct {
	Model        string
	Parts        []Part
	Modality     Modality
	GoogleSearch bool
}

// ContentResponse is the flattened first candidate of a generation.
type ContentResponse struct {
	Text               string
	Parts              []Part
	Sources            []GroundingSource
	FinishReason       string
	BlockReason        string
	BlockReasonMessage string
}

// FirstInline returns the first inline media part of the response.
func (r *ContentResponse) FirstInline() (InlineMediaPart, bool) {
	if r == nil {
		return InlineMediaPart{}, false
	}
	for _, p := range r.Parts {
		if m, ok := p.(InlineMediaPart); ok && m.Data != "" {
			return m, true
		}
	}
	return InlineMediaPart{}, false
}

// FinishReasonStop is the finish reason of a normal completion.
const FinishReasonStop = "STOP"

// ImageResult holds generated images. It is empty when the backend returned none.
type ImageResult struct {
	Images []InlineMediaPart
}

// VideoOperation is the state of a long-running video generation.
type VideoOperation struct {
	Name string
	Done bool

	// ErrorMessage is set when the operation finished with an error.
	ErrorMessage string

	// VideoURIs lists download URIs of the generated videos.
	VideoURIs []string

	// Handle is the backend's own operation value, passed back on poll.
	Handle any
}

// Failed reports whether the finished operation carries an error.
func (op *VideoOperation) Failed() bool {
	return op != nil && op.ErrorMessage != ""
}

// FirstURI returns the first video URI, if any.
func (op *VideoOperation) FirstURI() (string, bool) {
	if op == nil {
		return "", false
	}
	for _, uri := range op.VideoURIs {
		if uri != "" {
			return uri, true
		}
	}
	return "", false
}
