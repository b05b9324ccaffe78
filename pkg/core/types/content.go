package types

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Part is one element of a message body. The concrete types are TextPart,
// InlineMediaPart and VideoRefPart.
type Part interface {
	PartType() string
	isPart()
}

// TextPart carries plain text for user messages and rendered HTML for model replies.
type TextPart struct {
	Text string
}

func (TextPart) PartType() string { return "text" }
func (TextPart) isPart()          {}

// InlineMediaPart carries base64 encoded bytes, usually an image.
type InlineMediaPart struct {
	MIMEType string
	Data     string
}

func (InlineMediaPart) PartType() string { return "inline_data" }
func (InlineMediaPart) isPart()          {}

// Bytes decodes the base64 payload.
func (p InlineMediaPart) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(p.Data)
}

// NewInlineMedia encodes raw bytes into an InlineMediaPart.
func NewInlineMedia(mimeType string, data []byte) InlineMediaPart {
	return InlineMediaPart{MIMEType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}
}

// VideoRefPart points at a locally materialized video.
type VideoRefPart struct {
	URI      string
	MIMEType string
}

func (VideoRefPart) PartType() string { return "video_ref" }
func (VideoRefPart) isPart()          {}

// wirePart is the persisted layout: exactly one field is set.
type wirePart struct {
	Text       *string     `json:"text,omitempty"`
	InlineData *wireInline `json:"inlineData,omitempty"`
	VideoData  *wireVideo  `json:"videoData,omitempty"`
}

type wireInline struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type wireVideo struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType"`
}

var (
	errEmptyPart     = errors.New("part has no variant")
	errAmbiguousPart = errors.New("part has more than one variant")
)

// MarshalPart encodes a part in its persisted layout.
func MarshalPart(p Part) ([]byte, error) {
	var w wirePart
	switch v := p.(type) {
	case TextPart:
		text := v.Text
		w.Text = &text
	case *TextPart:
		text := v.Text
		w.Text = &text
	case InlineMediaPart:
		w.InlineData = &wireInline{MIMEType: v.MIMEType, Data: v.Data}
	case *InlineMediaPart:
		w.InlineData = &wireInline{MIMEType: v.MIMEType, Data: v.Data}
	case VideoRefPart:
		w.VideoData = &wireVideo{URI: v.URI, MIMEType: v.MIMEType}
	case *VideoRefPart:
		w.VideoData = &wireVideo{URI: v.URI, MIMEType: v.MIMEType}
	default:
		return nil, fmt.Errorf("unsupported part type %T", p)
	}
	return json.Marshal(w)
}

// UnmarshalPart decodes one part, rejecting empty and ambiguous objects.
func UnmarshalPart(data []byte) (Part, error) {
	var w wirePart
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}

	set := 0
	var part Part
	if w.Text != nil {
		set++
		part = TextPart{Text: *w.Text}
	}
	if w.InlineData != nil {
		set++
		part = InlineMediaPart{MIMEType: w.InlineData.MIMEType, Data: w.InlineData.Data}
	}
	if w.VideoData != nil {
		set++
		part = VideoRefPart{URI: w.VideoData.URI, MIMEType: w.VideoData.MIMEType}
	}

	switch set {
	case 0:
		return nil, errEmptyPart
	case 1:
		return part, nil
	default:
		return nil, errAmbiguousPart
	}
}

// FirstText returns the first text part, or "".
func FirstText(parts []Part) string {
	for _, p := range parts {
		if t, ok := p.(TextPart); ok {
			return t.Text
		}
	}
	return ""
}

// InlineParts returns only the inline media parts.
func InlineParts(parts []Part) []Part {
	var out []Part
	for _, p := range parts {
		if m, ok := p.(InlineMediaPart); ok {
			out = append(out, m)
		}
	}
	return out
}

// IsImageMIME reports whether mimeType names an image.
func IsImageMIME(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}
