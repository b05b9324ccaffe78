package types

import (
	"fmt"
	"strings"
)

// Model is a chat model selectable per session.
type Model string

const (
	ModelFlash Model = "gemini-2.5-flash"
	ModelPro   Model = "gemini-2.5-pro"
)

// DefaultModel is used for new sessions.
const DefaultModel = ModelFlash

// Fixed models for the one-shot tools.
const (
	ImageModel     = "imagen-4.0-generate-001"
	VideoModel     = "veo-3.1-fast-generate-preview"
	ResearchModel  = "gemini-2.5-flash"
	ImageEditModel = "gemini-2.5-flash-image"
	SpeechModel    = "gemini-2.5-flash-preview-tts"
	LiveModel      = "gemini-2.5-flash-native-audio-preview-09-2025"
)

const (
	SystemInstruction = "You are a helpful and creative assistant."
	ProThinkingBudget = 32768
	ImageMIMEType     = "image/png"
	VideoMIMEType     = "video/mp4"
	VideoResolution   = "720p"
)

// Valid reports whether m is a known chat model.
func (m Model) Valid() bool {
	return m == ModelFlash || m == ModelPro
}

// DisplayName is the short label shown in menus.
func (m Model) DisplayName() string {
	switch m {
	case ModelFlash:
		return "2.5 Flash"
	case ModelPro:
		return "2.5 Pro"
	default:
		return string(m)
	}
}

// ParseModel accepts a full model id or the short names "flash" and "pro".
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "flash", string(ModelFlash):
		return ModelFlash, nil
	case "pro", string(ModelPro):
		return ModelPro, nil
	default:
		return "", fmt.Errorf("unknown model %q (want flash or pro)", s)
	}
}
