package gemini

import (
	"fmt"

	"google.golang.org/genai"

	"github.com/vango-go/vai-studio/pkg/core/types"
)

// chatConfig returns the generation config for a chat model. Pro gets the
// larger thinking budget.
func chatConfig(model types.Model) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(types.SystemInstruction, genai.RoleUser),
	}
	if model == types.ModelPro {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](types.ProThinkingBudget)}
	}
	return cfg
}

// contentConfig maps a one-shot request onto a generation config.
func contentConfig(req *types.ContentRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.Modality != "" && req.Modality != types.ModalityText {
		cfg.ResponseModalities = []string{string(req.Modality)}
	}
	if req.GoogleSearch {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return cfg
}

// videoPlaceholder stands in for a reply that only carried a local video.
const videoPlaceholder = "[A video was generated for this request.]"

// toContents converts stored history into chat contents. Tool intros are not
// part of the conversation the model saw. A video-only reply becomes a short
// text turn so user and model turns keep alternating.
func toContents(history []types.Message) ([]*genai.Content, error) {
	out := make([]*genai.Content, 0, len(history))
	for i, msg := range history {
		if msg.Kind == types.KindToolIntro {
			continue
		}
		parts, err := toParts(msg.Parts)
		if err != nil {
			return nil, fmt.Errorf("history message %d: %w", i, err)
		}
		if len(parts) == 0 && hasVideo(msg.Parts) {
			parts = []*genai.Part{genai.NewPartFromText(videoPlaceholder)}
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, genai.NewContentFromParts(parts, toRole(msg.Role)))
	}
	return out, nil
}

// toParts converts message parts. Video references are dropped.
func toParts(parts []types.Part) ([]*genai.Part, error) {
	out := make([]*genai.Part, 0, len(parts))
	for _, part := range parts {
		switch p := part.(type) {
		case types.TextPart:
			out = append(out, genai.NewPartFromText(p.Text))
		case types.InlineMediaPart:
			data, err := p.Bytes()
			if err != nil {
				return nil, fmt.Errorf("decode %s data: %w", p.MIMEType, err)
			}
			out = append(out, genai.NewPartFromBytes(data, p.MIMEType))
		case types.VideoRefPart:
		default:
			return nil, fmt.Errorf("unsupported part type %T", part)
		}
	}
	return out, nil
}

func hasVideo(parts []types.Part) bool {
	for _, p := range parts {
		if _, ok := p.(types.VideoRefPart); ok {
			return true
		}
	}
	return false
}

func toRole(role types.Role) genai.Role {
	if role == types.RoleModel {
		return genai.RoleModel
	}
	return genai.RoleUser
}
