package gemini

import (
	"google.golang.org/genai"

	"github.com/vango-go/vai-studio/pkg/core/types"
)

// fromResponse flattens the first candidate of a generation.
func fromResponse(resp *genai.GenerateContentResponse) *types.ContentResponse {
	out := &types.ContentResponse{}
	if resp == nil {
		return out
	}
	if fb := resp.PromptFeedback; fb != nil {
		out.BlockReason = string(fb.BlockReason)
		out.BlockReasonMessage = fb.BlockReasonMessage
	}
	if len(resp.Candidates) == 0 {
		return out
	}

	cand := resp.Candidates[0]
	out.FinishReason = string(cand.FinishReason)
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			switch {
			case part.InlineData != nil:
				out.Parts = append(out.Parts, types.NewInlineMedia(part.InlineData.MIMEType, part.InlineData.Data))
			case part.Text != "" && !part.Thought:
				out.Parts = append(out.Parts, types.TextPart{Text: part.Text})
				out.Text += part.Text
			}
		}
	}
	if gm := cand.GroundingMetadata; gm != nil {
		for _, chunk := range gm.GroundingChunks {
			if chunk == nil || chunk.Web == nil {
				continue
			}
			out.Sources = append(out.Sources, types.GroundingSource{URI: chunk.Web.URI, Title: chunk.Web.Title})
		}
	}
	return out
}

// fromImages keeps the images that carry bytes.
func fromImages(resp *genai.GenerateImagesResponse) *types.ImageResult {
	out := &types.ImageResult{}
	if resp == nil {
		return out
	}
	for _, gen := range resp.GeneratedImages {
		if gen == nil || gen.Image == nil || len(gen.Image.ImageBytes) == 0 {
			continue
		}
		mime := gen.Image.MIMEType
		if mime == "" {
			mime = types.ImageMIMEType
		}
		out.Images = append(out.Images, types.NewInlineMedia(mime, gen.Image.ImageBytes))
	}
	return out
}
