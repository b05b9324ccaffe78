package gemini

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"

	"google.golang.org/genai"

	"github.com/vango-go/vai-studio/pkg/core/types"
)

// StartVideo starts a long-running video generation. A non-nil image is used
// as the first frame.
func (p *Provider) StartVideo(ctx context.Context, prompt, aspectRatio string, image *types.InlineMediaPart) (*types.VideoOperation, error) {
	source, err := videoSource(image)
	if err != nil {
		return nil, err
	}
	op, err := p.client.Models.GenerateVideos(ctx, types.VideoModel, prompt, source, &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		AspectRatio:    aspectRatio,
		Resolution:     types.VideoResolution,
	})
	if err != nil {
		return nil, mapError(err)
	}
	p.logger.Debug("video operation started", "operation", op.Name)
	return fromVideoOperation(op), nil
}

func videoSource(image *types.InlineMediaPart) (*genai.Image, error) {
	if image == nil {
		return nil, nil
	}
	data, err := image.Bytes()
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}
	return &genai.Image{ImageBytes: data, MIMEType: image.MIMEType}, nil
}

// PollVideo refreshes op.
func (p *Provider) PollVideo(ctx context.Context, op *types.VideoOperation) (*types.VideoOperation, error) {
	handle, ok := op.Handle.(*genai.GenerateVideosOperation)
	if !ok || handle == nil {
		handle = &genai.GenerateVideosOperation{Name: op.Name}
	}
	next, err := p.client.Operations.GetVideosOperation(ctx, handle, nil)
	if err != nil {
		return nil, mapError(err)
	}
	return fromVideoOperation(next), nil
}

// DownloadVideo fetches a generated video. Download URIs require the API key.
func (p *Provider) DownloadVideo(ctx context.Context, uri string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, "", mapError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", httpError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read video: %w", err)
	}
	mimeType := types.VideoMIMEType
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && mt != "application/octet-stream" {
			mimeType = mt
		}
	}
	return data, mimeType, nil
}

func fromVideoOperation(op *genai.GenerateVideosOperation) *types.VideoOperation {
	out := &types.VideoOperation{Handle: op}
	if op == nil {
		return out
	}
	out.Name = op.Name
	out.Done = op.Done
	if op.Error != nil {
		if msg, ok := op.Error["message"].(string); ok && msg != "" {
			out.ErrorMessage = msg
		} else {
			out.ErrorMessage = fmt.Sprint(op.Error)
		}
	}
	if op.Response != nil {
		for _, gen := range op.Response.GeneratedVideos {
			if gen != nil && gen.Video != nil && gen.Video.URI != "" {
				out.VideoURIs = append(out.VideoURIs, gen.Video.URI)
			}
		}
	}
	return out
}
