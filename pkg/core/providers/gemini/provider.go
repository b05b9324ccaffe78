// Package gemini implements the backend capabilities over the Google Gen AI SDK.
// It translates between the studio's message model and genai's content types.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/genai"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/live"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

var (
	_ core.Backend   = (*Provider)(nil)
	_ live.Connector = (*Provider)(nil)
)

// Provider implements core.Backend and live.Connector.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	client *genai.Client
}

// New creates a Gemini provider authenticated with apiKey.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	p := &Provider{
		apiKey:     apiKey,
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	}
	if p.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	p.client = client
	return p, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "gemini"
}

// chatHandle wraps a genai chat, which keeps its own history.
type chatHandle struct {
	chat *genai.Chat
}

// NewChat creates a chat seeded with history.
func (p *Provider) NewChat(ctx context.Context, model types.Model, history []types.Message) (core.ChatHandle, error) {
	contents, err := toContents(history)
	if err != nil {
		return nil, err
	}
	chat, err := p.client.Chats.Create(ctx, string(model), chatConfig(model), contents)
	if err != nil {
		return nil, mapError(err)
	}
	return &chatHandle{chat: chat}, nil
}

// SendMessage sends parts on the chat and returns the reply text.
func (h *chatHandle) SendMessage(ctx context.Context, parts []types.Part) (*types.ChatReply, error) {
	gparts, err := toParts(parts)
	if err != nil {
		return nil, err
	}
	values := make([]genai.Part, 0, len(gparts))
	for _, part := range gparts {
		values = append(values, *part)
	}
	resp, err := h.chat.SendMessage(ctx, values...)
	if err != nil {
		return nil, mapError(err)
	}
	return &types.ChatReply{Text: resp.Text()}, nil
}

// GenerateContent runs a one-shot generation.
func (p *Provider) GenerateContent(ctx context.Context, req *types.ContentRequest) (*types.ContentResponse, error) {
	gparts, err := toParts(req.Parts)
	if err != nil {
		return nil, err
	}
	contents := []*genai.Content{genai.NewContentFromParts(gparts, genai.RoleUser)}
	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, contentConfig(req))
	if err != nil {
		return nil, mapError(err)
	}
	return fromResponse(resp), nil
}

// GenerateImage generates one image for prompt.
func (p *Provider) GenerateImage(ctx context.Context, prompt, aspectRatio string) (*types.ImageResult, error) {
	resp, err := p.client.Models.GenerateImages(ctx, types.ImageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    aspectRatio,
		OutputMIMEType: types.ImageMIMEType,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return fromImages(resp), nil
}
