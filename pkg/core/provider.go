package core

import (
	"context"

	"github.com/vango-go/vai-studio/pkg/core/types"
)

// ChatHandle is a server-side chat context. It keeps its own history: every
// successful SendMessage extends it.
type ChatHandle interface {
	SendMessage(ctx context.Context, parts []types.Part) (*types.ChatReply, error)
}

// ChatFactory builds chat handles seeded with history.
type ChatFactory interface {
	NewChat(ctx context.Context, model types.Model, history []types.Message) (ChatHandle, error)
}

// Generator runs one-shot content generation.
type Generator interface {
	GenerateContent(ctx context.Context, req *types.ContentRequest) (*types.ContentResponse, error)
}

// ImageGenerator produces images from a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt, aspectRatio string) (*types.ImageResult, error)
}

// VideoGenerator starts and polls long-running video generation. StartVideo
// animates image when it is non-nil.
type VideoGenerator interface {
	StartVideo(ctx context.Context, prompt, aspectRatio string, image *types.InlineMediaPart) (*types.VideoOperation, error)
	PollVideo(ctx context.Context, op *types.VideoOperation) (*types.VideoOperation, error)
	DownloadVideo(ctx context.Context, uri string) (data []byte, mimeType string, err error)
}

// Backend is everything the chat turn controller needs from the model provider.
type Backend interface {
	ChatFactory
	Generator
	ImageGenerator
	VideoGenerator
}
