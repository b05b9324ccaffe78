package imageedit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

// Editor applies prompted edits to an image and records them in a History.
// It is safe for concurrent use.
type Editor struct {
	gen    core.Generator
	logger *slog.Logger

	mu   sync.Mutex
	hist History
}

// NewEditor creates an editor with an empty history.
func NewEditor(gen core.Generator, logger *slog.Logger) *Editor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{gen: gen, logger: logger}
}

// Open starts editing img.
func (e *Editor) Open(img types.InlineMediaPart) error {
	if !types.IsImageMIME(img.MIMEType) {
		return core.NewInvalidRequestError(fmt.Sprintf("not an image: %q", img.MIMEType))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hist.Open(img)
	return nil
}

// Edit sends the current image with prompt to the image model and pushes the
// returned image labelled with the prompt.
func (e *Editor) Edit(ctx context.Context, prompt string) (Entry, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Entry{}, core.NewInvalidRequestError("describe the edit to apply")
	}
	e.mu.Lock()
	cur, ok := e.hist.Current()
	e.mu.Unlock()
	if !ok {
		return Entry{}, core.NewInvalidRequestError("open an image first")
	}

	resp, err := e.gen.GenerateContent(ctx, &types.ContentRequest{
		Model:    types.ImageEditModel,
		Parts:    []types.Part{cur.Image, types.TextPart{Text: prompt}},
		Modality: types.ModalityImage,
	})
	if err != nil {
		return Entry{}, err
	}
	img, ok := resp.FirstInline()
	if !ok {
		err := core.NewEmptyResultError(noImageReason(resp))
		e.logger.Warn("image edit returned no image", "error", err)
		return Entry{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.hist.Push(img, prompt)
	entry, _ := e.hist.Current()
	return entry, nil
}

// noImageReason explains a response without image data.
func noImageReason(resp *types.ContentResponse) string {
	switch {
	case resp == nil:
		return "The AI did not return an image."
	case resp.BlockReason != "":
		msg := fmt.Sprintf("Request blocked due to '%s'.", resp.BlockReason)
		if resp.BlockReasonMessage != "" {
			msg += " Details: " + resp.BlockReasonMessage
		}
		return msg
	case resp.FinishReason != "" && resp.FinishReason != types.FinishReasonStop:
		return fmt.Sprintf("Generation failed. Reason: %s. Please adjust your prompt.", resp.FinishReason)
	case strings.TrimSpace(resp.Text) != "":
		return fmt.Sprintf("The AI returned a text message instead of an image: \"%s\"", resp.Text)
	default:
		return "The AI did not return an image."
	}
}

func (e *Editor) Undo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.Undo()
}

func (e *Editor) Redo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.Redo()
}

func (e *Editor) ResetToOriginal() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.ResetToOriginal()
}

// Current returns the image being edited.
func (e *Editor) Current() (Entry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.Current()
}

// Entries returns the history and the current index.
func (e *Editor) Entries() ([]Entry, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.Entries(), e.hist.Index()
}

func (e *Editor) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.CanUndo()
}

func (e *Editor) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.CanRedo()
}
