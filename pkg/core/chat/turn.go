package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/markup"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

var (
	// ErrTurnInFlight is returned when a turn is already running.
	ErrTurnInFlight = errors.New("a turn is already in flight")

	// ErrEmptyTurn is returned when there is neither a prompt nor an attachment.
	ErrEmptyTurn = errors.New("nothing to send")
)

// Loading placeholder texts.
const (
	LoadingVideo = "Hold tight, your masterpiece is being created... This can take a few minutes. ⏳"
	LoadingImage = "Generating your image..."
	LoadingText  = "loading"
)

// Turn failure texts.
const (
	msgNoImage    = "Image generation failed or returned no image data."
	msgNoVideoURI = "Video generation succeeded but no URI was returned."
)

// MediaSaver materializes downloaded media and returns a URI to it.
type MediaSaver interface {
	Save(ctx context.Context, mimeType string, data []byte) (string, error)
}

// Recorder observes finished turns.
type Recorder interface {
	TurnFinished(mode string, outcome string, elapsed time.Duration)
}

// TurnResult describes a finished turn. A backend failure is reported in
// Err while Reply holds the error message appended to the session.
type TurnResult struct {
	SessionID string
	Title     string
	Reply     types.Message
	Err       *core.Error
}

// TurnOption configures a TurnController.
type TurnOption func(*TurnController)

// WithTurnLogger sets the controller logger.
func WithTurnLogger(logger *slog.Logger) TurnOption {
	return func(c *TurnController) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPollInterval sets the video poll interval.
func WithPollInterval(d time.Duration) TurnOption {
	return func(c *TurnController) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithMaxVideoWait bounds the total video wait. Zero waits until ctx ends.
func WithMaxVideoWait(d time.Duration) TurnOption {
	return func(c *TurnController) {
		if d >= 0 {
			c.maxVideoWait = d
		}
	}
}

// WithTurnTimeout bounds every turn. Zero disables the bound.
func WithTurnTimeout(d time.Duration) TurnOption {
	return func(c *TurnController) {
		if d >= 0 {
			c.timeout = d
		}
	}
}

// WithRecorder reports turn outcomes to r.
func WithRecorder(r Recorder) TurnOption {
	return func(c *TurnController) {
		c.recorder = r
	}
}

// TurnController runs chat turns. At most one turn runs at a time.
type TurnController struct {
	store    *Store
	backend  core.Backend
	media    MediaSaver
	logger   *slog.Logger
	recorder Recorder

	pollInterval time.Duration
	maxVideoWait time.Duration
	timeout      time.Duration
	newBackoff   func(interval time.Duration) retry.Backoff

	inFlight           atomic.Bool
	credentialSelected atomic.Bool
}

// NewTurnController wires a controller to the store and backend.
func NewTurnController(store *Store, backend core.Backend, media MediaSaver, opts ...TurnOption) *TurnController {
	c := &TurnController{
		store:        store,
		backend:      backend,
		media:        media,
		logger:       slog.Default(),
		pollInterval: 5 * time.Second,
		maxVideoWait: 10 * time.Minute,
		newBackoff:   retry.NewConstant,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.credentialSelected.Store(true)
	return c
}

// InFlight reports whether a turn is running.
func (c *TurnController) InFlight() bool { return c.inFlight.Load() }

// CredentialSelected reports whether the API key is believed valid. It turns
// false after an authentication failure.
func (c *TurnController) CredentialSelected() bool { return c.credentialSelected.Load() }

// SelectCredential marks the API key as selected again.
func (c *TurnController) SelectCredential() { c.credentialSelected.Store(true) }

// Submit sends the composer content to a session. The composer is cleared
// once the turn has started. Precondition failures leave it untouched.
func (c *TurnController) Submit(ctx context.Context, sessionID string, comp *Composer) (*TurnResult, error) {
	return c.sendTurn(ctx, sessionID, comp.Prompt, comp.Mode(), comp.Clear)
}

// SendTurn runs one turn in mode. Precondition failures (ErrTurnInFlight,
// ErrEmptyTurn, unknown session) leave the session untouched. Backend
// failures are returned in TurnResult.Err, not as an error.
func (c *TurnController) SendTurn(ctx context.Context, sessionID, prompt string, mode RequestMode) (*TurnResult, error) {
	return c.sendTurn(ctx, sessionID, prompt, mode, nil)
}

// sendTurn runs started, if set, after the gate is taken and the user message
// is appended.
func (c *TurnController) sendTurn(ctx context.Context, sessionID, prompt string, mode RequestMode, started func()) (*TurnResult, error) {
	attachment, hasAttachment := mode.Attachment()
	hasPrompt := strings.TrimSpace(prompt) != ""
	if !hasPrompt && !hasAttachment {
		return nil, ErrEmptyTurn
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrTurnInFlight
	}
	defer c.inFlight.Store(false)

	var parts []types.Part
	if hasAttachment {
		parts = append(parts, attachment)
	}
	if hasPrompt {
		parts = append(parts, types.TextPart{Text: prompt})
	}
	user := types.Message{Role: types.RoleUser, Parts: parts}

	start, err := c.store.beginTurn(sessionID, user, loadingText(mode))
	if err != nil {
		return nil, err
	}
	if started != nil {
		started()
	}

	ctx, cancel := c.turnContext(ctx)
	defer cancel()

	began := time.Now()
	logger := c.logger.With("chat_id", sessionID, "mode", mode.Kind().String())
	logger.Debug("turn started")

	reply, sendErr := c.dispatch(ctx, start.handle, prompt, parts, mode)
	return c.finish(ctx, logger, sessionID, start, user, reply, sendErr, prompt, nil, mode, began), nil
}

// EditAndResubmit replaces the user message at index with newText, drops
// everything after it and replays the turn through a handle rebuilt from the
// remaining history. Inline media of the original message is kept.
func (c *TurnController) EditAndResubmit(ctx context.Context, sessionID string, index int, newText string) (*TurnResult, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrTurnInFlight
	}
	defer c.inFlight.Store(false)

	start, user, err := c.store.beginEdit(sessionID, index, newText, LoadingText)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.turnContext(ctx)
	defer cancel()

	began := time.Now()
	logger := c.logger.With("chat_id", sessionID, "mode", "edit", "index", index)

	var reply types.Message
	handle, err := c.store.rebuildHandle(ctx, start.model, start.before)
	if err == nil {
		reply, err = c.sendChat(ctx, handle, user.Parts)
	} else {
		err = fmt.Errorf("rebuild chat: %w", err)
	}
	return c.finish(ctx, logger, sessionID, start, user, reply, err, "", handle, Plain(), began), nil
}

// Explore opens a new session and sends prompt on it.
func (c *TurnController) Explore(ctx context.Context, prompt string) (*TurnResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyTurn
	}
	if c.inFlight.Load() {
		return nil, ErrTurnInFlight
	}
	id, err := c.store.Create(ctx, types.DefaultModel)
	if err != nil {
		return nil, err
	}
	return c.SendTurn(ctx, id, prompt, Plain())
}

func (c *TurnController) turnContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

func (c *TurnController) finish(ctx context.Context, logger *slog.Logger, sessionID string, start turnStart, user, reply types.Message, sendErr error, prompt string, handle core.ChatHandle, mode RequestMode, began time.Time) *TurnResult {
	result := &TurnResult{SessionID: sessionID}
	outcome := "ok"
	if sendErr != nil {
		classified := core.Classify(sendErr)
		if classified.ResetCredential {
			c.credentialSelected.Store(false)
		}
		text, _ := core.FriendlyMarkdown(sendErr)
		reply = types.TextMessage(types.RoleModel, markup.Render(text))
		result.Err = classified
		prompt = ""
		outcome = string(classified.Type)
		logger.Warn("turn failed", "error", sendErr, "error_type", classified.Type)
	}
	result.Reply = reply

	// Persist even when the turn context was cancelled.
	title, _ := c.store.finishTurn(context.WithoutCancel(ctx), sessionID, start, user, reply, prompt, handle)
	result.Title = title

	elapsed := time.Since(began)
	if c.recorder != nil {
		c.recorder.TurnFinished(mode.Kind().String(), outcome, elapsed)
	}
	logger.Debug("turn finished", "outcome", outcome, "elapsed", elapsed)
	return result
}

func (c *TurnController) dispatch(ctx context.Context, handle core.ChatHandle, prompt string, parts []types.Part, mode RequestMode) (types.Message, error) {
	switch mode.Kind() {
	case ModeImageGen:
		return c.generateImage(ctx, prompt, mode.AspectRatio())
	case ModeVideoGen:
		var source *types.InlineMediaPart
		if img, ok := mode.Attachment(); ok {
			source = &img
		}
		return c.generateVideo(ctx, prompt, mode.AspectRatio(), source)
	case ModeDeepResearch:
		return c.research(ctx, prompt)
	default:
		return c.sendChat(ctx, handle, parts)
	}
}

func (c *TurnController) sendChat(ctx context.Context, handle core.ChatHandle, parts []types.Part) (types.Message, error) {
	if handle == nil {
		return types.Message{}, errors.New("chat session has no handle")
	}
	reply, err := handle.SendMessage(ctx, parts)
	if err != nil {
		return types.Message{}, err
	}
	return types.TextMessage(types.RoleModel, markup.Render(reply.Text)), nil
}

func (c *TurnController) generateImage(ctx context.Context, prompt, aspect string) (types.Message, error) {
	res, err := c.backend.GenerateImage(ctx, prompt, aspect)
	if err != nil {
		return types.Message{}, err
	}
	if res == nil || len(res.Images) == 0 || res.Images[0].Data == "" {
		return types.Message{}, core.NewEmptyResultError(msgNoImage)
	}
	img := res.Images[0]
	if img.MIMEType == "" {
		img.MIMEType = types.ImageMIMEType
	}
	return types.Message{Role: types.RoleModel, Parts: []types.Part{img}}, nil
}

func (c *TurnController) research(ctx context.Context, prompt string) (types.Message, error) {
	resp, err := c.backend.GenerateContent(ctx, &types.ContentRequest{
		Model:        types.ResearchModel,
		Parts:        []types.Part{types.TextPart{Text: prompt}},
		Modality:     types.ModalityText,
		GoogleSearch: true,
	})
	if err != nil {
		return types.Message{}, err
	}
	msg := types.TextMessage(types.RoleModel, markup.Render(resp.Text))
	msg.Sources = resp.Sources
	return msg, nil
}

func loadingText(mode RequestMode) string {
	switch mode.Kind() {
	case ModeVideoGen:
		return LoadingVideo
	case ModeImageGen:
		return LoadingImage
	default:
		return LoadingText
	}
}
