package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sethvargo/go-retry"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

var errVideoPending = errors.New("video operation still running")

// AnimatePrompt drives a video generated from an image when no prompt is given.
const AnimatePrompt = "Create a short, cinematic video with a slow, gentle parallax effect, as if moving through this image in 3D. The movement should be smooth, subtle, and create a sense of depth."

// generateVideo starts a video operation, polls it until done and saves the
// downloaded result through the media saver. A non-nil source is animated.
func (c *TurnController) generateVideo(ctx context.Context, prompt, aspect string, source *types.InlineMediaPart) (types.Message, error) {
	if source != nil && strings.TrimSpace(prompt) == "" {
		prompt = AnimatePrompt
	}
	op, err := c.backend.StartVideo(ctx, prompt, aspect, source)
	if err != nil {
		return types.Message{}, err
	}

	backoff := c.newBackoff(c.pollInterval)
	if c.maxVideoWait > 0 {
		backoff = retry.WithMaxDuration(c.maxVideoWait, backoff)
	}

	polls := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if polls > 0 {
			next, err := c.backend.PollVideo(ctx, op)
			if err != nil {
				return err
			}
			op = next
		}
		polls++
		if op == nil {
			return errors.New("video operation vanished")
		}
		if !op.Done {
			return retry.RetryableError(errVideoPending)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errVideoPending) {
			return types.Message{}, core.NewTimeoutError(
				fmt.Sprintf("Video generation did not finish within %s.", c.maxVideoWait), err)
		}
		return types.Message{}, err
	}
	c.logger.Debug("video operation finished", "operation", op.Name, "polls", polls)

	if op.Failed() {
		return types.Message{}, errors.New(op.ErrorMessage)
	}
	uri, ok := op.FirstURI()
	if !ok {
		return types.Message{}, core.NewEmptyResultError(msgNoVideoURI)
	}

	data, mimeType, err := c.backend.DownloadVideo(ctx, uri)
	if err != nil {
		return types.Message{}, fmt.Errorf("download video: %w", err)
	}
	if mimeType == "" {
		mimeType = types.VideoMIMEType
	}
	if c.media == nil {
		return types.Message{}, errors.New("no media directory configured")
	}
	ref, err := c.media.Save(ctx, mimeType, data)
	if err != nil {
		return types.Message{}, fmt.Errorf("save video: %w", err)
	}
	return types.Message{Role: types.RoleModel, Parts: []types.Part{types.VideoRefPart{URI: ref, MIMEType: mimeType}}}, nil
}
