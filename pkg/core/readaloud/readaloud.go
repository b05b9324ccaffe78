// Package readaloud speaks model replies through the speech model.
package readaloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/audio"
	"github.com/vango-go/vai-studio/pkg/core/markup"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

// ErrBusy is returned by Play while another playback runs.
var ErrBusy = errors.New("read-aloud already playing")

const msgNoAudio = "The speech model did not return audio."

// Player synthesizes text and plays it through a scheduler. One playback
// runs at a time.
type Player struct {
	gen    core.Generator
	sched  *audio.Scheduler
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewPlayer creates a player that writes to out.
func NewPlayer(gen core.Generator, out audio.Output, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{gen: gen, sched: audio.NewScheduler(out), logger: logger}
}

// Playing reports whether a playback is in progress.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Play speaks each text in order. It returns once playback has drained, or
// when ctx is cancelled or Stop is called, in which case queued audio is dropped.
func (p *Player) Play(ctx context.Context, texts ...string) error {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		cancel()
		return ErrBusy
	}
	p.cancel = cancel
	p.mu.Unlock()
	defer func() {
		cancel()
		p.mu.Lock()
		p.cancel = nil
		p.mu.Unlock()
	}()

	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		buf, err := p.synthesize(ctx, text)
		if err != nil {
			p.sched.Interrupt()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if _, err := p.sched.Schedule(buf); err != nil {
			p.sched.Interrupt()
			return fmt.Errorf("schedule speech: %w", err)
		}
	}

	select {
	case <-p.sched.Drained():
		return nil
	case <-ctx.Done():
		p.sched.Interrupt()
		return ctx.Err()
	}
}

// Stop ends the current playback.
func (p *Player) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.sched.Interrupt()
}

func (p *Player) synthesize(ctx context.Context, text string) (audio.Buffer, error) {
	resp, err := p.gen.GenerateContent(ctx, &types.ContentRequest{
		Model:    types.SpeechModel,
		Parts:    []types.Part{types.TextPart{Text: text}},
		Modality: types.ModalityAudio,
	})
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("synthesize speech: %w", err)
	}
	part, ok := resp.FirstInline()
	if !ok {
		return audio.Buffer{}, core.NewEmptyResultError(msgNoAudio)
	}
	buf, err := audio.DecodeBuffer(part.Data, audio.OutputSampleRate, 1)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("decode speech: %w", err)
	}
	p.logger.Debug("speech synthesized", "chars", len(text), "duration", buf.Duration())
	return buf, nil
}

// TextsOf returns the readable text of a message's text parts.
func TextsOf(msg types.Message) []string {
	var out []string
	for _, part := range msg.Parts {
		tp, ok := part.(types.TextPart)
		if !ok {
			continue
		}
		if text := markup.PlainText(tp.Text); text != "" {
			out = append(out, text)
		}
	}
	return out
}
