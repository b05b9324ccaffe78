package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/gorilla/websocket"
	"google.golang.org/genai"

	"github.com/vango-go/vai-studio/pkg/core/audio"
	"github.com/vango-go/vai-studio/pkg/core/live"
)

// Connect opens a live audio session.
func (p *Provider) Connect(ctx context.Context, cfg live.ConnectConfig) (live.Conn, error) {
	session, err := p.client.Live.Connect(ctx, cfg.Model, liveConfig(cfg))
	if err != nil {
		return nil, mapError(err)
	}
	p.logger.Debug("live session connected", "model", cfg.Model)
	return &liveConn{session: session}, nil
}

func liveConfig(cfg live.ConnectConfig) *genai.LiveConnectConfig {
	out := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
	}
	if cfg.InputTranscription {
		out.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	if cfg.OutputTranscription {
		out.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	return out
}

type liveConn struct {
	session *genai.Session
}

// SendAudio sends one realtime audio chunk.
func (c *liveConn) SendAudio(ctx context.Context, blob audio.Blob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := base64.StdEncoding.DecodeString(blob.Data)
	if err != nil {
		return fmt.Errorf("decode audio blob: %w", err)
	}
	if err := c.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{MIMEType: blob.MIMEType, Data: data},
	}); err != nil {
		return closedOr(err)
	}
	return nil
}

// Receive blocks for the next server message. Close unblocks it.
func (c *liveConn) Receive(ctx context.Context) (*live.ServerMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msg, err := c.session.Receive()
	if err != nil {
		return nil, closedOr(err)
	}
	return fromServerMessage(msg), nil
}

func (c *liveConn) Close() error {
	return c.session.Close()
}

// closedOr maps a clean websocket close to io.EOF.
func closedOr(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			return io.EOF
		}
		return fmt.Errorf("live session closed: %s (code %d)", closeErr.Text, closeErr.Code)
	}
	return mapError(err)
}

func fromServerMessage(msg *genai.LiveServerMessage) *live.ServerMessage {
	out := &live.ServerMessage{}
	if msg == nil || msg.ServerContent == nil {
		return out
	}
	sc := msg.ServerContent
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			out.Audio = append(out.Audio, audio.Blob{
				MIMEType: part.InlineData.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(part.InlineData.Data),
			})
		}
	}
	if sc.InputTranscription != nil {
		out.InputTranscript = sc.InputTranscription.Text
	}
	if sc.OutputTranscription != nil {
		out.OutputTranscript = sc.OutputTranscription.Text
	}
	out.TurnComplete = sc.TurnComplete
	out.Interrupted = sc.Interrupted
	return out
}
