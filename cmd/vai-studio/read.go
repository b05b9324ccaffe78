package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-go/vai-studio/pkg/blobstore"
	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/audio"
	"github.com/vango-go/vai-studio/pkg/core/chat"
	"github.com/vango-go/vai-studio/pkg/core/readaloud"
	"github.com/vango-go/vai-studio/pkg/core/types"
	"github.com/vango-go/vai-studio/pkg/devices"
)

func newReadCmd(state *cliState) *cobra.Command {
	var chatID string
	cmd := &cobra.Command{
		Use:   "read [text...]",
		Short: "Read text, or the last reply of a chat, aloud",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := openWorkspace(ctx, state)
			if err != nil {
				return err
			}
			defer func() {
				if err := ws.Close(); err != nil {
					state.logger.Warn("close workspace", "error", err)
				}
			}()

			texts := args
			if len(texts) == 0 {
				if texts, err = lastReplyTexts(ws.store, chatID); err != nil {
					return err
				}
			}
			return speakTexts(ctx, state, ws.provider, strings.Join(texts, " "))
		},
	}
	cmd.Flags().StringVar(&chatID, "chat", "", "chat to read from (default: the active chat)")
	return cmd
}

// lastReplyTexts returns the readable text of the newest model reply.
func lastReplyTexts(store *chat.Store, id string) ([]string, error) {
	if id == "" {
		id = store.Active()
	}
	snap, ok := store.Get(id)
	if !ok {
		return nil, fmt.Errorf("chat %q not found", id)
	}
	for i := len(snap.Messages) - 1; i >= 0; i-- {
		msg := snap.Messages[i]
		if msg.Role != types.RoleModel || msg.Kind == types.KindToolIntro {
			continue
		}
		if texts := readaloud.TextsOf(msg); len(texts) > 0 {
			return texts, nil
		}
	}
	return nil, errors.New("no reply to read")
}

// speakTexts plays texts through ffplay and waits for playback to finish.
func speakTexts(ctx context.Context, state *cliState, gen core.Generator, texts ...string) error {
	local := devices.Local{
		FFmpegPath: state.cfg.FFmpegPath,
		FFplayPath: state.cfg.FFplayPath,
		Logger:     state.logger,
	}
	out, err := local.OpenSpeaker(ctx, audio.OutputSampleRate)
	if err != nil {
		return fmt.Errorf("open speaker: %w", err)
	}
	defer out.Close()

	return readaloud.NewPlayer(gen, out, state.logger).Play(ctx, texts...)
}

func mediaSaver(dir string) chat.MediaSaver {
	if dir == "" {
		return nil
	}
	return blobstore.MediaDir{Root: dir}
}
