package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-go/vai-studio/pkg/core/live"
	"github.com/vango-go/vai-studio/pkg/core/providers/gemini"
	"github.com/vango-go/vai-studio/pkg/devices"
)

func newLiveCmd(state *cliState) *cobra.Command {
	var showLevel bool
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Hold a live voice conversation through the microphone and speaker",
		Long: `live streams the microphone to the Live API through ffmpeg and plays the
spoken reply through ffplay. Transcripts print as each turn completes.
Press Ctrl-C to end the conversation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			provider, err := gemini.New(ctx, state.cfg.APIKey, gemini.WithLogger(state.logger))
			if err != nil {
				return err
			}
			local := devices.Local{
				FFmpegPath: state.cfg.FFmpegPath,
				FFplayPath: state.cfg.FFplayPath,
				Logger:     state.logger,
			}
			ctrl := live.NewController(provider, local, live.WithLogger(state.logger))
			defer ctrl.Stop()

			printer := &livePrinter{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr(), showLevel: showLevel}
			done := make(chan struct{})
			go func() {
				defer close(done)
				printer.follow(ctx, ctrl.Updates())
			}()

			if err := ctrl.Start(ctx); err != nil {
				return err
			}
			<-done
			return ctrl.Err()
		},
	}
	cmd.Flags().BoolVar(&showLevel, "level", false, "show a microphone level meter")
	return cmd
}

type livePrinter struct {
	out       io.Writer
	errOut    io.Writer
	showLevel bool
}

// follow prints updates until the run reaches a terminal status or ctx ends.
func (p *livePrinter) follow(ctx context.Context, updates <-chan live.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updates:
			if p.print(u) {
				return
			}
		}
	}
}

// print renders one update and reports whether the run is over.
func (p *livePrinter) print(u live.Update) bool {
	switch u := u.(type) {
	case *live.StatusUpdate:
		line := "status: " + u.Status.String()
		if u.Error != "" {
			fmt.Fprintln(p.errOut, errorStyle.Render(line+" ("+u.Error+")"))
		} else {
			fmt.Fprintln(p.out, metaStyle.Render(line))
		}
		return u.Status.Terminal()
	case *live.TranscriptUpdate:
		if u.Transcript.Speaker == live.SpeakerUser {
			fmt.Fprintln(p.out, userStyle.Render("you")+" "+u.Transcript.Text)
		} else {
			fmt.Fprintln(p.out, modelStyle.Render("gemini")+" "+u.Transcript.Text)
		}
	case *live.InputLevelUpdate:
		if p.showLevel {
			fmt.Fprintf(p.out, "\r%-20s", levelBar(u.Level))
		}
	case *live.InterruptedUpdate:
		fmt.Fprintln(p.out, metaStyle.Render("(interrupted)"))
	}
	return false
}

// levelBar draws an RMS level in [0,1] as up to 20 cells.
func levelBar(level float64) string {
	n := int(level * 20)
	n = max(0, min(n, 20))
	return strings.Repeat("#", n)
}
