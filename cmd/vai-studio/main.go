// Command vai-studio is a terminal workspace for Gemini chat, media
// generation, image editing and live voice conversations.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/vango-go/vai-studio/internal/metrics"
	"github.com/vango-go/vai-studio/pkg/blobstore"
	"github.com/vango-go/vai-studio/pkg/config"
	"github.com/vango-go/vai-studio/pkg/core/chat"
	"github.com/vango-go/vai-studio/pkg/core/providers/gemini"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "vai-studio: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// cliState is filled in by the root command before any subcommand runs.
type cliState struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	var (
		envFiles []string
		logLevel string
	)
	state := &cliState{}

	root := &cobra.Command{
		Use:   "vai-studio",
		Short: "Gemini chat, media generation and live voice in the terminal",
		Long: `vai-studio keeps multi-session Gemini chats with image, video and
deep-research turns, edits images conversationally, reads replies aloud and
holds live voice conversations through ffmpeg and ffplay.

Set GEMINI_API_KEY (or API_KEY) in the environment or a .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotenv(envFiles...); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			state.cfg = cfg
			state.logger = setupLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			slog.SetDefault(state.logger)
			return nil
		},
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files loaded before the environment is read")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override VAI_LOG_LEVEL (debug|info|warn|error)")

	root.AddCommand(
		newChatCmd(state),
		newLiveCmd(state),
		newEditCmd(state),
		newReadCmd(state),
		newServeCmd(state),
	)
	return root
}

func setupLogger(levelName, format string, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// workspace is the chat stack shared by the chat REPL and the server.
type workspace struct {
	provider *gemini.Provider
	blobs    blobstore.Store
	store    *chat.Store
	turns    *chat.TurnController
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func openWorkspace(ctx context.Context, state *cliState) (*workspace, error) {
	cfg, logger := state.cfg, state.logger

	provider, err := gemini.New(ctx, cfg.APIKey, gemini.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	blobs, err := blobstore.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("open chat store: %w", err)
	}

	m := metrics.New("")
	store := chat.NewStore(provider, blobs, chat.WithLogger(logger))
	if err := store.Restore(ctx); err != nil {
		_ = blobs.Close()
		return nil, fmt.Errorf("restore chats: %w", err)
	}
	turns := chat.NewTurnController(store, provider, blobstore.MediaDir{Root: cfg.MediaDir},
		chat.WithTurnLogger(logger),
		chat.WithPollInterval(cfg.VideoPollInterval),
		chat.WithMaxVideoWait(cfg.VideoMaxWait),
		chat.WithTurnTimeout(cfg.TurnTimeout),
		chat.WithRecorder(m),
	)
	logger.Debug("workspace opened", "store", cfg.Store, "chats", store.Len())
	return &workspace{
		provider: provider,
		blobs:    blobs,
		store:    store,
		turns:    turns,
		metrics:  m,
		logger:   logger,
	}, nil
}

// Close persists the chats and closes the blob store.
func (w *workspace) Close() error {
	return multierr.Append(
		w.store.Persist(context.Background()),
		w.blobs.Close(),
	)
}
