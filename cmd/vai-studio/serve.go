package main

import (
	"github.com/spf13/cobra"

	"github.com/vango-go/vai-studio/pkg/server"
)

func newServeCmd(state *cliState) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat and live APIs over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if addr != "" {
				state.cfg.HTTPAddr = addr
			}
			ws, err := openWorkspace(ctx, state)
			if err != nil {
				return err
			}
			defer func() {
				if err := ws.Close(); err != nil {
					state.logger.Warn("close workspace", "error", err)
				}
			}()

			srv := server.New(*state.cfg, server.Deps{
				Store:   ws.store,
				Turns:   ws.turns,
				Live:    ws.provider,
				Metrics: ws.metrics,
			}, state.logger)
			state.logger.Info("vai-studio listening", "addr", state.cfg.HTTPAddr, "store", state.cfg.Store)
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "override VAI_HTTP_ADDR")
	return cmd
}
