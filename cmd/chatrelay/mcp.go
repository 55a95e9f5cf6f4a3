package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/flemzord/chatrelay/internal/mcpserver"
	"github.com/flemzord/chatrelay/pkg/app"
	"github.com/spf13/cobra"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the chat tools over MCP on stdin/stdout",
		Long: "Serve chat, get_history, clear_history and list_models as Model Context Protocol tools.\n" +
			"The HTTP gateway is not started; logs go to stderr.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			params := runParams(cmd)
			params.LogWriter = os.Stderr
			env, err := app.Setup(ctx, params)
			if err != nil {
				return err
			}
			defer env.Close()

			rt, err := app.Build(env.Config, env.Logger, app.BuildOptions{Exclude: []string{"gateway.http"}})
			if err != nil {
				return fmt.Errorf("building application: %w", err)
			}
			if err := rt.App.Start(); err != nil {
				return err
			}
			defer rt.App.Stop()

			return mcpserver.New(rt.Orchestrator, version, env.Logger).Serve(ctx, os.Stdin, os.Stdout)
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}
