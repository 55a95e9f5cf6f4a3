package main

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/flemzord/chatrelay/pkg/app"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// program adapts app.Run to the service manager's Start/Stop calls.
type program struct {
	params app.RunParams
	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(_ service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() { p.done <- app.Run(ctx, p.params) }()
	return nil
}

func (p *program) Stop(_ service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	select {
	case err := <-p.done:
		return err
	case <-time.After(15 * time.Second):
		return fmt.Errorf("service: shutdown timed out")
	}
}

func serviceConfig(cfgPath string) *service.Config {
	args := []string{"service", "run"}
	if cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}
	return &service.Config{
		Name:        "chatrelay",
		DisplayName: "chatrelay",
		Description: "Session-aware chat relay in front of Ollama and other model backends.",
		Arguments:   args,
	}
}

func serviceCmd() *cobra.Command {
	actions := append([]string{"run"}, service.ControlAction[:]...)

	cmd := &cobra.Command{
		Use:       "service <run|start|stop|restart|install|uninstall>",
		Short:     "Install and control chatrelay as an OS service",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: actions,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := runParams(cmd)
			if params.ConfigPath != "" {
				abs, err := filepath.Abs(params.ConfigPath)
				if err != nil {
					return err
				}
				params.ConfigPath = abs
			}

			svc, err := service.New(&program{params: params}, serviceConfig(params.ConfigPath))
			if err != nil {
				return fmt.Errorf("service: %w", err)
			}

			action := args[0]
			if action == "run" {
				return svc.Run()
			}
			if !slices.Contains(actions, action) {
				return fmt.Errorf("service: unknown action %q", action)
			}
			if err := service.Control(svc, action); err != nil {
				return fmt.Errorf("service %s: %w", action, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
			return nil
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}
