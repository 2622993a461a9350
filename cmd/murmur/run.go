package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nous-labs/murmur/internal/config"
	"github.com/nous-labs/murmur/internal/daemon"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect every configured account and start replying",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadConfig(path)
			if err != nil {
				return err
			}
			setupLogger(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			slog.Info("murmur starting", "version", version, "config", path)
			d, err := daemon.New(ctx, cfg, nil)
			if err != nil {
				return fmt.Errorf("create daemon: %w", err)
			}
			if err := d.Run(ctx); err != nil && ctx.Err() == nil {
				return fmt.Errorf("daemon: %w", err)
			}
			slog.Info("murmur stopped")
			return nil
		},
	}
}
