package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "murmur",
		Short:        "murmur: a paced, humanized group-chat participant",
		Long:         "murmur watches chat channels on Matrix, Slack and Twitch and replies with language-model output, paced per channel and discloses that it is automated when sincerely asked.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", os.Getenv("MURMUR_CONFIG_PATH"), "path to the JSON config file")

	rootCmd.AddCommand(
		newRunCmd(),
		newCheckCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "murmur %s (%s)\n", version, commit)
			return err
		},
	}
}

// setupLogger installs a text handler on stdout at level.
func setupLogger(level string) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l})))
}
