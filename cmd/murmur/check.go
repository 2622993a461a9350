package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nous-labs/murmur/internal/config"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config and print accounts, channels and models",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadConfig(path)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config is invalid:\n%w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "config ok")
			return err
		},
	}
}

func printSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "accounts: %d\n", len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		fmt.Fprintf(w, "  %s (%s)\n", a.Name, a.Platform)
		for _, ch := range a.Channels {
			ai := "off"
			if ch.UseAI {
				ai = "on"
			}
			fmt.Fprintf(w, "    %s %q ai=%s\n", ch.ID, ch.Name, ai)
		}
	}
	fmt.Fprintf(w, "models: %d enabled of %d\n", len(cfg.EnabledModels()), len(cfg.Models))
	for _, m := range cfg.Models {
		state := "disabled"
		if m.Enabled {
			state = "enabled"
		}
		fmt.Fprintf(w, "  %s provider=%s model=%s key=%s %s\n", m.Name, m.Provider, m.Model, mask(m.APIKey), state)
	}
	fmt.Fprintf(w, "memory: %s\n", cfg.Memory.Driver)
}

// mask hides all but the last four characters of a secret.
func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
