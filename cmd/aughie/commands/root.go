// Package commands implements the aughie CLI commands using cobra.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jholhewres/aughie/pkg/aughie/config"
)

// NewRootCmd creates the root command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "aughie",
		Short: "Aughie - engineering team assistant",
		Long: `Aughie is a conversational assistant for engineering teams.
It answers questions, runs multi-step workflows over GitHub, Jira,
Greptile and Perplexity, and keeps durable per-conversation state.

Examples:
  aughie chat "show my jira tickets"
  aughie chat
  aughie serve
  aughie config show`,
		Version: version,
	}

	rootCmd.AddCommand(
		newChatCmd(),
		newServeCmd(),
		newConfigCmd(),
		newHealthCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}

// resolveConfig loads the configuration from --config when given,
// otherwise from the default locations plus environment.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	if configPath != "" {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		cfg, err := config.LoadFromFile("config.yaml")
		if err != nil {
			return nil, fmt.Errorf("loading config.yaml: %w", err)
		}
		return cfg, nil
	}
	return config.Load(), nil
}

// buildLogger configures slog from the logging section and the
// --verbose flag.
func buildLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logLevel := slog.LevelInfo
	if verbose || cfg.Logging.Level == "debug" {
		logLevel = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	}
	return slog.New(handler)
}
