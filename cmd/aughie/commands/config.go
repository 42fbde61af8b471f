package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jholhewres/aughie/pkg/aughie/config"
)

// serviceTokenKeys maps a tool service to the credential key used in
// the environment and the OS keyring.
var serviceTokenKeys = map[string]string{
	"github":     "GITHUB_TOKEN",
	"jira":       "JIRA_API_TOKEN",
	"greptile":   "GREPTILE_API_KEY",
	"perplexity": "PERPLEXITY_API_KEY",
}

// newConfigCmd creates the `aughie config` command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage assistant configuration",
		Long: `Manage the Aughie configuration.

Examples:
  aughie config init
  aughie config show
  aughie config set-token github`,
	}

	cmd.AddCommand(
		newConfigInitCmd(),
		newConfigShowCmd(),
		newConfigSetTokenCmd(),
	)

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config.yaml",
		RunE: func(_ *cobra.Command, _ []string) error {
			if _, err := os.Stat("config.yaml"); err == nil {
				return fmt.Errorf("config.yaml already exists, not overwriting")
			}
			out, err := yaml.Marshal(config.DefaultConfig())
			if err != nil {
				return err
			}
			if err := os.WriteFile("config.yaml", out, 0o600); err != nil {
				return err
			}
			fmt.Println("Configuration written to ./config.yaml")
			return nil
		},
	}
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			redacted := *cfg
			redacted.Tools.GitHub.Token = redact(cfg.Tools.GitHub.Token)
			redacted.Tools.Jira.Token = redact(cfg.Tools.Jira.Token)
			redacted.Tools.Greptile.Token = redact(cfg.Tools.Greptile.Token)
			redacted.Tools.Perplexity.Token = redact(cfg.Tools.Perplexity.Token)

			out, err := yaml.Marshal(&redacted)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func newConfigSetTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-token <service> [token]",
		Short: "Store a service credential in the OS keyring",
		Long: `Store a credential for github, jira, greptile, or perplexity in the
OS keyring. Reads the token from the second argument, or from stdin
when omitted.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			key, ok := serviceTokenKeys[args[0]]
			if !ok {
				return fmt.Errorf("unknown service %q (github, jira, greptile, perplexity)", args[0])
			}

			var token string
			if len(args) == 2 {
				token = args[1]
			} else {
				fmt.Print("Token: ")
				if _, err := fmt.Scanln(&token); err != nil {
					return fmt.Errorf("reading token: %w", err)
				}
			}
			if token == "" {
				return fmt.Errorf("empty token")
			}

			if err := config.StoreToken(key, token); err != nil {
				return fmt.Errorf("storing %s: %w", key, err)
			}
			fmt.Printf("Stored %s in the OS keyring.\n", key)
			return nil
		},
	}
}

func redact(token string) string {
	if token == "" {
		return ""
	}
	return "[set]"
}
