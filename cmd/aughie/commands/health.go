package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jholhewres/aughie/pkg/aughie/config"
)

// newHealthCmd creates the `aughie health` command. Used by Docker
// HEALTHCHECK and monitoring.
func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check service health",
		Long:  `Checks configuration, storage, and credential availability, and prints a JSON status report.`,
		RunE:  runHealth,
	}
}

func runHealth(cmd *cobra.Command, _ []string) error {
	report := map[string]any{"status": "ok"}

	cfg, err := resolveConfig(cmd)
	if err != nil {
		report["status"] = "error"
		report["config"] = err.Error()
		return printReport(report)
	}
	report["config"] = "ok"

	logger := buildLogger(cmd, cfg)
	store, err := openStore(cfg, logger)
	if err != nil {
		report["status"] = "error"
		report["storage"] = err.Error()
		return printReport(report)
	}
	defer store.Close()

	// A write+read probe catches permission and schema problems that
	// opening alone does not.
	probe := map[string][]byte{"_health_probe": []byte(`{}`)}
	if err := store.Write(probe); err != nil {
		report["status"] = "error"
		report["storage"] = err.Error()
	} else if _, err := store.Read([]string{"_health_probe"}); err != nil {
		report["status"] = "error"
		report["storage"] = err.Error()
	} else {
		report["storage"] = "ok"
	}

	report["keyring"] = config.KeyringAvailable()
	report["tools"] = map[string]bool{
		"github":     cfg.Tools.GitHub.Enabled,
		"jira":       cfg.Tools.Jira.Enabled,
		"greptile":   cfg.Tools.Greptile.Enabled,
		"perplexity": cfg.Tools.Perplexity.Enabled,
	}

	return printReport(report)
}

func printReport(report map[string]any) error {
	out, err := json.Marshal(report)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if report["status"] != "ok" {
		return fmt.Errorf("health check failed")
	}
	return nil
}
