// Package config – loader.go reads YAML configuration with .env
// loading and ${VAR} expansion, so credentials never have to live in
// the config file itself.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} and ${VAR_NAME:-default} in config
// values. Group 1 is the variable name, group 3 the default.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// LoadFromFile reads and parses a YAML configuration file. .env files
// are loaded first (silently skipped when absent) and ${VAR} patterns
// in the YAML are expanded before parsing.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse([]byte(expandEnvVars(string(data))))
	if err != nil {
		return nil, err
	}
	resolveSecrets(cfg)
	return cfg, nil
}

// Load returns the defaults with .env and environment secrets applied,
// for running without a config file at all.
func Load() *Config {
	loadEnvFiles()
	cfg := DefaultConfig()
	resolveSecrets(cfg)
	return cfg
}

// Parse parses YAML bytes into a Config, overlaying the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	return cfg, nil
}

func loadEnvFiles() {
	for _, name := range []string{".env", ".env.local"} {
		if err := godotenv.Load(name); err == nil {
			slog.Debug("loaded environment file", "file", name)
		}
	}
}

func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if value, ok := os.LookupEnv(groups[1]); ok {
			return value
		}
		return groups[3]
	})
}

// resolveSecrets fills empty tool tokens and the fallback email from
// the environment or the OS keyring. Values already present in the
// parsed config are kept.
func resolveSecrets(cfg *Config) {
	fill := func(dst *string, envKey string) {
		if *dst == "" {
			*dst = TokenFor(envKey)
		}
	}
	fill(&cfg.Tools.GitHub.Token, "GITHUB_TOKEN")
	fill(&cfg.Tools.Jira.Token, "JIRA_API_TOKEN")
	fill(&cfg.Tools.Greptile.Token, "GREPTILE_API_KEY")
	fill(&cfg.Tools.Perplexity.Token, "PERPLEXITY_API_KEY")
	fill(&cfg.FallbackEmail, "JIRA_API_EMAIL")

	// A service with a token is usable even if the YAML never marked
	// it enabled.
	for _, svc := range []*ToolService{
		&cfg.Tools.GitHub, &cfg.Tools.Jira, &cfg.Tools.Greptile, &cfg.Tools.Perplexity,
	} {
		if svc.Token != "" {
			svc.Enabled = true
		}
	}
}
