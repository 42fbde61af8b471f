// Package config defines all configuration structures for the Aughie
// assistant and loads them from YAML with environment overrides.
package config

// Config holds all assistant configuration.
type Config struct {
	// Name is the assistant name shown in responses.
	Name string `yaml:"name"`

	// Trigger is the keyword that activates the bot in shared chats.
	Trigger string `yaml:"trigger"`

	// Model is the LLM model used for plain conversation turns.
	Model string `yaml:"model"`

	// FallbackEmail is used when a workflow needs the user's email and
	// the session has none (typically the Jira service account).
	FallbackEmail string `yaml:"fallback_email"`

	// Security configures role-based access control.
	Security SecurityConfig `yaml:"security"`

	// Storage configures state checkpointing.
	Storage StorageConfig `yaml:"storage"`

	// Tools configures the external tool services.
	Tools ToolsConfig `yaml:"tools"`

	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`
}

// SecurityConfig configures access control.
type SecurityConfig struct {
	// RBACEnabled turns the role/permission table on. When false every
	// permission check passes; the bot runs as a single-user assistant.
	RBACEnabled bool `yaml:"rbac_enabled"`
}

// StorageConfig configures the state checkpoint store.
type StorageConfig struct {
	// Type selects the backing store: "sqlite" or "memory".
	Type string `yaml:"type"`

	// Path is the SQLite database file (ignored for memory).
	Path string `yaml:"path"`

	// CheckpointSchedule is a cron expression for the periodic flush,
	// e.g. "@every 30s".
	CheckpointSchedule string `yaml:"checkpoint_schedule"`
}

// ToolService holds the settings for one external tool integration.
// An unconfigured service still appears in tool listings but every
// call returns a structured "not configured" payload.
type ToolService struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url,omitempty"`
	Token   string `yaml:"token,omitempty"`
}

// ToolsConfig configures the external SaaS tool clients.
type ToolsConfig struct {
	GitHub     ToolService `yaml:"github"`
	Jira       ToolService `yaml:"jira"`
	Greptile   ToolService `yaml:"greptile"`
	Perplexity ToolService `yaml:"perplexity"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// DefaultConfig returns the built-in defaults. Loading overlays YAML
// values on top of these.
func DefaultConfig() *Config {
	return &Config{
		Name:    "Aughie",
		Trigger: "@aughie",
		Model:   "gpt-4o-mini",
		Security: SecurityConfig{
			RBACEnabled: true,
		},
		Storage: StorageConfig{
			Type:               "sqlite",
			Path:               "./data/aughie.db",
			CheckpointSchedule: "@every 30s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
