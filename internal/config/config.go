package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Engine   EngineConfig   `mapstructure:"engine"   validate:"required"`
}

// ServerConfig contains all HTTP server related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// EngineConfig contains settings for the external graph-reasoning engine client.
type EngineConfig struct {
	// BaseURL is the root URL of the graph engine's HTTP API.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`

	// MaxConcurrency bounds how many community-update calls are issued to the
	// engine at once for a single ingested episode.
	MaxConcurrency int `mapstructure:"max_concurrency" validate:"required,gt=0"`

	// RequestTimeoutSeconds is the per-request timeout applied by the engine
	// client. The queue subsystem itself imposes no timeouts; this is the only
	// timeout policy in the ingestion path.
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds" validate:"required,gt=0"`
}
