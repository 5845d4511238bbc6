package config

import "time"

// Config is the root configuration for tablecast.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Listener ListenerConfig `yaml:"listener"`
	Database DatabaseConfig `yaml:"database"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	MCP      MCPConfig      `yaml:"mcp"`
}

type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

type ListenerConfig struct {
	// Instance is the network table instance id carried in handles (0-15).
	Instance int `yaml:"instance"`
	// FlushTimeout bounds the wait for pending callbacks at shutdown.
	FlushTimeout time.Duration `yaml:"flush_timeout"`
	// LogEventsLevel is the lowest daemon log level republished as
	// log-message events. Empty disables the bridge.
	LogEventsLevel string `yaml:"log_events_level"`
	// ArchiveLevel is the lowest log-message level stored in the database
	// (critical, error, warning, info, debug). Empty disables the archive.
	ArchiveLevel string `yaml:"archive_level"`
}

type DatabaseConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type MCPConfig struct {
	Enabled   bool            `yaml:"enabled"`
	APITokens []APITokenEntry `yaml:"api_tokens"`
}

type APITokenEntry struct {
	Name      string `yaml:"name"`
	TokenHash string `yaml:"token_hash"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "127.0.0.1",
			Port:     5820,
			LogLevel: "info",
		},
		Listener: ListenerConfig{
			FlushTimeout:   5 * time.Second,
			LogEventsLevel: "info",
			ArchiveLevel:   "warning",
		},
		Database: DatabaseConfig{
			Path:          "~/.config/tablecast/tablecast.db",
			RetentionDays: 30,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		MCP: MCPConfig{
			Enabled: true,
		},
	}
}
