package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/btouchard/tablecast/internal/event"
)

// searchPaths returns the ordered list of config file locations to try.
func searchPaths() []string {
	paths := []string{
		"/etc/tablecast/tablecast.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "tablecast", "tablecast.yaml"))
	}

	paths = append(paths, "tablecast.yaml")

	if envPath := os.Getenv("TABLECAST_CONFIG"); envPath != "" {
		paths = append(paths, envPath)
	}

	return paths
}

// Load reads configuration from YAML files and environment variables.
// Files are loaded in order (each overrides the previous):
// /etc/tablecast/tablecast.yaml < ~/.config/tablecast/tablecast.yaml < ./tablecast.yaml < $TABLECAST_CONFIG
func Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range searchPaths() {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	cfg := Defaults()

	if err := loadFile(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables have higher priority than YAML config values.
func applyEnvOverrides(cfg *Config) {
	if hash := os.Getenv("TABLECAST_API_TOKEN_HASH"); hash != "" {
		cfg.MCP.APITokens = append(cfg.MCP.APITokens, APITokenEntry{Name: "env", TokenHash: hash})
	}
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config search paths
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	slog.Debug("loading config file", "path", path)

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// ParseLevel maps a log level name to a slog level. ok is false for
// unknown names.
func ParseLevel(name string) (level slog.Level, ok bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	if _, ok := ParseLevel(cfg.Server.LogLevel); !ok {
		return fmt.Errorf("server.log_level must be one of debug, info, warn, error, got %q", cfg.Server.LogLevel)
	}

	if cfg.Listener.Instance < 0 || cfg.Listener.Instance > 15 {
		return fmt.Errorf("listener.instance must be between 0 and 15, got %d", cfg.Listener.Instance)
	}

	if cfg.Listener.FlushTimeout < 0 {
		return fmt.Errorf("listener.flush_timeout must not be negative")
	}

	if cfg.Listener.LogEventsLevel != "" {
		if _, ok := ParseLevel(cfg.Listener.LogEventsLevel); !ok {
			return fmt.Errorf("listener.log_events_level must be empty or one of debug, info, warn, error, got %q", cfg.Listener.LogEventsLevel)
		}
	}

	if cfg.Listener.ArchiveLevel != "" {
		if _, ok := event.ParseLevel(cfg.Listener.ArchiveLevel); !ok {
			return fmt.Errorf("listener.archive_level must be empty or one of critical, error, warning, info, debug, got %q", cfg.Listener.ArchiveLevel)
		}
	}

	if cfg.Database.RetentionDays < 0 {
		return fmt.Errorf("database.retention_days must not be negative")
	}

	for _, tok := range cfg.MCP.APITokens {
		if len(tok.TokenHash) != 64 {
			return fmt.Errorf("mcp.api_tokens[%s].token_hash must be a hex SHA-256 digest", tok.Name)
		}
	}

	cfg.Database.Path = ExpandHome(cfg.Database.Path)

	return nil
}
