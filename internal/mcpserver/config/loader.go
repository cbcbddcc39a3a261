package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load and LoadFromEnvironment
const (
	EnvNotionAPIKey     = "NOTION_API_KEY"
	EnvNotionDatabaseID = "EG_NOTION_DB_ID"
	EnvNotionBaseURL    = "NOTION_BASE_URL"
	EnvExaAPIKey        = "EXA_API_KEY"
	EnvExaBaseURL       = "EXA_BASE_URL"
	EnvFilterMode       = "BRIDGE_FILTER_MODE"
	EnvRole             = "BRIDGE_ROLE"
	EnvAllowedTools     = "BRIDGE_ALLOWED_TOOLS"
	EnvRemoteTimeout    = "BRIDGE_REMOTE_TIMEOUT"
	EnvCallTimeout      = "BRIDGE_CALL_TIMEOUT"
	EnvDebug            = "MCP_DEBUG"
	EnvLogLevel         = "MCP_LOG_LEVEL"
)

// Load loads configuration from a file path and applies environment variable overrides.
// The file is decoded over DefaultConfig, so omitted settings keep their defaults.
// Validation is deferred to allow CLI flag overrides to be applied first.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := applyEnvironmentOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile decodes a JSON, JSON-with-comments or YAML file into cfg
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrConfigFileNotFound
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfigFormat, err)
	}

	return nil
}

// applyEnvironmentOverrides applies configuration from environment variables
func applyEnvironmentOverrides(cfg *Config) error {
	// Remote credentials
	if key := os.Getenv(EnvNotionAPIKey); key != "" {
		cfg.Notion.APIKey = key
	}
	if dbID := os.Getenv(EnvNotionDatabaseID); dbID != "" {
		cfg.Notion.DatabaseID = dbID
	}
	if baseURL := os.Getenv(EnvNotionBaseURL); baseURL != "" {
		cfg.Notion.BaseURL = baseURL
	}
	if key := os.Getenv(EnvExaAPIKey); key != "" {
		cfg.Exa.APIKey = key
	}
	if baseURL := os.Getenv(EnvExaBaseURL); baseURL != "" {
		cfg.Exa.BaseURL = baseURL
	}

	// Tool filter. The mode is applied first so an explicit scope always
	// narrows it: a role implies role mode, an allow-list alone allow mode.
	if mode := strings.TrimSpace(os.Getenv(EnvFilterMode)); mode != "" {
		cfg.Filter.Mode = FilterMode(mode)
	}
	if allowed := os.Getenv(EnvAllowedTools); allowed != "" {
		cfg.Filter.Allow = SplitList(allowed)
		cfg.Filter.Mode = FilterModeAllow
	}
	if role := strings.TrimSpace(os.Getenv(EnvRole)); role != "" {
		cfg.Filter.Role = role
		cfg.Filter.Mode = FilterModeRole
	}

	// Timeouts
	if v := os.Getenv(EnvRemoteTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvRemoteTimeout, err)
		}
		cfg.Timeouts.Remote = Duration(d)
	}
	if v := os.Getenv(EnvCallTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvCallTimeout, err)
		}
		cfg.Timeouts.Call = Duration(d)
	}

	// Debug mode
	if debug := os.Getenv(EnvDebug); debug == "true" || debug == "1" {
		cfg.Debug = true
	}

	// Log level
	if logLevel := os.Getenv(EnvLogLevel); logLevel != "" {
		cfg.LogLevel = logLevel
	}

	return nil
}

// SplitList splits a comma-separated list, dropping blanks
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// LoadFromEnvironment creates a configuration using only environment variables.
// Validation is deferred to allow CLI flag overrides to be applied first.
func LoadFromEnvironment() (*Config, error) {
	cfg := DefaultConfig()
	if err := applyEnvironmentOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
