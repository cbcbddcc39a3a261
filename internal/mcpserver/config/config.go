package config

import (
	"time"

	"github.com/erauner12/topicbridge/internal/mcpserver/remote"
	"github.com/erauner12/topicbridge/internal/mcpserver/tools"
)

// Config holds all configuration for the bridge server
type Config struct {
	Server   ServerConfig  `json:"server" yaml:"server"`
	Notion   NotionConfig  `json:"notion" yaml:"notion"`
	Exa      ExaConfig     `json:"exa" yaml:"exa"`
	Fetch    FetchConfig   `json:"fetch" yaml:"fetch"`
	Timeouts TimeoutConfig `json:"timeouts" yaml:"timeouts"`
	Filter   FilterConfig  `json:"filter" yaml:"filter"`
	Debug    bool          `json:"debug" yaml:"debug"`
	LogLevel string        `json:"logLevel" yaml:"logLevel"`
}

// ServerConfig is reported to clients during initialize
type ServerConfig struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}

// NotionConfig points at the topic database
type NotionConfig struct {
	APIKey     string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	DatabaseID string `json:"databaseId,omitempty" yaml:"databaseId,omitempty"`
	BaseURL    string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	APIVersion string `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`
}

// ExaConfig configures the search API
type ExaConfig struct {
	APIKey  string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	BaseURL string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
}

// FetchConfig configures direct page downloads
type FetchConfig struct {
	UserAgent string `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
	MaxBytes  int64  `json:"maxBytes,omitempty" yaml:"maxBytes,omitempty"`
}

// TimeoutConfig bounds outbound calls and tool bodies. Remote must stay
// below Call so a remote timeout surfaces as a tool failure.
type TimeoutConfig struct {
	Remote Duration `json:"remote" yaml:"remote"`
	Call   Duration `json:"call" yaml:"call"`
}

// FilterMode selects how a session's tools are filtered
type FilterMode string

const (
	FilterModeRole  FilterMode = "role"
	FilterModeAllow FilterMode = "allow"
	FilterModeAll   FilterMode = "all"
)

// FilterConfig scopes the stdio session to a subset of tools
type FilterConfig struct {
	Mode  FilterMode `json:"mode" yaml:"mode"`
	Role  string     `json:"role,omitempty" yaml:"role,omitempty"`
	Allow []string   `json:"allow,omitempty" yaml:"allow,omitempty"`
	Label string     `json:"label,omitempty" yaml:"label,omitempty"`
}

// Validate checks if the configuration is valid. Missing credentials are not
// an error; tools that need them fail at call time.
func (c *Config) Validate() error {
	if c.Timeouts.Remote <= 0 || c.Timeouts.Call <= 0 {
		return ErrInvalidTimeout
	}
	if c.Timeouts.Remote >= c.Timeouts.Call {
		return ErrTimeoutHeadroom
	}

	return c.Filter.Validate()
}

// Validate checks the filter settings
func (f *FilterConfig) Validate() error {
	switch f.Mode {
	case FilterModeRole:
		if f.Role == "" {
			return ErrMissingRole
		}
		if _, err := tools.ParseRole(f.Role); err != nil {
			return err
		}
	case FilterModeAllow:
		if len(f.Allow) == 0 {
			return ErrEmptyAllowList
		}
	case FilterModeAll:
	default:
		return ErrUnknownFilterMode
	}
	return nil
}

// Build returns the session filter and the caller description it is
// evaluated against. In role mode a non-empty Allow further narrows the role.
func (f *FilterConfig) Build() (tools.Filter, tools.FilterContext, error) {
	if err := f.Validate(); err != nil {
		return nil, tools.FilterContext{}, err
	}

	fc := tools.FilterContext{Role: tools.Role(f.Role), Label: f.Label}
	switch f.Mode {
	case FilterModeAll:
		return tools.AllowAll(), fc, nil
	case FilterModeAllow:
		return tools.AllowList(f.Allow...), fc, nil
	}

	if len(f.Allow) > 0 {
		return tools.AllOf(tools.RoleFilter(), tools.AllowList(f.Allow...)), fc, nil
	}
	return tools.RoleFilter(), fc, nil
}

// MissingCredentials lists the environment variables of unset remote
// credentials
func (c *Config) MissingCredentials() []string {
	var missing []string
	if c.Notion.APIKey == "" {
		missing = append(missing, EnvNotionAPIKey)
	}
	if c.Notion.DatabaseID == "" {
		missing = append(missing, EnvNotionDatabaseID)
	}
	if c.Exa.APIKey == "" {
		missing = append(missing, EnvExaAPIKey)
	}
	return missing
}

// NotionClientConfig converts the Notion settings for the remote client
func (c *Config) NotionClientConfig() remote.NotionConfig {
	return remote.NotionConfig{
		APIKey:     c.Notion.APIKey,
		DatabaseID: c.Notion.DatabaseID,
		BaseURL:    c.Notion.BaseURL,
		APIVersion: c.Notion.APIVersion,
	}
}

// ExaClientConfig converts the Exa settings for the remote client
func (c *Config) ExaClientConfig() remote.ExaConfig {
	return remote.ExaConfig{
		APIKey:  c.Exa.APIKey,
		BaseURL: c.Exa.BaseURL,
	}
}

// FetchClientConfig converts the fetch settings for the remote fetcher
func (c *Config) FetchClientConfig() remote.FetchConfig {
	return remote.FetchConfig{
		UserAgent: c.Fetch.UserAgent,
		MaxBytes:  c.Fetch.MaxBytes,
	}
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "topicbridge",
		},
		Notion: NotionConfig{
			BaseURL:    remote.DefaultNotionBaseURL,
			APIVersion: remote.NotionAPIVersion,
		},
		Exa: ExaConfig{
			BaseURL: remote.DefaultExaBaseURL,
		},
		Fetch: FetchConfig{
			UserAgent: remote.DefaultUserAgent,
			MaxBytes:  remote.DefaultMaxBytes,
		},
		Timeouts: TimeoutConfig{
			Remote: Duration(4 * time.Second),
			Call:   Duration(5 * time.Second),
		},
		Filter: FilterConfig{
			Mode: FilterModeRole,
		},
		Debug:    false,
		LogLevel: "info",
	}
}
