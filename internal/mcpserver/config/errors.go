package config

import "errors"

var (
	// ErrInvalidTimeout indicates a zero or negative timeout
	ErrInvalidTimeout = errors.New("timeouts.remote and timeouts.call must be positive")

	// ErrTimeoutHeadroom indicates a remote timeout that does not fit inside the call timeout
	ErrTimeoutHeadroom = errors.New("timeouts.remote must be shorter than timeouts.call")

	// ErrUnknownFilterMode indicates a filter mode other than role, allow or all
	ErrUnknownFilterMode = errors.New("filter.mode must be one of role, allow, all")

	// ErrMissingRole indicates role filtering without a role
	ErrMissingRole = errors.New("filter.role is required when filter.mode is role")

	// ErrEmptyAllowList indicates allow-list filtering without any tool
	ErrEmptyAllowList = errors.New("filter.allow must name at least one tool when filter.mode is allow")

	// ErrConfigFileNotFound indicates that the config file was not found
	ErrConfigFileNotFound = errors.New("configuration file not found")

	// ErrInvalidConfigFormat indicates that the config file could not be parsed
	ErrInvalidConfigFormat = errors.New("invalid configuration file format")
)
