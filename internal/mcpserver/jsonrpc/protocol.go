package jsonrpc

import "slices"

// MCP method names
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
)

// LatestProtocolVersion is offered by clients and used by the server when a
// client asks for a version it does not know
const LatestProtocolVersion = "2025-11-25"

// SupportedProtocolVersions lists the MCP revisions this bridge speaks, newest first
var SupportedProtocolVersions = []string{
	LatestProtocolVersion,
	"2025-06-18",
	"2025-03-26",
	"2024-11-05",
}

// NegotiateVersion echoes the requested version when supported and falls back
// to the latest otherwise
func NegotiateVersion(requested string) string {
	if IsSupportedVersion(requested) {
		return requested
	}
	return LatestProtocolVersion
}

// IsSupportedVersion reports whether the bridge speaks the given revision
func IsSupportedVersion(version string) bool {
	return slices.Contains(SupportedProtocolVersions, version)
}

// Implementation names a client or server program
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializeParams is sent by the client to open a session
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      Implementation `json:"clientInfo"`
}

// InitializeResult is the server's answer to initialize
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      Implementation `json:"serverInfo"`
}
