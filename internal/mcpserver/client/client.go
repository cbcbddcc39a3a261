// Package client spawns the bridge server as a child process and calls its
// tools over stdio.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/erauner12/topicbridge/internal/mcpserver/config"
	"github.com/erauner12/topicbridge/internal/mcpserver/jsonrpc"
	"github.com/erauner12/topicbridge/internal/mcpserver/tools"
	"github.com/erauner12/topicbridge/internal/mcpserver/transport"
)

const (
	// DefaultRequestTimeout bounds each request/response round trip
	DefaultRequestTimeout = 5 * time.Second

	// DisconnectTimeout bounds transport teardown
	DisconnectTimeout = 5 * time.Second
)

// Config describes the server to spawn and how to talk to it
type Config struct {
	Command string
	Args    []string
	Env     map[string]string
	Dir     string

	// Role and AllowedTools scope the server's tool filter
	Role         tools.Role
	AllowedTools []string

	ClientInfo      jsonrpc.Implementation
	ProtocolVersion string
	RequestTimeout  time.Duration
}

// Dialer opens a transport to a server
type Dialer func(ctx context.Context, cfg Config) (transport.Transport, error)

// Option configures a Client
type Option func(*Client)

// WithLogger sets the client logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDialer replaces subprocess spawning, e.g. with an in-memory transport
func WithDialer(dial Dialer) Option {
	return func(c *Client) {
		c.dial = dial
	}
}

// WithStderr forwards the child's stderr to w
func WithStderr(w io.Writer) Option {
	return func(c *Client) {
		c.stderr = w
	}
}

// Client talks to one server process at a time. Safe for concurrent use;
// requests on a connection are serialized.
type Client struct {
	cfg    Config
	logger zerolog.Logger
	dial   Dialer
	stderr io.Writer

	// connectMu serializes Connect; mu guards conn
	connectMu sync.Mutex
	mu        sync.Mutex
	conn      *connection

	group singleflight.Group
}

// connection is the client side of a session
type connection struct {
	id              string
	t               transport.Transport
	serverInfo      jsonrpc.Implementation
	protocolVersion string

	// sem serializes round trips; a channel so waiting honors ctx
	sem    chan struct{}
	nextID int64

	cacheMu sync.RWMutex
	tools   []tools.ToolDescriptor
}

// New creates a disconnected client
func New(cfg Config, opts ...Option) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.ClientInfo.Name == "" {
		cfg.ClientInfo = jsonrpc.Implementation{Name: "topicbridge-client", Version: "1.0.0"}
	}
	if cfg.ProtocolVersion == "" {
		cfg.ProtocolVersion = jsonrpc.LatestProtocolVersion
	}

	c := &Client{
		cfg:    cfg,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dial == nil {
		c.dial = c.spawn
	}
	c.logger = c.logger.With().Str("role", string(cfg.Role)).Logger()
	return c
}

func (c *Client) spawn(ctx context.Context, cfg Config) (transport.Transport, error) {
	env := make(map[string]string, len(cfg.Env)+3)
	for k, v := range cfg.Env {
		env[k] = v
	}

	// The scope always comes from cfg. Blank values mask whatever the
	// child would inherit from this process's environment.
	env[config.EnvRole] = string(cfg.Role)
	env[config.EnvAllowedTools] = strings.Join(cfg.AllowedTools, ",")
	switch {
	case cfg.Role != "":
		env[config.EnvFilterMode] = string(config.FilterModeRole)
	case len(cfg.AllowedTools) > 0:
		env[config.EnvFilterMode] = string(config.FilterModeAllow)
	default:
		env[config.EnvFilterMode] = ""
	}

	return transport.StartSubprocess(ctx, transport.SubprocessConfig{
		Command: cfg.Command,
		Args:    cfg.Args,
		Env:     env,
		Dir:     cfg.Dir,
		Stderr:  c.stderr,
	})
}

// Connect starts the server, performs the initialize handshake and loads the
// tool list. Failures are ConnectionErrors and leave the client disconnected.
// Connecting an already connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	if c.IsConnected() {
		return nil
	}

	t, err := c.dial(ctx, c.cfg)
	if err != nil {
		return c.connectionError(nil, err)
	}

	conn := &connection{
		id:  ulid.Make().String(),
		t:   t,
		sem: make(chan struct{}, 1),
	}
	logger := c.logger.With().Str("sessionId", conn.id).Logger()

	if err := c.handshake(ctx, conn); err != nil {
		c.closeTransport(conn, &logger)
		return c.connectionError(conn.t, err)
	}

	if _, err := c.fetchTools(ctx, conn); err != nil {
		c.closeTransport(conn, &logger)
		return c.connectionError(conn.t, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	logger.Info().
		Str("server", conn.serverInfo.Name).
		Str("protocolVersion", conn.protocolVersion).
		Int("tools", len(conn.cachedTools())).
		Msg("Connected to MCP server")
	return nil
}

func (c *Client) handshake(ctx context.Context, conn *connection) error {
	resp, err := c.roundTrip(ctx, conn, jsonrpc.MethodInitialize, jsonrpc.InitializeParams{
		ProtocolVersion: c.cfg.ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      c.cfg.ClientInfo,
	})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("initialize: %w", resp.Error)
	}

	var result jsonrpc.InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return fmt.Errorf("initialize: decode result: %w", err)
	}
	if !jsonrpc.IsSupportedVersion(result.ProtocolVersion) {
		return fmt.Errorf("initialize: unsupported protocol version %q", result.ProtocolVersion)
	}
	conn.serverInfo = result.ServerInfo
	conn.protocolVersion = result.ProtocolVersion

	note, err := jsonrpc.NewNotification(jsonrpc.MethodInitialized, nil)
	if err != nil {
		return err
	}
	sendCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	if err := conn.t.Send(sendCtx, note); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}
	return nil
}

// Disconnect closes the transport and clears all session state. It is safe
// to call at any time and more than once; close failures are only logged.
func (c *Client) Disconnect(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return
	}

	logger := c.logger.With().Str("sessionId", conn.id).Logger()
	c.closeTransportCtx(ctx, conn, &logger)
	logger.Info().Msg("Disconnected from MCP server")
}

// IsConnected reports whether a session is open
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// ServerInfo returns what the server reported during initialize, or the zero
// value when disconnected
func (c *Client) ServerInfo() jsonrpc.Implementation {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return jsonrpc.Implementation{}
	}
	return c.conn.serverInfo
}

// SessionID identifies the current connection, empty when disconnected
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ""
	}
	return c.conn.id
}

// ListTools returns the tools visible to this client. The list is cached per
// connection, an empty list included; forceRefresh or a cold cache triggers a
// tools/list request, and concurrent loads share one request.
func (c *Client) ListTools(ctx context.Context, forceRefresh bool) ([]tools.ToolDescriptor, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}

	if !forceRefresh {
		if cached := conn.cachedTools(); cached != nil {
			return cached, nil
		}
	}

	v, err, shared := c.group.Do(conn.id+"/tools", func() (interface{}, error) {
		return c.fetchTools(ctx, conn)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug().Str("sessionId", conn.id).Msg("Shared in-flight tools/list")
	}
	return copyTools(v.([]tools.ToolDescriptor)), nil
}

func (c *Client) fetchTools(ctx context.Context, conn *connection) ([]tools.ToolDescriptor, error) {
	resp, err := c.roundTrip(ctx, conn, jsonrpc.MethodToolsList, map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("tools/list: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("tools/list: %w", resp.Error)
	}

	var result tools.ListResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("tools/list: decode result: %w", err)
	}
	if result.Tools == nil {
		result.Tools = []tools.ToolDescriptor{}
	}

	conn.cacheMu.Lock()
	conn.tools = result.Tools
	conn.cacheMu.Unlock()

	return copyTools(result.Tools), nil
}

// ToolSchema returns the input schema of a visible tool
func (c *Client) ToolSchema(ctx context.Context, name string) (map[string]any, error) {
	list, err := c.ListTools(ctx, false)
	if err != nil {
		return nil, err
	}
	for _, tool := range list {
		if tool.Name == name {
			return tool.InputSchema, nil
		}
	}
	return nil, &ToolCallError{
		Tool:    name,
		Kind:    tools.ErrCodeNotFound,
		Code:    jsonrpc.MethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found", name),
	}
}

// CallTool invokes a tool. A text result that parses as JSON is returned
// decoded; anything else comes back as the raw string. Tool failures are
// *ToolCallError.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}

	logger := c.logger.With().Str("sessionId", conn.id).Str("tool", name).Logger()

	resp, err := c.roundTrip(ctx, conn, jsonrpc.MethodToolsCall, map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return nil, fmt.Errorf("tools/call %s: %w", name, err)
	}
	if resp.Error != nil {
		callErr := toolCallError(name, resp.Error)
		logger.Debug().Str("kind", string(callErr.Kind)).Msg("Tool call failed")
		return nil, callErr
	}

	var result tools.CallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("tools/call %s: decode result: %w", name, err)
	}

	text, ok := result.FirstText()
	if result.IsError {
		return nil, &ToolCallError{
			Tool:    name,
			Kind:    tools.ErrCodeExecutionFailed,
			Message: text,
		}
	}
	if !ok {
		return nil, nil
	}
	return decodeText(text), nil
}

// decodeText returns JSON text decoded, other text unchanged
func decodeText(text string) any {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return text
	}
	return v
}

func toolCallError(name string, rpcErr *jsonrpc.Error) *ToolCallError {
	var data map[string]any
	if len(rpcErr.Data) > 0 {
		_ = json.Unmarshal(rpcErr.Data, &data)
	}

	kind, _ := data["kind"].(string)
	if kind == "" {
		switch rpcErr.Code {
		case jsonrpc.MethodNotFound:
			kind = string(tools.ErrCodeNotFound)
		case jsonrpc.InvalidParams:
			kind = string(tools.ErrCodeInvalidParams)
		default:
			kind = string(tools.ErrCodeExecutionFailed)
		}
	}

	return &ToolCallError{
		Tool:    name,
		Kind:    tools.ErrorCode(kind),
		Code:    rpcErr.Code,
		Message: rpcErr.Message,
		Data:    data,
	}
}

// roundTrip sends one request and waits for the response with the same id.
// Notifications and responses to abandoned requests are skipped; a malformed
// frame ends the session like any other transport failure.
func (c *Client) roundTrip(ctx context.Context, conn *connection, method string, params any) (jsonrpc.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	select {
	case conn.sem <- struct{}{}:
	case <-ctx.Done():
		return jsonrpc.Message{}, c.waitError(ctx)
	}
	defer func() { <-conn.sem }()

	conn.nextID++
	req, err := jsonrpc.NewRequest(conn.nextID, method, params)
	if err != nil {
		return jsonrpc.Message{}, err
	}

	if err := conn.t.Send(ctx, req); err != nil {
		return jsonrpc.Message{}, c.transportError(ctx, conn, err)
	}

	for {
		msg, err := conn.t.Receive(ctx)
		if err != nil {
			return jsonrpc.Message{}, c.transportError(ctx, conn, err)
		}
		if !msg.IsResponse() || !jsonrpc.SameID(msg.ID, req.ID) {
			c.logger.Debug().
				Str("sessionId", conn.id).
				Str("id", string(msg.ID)).
				Str("method", msg.Method).
				Msg("Discarding unrelated message")
			continue
		}
		return msg, nil
	}
}

func (c *Client) waitError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrRequestTimeout, c.cfg.RequestTimeout)
	}
	return ctx.Err()
}

// transportError classifies a failed send or receive. Anything but a
// timeout ends the session so later calls see ErrNotConnected.
func (c *Client) transportError(ctx context.Context, conn *connection, err error) error {
	if ctx.Err() != nil {
		return c.waitError(ctx)
	}

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()

	logger := c.logger.With().Str("sessionId", conn.id).Logger()
	logger.Warn().Err(err).Msg("MCP server connection lost")
	c.closeTransport(conn, &logger)

	return c.connectionError(conn.t, err)
}

// connectionError wraps err, attaching the server's stderr tail. t, when
// not nil, must already be closed so the tail is complete.
func (c *Client) connectionError(t transport.Transport, err error) error {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr
	}

	connErr = &ConnectionError{Command: c.cfg.Command, Err: err}
	var procErr *transport.ProcessError
	if errors.As(err, &procErr) {
		connErr.Stderr = procErr.Stderr
	} else if sp, ok := t.(interface{ Stderr() string }); ok {
		connErr.Stderr = sp.Stderr()
	}
	if connErr.Command == "" {
		connErr.Command = "server"
	}
	return connErr
}

func (c *Client) connection() (*connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

func (c *Client) closeTransport(conn *connection, logger *zerolog.Logger) {
	c.closeTransportCtx(context.Background(), conn, logger)
}

func (c *Client) closeTransportCtx(ctx context.Context, conn *connection, logger *zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DisconnectTimeout)
	defer cancel()

	if err := conn.t.Close(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to close transport")
	}
}

func (conn *connection) cachedTools() []tools.ToolDescriptor {
	conn.cacheMu.RLock()
	defer conn.cacheMu.RUnlock()
	return copyTools(conn.tools)
}

// copyTools deep-copies descriptors so callers cannot reach the cache.
// A nil list stays nil; an empty one stays non-nil.
func copyTools(list []tools.ToolDescriptor) []tools.ToolDescriptor {
	if list == nil {
		return nil
	}
	out := make([]tools.ToolDescriptor, len(list))
	for i, d := range list {
		d.InputSchema = copyMap(d.InputSchema)
		out[i] = d
	}
	return out
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return copyMap(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = copyValue(item)
		}
		return out
	case []string:
		return append([]string(nil), v...)
	default:
		return v
	}
}
