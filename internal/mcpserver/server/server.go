// Package server answers MCP requests from clients connected over a
// transport, dispatching tool calls into the registry.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/erauner12/topicbridge/internal/mcpserver/jsonrpc"
	"github.com/erauner12/topicbridge/internal/mcpserver/telemetry"
	"github.com/erauner12/topicbridge/internal/mcpserver/tools"
	"github.com/erauner12/topicbridge/internal/mcpserver/transport"
)

// DefaultCallTimeout bounds a single tool body
const DefaultCallTimeout = 5 * time.Second

// Options configures a Server
type Options struct {
	Info     jsonrpc.Implementation
	Services *tools.Services
	// Logger defaults to the global logger
	Logger      *zerolog.Logger
	Observer    *telemetry.Observer
	CallTimeout time.Duration
}

// Server is the MCP tool server. One Server may serve many connections.
type Server struct {
	registry   *tools.Registry
	services   *tools.Services
	info       jsonrpc.Implementation
	logger     zerolog.Logger
	observer   *telemetry.Observer
	timeout    time.Duration
	sessionMgr *SessionManager
}

// New creates a server over a populated registry. The registry must not be
// modified once the server starts serving.
func New(registry *tools.Registry, opts Options) *Server {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	info := opts.Info
	if info.Name == "" {
		info.Name = "topicbridge"
	}

	return &Server{
		registry:   registry,
		services:   opts.Services,
		info:       info,
		logger:     logger,
		observer:   opts.Observer,
		timeout:    timeout,
		sessionMgr: NewSessionManager(),
	}
}

// Sessions exposes the live session table
func (s *Server) Sessions() *SessionManager {
	return s.sessionMgr
}

// ServeConn runs one session over t until the peer disconnects (nil). A
// cancelled ctx or a malformed frame ends it with an error. Messages are
// handled one at a time in arrival order. The transport is closed on return.
func (s *Server) ServeConn(ctx context.Context, t transport.Transport, opts SessionOptions) error {
	session := s.sessionMgr.CreateSession(opts)
	defer s.sessionMgr.DeleteSession(session.ID)

	logger := s.logger.With().
		Str("sessionId", session.ID).
		Str("role", string(session.Caller.Role)).
		Logger()

	defer func() {
		if err := t.Close(context.Background()); err != nil {
			logger.Debug().Err(err).Msg("Transport close failed")
		}
	}()

	logger.Info().Msg("MCP session started")

	for {
		msg, err := t.Receive(ctx)
		if err != nil {
			switch {
			case errors.Is(err, transport.ErrMalformedFrame):
				// The stream can no longer be trusted: answer once, then hang up.
				logger.Warn().Err(err).Msg("Malformed frame, closing session")
				s.send(ctx, t, &logger, jsonrpc.NewError(jsonrpc.NullID, jsonrpc.ParseError, "Parse error", nil))
				return fmt.Errorf("receive: %w", err)
			case errors.Is(err, io.EOF), errors.Is(err, transport.ErrClosed):
				logger.Info().Msg("MCP session closed by peer")
				return nil
			case ctx.Err() != nil:
				logger.Info().Msg("MCP session cancelled")
				return ctx.Err()
			default:
				return fmt.Errorf("receive: %w", err)
			}
		}

		if err := s.sessionMgr.UpdateLastSeen(session.ID); err != nil {
			// Dropped from the manager while the connection was still open.
			logger.Warn().Err(err).Msg("Session no longer tracked")
			return err
		}
		s.handleMessage(ctx, t, session, &logger, msg)
	}
}

// handleMessage routes one inbound message
func (s *Server) handleMessage(ctx context.Context, t transport.Transport, session *Session, logger *zerolog.Logger, msg jsonrpc.Message) {
	if msg.JSONRPC != jsonrpc.Version {
		if len(msg.ID) > 0 || msg.Method != "" {
			s.send(ctx, t, logger, jsonrpc.NewError(msg.ID, jsonrpc.InvalidRequest, "invalid jsonrpc version", nil))
		}
		return
	}

	switch {
	case msg.IsNotification():
		logger.Debug().Str("method", msg.Method).Msg("Notification received")
		return
	case msg.IsResponse():
		logger.Debug().Str("id", string(msg.ID)).Msg("Ignoring unsolicited response")
		return
	case !msg.IsRequest():
		s.send(ctx, t, logger, jsonrpc.NewError(msg.ID, jsonrpc.InvalidRequest, "invalid request", nil))
		return
	}

	reqLogger := logger.With().Str("method", msg.Method).Logger()
	s.send(ctx, t, &reqLogger, s.dispatch(ctx, session, &reqLogger, msg))
}

func (s *Server) dispatch(ctx context.Context, session *Session, logger *zerolog.Logger, req jsonrpc.Message) (resp jsonrpc.Message) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error().Interface("panic", p).Msg("Request handler panicked")
			resp = jsonrpc.NewError(req.ID, jsonrpc.InternalError, fmt.Sprintf("internal error: %v", p), nil)
		}
	}()

	switch req.Method {
	case jsonrpc.MethodInitialize:
		return s.handleInitialize(session, logger, req)

	case jsonrpc.MethodPing:
		return s.result(req.ID, map[string]any{})

	case jsonrpc.MethodToolsList:
		if !session.Initialized() {
			return jsonrpc.NewError(req.ID, jsonrpc.InvalidRequest, "session not initialized", nil)
		}
		return s.result(req.ID, s.handleListTools(session))

	case jsonrpc.MethodToolsCall:
		if !session.Initialized() {
			return jsonrpc.NewError(req.ID, jsonrpc.InvalidRequest, "session not initialized", nil)
		}
		var callReq tools.CallRequest
		if err := json.Unmarshal(req.Params, &callReq); err != nil || callReq.Name == "" {
			return jsonrpc.NewError(req.ID, jsonrpc.InvalidParams, "invalid tool call parameters", nil)
		}

		result, err := s.handleCallTool(ctx, session, logger, callReq)
		if err != nil {
			var toolErr *tools.ToolError
			if errors.As(err, &toolErr) {
				code, message, data := toolErr.ToJSONRPCError()
				return jsonrpc.NewError(req.ID, code, message, data)
			}
			return jsonrpc.NewError(req.ID, jsonrpc.InternalError, err.Error(), nil)
		}
		return s.result(req.ID, result)

	default:
		return jsonrpc.NewError(req.ID, jsonrpc.MethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil)
	}
}

// handleInitialize negotiates the protocol version and opens the session
func (s *Server) handleInitialize(session *Session, logger *zerolog.Logger, req jsonrpc.Message) jsonrpc.Message {
	if session.Initialized() {
		return jsonrpc.NewError(req.ID, jsonrpc.InvalidRequest, "session already initialized", nil)
	}

	var params jsonrpc.InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return jsonrpc.NewError(req.ID, jsonrpc.InvalidParams, "invalid initialize parameters", nil)
		}
	}

	version := jsonrpc.NegotiateVersion(params.ProtocolVersion)
	session.Initialize(version, params.ClientInfo)

	logger.Info().
		Str("protocolVersion", version).
		Str("requestedVersion", params.ProtocolVersion).
		Str("client", params.ClientInfo.Name).
		Msg("MCP session initialized")

	return s.result(req.ID, jsonrpc.InitializeResult{
		ProtocolVersion: version,
		Capabilities: map[string]any{
			"tools": map[string]any{},
		},
		ServerInfo: s.info,
	})
}

// handleListTools returns every tool the session's filter admits
func (s *Server) handleListTools(session *Session) tools.ListResult {
	return tools.ListResult{
		Tools: tools.FilterTools(session.Filter, session.Caller, s.registry.List()),
	}
}

// handleCallTool checks the filter before the registry so hidden tools are
// indistinguishable from absent ones
func (s *Server) handleCallTool(ctx context.Context, session *Session, logger *zerolog.Logger, req tools.CallRequest) (tools.CallResult, error) {
	callLogger := logger.With().Str("tool", req.Name).Logger()

	ctx, call := s.observer.StartCall(ctx, session.ID, req.Name)

	def, _, ok := s.registry.Lookup(req.Name)
	if !ok || !session.Allows(def.Descriptor()) {
		callLogger.Warn().Bool("registered", ok).Msg("Tool call rejected")
		call.End(string(tools.ErrCodeNotFound))
		return tools.CallResult{}, tools.NewNotFoundError(req.Name)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	toolCtx := tools.NewToolContext(&callLogger, session.ID, session.Caller, s.services)

	start := time.Now()
	result, err := s.registry.Call(ctx, toolCtx, req)
	duration := time.Since(start)

	if err != nil {
		outcome := string(tools.ErrCodeInternal)
		var toolErr *tools.ToolError
		if errors.As(err, &toolErr) {
			outcome = string(toolErr.Code)
		}
		call.End(outcome)
		callLogger.Warn().Err(err).Dur("duration", duration).Msg("Tool call failed")
		return tools.CallResult{}, err
	}

	call.End(telemetry.OutcomeOK)
	callLogger.Info().Dur("duration", duration).Msg("Tool call completed")
	return result, nil
}

func (s *Server) result(id json.RawMessage, v any) jsonrpc.Message {
	msg, err := jsonrpc.NewResult(id, v)
	if err != nil {
		return jsonrpc.NewError(id, jsonrpc.InternalError, err.Error(), nil)
	}
	return msg
}

// send writes a response. Responses for a closed transport are dropped.
func (s *Server) send(ctx context.Context, t transport.Transport, logger *zerolog.Logger, msg jsonrpc.Message) {
	err := t.Send(ctx, msg)
	switch {
	case err == nil:
	case errors.Is(err, transport.ErrClosed), errors.Is(err, io.ErrClosedPipe), ctx.Err() != nil:
		logger.Debug().Err(err).Str("id", string(msg.ID)).Msg("Dropping response for closed session")
	default:
		logger.Warn().Err(err).Str("id", string(msg.ID)).Msg("Failed to send response")
	}
}
