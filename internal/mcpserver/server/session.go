package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/erauner12/topicbridge/internal/mcpserver/jsonrpc"
	"github.com/erauner12/topicbridge/internal/mcpserver/tools"
)

// ErrSessionNotFound is returned for unknown session ids
var ErrSessionNotFound = errors.New("session not found")

// SessionOptions scopes a connection to a subset of the registry
type SessionOptions struct {
	// Filter defaults to the role filter, which denies everything unless
	// FilterContext names a known role
	Filter        tools.Filter
	FilterContext tools.FilterContext
}

// Session is the server side of one client connection
type Session struct {
	ID        string
	CreatedAt time.Time
	Filter    tools.Filter
	Caller    tools.FilterContext

	mu              sync.RWMutex
	lastSeen        time.Time
	initialized     bool
	protocolVersion string
	clientInfo      jsonrpc.Implementation
}

// Initialize records the outcome of the handshake
func (s *Session) Initialize(version string, client jsonrpc.Implementation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.protocolVersion = version
	s.clientInfo = client
}

// Initialized reports whether the handshake has completed
func (s *Session) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// ProtocolVersion is the negotiated MCP revision, empty before initialize
func (s *Session) ProtocolVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.protocolVersion
}

// ClientInfo is what the client reported during initialize
func (s *Session) ClientInfo() jsonrpc.Implementation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientInfo
}

// LastSeen is the time of the last message on the session
func (s *Session) LastSeen() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}

// Allows reports whether the session may see the tool
func (s *Session) Allows(tool tools.ToolDescriptor) bool {
	return s.Filter.Allow(s.Caller, tool)
}

// SessionManager tracks live sessions
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session // sessionID -> session
}

// NewSessionManager creates an empty session manager
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
	}
}

// CreateSession registers a new session for a connection
func (sm *SessionManager) CreateSession(opts SessionOptions) *Session {
	filter := opts.Filter
	if filter == nil {
		filter = tools.RoleFilter()
	}

	now := time.Now()
	session := &Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		Filter:    filter,
		Caller:    opts.FilterContext,
		lastSeen:  now,
	}

	sm.mu.Lock()
	sm.sessions[session.ID] = session
	sm.mu.Unlock()

	log.Debug().
		Str("sessionId", session.ID).
		Str("role", string(opts.FilterContext.Role)).
		Msg("Created MCP session")

	return session
}

// GetSession retrieves a session by ID
func (sm *SessionManager) GetSession(sessionID string) (*Session, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}

	return session, nil
}

// UpdateLastSeen updates the last seen time for a session
func (sm *SessionManager) UpdateLastSeen(sessionID string) error {
	session, err := sm.GetSession(sessionID)
	if err != nil {
		return err
	}
	session.mu.Lock()
	session.lastSeen = time.Now()
	session.mu.Unlock()
	return nil
}

// DeleteSession removes a session
func (sm *SessionManager) DeleteSession(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.sessions, sessionID)

	log.Debug().
		Str("sessionId", sessionID).
		Msg("Deleted MCP session")
}

// Count returns the number of live sessions
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}
