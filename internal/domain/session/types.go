// Package session manages MCP session lifecycle: minting, lookup,
// expiration sweep, capability negotiation, and per-transport metadata.
package session

import (
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// InitState is where a session sits in the initialization handshake.
type InitState int

const (
	// Pending means no initialize request has been received yet.
	Pending InitState = iota
	// AwaitingInitialized means initialize has been answered but the
	// client's "initialized" notification has not yet arrived.
	AwaitingInitialized
	// Initialized is terminal for the session's life.
	Initialized
)

func (s InitState) String() string {
	switch s {
	case Pending:
		return "pending"
	case AwaitingInitialized:
		return "awaitingInitialized"
	case Initialized:
		return "initialized"
	default:
		return "unknown"
	}
}

// GlobalStdioID is the fixed session id used by the stdio transport, which
// has exactly one implicit peer and never terminates its own session.
const GlobalStdioID = "stdio-global"

// RequestContext is an immutable snapshot of the inbound request that most
// recently touched a session. It is replaced wholesale on every inbound
// message, never mutated in place.
type RequestContext struct {
	Transport string
	Method    string
	Path      string
	Headers   map[string]string
	Query     map[string]string
}

// TransportMeta carries transport-specific connection metadata that isn't
// part of the MCP protocol proper.
type TransportMeta struct {
	RemoteAddr string
	UserAgent  string
	// Streaming reports whether this session currently has a live
	// server-to-client push channel open (SSE GET, stdio writer, etc).
	Streaming bool
}

// ListCapability is the `{listChanged: bool}` shape shared by tools,
// resources, prompts, and roots capability announcements.
type ListCapability struct {
	ListChanged bool
}

// CapabilitySet mirrors the four advertisable server capability groups
// plus sampling. A nil pointer suppresses the capability's JSON key
// entirely on the wire; a non-nil pointer (even zero-valued) advertises it.
type CapabilitySet struct {
	Tools     *ListCapability
	Resources *ListCapability
	Prompts   *ListCapability
	Roots     *ListCapability
	Sampling  *struct{}
}

// Session is one MCP peer connection's negotiated state.
type Session struct {
	ID                 string
	CreatedAt          time.Time
	LastAccessed       time.Time
	State              InitState
	ProtocolVersion    string
	ClientCapabilities *mcp.ClientCapabilities
	Transport          string
	Meta               TransportMeta
	RequestContext     RequestContext

	// ServerCapabilities is not read or written by the Dispatcher, which
	// tracks list-changed flags server-wide in its own state.
	ServerCapabilities CapabilitySet
}

// IsExpired reports whether the session has been idle longer than timeout.
func (s *Session) IsExpired(timeout time.Duration) bool {
	return time.Since(s.LastAccessed) > timeout
}

// Touch refreshes LastAccessed to now.
func (s *Session) Touch() {
	s.LastAccessed = time.Now().UTC()
}

// RequiresInitialized reports whether method must wait for the session to
// reach Initialized before being dispatched. ping and initialize are
// exempt. The Dispatcher consults it for notifications only; its request
// gate exempts initialize alone.
func RequiresInitialized(method string) bool {
	return method != "initialize" && method != "ping"
}
