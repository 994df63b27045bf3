// Package inbound defines the interfaces through which the core (Dispatcher,
// Session Manager) reaches its out-of-scope collaborators. The transport
// adapters implement Transport; the other interfaces are implemented by
// embedders.
package inbound

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vecmcp/mcpserver/internal/domain/jsonrpc"
	"github.com/vecmcp/mcpserver/internal/domain/session"
)

// Registry is the out-of-scope collaborator owning tool/resource/prompt/root
// definitions and their argument validation. The core only ever lists or
// looks one up by name/URI; it holds no behavior of its own.
type Registry interface {
	Tools() []*mcp.Tool
	LookupTool(name string) (*mcp.Tool, bool)

	Resources() []*mcp.Resource
	LookupResource(uri string) (*mcp.Resource, bool)

	Prompts() []*mcp.Prompt
	LookupPrompt(name string) (*mcp.Prompt, bool)

	Roots() []*mcp.Root

	// ServerInfo returns the identity advertised in initialize's result.
	ServerInfo() *mcp.Implementation
}

// MessageHandler consumes a decoded, already-classified JSON-RPC request or
// notification plus the session it arrived on, and returns a result (for
// requests) or raises a *jsonrpc.ProtocolError. Implementations decide how
// `initialize`, `tools/call`, etc. are actually served; the Dispatcher never
// inspects method-specific semantics beyond the lifecycle methods it owns
// (`initialize`, `initialized`, cancellation); `ping` is passed to the
// MessageHandler like any other request.
type MessageHandler interface {
	HandleRequest(ctx context.Context, sess *session.Session, method string, params json.RawMessage) (any, error)
	HandleNotification(ctx context.Context, sess *session.Session, method string, params json.RawMessage)
}

// SecurityGate is an optional synchronous authorization check keyed by
// operation. A nil SecurityGate means every operation is allowed. Returning
// a non-nil error from Check causes the Dispatcher to raise that error
// (expected to be a *jsonrpc.ProtocolError; wrapped as invalid-params
// otherwise).
type SecurityGate interface {
	Check(ctx context.Context, sess *session.Session, method string, params json.RawMessage) error
}

// CancelToken is handed to a MessageHandler alongside a request's context so
// long-running handlers can observe cooperative cancellation without the
// Dispatcher forcibly terminating anything.
type CancelToken interface {
	// Cancelled reports whether cancellation has been requested.
	Cancelled() bool
	// Done returns a channel closed when cancellation is requested.
	Done() <-chan struct{}
}

// Transport is what the notify helpers need from whichever
// adapter (stdio/SSE/streamable-HTTP) owns a given session's wire
// connection: the ability to push a frame to the peer outside of a direct
// request/response cycle (notifications, outbound requests, broadcasts).
type Transport interface {
	// Send enqueues msg for delivery to sess's peer. Returns an error if
	// the session has no writable channel open (e.g. an HTTP session with
	// no active GET stream).
	Send(sess *session.Session, msg jsonrpc.Message) error
}
