// Package builtin provides the zero-config Registry and MessageHandler that
// cmd/mcpcore serves when no embedder has supplied its own: no tools,
// resources, or prompts, answering only ping. Real deployments replace this
// with their own inbound.Registry/inbound.MessageHandler implementation;
// this package exists so mcpcore can boot and be driven end-to-end out of
// the box.
package builtin

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vecmcp/mcpserver/internal/domain/jsonrpc"
	"github.com/vecmcp/mcpserver/internal/domain/session"
)

// Registry is an inbound.Registry with nothing registered.
type Registry struct {
	info *mcp.Implementation
}

// New builds a Registry advertising info as the server identity.
func New(info *mcp.Implementation) *Registry {
	return &Registry{info: info}
}

func (r *Registry) Tools() []*mcp.Tool                          { return nil }
func (r *Registry) LookupTool(string) (*mcp.Tool, bool)         { return nil, false }
func (r *Registry) Resources() []*mcp.Resource                  { return nil }
func (r *Registry) LookupResource(string) (*mcp.Resource, bool) { return nil, false }
func (r *Registry) Prompts() []*mcp.Prompt                      { return nil }
func (r *Registry) LookupPrompt(string) (*mcp.Prompt, bool)     { return nil, false }
func (r *Registry) Roots() []*mcp.Root                          { return nil }
func (r *Registry) ServerInfo() *mcp.Implementation             { return r.info }

// Handler is an inbound.MessageHandler answering ping with an empty result
// and every other non-lifecycle method with method-not-found.
type Handler struct{}

func (Handler) HandleRequest(_ context.Context, _ *session.Session, method string, _ json.RawMessage) (any, error) {
	if method == "ping" {
		return struct{}{}, nil
	}
	return nil, jsonrpc.NewMethodNotFound(method)
}

func (Handler) HandleNotification(context.Context, *session.Session, string, json.RawMessage) {}
