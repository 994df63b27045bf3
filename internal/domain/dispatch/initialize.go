package dispatch

import (
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vecmcp/mcpserver/internal/domain/jsonrpc"
	"github.com/vecmcp/mcpserver/internal/domain/session"
)

// supportedProtocolVersions are the versions this Dispatcher will echo back
// verbatim when a client requests one of them.
var supportedProtocolVersions = map[string]bool{
	"2024-11-05": true,
	"2025-03-26": true,
}

// listCapabilityWire is the `{listChanged: bool}` wire shape.
type listCapabilityWire struct {
	ListChanged bool `json:"listChanged"`
}

// serverCapabilitiesWire is the initialize result's capabilities object.
// It is a hand-built wire struct rather than *mcp.ServerCapabilities because
// this server advertises a "roots" server capability the upstream SDK's
// type does not model (roots is normally client-side only).
type serverCapabilitiesWire struct {
	Tools     *listCapabilityWire `json:"tools,omitempty"`
	Resources *listCapabilityWire `json:"resources,omitempty"`
	Prompts   *listCapabilityWire `json:"prompts,omitempty"`
	Roots     *listCapabilityWire `json:"roots,omitempty"`
	Sampling  *struct{}           `json:"sampling,omitempty"`
}

type initializeResultWire struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    serverCapabilitiesWire `json:"capabilities"`
	ServerInfo      *mcp.Implementation    `json:"serverInfo"`
}

func toWireCapabilities(c session.CapabilitySet) serverCapabilitiesWire {
	wire := func(lc *session.ListCapability) *listCapabilityWire {
		if lc == nil {
			return nil
		}
		return &listCapabilityWire{ListChanged: lc.ListChanged}
	}
	return serverCapabilitiesWire{
		Tools:     wire(c.Tools),
		Resources: wire(c.Resources),
		Prompts:   wire(c.Prompts),
		Roots:     wire(c.Roots),
		Sampling:  c.Sampling,
	}
}

func (d *Dispatcher) handleInitialize(sess *session.Session, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	if sess.State != session.Pending {
		perr := jsonrpc.NewInitializationError("initialize").WithRequestID(req.ID)
		return jsonrpc.NewErrorResponse(req.ID, perr), nil
	}

	var params mcp.InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			perr := jsonrpc.NewInvalidParams("invalid initialize params: " + err.Error()).WithRequestID(req.ID)
			return jsonrpc.NewErrorResponse(req.ID, perr), nil
		}
	}

	negotiated := DefaultProtocolVersion
	if supportedProtocolVersions[params.ProtocolVersion] {
		negotiated = params.ProtocolVersion
	} else if params.ProtocolVersion != "" {
		d.logger.Warn("client requested unsupported protocol version, using server default",
			"requested", params.ProtocolVersion, "negotiated", negotiated, "session_id", sess.ID)
	}

	sess.ProtocolVersion = negotiated
	sess.ClientCapabilities = params.Capabilities
	sess.State = session.AwaitingInitialized

	result := initializeResultWire{
		ProtocolVersion: negotiated,
		Capabilities:    toWireCapabilities(d.buildCapabilitySet()),
		ServerInfo:      d.serverInfo,
	}
	return jsonrpc.NewResultResponse(req.ID, result)
}
