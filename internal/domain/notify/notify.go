// Package notify provides thin helpers for server-to-client notifications
// that pure pass-through, carrying no dispatch logic of their own: they
// build the JSON-RPC notification frame and hand it to the session's
// transport to deliver.
package notify

import (
	"encoding/json"
	"fmt"

	"github.com/vecmcp/mcpserver/internal/domain/jsonrpc"
	"github.com/vecmcp/mcpserver/internal/domain/session"
	"github.com/vecmcp/mcpserver/internal/port/inbound"
)

func send(t inbound.Transport, sess *session.Session, method string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("notify: marshal %s params: %w", method, err)
	}
	return t.Send(sess, &jsonrpc.Notification{Method: method, Params: raw})
}

// Progress sends notifications/progress, reporting incremental progress
// against the request identified by token.
func Progress(t inbound.Transport, sess *session.Session, token jsonrpc.ID, progress, total float64, message string) error {
	return send(t, sess, "notifications/progress", map[string]any{
		"progressToken": token,
		"progress":      progress,
		"total":         total,
		"message":       message,
	})
}

// Message sends notifications/message, the logging/setLevel-gated log
// forwarding notification.
func Message(t inbound.Transport, sess *session.Session, level, logger string, data any) error {
	return send(t, sess, "notifications/message", map[string]any{
		"level":  level,
		"logger": logger,
		"data":   data,
	})
}

// ResourceUpdated sends notifications/resources/updated for a single URI.
func ResourceUpdated(t inbound.Transport, sess *session.Session, uri string) error {
	return send(t, sess, "notifications/resources/updated", map[string]any{"uri": uri})
}

// ListChanged kinds, matching dispatch.ListKind's four groups.
const (
	KindTools     = "tools"
	KindResources = "resources"
	KindPrompts   = "prompts"
	KindRoots     = "roots"
)

// ListChanged sends the notifications/<kind>/list_changed notification for
// kind (one of the Kind constants above).
func ListChanged(t inbound.Transport, sess *session.Session, kind string) error {
	return send(t, sess, "notifications/"+kind+"/list_changed", struct{}{})
}
