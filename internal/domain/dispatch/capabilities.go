package dispatch

import (
	"sync"

	"github.com/vecmcp/mcpserver/internal/domain/session"
)

// ListKind identifies one of the four listable capability groups.
type ListKind int

const (
	ListKindTools ListKind = iota
	ListKindResources
	ListKindPrompts
	ListKindRoots
)

// capabilityState tracks, per server instance, whether each list-changed
// flag should currently read true. A flag is set by MarkListChanged
// (invoked by the embedder when the Registry gains or loses an entry) and
// cleared the next time a session issues the matching */list request,
// cleared the next time a matching */list request is issued.
type capabilityState struct {
	mu      sync.Mutex
	changed [4]bool
}

func (c *capabilityState) mark(kind ListKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changed[kind] = true
}

// consume reports the current flag for kind and clears it, modeling "cleared
// by that list request."
func (c *capabilityState) consume(kind ListKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.changed[kind]
	c.changed[kind] = false
	return v
}

func (c *capabilityState) peek(kind ListKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed[kind]
}

// listKindForMethod maps a */list method name to its ListKind, or ok=false
// for methods that aren't list requests.
func listKindForMethod(method string) (ListKind, bool) {
	switch method {
	case "tools/list":
		return ListKindTools, true
	case "resources/list":
		return ListKindResources, true
	case "prompts/list":
		return ListKindPrompts, true
	case "roots/list":
		return ListKindRoots, true
	default:
		return 0, false
	}
}

// buildCapabilitySet reports the server's advertised capabilities for
// initialize, given which kinds the Registry currently has content for.
// Each CapabilitySet field is non-nil only if the Registry advertises that
// kind at all, per the "present only if non-empty/enabled" rule; the
// listChanged bit reflects the current (un-consumed) flag so clients
// learn about pending changes immediately on (re)initialize.
func (d *Dispatcher) buildCapabilitySet() session.CapabilitySet {
	var caps session.CapabilitySet

	if d.registry != nil {
		if len(d.registry.Tools()) > 0 {
			caps.Tools = &session.ListCapability{ListChanged: d.capState.peek(ListKindTools)}
		}
		if len(d.registry.Resources()) > 0 {
			caps.Resources = &session.ListCapability{ListChanged: d.capState.peek(ListKindResources)}
		}
		if len(d.registry.Prompts()) > 0 {
			caps.Prompts = &session.ListCapability{ListChanged: d.capState.peek(ListKindPrompts)}
		}
		if len(d.registry.Roots()) > 0 {
			caps.Roots = &session.ListCapability{ListChanged: d.capState.peek(ListKindRoots)}
		}
	}
	if d.samplingEnabled {
		caps.Sampling = &struct{}{}
	}
	return caps
}

// MarkListChanged flags kind's listChanged bit, to be surfaced on the next
// initialize response and consumed by the next matching */list request
// across all sessions. Call this when the Registry gains or loses an
// entry; the core never calls it on its own.
func (d *Dispatcher) MarkListChanged(kind ListKind) {
	d.capState.mark(kind)
}
