// Package outbound implements the Outbound Request Registry: the
// concurrency-safe correlation table that lets the core suspend a
// server-initiated call (sampling, roots list refresh, and similar) until a
// matching Response frame arrives on the client's transport, or the call
// times out.
//
// It follows the request/response correlation idiom of a one-write,
// one-read forwarding loop, generalized here into an asynchronous
// slot-per-id map with context-based timeout so many calls can be
// in-flight concurrently.
package outbound

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vecmcp/mcpserver/internal/domain/jsonrpc"
	"github.com/vecmcp/mcpserver/internal/domain/session"
)

// DefaultTimeout is the deadline applied to an outbound call whose caller
// ctx carries no deadline of its own. New falls back to this when given a
// non-positive timeout.
const DefaultTimeout = 30 * time.Second

// Sender delivers an outbound request frame to a session's transport. The
// frame must be enqueued for delivery before SendRequest returns; the
// caller's wait begins only once enqueue succeeds. Implementations refuse
// with an error when the session has no writable channel (e.g. an HTTP
// session with no active GET stream).
type Sender interface {
	SendRequest(sess *session.Session, id jsonrpc.ID, method string, params any) error
}

var idCounter uint64

// newCallID mints a process-unique outbound request id of the form
// "vecmcp_<pid>_<random4>_<counter>". Uniqueness is carried by pid+counter;
// the random segment only breaks up visual adjacency between consecutive
// ids in logs, so a read failure falls back to an all-zero segment rather
// than failing the call.
func newCallID() string {
	n := atomic.AddUint64(&idCounter, 1)
	var b [2]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("vecmcp_%d_%04x_%d", os.Getpid(), b, n)
}

// slot is the single-assignment completion record for one outbound call.
type slot struct {
	done chan struct{}
	once sync.Once
	resp *jsonrpc.Response
}

func newSlot() *slot { return &slot{done: make(chan struct{})} }

// fulfill transitions the slot to fulfilled. A second call (duplicate
// delivery) is a no-op, matching the "duplicate or late deliveries are
// dropped" contract.
func (s *slot) fulfill(resp *jsonrpc.Response) {
	s.once.Do(func() {
		s.resp = resp
		close(s.done)
	})
}

// Registry is the Outbound Request Registry. Build with New.
type Registry struct {
	mu             sync.Mutex
	slots          map[string]*slot
	logger         *slog.Logger
	defaultTimeout time.Duration
}

// New builds an empty Registry. defaultTimeout bounds any Send call whose
// ctx carries no deadline of its own; a non-positive value falls back to
// DefaultTimeout.
func New(logger *slog.Logger, defaultTimeout time.Duration) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &Registry{slots: make(map[string]*slot), logger: logger, defaultTimeout: defaultTimeout}
}

// Send implements the registry's `send` operation: mint an id, register a
// slot, hand the frame to sender for delivery, then block until a matching
// Response arrives, ctx is cancelled, or timeout elapses — whichever comes
// first. On success it returns the raw `result` payload from the client's
// response. When ctx carries no deadline, the Registry's own defaultTimeout
// applies so a dead outbound call can never wedge a slot forever.
func (r *Registry) Send(ctx context.Context, sender Sender, sess *session.Session, method string, params any) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.defaultTimeout)
		defer cancel()
	}

	id := jsonrpc.NewStringID(newCallID())
	s := newSlot()

	r.mu.Lock()
	r.slots[id.String()] = s
	r.mu.Unlock()

	cleanup := func() {
		r.mu.Lock()
		delete(r.slots, id.String())
		r.mu.Unlock()
	}

	if err := sender.SendRequest(sess, id, method, params); err != nil {
		cleanup()
		return nil, jsonrpc.NewSamplingError(fmt.Sprintf("failed to deliver outbound request: %s", err))
	}

	select {
	case <-s.done:
		cleanup()
		return parseOutboundResponse(s.resp)
	case <-ctx.Done():
		cleanup()
		return nil, jsonrpc.NewSamplingTimeout(method)
	}
}

func parseOutboundResponse(resp *jsonrpc.Response) (json.RawMessage, error) {
	if resp.Error != nil {
		return nil, jsonrpc.NewSamplingError(fmt.Sprintf("client returned error (code %d): %s", resp.Error.Code, resp.Error.Message))
	}
	if len(resp.Result) == 0 {
		return nil, jsonrpc.NewSamplingError("missing result field")
	}
	return resp.Result, nil
}

// Complete implements dispatch.OutboundCompleter: it looks up resp's id and,
// if a slot is still pending, fulfills it. It reports whether a matching
// slot was found, so the Dispatcher can log unmatched response frames.
// sessionID is accepted to satisfy the OutboundCompleter interface shape but
// is not itself part of the correlation key — outbound ids are already
// process-unique.
func (r *Registry) Complete(sessionID string, resp *jsonrpc.Response) bool {
	r.mu.Lock()
	s, ok := r.slots[resp.ID.String()]
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.fulfill(resp)
	return true
}

// CancelAll is invoked at transport shutdown. Pending slots are left to
// time out naturally rather than forcibly rejected here — this avoids
// racing with an in-flight delivery that might still complete correctly.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	n := len(r.slots)
	r.mu.Unlock()
	if n > 0 {
		r.logger.Debug("outbound registry shutdown with pending calls, letting them time out", "pending", n)
	}
}

// Pending reports the number of outbound calls currently awaiting a
// response. Exposed for tests and diagnostics.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}
