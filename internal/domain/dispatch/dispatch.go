// Package dispatch implements the Dispatcher: message classification and
// routing, the initialization gate, in-flight request tracking, and
// handler-error sanitization.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vecmcp/mcpserver/internal/domain/jsonrpc"
	"github.com/vecmcp/mcpserver/internal/domain/session"
	"github.com/vecmcp/mcpserver/internal/port/inbound"
)

// DefaultProtocolVersion is the protocol version the server negotiates
// when the client's requested version is unrecognized.
const DefaultProtocolVersion = "2024-11-05"

// cancellation method names, all bound to the same handler.
const (
	methodCancelRequestLegacy = "$/cancelRequest"
	methodCancelLegacy        = "$/cancel"
	methodCancelled           = "notifications/cancelled"
)

// OutboundCompleter is the subset of the Outbound Request Registry the
// Dispatcher needs: routing an inbound Response frame to its pending
// server-initiated call.
type OutboundCompleter interface {
	Complete(sessionID string, resp *jsonrpc.Response) bool
}

// inFlight is the record kept for one request currently being handled.
type inFlight struct {
	token *cancelToken
}

// Dispatcher is the core message router. Build with New; a zero value is
// not usable.
type Dispatcher struct {
	registry        inbound.Registry
	handler         inbound.MessageHandler
	gate            inbound.SecurityGate
	outbound        OutboundCompleter
	serverInfo      *mcp.Implementation
	samplingEnabled bool
	logger          *slog.Logger
	tracer          trace.Tracer

	capState capabilityState

	mu       sync.Mutex
	inFlight map[string]*inFlight
}

// Option configures a Dispatcher at construction time.
type Option func(*Dispatcher)

// WithSecurityGate installs an authorization check consulted before every
// request is handed to the MessageHandler.
func WithSecurityGate(gate inbound.SecurityGate) Option {
	return func(d *Dispatcher) { d.gate = gate }
}

// WithSampling advertises the sampling capability in initialize results.
func WithSampling(enabled bool) Option {
	return func(d *Dispatcher) { d.samplingEnabled = enabled }
}

// New builds a Dispatcher. registry may be nil (no tools/resources/prompts/
// roots advertised). outbound must be non-nil; it's how Response frames
// reach the Outbound Request Registry.
func New(registry inbound.Registry, handler inbound.MessageHandler, outboundReg OutboundCompleter, serverInfo *mcp.Implementation, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		registry:   registry,
		handler:    handler,
		outbound:   outboundReg,
		serverInfo: serverInfo,
		logger:     logger,
		tracer:     otel.Tracer("github.com/vecmcp/mcpserver/internal/domain/dispatch"),
		inFlight:   make(map[string]*inFlight),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func inFlightKey(sessionID string, id jsonrpc.ID) string {
	return sessionID + ":" + id.String()
}

// Dispatch classifies msg and routes it. For a Request it returns the
// *jsonrpc.Response to write back (never nil unless err is non-nil and the
// caller should itself turn err into a response via
// jsonrpc.NewErrorResponse). For a Notification or a Response frame it
// returns (nil, nil) — there is nothing to write back.
func (d *Dispatcher) Dispatch(ctx context.Context, msg jsonrpc.Message, sess *session.Session) (*jsonrpc.Response, error) {
	switch m := msg.(type) {
	case *jsonrpc.Invalid:
		return nil, jsonrpc.NewInvalidRequest("malformed JSON-RPC frame").WithRequestID(m.RecoveredID)

	case *jsonrpc.Response:
		d.routeResponse(sess, m)
		return nil, nil

	case *jsonrpc.Notification:
		d.dispatchNotification(ctx, sess, m)
		return nil, nil

	case *jsonrpc.Request:
		return d.dispatchRequest(ctx, sess, m)

	default:
		return nil, jsonrpc.NewInvalidRequest("unrecognized message type")
	}
}

func (d *Dispatcher) routeResponse(sess *session.Session, resp *jsonrpc.Response) {
	sessID := ""
	if sess != nil {
		sessID = sess.ID
	}
	if d.outbound == nil || !d.outbound.Complete(sessID, resp) {
		d.logger.Debug("dropped unmatched response frame", "session_id", sessID, "response_id", resp.ID.String())
	}
}

func (d *Dispatcher) dispatchNotification(ctx context.Context, sess *session.Session, n *jsonrpc.Notification) {
	switch n.Method {
	case "initialized":
		if sess.State == session.AwaitingInitialized {
			sess.State = session.Initialized
		}
		return
	case methodCancelRequestLegacy, methodCancelLegacy, methodCancelled:
		d.handleCancellation(sess, n.Params)
		return
	}

	if session.RequiresInitialized(n.Method) && sess.State != session.Initialized {
		d.logger.Debug("dropped notification before initialization", "method", n.Method, "session_id", sess.ID)
		return
	}

	if d.handler == nil {
		return
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("notification handler panicked", "method", n.Method, "session_id", sess.ID, "panic", r)
			}
		}()
		d.handler.HandleNotification(ctx, sess, n.Method, n.Params)
	}()
}

func (d *Dispatcher) handleCancellation(sess *session.Session, params json.RawMessage) {
	var body struct {
		RequestID jsonrpc.ID `json:"requestId"`
		ID        jsonrpc.ID `json:"id"`
	}
	if err := json.Unmarshal(params, &body); err != nil {
		return
	}
	id := body.RequestID
	if !id.IsValid() {
		id = body.ID
	}
	if !id.IsValid() {
		return
	}

	d.mu.Lock()
	entry, ok := d.inFlight[inFlightKey(sess.ID, id)]
	d.mu.Unlock()
	if !ok {
		return
	}
	entry.token.cancel()
}

func (d *Dispatcher) dispatchRequest(ctx context.Context, sess *session.Session, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	ctx, span := d.tracer.Start(ctx, "dispatch."+req.Method,
		trace.WithAttributes(attribute.String("mcp.method", req.Method), attribute.String("mcp.session_id", sess.ID)))
	defer span.End()

	if req.Method == "initialize" {
		resp, err := d.handleInitialize(sess, req)
		recordSpanErr(span, err)
		return resp, err
	}

	if sess.State != session.Initialized {
		perr := jsonrpc.NewInitializationError(req.Method).WithRequestID(req.ID)
		recordSpanErr(span, perr)
		return jsonrpc.NewErrorResponse(req.ID, perr), nil
	}

	if d.gate != nil {
		if err := d.gate.Check(ctx, sess, req.Method, req.Params); err != nil {
			perr, ok := jsonrpc.AsProtocolError(err)
			if !ok {
				perr = jsonrpc.NewInvalidParams(err.Error())
			}
			perr = perr.WithRequestID(req.ID)
			recordSpanErr(span, perr)
			return jsonrpc.NewErrorResponse(req.ID, perr), nil
		}
	}

	token := newCancelToken()
	key := inFlightKey(sess.ID, req.ID)
	d.mu.Lock()
	d.inFlight[key] = &inFlight{token: token}
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.inFlight, key)
		d.mu.Unlock()
	}()

	if kind, ok := listKindForMethod(req.Method); ok {
		d.capState.consume(kind)
	}

	hctx := context.WithValue(ctx, cancelTokenContextKey{}, token)
	result, err := d.invokeHandler(hctx, sess, req)
	if err != nil {
		perr, ok := jsonrpc.AsProtocolError(err)
		if !ok {
			d.logger.Error("request handler failed", "method", req.Method, "session_id", sess.ID, "error", err)
			perr = jsonrpc.NewInternal(req.Method)
		}
		if perr.RequestID == nil {
			perr = perr.WithRequestID(req.ID)
		}
		recordSpanErr(span, perr)
		return jsonrpc.NewErrorResponse(req.ID, perr), nil
	}

	return jsonrpc.NewResultResponse(req.ID, result)
}

func (d *Dispatcher) invokeHandler(ctx context.Context, sess *session.Session, req *jsonrpc.Request) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	if d.handler == nil {
		return nil, jsonrpc.NewMethodNotFound(req.Method)
	}
	return d.handler.HandleRequest(ctx, sess, req.Method, req.Params)
}

func recordSpanErr(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.SetStatus(codes.Error, err.Error())
}

// cancelTokenContextKey is the context key type under which the current
// request's cancelToken is stored, so a MessageHandler can retrieve it via
// TokenFromContext without threading it through every call signature.
type cancelTokenContextKey struct{}

// TokenFromContext returns the in-flight request's cancellation token, if
// any. MessageHandler implementations poll this to honor cooperative
// cancellation for long-running work.
func TokenFromContext(ctx context.Context) (inbound.CancelToken, bool) {
	t, ok := ctx.Value(cancelTokenContextKey{}).(*cancelToken)
	return t, ok
}
