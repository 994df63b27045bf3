// Package streamable implements the streamable-HTTP transport: a single
// endpoint supporting POST (client request or response-to-outbound-call),
// GET (optional resumable SSE stream), and DELETE (session termination),
// with session identity carried by the Mcp-Session-Id header.
package streamable

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/vecmcp/mcpserver/internal/adapter/inbound/httpmetrics"
	"github.com/vecmcp/mcpserver/internal/domain/dispatch"
	"github.com/vecmcp/mcpserver/internal/domain/eventstore"
	"github.com/vecmcp/mcpserver/internal/domain/jsonrpc"
	"github.com/vecmcp/mcpserver/internal/domain/session"
)

// transportLabel identifies this transport in the EventsAppended metric.
const transportLabel = "streamable-http"

// SessionIDHeader carries session identity on every request.
const SessionIDHeader = "Mcp-Session-Id"

// LastEventIDHeader, when present on GET, requests replay of events with a
// greater id before the stream goes live.
const LastEventIDHeader = "Last-Event-ID"

const (
	maxRequestBodySize = 4 << 20
	heartbeatInterval  = 30 * time.Second
	outboundQueueSize  = 64
)

// streamConn is the record for one session's open GET stream.
type streamConn struct {
	queue  chan sseFrame
	closed chan struct{}
	once   sync.Once
}

func (c *streamConn) close() {
	c.once.Do(func() { close(c.closed) })
}

type sseFrame struct {
	eventType string
	data      []byte
}

// Transport is the streamable-HTTP adapter. Build with New and mount at
// Handler() under the configured prefix.
type Transport struct {
	dispatcher     *dispatch.Dispatcher
	sessions       *session.Manager
	logger         *slog.Logger
	allowedOrigins map[string]struct{}
	allowAllOrigin bool

	mu     sync.Mutex
	conns  map[string]*streamConn
	stores map[string]*eventstore.Store

	eventRetention int
	metrics        *httpmetrics.Metrics
}

// Option configures a Transport at construction time.
type Option func(*Transport)

// WithAllowedOrigins sets the Origin allow-list. An empty list or the
// literal "*" allows every origin (the default); otherwise only listed
// origins are accepted and all others receive 403. A request without an
// Origin header is always allowed (server-to-server callers).
func WithAllowedOrigins(origins []string) Option {
	return func(t *Transport) {
		t.allowAllOrigin = len(origins) == 0
		for _, o := range origins {
			if o == "*" {
				t.allowAllOrigin = true
				continue
			}
			t.allowedOrigins[o] = struct{}{}
		}
	}
}

// WithEventRetention overrides the per-session event store's retained event
// count (default eventstore.DefaultRetention).
func WithEventRetention(n int) Option {
	return func(t *Transport) { t.eventRetention = n }
}

// WithMetrics records an events-appended counter for every frame written to
// a session's event store. Omit to run without instrumentation (tests).
func WithMetrics(m *httpmetrics.Metrics) Option {
	return func(t *Transport) { t.metrics = m }
}

// New builds a Transport.
func New(dispatcher *dispatch.Dispatcher, sessions *session.Manager, logger *slog.Logger, opts ...Option) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Transport{
		dispatcher:     dispatcher,
		sessions:       sessions,
		logger:         logger,
		allowedOrigins: make(map[string]struct{}),
		allowAllOrigin: true,
		conns:          make(map[string]*streamConn),
		stores:         make(map[string]*eventstore.Store),
		eventRetention: eventstore.DefaultRetention,
	}
	for _, opt := range opts {
		opt(t)
	}
	sessions.SetOnTerminate(t.onSessionTerminate)
	return t
}

// Handler returns the http.Handler to mount at the configured path prefix.
func (t *Transport) Handler() http.Handler {
	return http.HandlerFunc(t.serveHTTP)
}

func (t *Transport) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if !t.checkOrigin(r) {
		http.Error(w, "Forbidden: origin not allowed", http.StatusForbidden)
		return
	}
	switch r.Method {
	case http.MethodPost:
		t.handlePost(w, r)
	case http.MethodGet:
		t.handleGet(w, r)
	case http.MethodDelete:
		t.handleDelete(w, r)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

func (t *Transport) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || t.allowAllOrigin {
		return true
	}
	_, ok := t.allowedOrigins[origin]
	return ok
}

func (t *Transport) handlePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSONRPCParseError(w, "request body too large")
			return
		}
		writeJSONRPCParseError(w, "failed to read request body")
		return
	}

	msg, decErr := jsonrpc.Decode(body)
	sessID := r.Header.Get(SessionIDHeader)
	reqCtx := session.RequestContext{
		Transport: "streamable-http",
		Method:    r.Method,
		Path:      r.URL.Path,
	}
	sess, _ := t.sessions.GetOrCreate(sessID, "streamable-http", reqCtx)
	w.Header().Set(SessionIDHeader, sess.ID)

	if decErr != nil {
		var derr *jsonrpc.DecodeError
		if errors.As(decErr, &derr) {
			resp := jsonrpc.NewErrorResponse(derr.RecoveredID, jsonrpc.NewParseError(derr.Error()))
			writeJSONResponse(w, http.StatusBadRequest, resp)
			return
		}
		writeJSONRPCParseError(w, decErr.Error())
		return
	}

	if _, ok := msg.(*jsonrpc.Response); ok {
		t.dispatcher.Dispatch(r.Context(), msg, sess)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	resp, err := t.dispatcher.Dispatch(r.Context(), msg, sess)
	if err != nil {
		// Dispatch returns an error for a malformed frame or an
		// unrecognized message type (*jsonrpc.Invalid classification), or
		// when a handler's result cannot be marshaled — a protocol
		// failure, not an application-level error result.
		perr, ok := jsonrpc.AsProtocolError(err)
		if !ok {
			perr = jsonrpc.NewInternal("dispatch")
		}
		id := jsonrpc.ID{}
		if perr.RequestID != nil {
			id = *perr.RequestID
		}
		resp = jsonrpc.NewErrorResponse(id, perr)
		writeJSONResponse(w, http.StatusBadRequest, resp)
		return
	}
	if resp == nil {
		// Notification: no body, per the streamable transport's 202 rule.
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (t *Transport) handleGet(w http.ResponseWriter, r *http.Request) {
	sessID := r.Header.Get(SessionIDHeader)
	if sessID == "" {
		http.Error(w, "Mcp-Session-Id header required", http.StatusBadRequest)
		return
	}
	sess, ok := t.sessions.Get(sessID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	conn := &streamConn{queue: make(chan sseFrame, outboundQueueSize), closed: make(chan struct{})}
	t.mu.Lock()
	t.conns[sessID] = conn
	store := t.storeFor(sessID)
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		if t.conns[sessID] == conn {
			delete(t.conns, sessID)
		}
		t.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(SessionIDHeader, sessID)
	w.WriteHeader(http.StatusOK)

	established, _ := json.Marshal(map[string]any{
		"jsonrpc": jsonrpc.Version,
		"method":  "connection/established",
		"params":  map[string]any{"sessionId": sessID},
	})
	writeSSEFrame(w, "message", established)
	flusher.Flush()

	if lastID := r.Header.Get(LastEventIDHeader); lastID != "" {
		for _, ev := range store.ReplayAfter(lastID) {
			writeSSEFrame(w, ev.Type, ev.Data)
		}
		flusher.Flush()
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.closed:
			return
		case frame, chanOK := <-conn.queue:
			if !chanOK {
				return
			}
			writeSSEFrame(w, frame.eventType, frame.data)
			flusher.Flush()
		case <-ticker.C:
			hb, _ := json.Marshal(map[string]any{
				"jsonrpc": jsonrpc.Version,
				"method":  "heartbeat",
				"params":  map[string]any{"timestamp": heartbeatTimestamp()},
			})
			t.appendEvent(store, "message", hb)
			writeSSEFrame(w, "message", hb)
			flusher.Flush()
		}
	}
}

// heartbeatTimestamp is split out so tests can observe its call shape
// without depending on wall-clock time elsewhere in the package.
func heartbeatTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func (t *Transport) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessID := r.Header.Get(SessionIDHeader)
	if sessID == "" {
		http.Error(w, "Mcp-Session-Id header required", http.StatusBadRequest)
		return
	}
	if !t.sessions.Terminate(sessID) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// onSessionTerminate is the session Manager's teardown hook: it closes any
// open stream for the session and drops its event store.
func (t *Transport) onSessionTerminate(sess *session.Session) {
	t.mu.Lock()
	conn := t.conns[sess.ID]
	delete(t.conns, sess.ID)
	delete(t.stores, sess.ID)
	t.mu.Unlock()
	if conn != nil {
		conn.close()
	}
}

// storeFor returns (creating if necessary) the event store for sessID.
// Caller must hold t.mu.
func (t *Transport) storeFor(sessID string) *eventstore.Store {
	store, ok := t.stores[sessID]
	if !ok {
		store = eventstore.New(t.eventRetention)
		t.stores[sessID] = store
	}
	return store
}

// appendEvent appends data to store under eventType and records it in the
// EventsAppended metric, if one was configured.
func (t *Transport) appendEvent(store *eventstore.Store, eventType string, data []byte) {
	store.Append(eventType, data)
	if t.metrics != nil {
		t.metrics.EventsAppended.WithLabelValues(transportLabel).Inc()
	}
}

// Send implements inbound.Transport: it appends msg to the session's event
// store and, if a GET stream is open, enqueues it for delivery. Absent an
// open stream, the send is refused per the "no streaming connection to
// deliver to" contract.
func (t *Transport) Send(sess *session.Session, msg jsonrpc.Message) error {
	encoded, err := jsonrpc.Encode(msg)
	if err != nil {
		return fmt.Errorf("streamable: encode outbound frame: %w", err)
	}

	t.mu.Lock()
	store := t.storeFor(sess.ID)
	t.appendEvent(store, "message", encoded)
	conn, ok := t.conns[sess.ID]
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("streamable: session %s has no open stream", sess.ID)
	}
	select {
	case conn.queue <- sseFrame{eventType: "message", data: encoded}:
		return nil
	case <-conn.closed:
		return fmt.Errorf("streamable: session %s stream is closed", sess.ID)
	}
}

// SendRequest implements outbound.Sender for server-initiated calls.
func (t *Transport) SendRequest(sess *session.Session, id jsonrpc.ID, method string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("streamable: marshal outbound params: %w", err)
	}
	return t.Send(sess, &jsonrpc.Request{ID: id, Method: method, Params: raw})
}

func writeSSEFrame(w http.ResponseWriter, eventType string, data []byte) {
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// writeJSONResponse writes resp as the JSON-RPC response body with the
// given HTTP status. status should be 200 for a normal result and 400 for
// a protocol failure (parse error, malformed frame) — the JSON-RPC error
// object alone does not change the HTTP status.
func writeJSONResponse(w http.ResponseWriter, status int, resp *jsonrpc.Response) {
	encoded, err := jsonrpc.Encode(resp)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(encoded)
}

func writeJSONRPCParseError(w http.ResponseWriter, detail string) {
	resp := jsonrpc.NewErrorResponse(jsonrpc.ID{}, jsonrpc.NewParseError(detail))
	writeJSONResponse(w, http.StatusBadRequest, resp)
}

