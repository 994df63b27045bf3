// Package sse implements the legacy two-endpoint SSE transport: a GET
// stream that hands the client a POST URL to talk back on, and a POST
// endpoint that accepts one JSON-RPC frame per call and answers it
// asynchronously over the stream.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/vecmcp/mcpserver/internal/domain/dispatch"
	"github.com/vecmcp/mcpserver/internal/domain/jsonrpc"
	"github.com/vecmcp/mcpserver/internal/domain/session"
)

const (
	maxRequestBodySize = 4 << 20
	outboundQueueSize  = 64
)

// sessionConn is the record for one session's open SSE stream.
type sessionConn struct {
	queue  chan []byte
	closed chan struct{}
	once   sync.Once
}

func (c *sessionConn) close() {
	c.once.Do(func() { close(c.closed) })
}

// Transport is the legacy SSE adapter. It mounts two routes under prefix:
// "<prefix>/sse" (GET) and "<prefix>/message" (POST).
type Transport struct {
	dispatcher *dispatch.Dispatcher
	sessions   *session.Manager
	logger     *slog.Logger
	prefix     string

	mu    sync.Mutex
	conns map[string]*sessionConn
}

// New builds a Transport. prefix is the mount path with no trailing slash
// (e.g. "" or "/mcp"); routes are served at prefix+"/sse" and
// prefix+"/message".
func New(dispatcher *dispatch.Dispatcher, sessions *session.Manager, logger *slog.Logger, prefix string) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Transport{
		dispatcher: dispatcher,
		sessions:   sessions,
		logger:     logger,
		prefix:     prefix,
		conns:      make(map[string]*sessionConn),
	}
	sessions.SetOnTerminate(t.onSessionTerminate)
	return t
}

// Register mounts the transport's two routes on mux.
func (t *Transport) Register(mux *http.ServeMux) {
	mux.HandleFunc(t.prefix+"/sse", t.handleSSE)
	mux.HandleFunc(t.prefix+"/message", t.handleMessage)
}

// handleSSE opens the event stream. The first frame is a well-known
// "endpoint" event whose data is the URL the client must POST subsequent
// JSON-RPC requests to, carrying this connection's session id.
func (t *Transport) handleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	reqCtx := session.RequestContext{Transport: "sse", Method: r.Method, Path: r.URL.Path}
	sess, _ := t.sessions.GetOrCreate("", "sse", reqCtx)

	conn := &sessionConn{queue: make(chan []byte, outboundQueueSize), closed: make(chan struct{})}
	t.mu.Lock()
	t.conns[sess.ID] = conn
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		if t.conns[sess.ID] == conn {
			delete(t.conns, sess.ID)
		}
		t.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	postURL := (&url.URL{Path: t.prefix + "/message"}).String() + "?session_id=" + sess.ID
	writeSSEFrame(w, "endpoint", []byte(postURL))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.closed:
			return
		case data, chanOK := <-conn.queue:
			if !chanOK {
				return
			}
			writeSSEFrame(w, "message", data)
			flusher.Flush()
		}
	}
}

// handleMessage accepts a single JSON-RPC frame, dispatches it, and answers
// 202 Accepted immediately; the actual response is delivered later over the
// session's open SSE stream.
func (t *Transport) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	sessID := r.URL.Query().Get("session_id")
	if sessID == "" {
		http.Error(w, "session_id query parameter required", http.StatusBadRequest)
		return
	}
	sess, ok := t.sessions.Get(sessID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "request body too large", http.StatusBadRequest)
			return
		}
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	msg, decErr := jsonrpc.Decode(body)
	if decErr != nil {
		var derr *jsonrpc.DecodeError
		if errors.As(decErr, &derr) {
			t.deliver(sess, jsonrpc.NewErrorResponse(derr.RecoveredID, jsonrpc.NewParseError(decErr.Error())))
			w.WriteHeader(http.StatusAccepted)
			return
		}
		http.Error(w, decErr.Error(), http.StatusBadRequest)
		return
	}

	sess.Touch()
	w.WriteHeader(http.StatusAccepted)

	// Dispatch after acknowledging the POST: the answer goes out over the
	// SSE stream, not this response.
	resp, err := t.dispatcher.Dispatch(r.Context(), msg, sess)
	if err != nil {
		perr, ok := jsonrpc.AsProtocolError(err)
		if !ok {
			perr = jsonrpc.NewInternal("dispatch")
		}
		id := jsonrpc.ID{}
		if perr.RequestID != nil {
			id = *perr.RequestID
		}
		t.deliver(sess, jsonrpc.NewErrorResponse(id, perr))
		return
	}
	if resp == nil {
		return
	}
	t.deliver(sess, resp)
}

func (t *Transport) deliver(sess *session.Session, msg jsonrpc.Message) {
	if err := t.Send(sess, msg); err != nil {
		t.logger.Warn("sse: failed to deliver message", "session_id", sess.ID, "error", err)
	}
}

func (t *Transport) onSessionTerminate(sess *session.Session) {
	t.mu.Lock()
	conn := t.conns[sess.ID]
	delete(t.conns, sess.ID)
	t.mu.Unlock()
	if conn != nil {
		conn.close()
	}
}

// Send implements inbound.Transport: it enqueues msg onto the session's open
// SSE stream, if any.
func (t *Transport) Send(sess *session.Session, msg jsonrpc.Message) error {
	encoded, err := jsonrpc.Encode(msg)
	if err != nil {
		return fmt.Errorf("sse: encode outbound frame: %w", err)
	}

	t.mu.Lock()
	conn, ok := t.conns[sess.ID]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("sse: session %s has no open stream", sess.ID)
	}
	select {
	case conn.queue <- encoded:
		return nil
	case <-conn.closed:
		return fmt.Errorf("sse: session %s stream is closed", sess.ID)
	}
}

// SendRequest implements outbound.Sender for server-initiated calls.
func (t *Transport) SendRequest(sess *session.Session, id jsonrpc.ID, method string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("sse: marshal outbound params: %w", err)
	}
	return t.Send(sess, &jsonrpc.Request{ID: id, Method: method, Params: raw})
}

func writeSSEFrame(w http.ResponseWriter, eventType string, data []byte) {
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", data)
}
