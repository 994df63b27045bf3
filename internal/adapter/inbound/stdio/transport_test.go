package stdio

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/vecmcp/mcpserver/internal/domain/dispatch"
	"github.com/vecmcp/mcpserver/internal/domain/jsonrpc"
	"github.com/vecmcp/mcpserver/internal/domain/outbound"
	"github.com/vecmcp/mcpserver/internal/domain/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 100}))
}

func newTestDispatcher() *dispatch.Dispatcher {
	reg := outbound.New(discardLogger(), outbound.DefaultTimeout)
	return dispatch.New(nil, nil, reg, nil, discardLogger())
}

func TestRunHandlesInitializeAndEchoesResponse(t *testing.T) {
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}` + "\n")
	var out bytes.Buffer

	d := newTestDispatcher()
	sessions := session.NewManager(session.DefaultTimeout, discardLogger())
	tr := New(in, &out, d, sessions, discardLogger())

	if err := tr.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var resp struct {
		ID     int             `json:"id"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp); err != nil {
		t.Fatalf("Unmarshal(out) error = %v, out = %q", err, out.String())
	}
	if resp.ID != 1 {
		t.Errorf("resp.ID = %d, want 1", resp.ID)
	}
	if len(resp.Result) == 0 {
		t.Error("resp.Result is empty, want initialize result")
	}
}

func TestRunSkipsEmptyLines(t *testing.T) {
	in := strings.NewReader("\n\n   \n" + `{"jsonrpc":"2.0","method":"initialized"}` + "\n")
	var out bytes.Buffer

	d := newTestDispatcher()
	sessions := session.NewManager(session.DefaultTimeout, discardLogger())
	tr := New(in, &out, d, sessions, discardLogger())

	if err := tr.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("out = %q, want empty (notification produces no reply)", out.String())
	}
}

func TestRunMalformedFrameProducesParseErrorResponse(t *testing.T) {
	in := strings.NewReader(`not json at all` + "\n")
	var out bytes.Buffer

	d := newTestDispatcher()
	sessions := session.NewManager(session.DefaultTimeout, discardLogger())
	tr := New(in, &out, d, sessions, discardLogger())

	if err := tr.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var resp struct {
		Error *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp); err != nil {
		t.Fatalf("Unmarshal(out) error = %v, out = %q", err, out.String())
	}
	if resp.Error == nil || resp.Error.Code != -32700 {
		t.Errorf("resp.Error = %+v, want parse-error -32700", resp.Error)
	}
}

func TestRunEOFEndsLoopWithoutError(t *testing.T) {
	in := strings.NewReader("")
	var out bytes.Buffer

	d := newTestDispatcher()
	sessions := session.NewManager(session.DefaultTimeout, discardLogger())
	tr := New(in, &out, d, sessions, discardLogger())

	if err := tr.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v, want nil on clean EOF", err)
	}
}

func TestRunRespectsContextCancellation(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	var out bytes.Buffer

	d := newTestDispatcher()
	sessions := session.NewManager(session.DefaultTimeout, discardLogger())
	tr := New(pr, &out, d, sessions, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	// Unblock the scanner with a line, then cancel before any more input.
	pw.Write([]byte(`{"jsonrpc":"2.0","method":"initialized"}` + "\n"))
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}

func TestSendWritesEncodedFrame(t *testing.T) {
	var out bytes.Buffer
	d := newTestDispatcher()
	sessions := session.NewManager(session.DefaultTimeout, discardLogger())
	tr := New(strings.NewReader(""), &out, d, sessions, discardLogger())

	sess := &session.Session{ID: session.GlobalStdioID}
	err := tr.SendRequest(sess, jsonrpc.NewNumberID(7), "roots/list", map[string]any{})
	if err != nil {
		t.Fatalf("SendRequest() error = %v", err)
	}
	if !strings.Contains(out.String(), `"method":"roots/list"`) {
		t.Errorf("out = %q, want a roots/list request frame", out.String())
	}
}
