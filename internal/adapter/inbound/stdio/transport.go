// Package stdio implements the stdio transport: one process, one peer, one
// implicit session, reading and writing newline-delimited JSON-RPC frames
// over stdin/stdout.
package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/vecmcp/mcpserver/internal/domain/dispatch"
	"github.com/vecmcp/mcpserver/internal/domain/jsonrpc"
	"github.com/vecmcp/mcpserver/internal/domain/session"
)

// initialScanBuf and maxScanBuf size the line scanner; MCP frames can carry
// large tool results so the ceiling is generous.
const (
	initialScanBuf = 256 * 1024
	maxScanBuf     = 8 * 1024 * 1024
)

// Transport is the stdio adapter. Build with New, then call Run.
type Transport struct {
	in  io.Reader
	out io.Writer

	dispatcher *dispatch.Dispatcher
	sessions   *session.Manager
	logger     *slog.Logger

	writeMu sync.Mutex
	sess    *session.Session
}

// New builds a stdio Transport reading in and writing out (typically
// os.Stdin / os.Stdout).
func New(in io.Reader, out io.Writer, dispatcher *dispatch.Dispatcher, sessions *session.Manager, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{in: in, out: out, dispatcher: dispatcher, sessions: sessions, logger: logger}
}

// Run blocks reading newline-delimited frames from stdin, dispatching each,
// and writing any response to stdout, until EOF, a write failure, or ctx is
// cancelled. Empty lines are skipped. EOF ends the loop without error; any
// write failure (broken pipe) ends it and is returned.
func (t *Transport) Run(ctx context.Context) error {
	reqCtx := session.RequestContext{Transport: "stdio"}
	sess, _ := t.sessions.GetOrCreate(session.GlobalStdioID, "stdio", reqCtx)
	t.sess = sess

	scanner := bufio.NewScanner(t.in)
	buf := make([]byte, 0, initialScanBuf)
	scanner.Buffer(buf, maxScanBuf)

	// A blocked read does not observe ctx; closing the input, when it can
	// be closed, unblocks the scanner so cancellation ends the loop.
	if c, ok := t.in.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { _ = c.Close() })
		defer stop()
	}

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		raw := append([]byte(nil), line...)

		if err := t.handleLine(ctx, sess, raw); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stdio: scan error: %w", err)
	}
	return nil
}

func (t *Transport) handleLine(ctx context.Context, sess *session.Session, raw []byte) error {
	sess.Touch()

	msg, err := jsonrpc.Decode(raw)
	if err != nil {
		var derr *jsonrpc.DecodeError
		if errors.As(err, &derr) {
			perr := jsonrpc.NewParseError(derr.Error())
			resp := jsonrpc.NewErrorResponse(derr.RecoveredID, perr)
			return t.writeResponse(resp)
		}
		return fmt.Errorf("stdio: decode: %w", err)
	}

	resp, err := t.dispatcher.Dispatch(ctx, msg, sess)
	if err != nil {
		perr, ok := jsonrpc.AsProtocolError(err)
		if !ok {
			t.logger.Error("dispatch failed", "error", err)
			return nil
		}
		id := jsonrpc.ID{}
		if perr.RequestID != nil {
			id = *perr.RequestID
		}
		return t.writeResponse(jsonrpc.NewErrorResponse(id, perr))
	}
	if resp == nil {
		return nil
	}
	return t.writeResponse(resp)
}

func (t *Transport) writeResponse(resp *jsonrpc.Response) error {
	encoded, err := jsonrpc.Encode(resp)
	if err != nil {
		t.logger.Error("failed to encode response", "error", err)
		return nil
	}
	return t.writeFrame(encoded)
}

// writeFrame serializes writes behind a single lock and flushes immediately
// per-line; a broken pipe here is treated as fatal to the transport, the
// same as a read EOF.
func (t *Transport) writeFrame(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.out.Write(data); err != nil {
		return t.logWriteFailure(err)
	}
	if _, err := t.out.Write([]byte("\n")); err != nil {
		return t.logWriteFailure(err)
	}
	return nil
}

// logWriteFailure logs at Debug for the ordinary peer-disconnected case
// (broken pipe / connection reset) and at Error for anything else, then
// returns the wrapped error either way — both end the Run loop.
func (t *Transport) logWriteFailure(err error) error {
	if isBrokenPipe(err) {
		t.logger.Debug("stdio: peer closed the pipe", "error", err)
	} else {
		t.logger.Error("stdio: write failed", "error", err)
	}
	return fmt.Errorf("stdio: write: %w", err)
}

// Send implements inbound.Transport: it pushes a server-originated frame
// (notification, outbound request, or outbound response) to stdout. The
// stdio transport has exactly one peer, so sess is not otherwise consulted.
func (t *Transport) Send(sess *session.Session, msg jsonrpc.Message) error {
	encoded, err := jsonrpc.Encode(msg)
	if err != nil {
		return fmt.Errorf("stdio: encode outbound frame: %w", err)
	}
	return t.writeFrame(encoded)
}

// SendRequest implements outbound.Sender: it writes an outbound
// server-initiated request frame. The matching Response arrives back on the
// same reader loop and is routed to the Outbound Request Registry by the
// Dispatcher.
func (t *Transport) SendRequest(sess *session.Session, id jsonrpc.ID, method string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("stdio: marshal outbound params: %w", err)
	}
	req := &jsonrpc.Request{ID: id, Method: method, Params: raw}
	return t.Send(sess, req)
}
