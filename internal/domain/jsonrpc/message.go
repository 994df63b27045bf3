package jsonrpc

import (
	"bytes"
	"encoding/json"
	"regexp"
)

// Version is the JSON-RPC protocol version string every frame carries.
const Version = "2.0"

// Message is the decoded form of one JSON-RPC frame. It is exactly one of
// *Request, *Notification, *Response, or *Invalid.
type Message interface {
	isMessage()
}

// Request is a call that expects a correlated Response.
type Request struct {
	ID     ID
	Method string
	Params json.RawMessage
}

func (*Request) isMessage() {}

// Notification is a call with no id; it never receives a reply.
type Notification struct {
	Method string
	Params json.RawMessage
}

func (*Notification) isMessage() {}

// Response carries exactly one of Result or Error, keyed by ID.
type Response struct {
	ID     ID
	Result json.RawMessage
	Error  *ErrorObject
}

func (*Response) isMessage() {}

// Invalid is anything that parsed as JSON but does not satisfy the shape of
// a Request, Notification, or Response. RecoveredID holds a best-effort
// extraction of an "id" field from the raw bytes, for error reporting.
type Invalid struct {
	RecoveredID ID
	Raw         json.RawMessage
}

func (*Invalid) isMessage() {}

// wireFrame is the on-the-wire shape every JSON-RPC message shares; decode
// populates it once and classifies from there.
type wireFrame struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// idRecoveryPattern performs a best-effort scan for `"id"` followed by a
// string or integer literal in frames that failed to parse as JSON outright
// (e.g. truncated input). It intentionally does not attempt to handle
// escaped quotes inside the id value; recovery is best-effort only.
var (
	idRecoveryStringPattern = regexp.MustCompile(`"id"\s*:\s*"([^"]*)"`)
	idRecoveryNumberPattern = regexp.MustCompile(`"id"\s*:\s*(-?[0-9]+)`)
)

// DecodeError reports a frame the codec could not fully parse, along with
// whatever id it could recover from the raw bytes so the caller can still
// emit a well-formed JSON-RPC parse-error response.
type DecodeError struct {
	RecoveredID ID
	Err         error
}

func (e *DecodeError) Error() string { return "jsonrpc: decode: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses a single JSON-RPC frame. Frames that are not well-formed
// JSON, or that are JSON but don't start with '{' or '[', return a
// *DecodeError carrying the best-effort recovered id. Well-formed JSON that
// does not match the Request/Notification/Response shape is returned as
// *Invalid, not an error — classification of "invalid" is the Dispatcher's
// job, per the protocol error it must raise.
func Decode(data []byte) (Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return nil, &DecodeError{RecoveredID: recoverID(trimmed), Err: errNotAFrame}
	}

	var frame wireFrame
	if err := json.Unmarshal(trimmed, &frame); err != nil {
		return nil, &DecodeError{RecoveredID: recoverID(trimmed), Err: err}
	}

	return classify(&frame, trimmed), nil
}

func classify(frame *wireFrame, raw json.RawMessage) Message {
	hasResult := frame.Result != nil
	hasError := frame.Error != nil

	switch {
	case frame.Method != "" && frame.ID != nil:
		return &Request{ID: *frame.ID, Method: frame.Method, Params: frame.Params}
	case frame.Method != "" && frame.ID == nil:
		return &Notification{Method: frame.Method, Params: frame.Params}
	case frame.ID != nil && (hasResult != hasError):
		return &Response{ID: *frame.ID, Result: frame.Result, Error: frame.Error}
	default:
		id := ID{}
		if frame.ID != nil {
			id = *frame.ID
		}
		return &Invalid{RecoveredID: id, Raw: raw}
	}
}

// recoverID performs the best-effort scan described in §4.A: it never
// fails, returning the zero ID if nothing resembling an id field is found.
func recoverID(data []byte) ID {
	if m := idRecoveryStringPattern.FindSubmatch(data); m != nil {
		return NewStringID(string(m[1]))
	}
	if m := idRecoveryNumberPattern.FindSubmatch(data); m != nil {
		neg := m[1][0] == '-'
		digits := m[1]
		if neg {
			digits = digits[1:]
		}
		var n int64
		for _, c := range digits {
			n = n*10 + int64(c-'0')
		}
		if neg {
			n = -n
		}
		return NewNumberID(n)
	}
	return ID{}
}

// Encode serializes a Message to its wire form. It always stamps
// "jsonrpc":"2.0" and omits null-valued optional fields.
func Encode(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case *Request:
		return json.Marshal(struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      ID              `json:"id"`
			Method  string          `json:"method"`
			Params  json.RawMessage `json:"params,omitempty"`
		}{Version, m.ID, m.Method, m.Params})

	case *Notification:
		return json.Marshal(struct {
			JSONRPC string          `json:"jsonrpc"`
			Method  string          `json:"method"`
			Params  json.RawMessage `json:"params,omitempty"`
		}{Version, m.Method, m.Params})

	case *Response:
		out := struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      ID              `json:"id"`
			Result  json.RawMessage `json:"result,omitempty"`
			Error   *ErrorObject    `json:"error,omitempty"`
		}{Version, m.ID, m.Result, m.Error}
		return json.Marshal(out)

	default:
		return nil, errUnencodableMessage
	}
}
