package jsonrpc

import (
	"encoding/json"
	"errors"
)

var (
	errNotAFrame          = errors.New("not a JSON object or array")
	errUnencodableMessage = errors.New("message type cannot be encoded")
)

// Standard JSON-RPC and MCP-specific error codes.
const (
	CodeParseError          = -32700
	CodeInvalidRequest      = -32600
	CodeMethodNotFound      = -32601
	CodeInvalidParams       = -32602
	CodeInternalError       = -32603
	CodeInitializationError = -32002
	CodeNotFound            = -32001
)

// ErrorObject is the on-wire JSON-RPC error payload.
type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Kind discriminates the protocol error taxonomy.
type Kind int

const (
	KindParse Kind = iota
	KindInvalidRequest
	KindMethodNotFound
	KindInvalidParams
	KindInternal
	KindInitialization
	KindNotFound
	KindSampling
	KindSamplingTimeout
)

var kindCodes = map[Kind]int{
	KindParse:           CodeParseError,
	KindInvalidRequest:  CodeInvalidRequest,
	KindMethodNotFound:  CodeMethodNotFound,
	KindInvalidParams:   CodeInvalidParams,
	KindInternal:        CodeInternalError,
	KindInitialization:  CodeInitializationError,
	KindNotFound:        CodeNotFound,
	KindSampling:        CodeInternalError,
	KindSamplingTimeout: CodeInternalError,
}

// ProtocolError is the core's typed error for every failure that must cross
// back over the wire as a JSON-RPC error object. It carries an optional
// RequestID so the Dispatcher can fill it in from context if the raiser
// didn't have it at construction time.
type ProtocolError struct {
	Kind      Kind
	Message   string
	Data      any
	RequestID *ID
}

func (e *ProtocolError) Error() string { return e.Message }

// Code returns the JSON-RPC error code for this error's Kind.
func (e *ProtocolError) Code() int { return kindCodes[e.Kind] }

// WithRequestID returns a copy of the error with RequestID set, used by the
// Dispatcher to backfill an id the raiser omitted.
func (e *ProtocolError) WithRequestID(id ID) *ProtocolError {
	cp := *e
	cp.RequestID = &id
	return &cp
}

func newProtocolError(kind Kind, message string, data any) *ProtocolError {
	return &ProtocolError{Kind: kind, Message: message, Data: data}
}

// NewParseError builds the taxonomy's parse-error variant.
func NewParseError(message string) *ProtocolError {
	return newProtocolError(KindParse, message, nil)
}

// NewInvalidRequest builds the invalid-request variant.
func NewInvalidRequest(message string) *ProtocolError {
	return newProtocolError(KindInvalidRequest, message, nil)
}

// NewMethodNotFound builds the method-not-found variant.
func NewMethodNotFound(method string) *ProtocolError {
	return newProtocolError(KindMethodNotFound, "Method not found", map[string]string{"method": method})
}

// NewInvalidParams builds the invalid-params variant.
func NewInvalidParams(message string) *ProtocolError {
	return newProtocolError(KindInvalidParams, message, nil)
}

// NewInternal builds the sanitized internal-error variant. The original
// failure is never embedded here — callers log it separately and pass only
// the method name through.
func NewInternal(method string) *ProtocolError {
	return newProtocolError(KindInternal, "Request handler failed", map[string]string{
		"method": method,
		"error":  "An internal error occurred",
	})
}

// NewInitializationError builds the initialization-gate variant.
func NewInitializationError(method string) *ProtocolError {
	return newProtocolError(KindInitialization, "Server not initialized", map[string]string{"method": method})
}

// NewNotFound builds the domain not-found variant (tool/resource/prompt lookup miss).
func NewNotFound(message string) *ProtocolError {
	return newProtocolError(KindNotFound, message, nil)
}

// NewSamplingError builds the outbound-request error variant, carrying the
// code/message the client returned.
func NewSamplingError(message string) *ProtocolError {
	return newProtocolError(KindSampling, message, nil)
}

// NewSamplingTimeout builds the outbound-request timeout variant.
func NewSamplingTimeout(method string) *ProtocolError {
	return newProtocolError(KindSamplingTimeout, "Timed out waiting for response to "+method, nil)
}

// ToErrorObject renders a ProtocolError into its on-wire ErrorObject form.
func (e *ProtocolError) ToErrorObject() *ErrorObject {
	obj := &ErrorObject{Code: e.Code(), Message: e.Message}
	if e.Data != nil {
		if raw, err := json.Marshal(e.Data); err == nil {
			obj.Data = raw
		}
	}
	return obj
}

// AsProtocolError unwraps err into a *ProtocolError if it is (or wraps) one.
func AsProtocolError(err error) (*ProtocolError, bool) {
	var pe *ProtocolError
	ok := errors.As(err, &pe)
	return pe, ok
}
