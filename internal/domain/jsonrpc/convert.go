package jsonrpc

import "encoding/json"

// NewResultResponse marshals result and wraps it in a success Response.
func NewResultResponse(id ID, result any) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Response{ID: id, Result: raw}, nil
}

// NewErrorResponse renders a ProtocolError into an error Response for id.
// The response always carries id; perr.RequestID is not consulted.
func NewErrorResponse(id ID, perr *ProtocolError) *Response {
	return &Response{ID: id, Error: perr.ToErrorObject()}
}
