package jsonrpc

import (
	"encoding/json"
	"testing"
)

func TestProtocolErrorCodes(t *testing.T) {
	tests := []struct {
		err  *ProtocolError
		code int
	}{
		{NewParseError("bad json"), CodeParseError},
		{NewInvalidRequest("missing method"), CodeInvalidRequest},
		{NewMethodNotFound("tools/frobnicate"), CodeMethodNotFound},
		{NewInvalidParams("name required"), CodeInvalidParams},
		{NewInternal("tools/call"), CodeInternalError},
		{NewInitializationError("tools/call"), CodeInitializationError},
		{NewNotFound("tool not found"), CodeNotFound},
	}
	for _, tc := range tests {
		if got := tc.err.Code(); got != tc.code {
			t.Errorf("%v.Code() = %d, want %d", tc.err.Kind, got, tc.code)
		}
	}
}

func TestNewInternalSanitizesMessage(t *testing.T) {
	err := NewInternal("tools/call")
	obj := err.ToErrorObject()
	if obj.Message != "Request handler failed" {
		t.Errorf("Message = %q, want sanitized placeholder", obj.Message)
	}
	var data map[string]string
	if err := json.Unmarshal(obj.Data, &data); err != nil {
		t.Fatalf("Unmarshal(Data) error = %v", err)
	}
	if data["method"] != "tools/call" {
		t.Errorf("data.method = %q, want tools/call", data["method"])
	}
	if data["error"] != "An internal error occurred" {
		t.Errorf("data.error leaked underlying detail: %q", data["error"])
	}
}

func TestWithRequestIDDoesNotMutateOriginal(t *testing.T) {
	base := NewMethodNotFound("ping")
	stamped := base.WithRequestID(NewNumberID(5))
	if base.RequestID != nil {
		t.Fatalf("original RequestID = %v, want nil", base.RequestID)
	}
	if stamped.RequestID == nil || !stamped.RequestID.Equal(NewNumberID(5)) {
		t.Fatalf("stamped RequestID = %v, want 5", stamped.RequestID)
	}
}

func TestToErrorObjectOmitsNilData(t *testing.T) {
	obj := NewInvalidRequest("bad").ToErrorObject()
	if obj.Data != nil {
		t.Errorf("Data = %s, want nil", obj.Data)
	}
}

func TestAsProtocolError(t *testing.T) {
	perr := NewNotFound("resource missing")
	var err error = perr
	got, ok := AsProtocolError(err)
	if !ok || got != perr {
		t.Fatalf("AsProtocolError() = %v, %v", got, ok)
	}

	if _, ok := AsProtocolError(errUnencodableMessage); ok {
		t.Error("AsProtocolError() matched a plain error")
	}
}

func TestNewResultResponse(t *testing.T) {
	resp, err := NewResultResponse(NewNumberID(1), map[string]int{"count": 3})
	if err != nil {
		t.Fatalf("NewResultResponse() error = %v", err)
	}
	if resp.Error != nil {
		t.Errorf("Error = %v, want nil", resp.Error)
	}
	var out map[string]int
	if err := json.Unmarshal(resp.Result, &out); err != nil {
		t.Fatalf("Unmarshal(Result) error = %v", err)
	}
	if out["count"] != 3 {
		t.Errorf("count = %d, want 3", out["count"])
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(NewStringID("r1"), NewMethodNotFound("x"))
	if resp.Result != nil {
		t.Errorf("Result = %s, want nil", resp.Result)
	}
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("Error = %v, want code %d", resp.Error, CodeMethodNotFound)
	}
}
