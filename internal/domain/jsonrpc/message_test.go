package jsonrpc

import (
	"encoding/json"
	"testing"
)

func TestDecodeClassifiesRequest(t *testing.T) {
	msg, err := Decode([]byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	req, ok := msg.(*Request)
	if !ok {
		t.Fatalf("Decode() type = %T, want *Request", msg)
	}
	if req.Method != "initialize" {
		t.Errorf("Method = %q, want initialize", req.Method)
	}
	if !req.ID.Equal(NewNumberID(1)) {
		t.Errorf("ID = %v, want 1", req.ID)
	}
}

func TestDecodeClassifiesNotification(t *testing.T) {
	msg, err := Decode([]byte(`{"jsonrpc":"2.0","method":"initialized"}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if _, ok := msg.(*Notification); !ok {
		t.Fatalf("Decode() type = %T, want *Notification", msg)
	}
}

func TestDecodeClassifiesResponse(t *testing.T) {
	for _, tc := range []string{
		`{"jsonrpc":"2.0","id":"x","result":{}}`,
		`{"jsonrpc":"2.0","id":"x","error":{"code":-32601,"message":"nope"}}`,
	} {
		msg, err := Decode([]byte(tc))
		if err != nil {
			t.Fatalf("Decode(%s) error = %v", tc, err)
		}
		if _, ok := msg.(*Response); !ok {
			t.Fatalf("Decode(%s) type = %T, want *Response", tc, msg)
		}
	}
}

func TestDecodeClassifiesInvalid(t *testing.T) {
	for _, tc := range []string{
		`{"jsonrpc":"2.0","id":1,"result":{},"error":{"code":1,"message":"both"}}`,
		`{"jsonrpc":"2.0"}`,
		`{"jsonrpc":"2.0","id":1}`,
	} {
		msg, err := Decode([]byte(tc))
		if err != nil {
			t.Fatalf("Decode(%s) error = %v", tc, err)
		}
		if _, ok := msg.(*Invalid); !ok {
			t.Fatalf("Decode(%s) type = %T, want *Invalid", tc, msg)
		}
	}
}

func TestDecodeFastRejectsNonFrame(t *testing.T) {
	_, err := Decode([]byte(`not json at all`))
	if err == nil {
		t.Fatal("Decode() error = nil, want error")
	}
	var de *DecodeError
	if !asDecodeError(err, &de) {
		t.Fatalf("Decode() error type = %T, want *DecodeError", err)
	}
}

func TestDecodeMalformedRecoversStringID(t *testing.T) {
	_, err := Decode([]byte(`{"jsonrpc":"2.0","id":"abc","method":`))
	de := mustDecodeError(t, err)
	if !de.RecoveredID.Equal(NewStringID("abc")) {
		t.Errorf("RecoveredID = %v, want abc", de.RecoveredID)
	}
}

func TestDecodeMalformedRecoversIntegerID(t *testing.T) {
	_, err := Decode([]byte(`{"jsonrpc":"2.0","id":42,"method":`))
	de := mustDecodeError(t, err)
	if !de.RecoveredID.Equal(NewNumberID(42)) {
		t.Errorf("RecoveredID = %v, want 42", de.RecoveredID)
	}
}

func TestDecodeMalformedRecoversNegativeID(t *testing.T) {
	_, err := Decode([]byte(`{"jsonrpc":"2.0","id":-7,"method":`))
	de := mustDecodeError(t, err)
	if !de.RecoveredID.Equal(NewNumberID(-7)) {
		t.Errorf("RecoveredID = %v, want -7", de.RecoveredID)
	}
}

func TestDecodeMalformedNoRecoverableID(t *testing.T) {
	_, err := Decode([]byte(`{"jsonrpc": `))
	de := mustDecodeError(t, err)
	if de.RecoveredID.IsValid() {
		t.Errorf("RecoveredID = %v, want invalid", de.RecoveredID)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []Message{
		&Request{ID: NewNumberID(7), Method: "tools/call", Params: json.RawMessage(`{"name":"x"}`)},
		&Request{ID: NewStringID("r-1"), Method: "ping"},
		&Notification{Method: "initialized"},
		&Response{ID: NewNumberID(7), Result: json.RawMessage(`{"ok":true}`)},
		&Response{ID: NewStringID("r-1"), Error: &ErrorObject{Code: CodeMethodNotFound, Message: "nope"}},
	}

	for _, original := range tests {
		encoded, err := Encode(original)
		if err != nil {
			t.Fatalf("Encode(%#v) error = %v", original, err)
		}
		decoded, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode(Encode(%#v)) error = %v", original, err)
		}

		reencoded, err := Encode(decoded)
		if err != nil {
			t.Fatalf("Encode(Decode(...)) error = %v", err)
		}
		if string(reencoded) != string(mustNormalize(t, encoded)) {
			t.Errorf("round trip mismatch: got %s, want %s", reencoded, encoded)
		}
	}
}

func TestEncodeAlwaysStampsVersion(t *testing.T) {
	data, err := Encode(&Notification{Method: "initialized"})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	var frame struct {
		JSONRPC string `json:"jsonrpc"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if frame.JSONRPC != Version {
		t.Errorf("jsonrpc = %q, want %q", frame.JSONRPC, Version)
	}
}

func TestIDTypePreservation(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   ID
	}{
		{"string", NewStringID("abc")},
		{"int", NewNumberID(99)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.in)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			var out ID
			if err := json.Unmarshal(data, &out); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if !out.Equal(tc.in) {
				t.Errorf("round trip = %v, want %v", out, tc.in)
			}
		})
	}
}

// --- test helpers ---

func asDecodeError(err error, target **DecodeError) bool {
	de, ok := err.(*DecodeError)
	if ok {
		*target = de
	}
	return ok
}

func mustDecodeError(t *testing.T, err error) *DecodeError {
	t.Helper()
	var de *DecodeError
	if !asDecodeError(err, &de) {
		t.Fatalf("error type = %T, want *DecodeError", err)
	}
	return de
}

// mustNormalize re-encodes through decode/encode once to get a canonical
// byte form for comparing a hand-written fixture against a round trip
// (field order from encoding/json is already stable, but this guards
// against incidental whitespace differences in fixtures).
func mustNormalize(t *testing.T, data []byte) []byte {
	t.Helper()
	msg, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	out, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return out
}
