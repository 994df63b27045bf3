// Package jsonrpc implements the wire codec and error taxonomy for the
// JSON-RPC 2.0 messages that carry the Model Context Protocol.
package jsonrpc

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a JSON-RPC request/response identifier: either a string or a
// number. ID preserves whichever form the wire used so that a response's id
// round-trips byte-for-byte in type through encode/decode.
type ID struct {
	str   string
	num   int64
	isStr bool
	isNum bool
}

// NewStringID builds a string-valued ID.
func NewStringID(s string) ID { return ID{str: s, isStr: true} }

// NewNumberID builds an integer-valued ID.
func NewNumberID(n int64) ID { return ID{num: n, isNum: true} }

// IsValid reports whether the ID was actually set (as opposed to the zero
// value, which represents "no id" — i.e. a notification).
func (id ID) IsValid() bool { return id.isStr || id.isNum }

// String renders the ID for logging; it does not imply the wire type.
func (id ID) String() string {
	switch {
	case id.isStr:
		return id.str
	case id.isNum:
		return strconv.FormatInt(id.num, 10)
	default:
		return "<nil>"
	}
}

// Equal compares two IDs by value and wire type.
func (id ID) Equal(other ID) bool {
	return id.isStr == other.isStr && id.isNum == other.isNum &&
		id.str == other.str && id.num == other.num
}

// MarshalJSON emits the ID in its original wire representation.
func (id ID) MarshalJSON() ([]byte, error) {
	switch {
	case id.isStr:
		return json.Marshal(id.str)
	case id.isNum:
		return json.Marshal(id.num)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a JSON string, number, or null, preserving which one
// it saw so MarshalJSON can reproduce it exactly.
func (id *ID) UnmarshalJSON(data []byte) error {
	*id = ID{}
	if string(data) == "null" || len(data) == 0 {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("jsonrpc: invalid string id: %w", err)
		}
		id.str, id.isStr = s, true
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("jsonrpc: invalid numeric id: %w", err)
	}
	id.num, id.isNum = n, true
	return nil
}
