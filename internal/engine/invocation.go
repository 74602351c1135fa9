// internal/engine/invocation.go
package engine

import (
	json "github.com/json-iterator/go"
)

// RawArgs is the loosely decoded payload of a tool invocation. Pointer fields
// distinguish "absent" from zero values; nothing here is trusted until
// Interpret validates it.
type RawArgs struct {
	Story  *string  `json:"story"`
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Text   *string  `json:"text"`
	DeltaY *float64 `json:"dy"`
}

// RawInvocation is the untrusted tool selection received from the inference
// client for one cycle. It is consumed entirely within that cycle.
type RawInvocation struct {
	Name string
	Args RawArgs
}

// DecodeRawArgs parses a JSON argument blob into RawArgs. Inference clients
// use it so both providers share one decoding path. A decode failure returns
// zero-valued args alongside the error; interpreting them then reports a
// malformed invocation rather than crashing the cycle.
func DecodeRawArgs(data []byte) (RawArgs, error) {
	var args RawArgs
	if len(data) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(data, &args); err != nil {
		return RawArgs{}, err
	}
	return args, nil
}
