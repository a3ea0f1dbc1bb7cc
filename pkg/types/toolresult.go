package types

import (
	"encoding/json"
	"fmt"
)

// ToolResult is the value every tool adapter returns: either a
// JSON-serializable payload or an error string. Tools that report
// failures as data ("Error: Gmail not connected.") use the Err variant;
// both variants normalize to a plain JSON value before storage.
type ToolResult struct {
	Value any    `json:"value,omitempty"`
	Err   string `json:"error,omitempty"`
}

// ToolValue wraps a payload in a successful ToolResult.
func ToolValue(v any) ToolResult { return ToolResult{Value: v} }

// ToolError wraps an error message in a failed ToolResult.
func ToolError(format string, args ...any) ToolResult {
	return ToolResult{Err: fmt.Sprintf(format, args...)}
}

// IsError reports whether the result carries an error.
func (r ToolResult) IsError() bool { return r.Err != "" }

// NormalizeValue converts an arbitrary tool payload into a value that is
// guaranteed to survive JSON encoding: ToolResult wrappers are unwrapped
// (recursively, results may nest), maps and slices are normalized
// element-wise, JSON scalars pass through, structs flatten to a mapping
// of their exported fields, and anything else is stringified.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case ToolResult:
		if val.Err != "" {
			return "Error: " + val.Err
		}
		return NormalizeValue(val.Value)
	case *ToolResult:
		if val == nil {
			return nil
		}
		return NormalizeValue(*val)
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = NormalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = NormalizeValue(item)
		}
		return out
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(val, &decoded); err != nil {
			return string(val)
		}
		return decoded
	default:
		// Struct-like payloads flatten to their exported fields via a
		// JSON round trip; unmarshalable values fall back to a string.
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		var decoded any
		if err := json.Unmarshal(data, &decoded); err != nil {
			return string(data)
		}
		return NormalizeValue(decoded)
	}
}

// EncodeValue normalizes v and JSON-encodes it. A residual encoding
// failure never propagates: the result is a short diagnostic string, so
// one bad tool payload cannot abort a whole turn.
func EncodeValue(v any) string {
	normalized := NormalizeValue(v)
	if s, ok := normalized.(string); ok {
		return s
	}
	data, err := json.Marshal(normalized)
	if err != nil {
		desc := fmt.Sprintf("%v", v)
		if len(desc) > 100 {
			desc = desc[:100]
		}
		return "Error: could not serialize response - " + desc
	}
	return string(data)
}
