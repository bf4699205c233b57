// Package vars provides the execution-scoped variable pool that carries
// node outputs between nodes in a workflow graph.
//
// Values are addressed by a (node ID, variable name) selector. Template
// strings reference pool entries with the {{#node_id.var#}} syntax.
package vars

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies the type of a pool value.
type Kind string

// Value kinds.
const (
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindBool   Kind = "boolean"
	KindObject Kind = "object"
	KindArray  Kind = "array"
	KindFile   Kind = "file"
	KindNull   Kind = "null"
)

// Value is a typed value stored in the pool.
// The zero Value has KindNull and a nil payload.
type Value struct {
	Kind Kind `json:"kind"`
	Data any  `json:"data"`
}

// FileRef identifies an externally stored file produced by a node.
// The engine treats it as an opaque reference.
type FileRef struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	URL      string `json:"url,omitempty"`
}

// StringValue creates a string value.
func StringValue(s string) Value {
	return Value{Kind: KindString, Data: s}
}

// NumberValue creates a number value.
func NumberValue(f float64) Value {
	return Value{Kind: KindNumber, Data: f}
}

// BoolValue creates a boolean value.
func BoolValue(b bool) Value {
	return Value{Kind: KindBool, Data: b}
}

// ObjectValue creates an object value from a map.
func ObjectValue(m map[string]any) Value {
	return Value{Kind: KindObject, Data: m}
}

// ArrayValue creates an array value.
func ArrayValue(items []any) Value {
	return Value{Kind: KindArray, Data: items}
}

// FileValue creates a file-reference value.
func FileValue(ref FileRef) Value {
	return Value{Kind: KindFile, Data: ref}
}

// NullValue creates a null value.
func NullValue() Value {
	return Value{Kind: KindNull}
}

// Of converts an arbitrary Go value into a typed pool Value.
// Unrecognized types fall back to their string representation.
func Of(v any) Value {
	switch val := v.(type) {
	case nil:
		return NullValue()
	case Value:
		return val
	case string:
		return StringValue(val)
	case bool:
		return BoolValue(val)
	case int:
		return NumberValue(float64(val))
	case int32:
		return NumberValue(float64(val))
	case int64:
		return NumberValue(float64(val))
	case float32:
		return NumberValue(float64(val))
	case float64:
		return NumberValue(val)
	case map[string]any:
		return ObjectValue(val)
	case []any:
		return ArrayValue(val)
	case FileRef:
		return FileValue(val)
	default:
		return StringValue(fmt.Sprintf("%v", val))
	}
}

// String renders the value for template substitution.
// Objects and arrays render as compact JSON.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindString:
		if s, ok := v.Data.(string); ok {
			return s
		}
	case KindNumber:
		if f, ok := v.Data.(float64); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	case KindBool:
		if b, ok := v.Data.(bool); ok {
			return strconv.FormatBool(b)
		}
	case KindObject, KindArray, KindFile:
		if data, err := json.Marshal(v.Data); err == nil {
			return string(data)
		}
	}
	return fmt.Sprintf("%v", v.Data)
}

// Float returns the numeric representation of the value.
// Strings are parsed; booleans map to 0/1; everything else is 0.
func (v Value) Float() float64 {
	switch val := v.Data.(type) {
	case float64:
		return val
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	case bool:
		if val {
			return 1
		}
	}
	return 0
}

// UnmarshalJSON restores a Value, re-typing the payload after the
// generic JSON decode so Kind and Data stay consistent.
func (v *Value) UnmarshalJSON(data []byte) error {
	type alias Value
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*v = Value(a)

	// JSON decodes files as map[string]any; restore the typed ref.
	if v.Kind == KindFile {
		if m, ok := v.Data.(map[string]any); ok {
			raw, err := json.Marshal(m)
			if err != nil {
				return err
			}
			var ref FileRef
			if err := json.Unmarshal(raw, &ref); err != nil {
				return err
			}
			v.Data = ref
		}
	}
	return nil
}
