package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
)

// Type identifies the variant held by a Value.
type Type uint8

const (
	TypeNull Type = iota
	TypeBool
	TypeNumber
	TypeString
	TypeArray
	TypeObject
)

func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeBool:
		return "bool"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeArray:
		return "array"
	case TypeObject:
		return "object"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Value is a decoded JSON document. The zero Value is null.
//
// Numbers are always held as float64, so an integral number on the wire is
// readable wherever a float is expected.
type Value struct {
	typ Type
	b   bool
	n   float64
	s   string
	arr []Value
	obj map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{typ: TypeBool, b: b} }

// Number wraps a number.
func Number(n float64) Value { return Value{typ: TypeNumber, n: n} }

// String wraps a string.
func String(s string) Value { return Value{typ: TypeString, s: s} }

// Array wraps a sequence of values.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{typ: TypeArray, arr: items}
}

// Object wraps a mapping of values.
func Object(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{typ: TypeObject, obj: fields}
}

// Parse decodes exactly one JSON document.
func Parse(data []byte) (Value, error) {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return Value{}, err
	}
	return v, nil
}

// FromInterface converts a Go value produced by encoding/json (or built by hand
// from the same set of types) into a Value.
func FromInterface(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("number %q: %w", t.String(), err)
		}
		return Number(f), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case uint32:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case string:
		return String(t), nil
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = String(s)
		}
		return Array(items...), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := FromInterface(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return Array(items...), nil
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			v, err := FromInterface(item)
			if err != nil {
				return Value{}, err
			}
			fields[k] = v
		}
		return Object(fields), nil
	default:
		return Value{}, fmt.Errorf("unsupported type %T", x)
	}
}

// Type reports the variant held by v.
func (v Value) Type() Type { return v.typ }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.typ == TypeNull }

func (v Value) AsBool() (bool, bool) {
	return v.b, v.typ == TypeBool
}

func (v Value) AsFloat() (float64, bool) {
	return v.n, v.typ == TypeNumber
}

// AsInt returns the number as an integer when it has no fractional part and
// fits in an int64.
func (v Value) AsInt() (int64, bool) {
	if v.typ != TypeNumber || math.IsNaN(v.n) || math.IsInf(v.n, 0) {
		return 0, false
	}
	if v.n != math.Trunc(v.n) || v.n < math.MinInt64 || v.n >= math.MaxInt64 {
		return 0, false
	}
	return int64(v.n), true
}

func (v Value) AsString() (string, bool) {
	return v.s, v.typ == TypeString
}

func (v Value) AsArray() ([]Value, bool) {
	return v.arr, v.typ == TypeArray
}

func (v Value) AsObject() (map[string]Value, bool) {
	return v.obj, v.typ == TypeObject
}

// Get looks up key in an object. It returns false for missing keys and for
// values that are not objects.
func (v Value) Get(key string) (Value, bool) {
	if v.typ != TypeObject {
		return Value{}, false
	}
	f, ok := v.obj[key]
	return f, ok
}

// Index returns the i-th element of an array.
func (v Value) Index(i int) (Value, bool) {
	if v.typ != TypeArray || i < 0 || i >= len(v.arr) {
		return Value{}, false
	}
	return v.arr[i], true
}

// Keys returns the sorted keys of an object.
func (v Value) Keys() []string {
	if v.typ != TypeObject {
		return nil
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Interface converts v into plain Go values (nil, bool, float64, string,
// []any, map[string]any).
func (v Value) Interface() any {
	switch v.typ {
	case TypeBool:
		return v.b
	case TypeNumber:
		return v.n
	case TypeString:
		return v.s
	case TypeArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	case TypeObject:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON value")
	}

	parsed, err := FromInterface(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
