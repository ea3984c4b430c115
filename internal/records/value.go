package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// ValueKind identifies which variant a Value holds.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindMap
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return "null"
	}
}

// Value is a metadata value: string, number, bool, nested map or list.
// The zero Value is null.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	m    map[string]Value
	list []Value
}

func String(s string) Value { return Value{kind: KindString, str: s} }

func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

func Int(n int) Value { return Value{kind: KindNumber, num: float64(n)} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func Map(m map[string]Value) Value { return Value{kind: KindMap, m: m} }

func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// Strings builds a list of string values.
func Strings(items ...string) Value {
	list := make([]Value, len(items))
	for i, s := range items {
		list[i] = String(s)
	}
	return List(list...)
}

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string variant.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Num returns the number variant.
func (v Value) Num() (float64, bool) { return v.num, v.kind == KindNumber }

// Boolean returns the bool variant.
func (v Value) Boolean() (bool, bool) { return v.b, v.kind == KindBool }

// Fields returns the map variant. The map must not be modified.
func (v Value) Fields() (map[string]Value, bool) { return v.m, v.kind == KindMap }

// Items returns the list variant. The slice must not be modified.
func (v Value) Items() ([]Value, bool) { return v.list, v.kind == KindList }

// Text renders scalars as plain text and composites as compact JSON.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNull:
		return ""
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// Interface converts the value to plain Go types (string, float64, bool,
// map[string]any, []any, nil).
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Interface()
		}
		return out
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	switch v.kind {
	case KindMap:
		m := make(map[string]Value, len(v.m))
		for k, item := range v.m {
			m[k] = item.Clone()
		}
		return Map(m)
	case KindList:
		list := make([]Value, len(v.list))
		for i, item := range v.list {
			list[i] = item.Clone()
		}
		return List(list...)
	default:
		return v
	}
}

// FromAny converts decoded JSON/YAML or plain Go values into a Value.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t, err)
		}
		return Number(n), nil
	case []string:
		return Strings(t...), nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k, err)
			}
			m[k] = v
		}
		return Map(m), nil
	case map[string]string:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[k] = String(item)
		}
		return Map(m), nil
	case []any:
		list := make([]Value, len(t))
		for i, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = v
		}
		return List(list...), nil
	default:
		return Value{}, fmt.Errorf("unsupported metadata type %T", x)
	}
}

// MarshalJSON encodes the value as its natural JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindMap:
		if v.m == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.m)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes any JSON value, keeping its kind.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalYAML emits the plain Go form so YAML output mirrors JSON.
func (v Value) MarshalYAML() (any, error) {
	return v.Interface(), nil
}

// Metadata is the structured key/value bag attached to records and events.
type Metadata map[string]Value

// Clone returns a deep copy; nil stays nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

// MetadataFrom converts a plain map into Metadata.
func MetadataFrom(in map[string]any) (Metadata, error) {
	if in == nil {
		return nil, nil
	}
	out := make(Metadata, len(in))
	for k, item := range in {
		v, err := FromAny(item)
		if err != nil {
			return nil, fmt.Errorf("metadata %s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// Flatten writes every leaf under prefix as a dotted path. List elements
// are addressed by index. Keys are visited in sorted order.
func (m Metadata) Flatten(prefix string, emit func(path, value string)) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		flattenValue(joinPath(prefix, k), m[k], emit)
	}
}

func flattenValue(path string, v Value, emit func(path, value string)) {
	switch v.kind {
	case KindMap:
		Metadata(v.m).Flatten(path, emit)
	case KindList:
		for i, item := range v.list {
			flattenValue(joinPath(path, strconv.Itoa(i)), item, emit)
		}
	default:
		emit(path, v.Text())
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
