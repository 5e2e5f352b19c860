package runtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// ValueKind identifies the variant held by a Value.
type ValueKind uint8

const (
	NullKind ValueKind = iota
	BoolKind
	NumberKind
	StringKind
	ListKind
	MapKind
)

func (k ValueKind) String() string {
	switch k {
	case NullKind:
		return "null"
	case BoolKind:
		return "bool"
	case NumberKind:
		return "number"
	case StringKind:
		return "string"
	case ListKind:
		return "list"
	case MapKind:
		return "map"
	}
	return fmt.Sprintf("ValueKind(%d)", k)
}

// ErrNonFiniteNumber is returned when a NaN or infinite float is converted
// into a Value.
var ErrNonFiniteNumber = errors.New("numbers must be finite")

// Value is a JSON-like data tree. The zero Value is null.
type Value struct {
	kind   ValueKind
	b      bool
	n      float64
	text   string // string contents, or the formatted number
	list   []Value
	fields map[string]Value
}

// BoolValue creates a boolean Value.
func BoolValue(b bool) Value {
	return Value{kind: BoolKind, b: b}
}

// NumberValue creates a number Value. Non-finite numbers are rejected.
func NumberValue(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("%w: %v", ErrNonFiniteNumber, f)
	}
	return Value{kind: NumberKind, n: f, text: formatFloat(f)}, nil
}

// IntValue creates an integral number Value.
func IntValue(i int64) Value {
	return Value{kind: NumberKind, n: float64(i), text: strconv.FormatInt(i, 10)}
}

// StringValue creates a string Value.
func StringValue(s string) Value {
	return Value{kind: StringKind, text: s}
}

// ListValue creates a list Value.
func ListValue(items ...Value) Value {
	return Value{kind: ListKind, list: items}
}

// MapValue creates a map Value.
func MapValue(fields map[string]Value) Value {
	return Value{kind: MapKind, fields: fields}
}

// FromJSON decodes a single JSON document into a Value. Integers keep their
// exact digits.
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, errors.New("unexpected data after top-level JSON value")
	}
	return NewValue(raw)
}

// NewValue converts a Go value into a Value. It accepts everything
// encoding/json can marshal; structs are converted through their JSON form.
func NewValue(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return x, nil
	case bool:
		return BoolValue(x), nil
	case string:
		return StringValue(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return IntValue(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return Value{}, err
		}
		return NumberValue(f)
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			value, err := NewValue(item)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = value
		}
		return ListValue(items...), nil
	case map[string]any:
		fields := make(map[string]Value, len(x))
		for key, item := range x {
			value, err := NewValue(item)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", key, err)
			}
			fields[key] = value
		}
		return MapValue(fields), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Value{}, nil
		}
		return NewValue(rv.Elem().Interface())
	case reflect.Bool:
		return BoolValue(rv.Bool()), nil
	case reflect.String:
		return StringValue(rv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IntValue(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Value{kind: NumberKind, n: float64(u), text: strconv.FormatUint(u, 10)}, nil
		}
		return IntValue(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return NumberValue(rv.Float())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return ListValue(), nil
		}
		items := make([]Value, rv.Len())
		for i := range items {
			value, err := NewValue(rv.Index(i).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = value
		}
		return ListValue(items...), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, fmt.Errorf("unsupported map key type %s", rv.Type().Key())
		}
		fields := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			value, err := NewValue(iter.Value().Interface())
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", iter.Key().String(), err)
			}
			fields[iter.Key().String()] = value
		}
		return MapValue(fields), nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return Value{}, err
	}
	return FromJSON(data)
}

func numberFromJSON(n json.Number) Renderer {
	value, err := NewValue(n)
	if err != nil {
		return String(n)
	}
	return value
}

// Kind returns the variant of the value.
func (v Value) Kind() ValueKind {
	return v.kind
}

// Len returns the number of list items or map fields.
func (v Value) Len() int {
	switch v.kind {
	case ListKind:
		return len(v.list)
	case MapKind:
		return len(v.fields)
	}
	return 0
}

// Index returns the i-th list item, or null.
func (v Value) Index(i int) Value {
	if v.kind != ListKind || i < 0 || i >= len(v.list) {
		return Value{}
	}
	return v.list[i]
}

// Get returns a map field.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != MapKind {
		return Value{}, false
	}
	field, ok := v.fields[key]
	return field, ok
}

// Keys returns the sorted field names of a map.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.fields))
	for key := range v.fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Interface converts the value back to plain Go data.
func (v Value) Interface() any {
	switch v.kind {
	case BoolKind:
		return v.b
	case NumberKind:
		return v.n
	case StringKind:
		return v.text
	case ListKind:
		items := make([]any, len(v.list))
		for i, item := range v.list {
			items[i] = item.Interface()
		}
		return items
	case MapKind:
		fields := make(map[string]any, len(v.fields))
		for key, field := range v.fields {
			fields[key] = field.Interface()
		}
		return fields
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == NumberKind {
		return []byte(v.text), nil
	}
	return json.Marshal(v.Interface())
}

func (v Value) IsTruthy() bool {
	switch v.kind {
	case BoolKind:
		return v.b
	case NumberKind:
		return math.Abs(v.n) > epsilon
	case StringKind:
		return v.text != ""
	case ListKind:
		return len(v.list) > 0
	case MapKind:
		return len(v.fields) > 0
	}
	return false
}

func (v Value) SizeHint() int {
	switch v.kind {
	case BoolKind, NumberKind:
		return 5
	case StringKind:
		return len(v.text)
	}
	return 0
}

func (v Value) RenderEscaped(ctx Context, w *Writer) error {
	if v.kind == StringKind {
		return w.WriteEscaped(v.text)
	}
	return v.RenderUnescaped(ctx, w)
}

func (v Value) RenderUnescaped(_ Context, w *Writer) error {
	switch v.kind {
	case BoolKind:
		return w.WriteUnescaped(strconv.FormatBool(v.b))
	case NumberKind, StringKind:
		return w.WriteUnescaped(v.text)
	}
	return nil
}

func (v Value) RenderSection(ctx Context, w *Writer) error {
	if !v.IsTruthy() {
		return nil
	}
	switch v.kind {
	case BoolKind:
		return ctx.Render(w)
	case ListKind:
		for _, item := range v.list {
			if !item.IsTruthy() {
				continue
			}
			if err := ctx.Push(item).Render(w); err != nil {
				return err
			}
		}
		return nil
	}
	return ctx.Push(v).Render(w)
}

func (v Value) Resolve(key string) (Renderer, bool) {
	field, ok := v.Get(key)
	if !ok {
		return nil, false
	}
	return field, true
}
