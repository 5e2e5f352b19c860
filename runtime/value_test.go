package runtime

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestFromJSON(t *testing.T) {
	value, err := FromJSON([]byte(`{"name": "Ann", "age": 42, "ratio": 0.5, "tags": ["a", "b"], "none": null, "ok": true}`))
	if err != nil {
		t.Fatalf("FromJSON error: %v", err)
	}
	if value.Kind() != MapKind || value.Len() != 6 {
		t.Fatalf("expected map with 6 fields, got %s with %d", value.Kind(), value.Len())
	}

	tests := []struct {
		key  string
		kind ValueKind
		text string
	}{
		{"name", StringKind, "Ann"},
		{"age", NumberKind, "42"},
		{"ratio", NumberKind, "0.5"},
		{"ok", BoolKind, "true"},
		{"none", NullKind, ""},
	}
	for _, tt := range tests {
		field, ok := value.Get(tt.key)
		if !ok {
			t.Fatalf("missing field %q", tt.key)
		}
		if field.Kind() != tt.kind {
			t.Fatalf("field %q: expected %s, got %s", tt.key, tt.kind, field.Kind())
		}
		out, err := renderValue(field)
		if err != nil {
			t.Fatalf("render %q error: %v", tt.key, err)
		}
		if out != tt.text {
			t.Fatalf("field %q: expected %q, got %q", tt.key, tt.text, out)
		}
	}

	tags, _ := value.Get("tags")
	if tags.Kind() != ListKind || tags.Len() != 2 || tags.Index(1).Interface() != "b" {
		t.Fatalf("unexpected tags %v", tags.Interface())
	}
	if tags.Index(5).Kind() != NullKind {
		t.Fatal("expected out of range index to be null")
	}
	if keys := value.Keys(); keys[0] != "age" || keys[len(keys)-1] != "tags" {
		t.Fatalf("expected sorted keys, got %v", keys)
	}
}

func renderValue(v Value) (string, error) {
	tmpl, err := ParseString("{{{.}}}")
	if err != nil {
		return "", err
	}
	tmpl.strict = false
	return tmpl.Render(v)
}

func TestFromJSONErrors(t *testing.T) {
	for _, input := range []string{``, `{`, `{} {}`, `[1,]`} {
		if _, err := FromJSON([]byte(input)); err == nil {
			t.Fatalf("FromJSON(%q): expected error", input)
		}
	}
}

func TestNumberValueRejectsNonFinite(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := NumberValue(f); !errors.Is(err, ErrNonFiniteNumber) {
			t.Fatalf("NumberValue(%v): expected ErrNonFiniteNumber, got %v", f, err)
		}
	}
	if _, err := NewValue(map[string]float64{"x": math.NaN()}); !errors.Is(err, ErrNonFiniteNumber) {
		t.Fatalf("expected nested NaN to be rejected, got %v", err)
	}

	v, err := NumberValue(1e21)
	if err != nil {
		t.Fatalf("NumberValue error: %v", err)
	}
	if out, _ := renderValue(v); out != "1000000000000000000000" {
		t.Fatalf("expected number without exponent, got %q", out)
	}
}

func TestValueTruthiness(t *testing.T) {
	tests := []struct {
		value  Value
		truthy bool
	}{
		{Value{}, false},
		{BoolValue(false), false},
		{BoolValue(true), true},
		{IntValue(0), false},
		{IntValue(-1), true},
		{StringValue(""), false},
		{StringValue("0"), true},
		{ListValue(), false},
		{ListValue(Value{}), true},
		{MapValue(nil), false},
		{MapValue(map[string]Value{"a": {}}), true},
	}
	for i, tt := range tests {
		if tt.value.IsTruthy() != tt.truthy {
			t.Fatalf("case %d (%s): expected truthy=%v", i, tt.value.Kind(), tt.truthy)
		}
	}
}

type person struct {
	Name  string   `json:"name"`
	Tags  []string `json:"tags"`
	Score float32  `json:"score"`
}

func TestNewValue(t *testing.T) {
	value, err := NewValue(map[string]any{
		"people": []person{{Name: "Ann", Tags: []string{"x"}, Score: 1.5}},
		"count":  uint8(3),
		"ptr":    (*person)(nil),
	})
	if err != nil {
		t.Fatalf("NewValue error: %v", err)
	}

	tmpl, err := ParseString("{{count}}:{{#people}}{{name}}({{score}}){{#tags}}[{{.}}]{{/tags}}{{/people}}{{^ptr}}!{{/ptr}}")
	if err != nil {
		t.Fatalf("ParseString error: %v", err)
	}
	out, err := tmpl.Render(value)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if out != "3:Ann(1.5)[x]!" {
		t.Fatalf("unexpected output %q", out)
	}

	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	back, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON error: %v", err)
	}
	if people, _ := back.Get("people"); people.Index(0).Len() != 3 {
		t.Fatalf("expected person to keep its fields, got %v", people.Interface())
	}

	if _, err := NewValue(map[int]string{1: "x"}); err == nil {
		t.Fatal("expected maps without string keys to be rejected")
	}
}
