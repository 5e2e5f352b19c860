package runtime

import (
	"fmt"
	"testing"
	"time"
)

type address struct {
	City string
}

type account struct {
	ID       int    `mustache:"id"`
	Email    string `mustache:"-"`
	Nickname string
	Home     *address
	Work     *address
	Labels   map[string]string
	Raw      []byte
	secret   string
}

func (a *account) Display() string {
	return fmt.Sprintf("#%d %s", a.ID, a.Nickname)
}

func (a account) Wrap(text string) (string, error) {
	return "<" + text + ">", nil
}

type celsius float64

func (c celsius) String() string {
	return fmt.Sprintf("%.1f°C", float64(c))
}

func TestReflectStruct(t *testing.T) {
	acct := &account{
		ID:       7,
		Email:    "hidden@example.com",
		Nickname: "ann",
		Home:     &address{City: "Oslo"},
		Labels:   map[string]string{"role": "admin"},
		Raw:      []byte("bytes"),
		secret:   "s",
	}

	tests := []struct {
		template string
		expected string
	}{
		{"{{id}}", "7"},
		{"{{ID}}", ""},
		{"{{Email}}{{email}}", ""},
		{"{{nickname}}/{{Nickname}}", "ann/ann"},
		{"{{Home.City}}", "Oslo"},
		{"{{#Work}}work{{/Work}}{{^Work}}no work{{/Work}}", "no work"},
		{"{{Labels.role}}", "admin"},
		{"{{Raw}}", "bytes"},
		{"{{secret}}", ""},
		{"{{Display}}", "#7 ann"},
		{"{{#Wrap}}x{{/Wrap}}", "<x>"},
	}

	for _, tt := range tests {
		tmpl, err := ParseString(tt.template)
		if err != nil {
			t.Fatalf("ParseString(%q) error: %v", tt.template, err)
		}
		tmpl.strict = false
		out, err := tmpl.Render(acct)
		if err != nil {
			t.Fatalf("Render(%q) error: %v", tt.template, err)
		}
		if out != tt.expected {
			t.Fatalf("Render(%q): expected %q, got %q", tt.template, tt.expected, out)
		}
	}
}

func TestReflectScalars(t *testing.T) {
	tests := []struct {
		value    any
		expected string
		truthy   bool
	}{
		{nil, "", false},
		{"", "", false},
		{"x", "x", true},
		{int8(-3), "-3", true},
		{uint64(18446744073709551615), "18446744073709551615", true},
		{float32(0.25), "0.25", true},
		{0.0, "0", false},
		{1e-300, "0." + fmt.Sprintf("%0299d", 0) + "1", false},
		{celsius(21.5), "21.5", true},
		{time.Duration(0), "0", false},
		{[]string{}, "", false},
		{[2]int{1, 2}, "", true},
		{map[string]int{}, "", false},
		{func(int) string { return "" }, "", false},
	}

	for i, tt := range tests {
		r := Reflect(tt.value)
		if r.IsTruthy() != tt.truthy {
			t.Fatalf("case %d (%T): expected truthy=%v", i, tt.value, tt.truthy)
		}
		out, err := textOf(Context{}, r)
		if err != nil {
			t.Fatalf("case %d: render error: %v", i, err)
		}
		if out != tt.expected {
			t.Fatalf("case %d (%T): expected %q, got %q", i, tt.value, tt.expected, out)
		}
	}
}

func TestReflectNamedNumbers(t *testing.T) {
	type wrapper struct {
		When fmt.Stringer
	}
	out, err := RenderTemplate("{{When}}", wrapper{When: celsius(3)})
	if err != nil {
		t.Fatalf("RenderTemplate error: %v", err)
	}
	if out != "3" {
		t.Fatalf("expected numeric kinds to render as numbers, got %q", out)
	}
}

func TestReflectRendererPassthrough(t *testing.T) {
	custom := Map{"a": String("b")}
	if r := Reflect(custom); r.(Map)["a"] != String("b") {
		t.Fatal("expected Renderer values to be used as is")
	}
	var nilValue *Value
	if _, ok := Reflect(nilValue).(Null); !ok {
		t.Fatalf("expected nil pointer to render as Null, got %T", Reflect(nilValue))
	}
}
