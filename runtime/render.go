package runtime

import (
	"math"
	"strconv"
)

// Renderer is implemented by every value that can appear in a template.
type Renderer interface {
	// IsTruthy decides whether a section over the value renders.
	IsTruthy() bool
	// SizeHint estimates the number of bytes the value emits.
	SizeHint() int
	// RenderEscaped emits the value for a {{name}} tag.
	RenderEscaped(ctx Context, w *Writer) error
	// RenderUnescaped emits the value for a {{{name}}} or {{&name}} tag.
	RenderUnescaped(ctx Context, w *Writer) error
}

// SectionRenderer is implemented by values that replace the default section
// behaviour of pushing themselves and rendering the body once when truthy.
type SectionRenderer interface {
	RenderSection(ctx Context, w *Writer) error
}

// Resolver is implemented by values with named fields.
type Resolver interface {
	Resolve(key string) (Renderer, bool)
}

// Lookup resolves a single key on value. The key "." is the value itself.
func Lookup(value Renderer, key string) (Renderer, bool) {
	if key == "." {
		return value, value != nil
	}
	if r, ok := value.(Resolver); ok {
		return r.Resolve(key)
	}
	return nil, false
}

// Null renders nothing and is falsy.
type Null struct{}

func (Null) IsTruthy() bool                         { return false }
func (Null) SizeHint() int                          { return 0 }
func (Null) RenderEscaped(Context, *Writer) error   { return nil }
func (Null) RenderUnescaped(Context, *Writer) error { return nil }

// String renders its text. The empty string is falsy.
type String string

func (s String) IsTruthy() bool { return s != "" }
func (s String) SizeHint() int  { return len(s) }

func (s String) RenderEscaped(_ Context, w *Writer) error {
	return w.WriteEscaped(string(s))
}

func (s String) RenderUnescaped(_ Context, w *Writer) error {
	return w.WriteUnescaped(string(s))
}

// Bool renders true or false. A true section renders its body without
// changing the current frame.
type Bool bool

func (b Bool) IsTruthy() bool { return bool(b) }
func (Bool) SizeHint() int    { return 5 }

func (b Bool) RenderEscaped(ctx Context, w *Writer) error {
	return b.RenderUnescaped(ctx, w)
}

func (b Bool) RenderUnescaped(_ Context, w *Writer) error {
	return w.WriteUnescaped(strconv.FormatBool(bool(b)))
}

func (b Bool) RenderSection(ctx Context, w *Writer) error {
	if !b {
		return nil
	}
	return ctx.Render(w)
}

// Int is a signed integer; zero is falsy.
type Int int64

func (i Int) IsTruthy() bool { return i != 0 }
func (Int) SizeHint() int    { return 5 }

func (i Int) RenderEscaped(ctx Context, w *Writer) error {
	return i.RenderUnescaped(ctx, w)
}

func (i Int) RenderUnescaped(_ Context, w *Writer) error {
	return w.WriteUnescaped(strconv.FormatInt(int64(i), 10))
}

// Uint is an unsigned integer; zero is falsy.
type Uint uint64

func (u Uint) IsTruthy() bool { return u != 0 }
func (Uint) SizeHint() int    { return 5 }

func (u Uint) RenderEscaped(ctx Context, w *Writer) error {
	return u.RenderUnescaped(ctx, w)
}

func (u Uint) RenderUnescaped(_ Context, w *Writer) error {
	return w.WriteUnescaped(strconv.FormatUint(uint64(u), 10))
}

// Float is a floating point number formatted without exponent or locale.
// Values within machine epsilon of zero are falsy.
type Float float64

func (f Float) IsTruthy() bool { return math.Abs(float64(f)) > epsilon }
func (Float) SizeHint() int    { return 5 }

func (f Float) RenderEscaped(ctx Context, w *Writer) error {
	return f.RenderUnescaped(ctx, w)
}

func (f Float) RenderUnescaped(_ Context, w *Writer) error {
	return w.WriteUnescaped(formatFloat(float64(f)))
}

const epsilon = 2.220446049250313e-16

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// List renders its section body once per truthy element, with the element
// as the current frame. As a variable it renders nothing.
type List []Renderer

func (l List) IsTruthy() bool { return len(l) > 0 }

func (l List) SizeHint() int {
	size := 0
	for _, item := range l {
		size += item.SizeHint()
	}
	return size
}

func (List) RenderEscaped(Context, *Writer) error   { return nil }
func (List) RenderUnescaped(Context, *Writer) error { return nil }

func (l List) RenderSection(ctx Context, w *Writer) error {
	for _, item := range l {
		if item == nil || !item.IsTruthy() {
			continue
		}
		if err := ctx.Push(item).Render(w); err != nil {
			return err
		}
	}
	return nil
}

// Map resolves keys to renderers. An empty map is falsy.
type Map map[string]Renderer

func (m Map) IsTruthy() bool { return len(m) > 0 }

func (m Map) SizeHint() int {
	size := 0
	for _, value := range m {
		size += value.SizeHint()
	}
	return size
}

func (Map) RenderEscaped(Context, *Writer) error   { return nil }
func (Map) RenderUnescaped(Context, *Writer) error { return nil }

func (m Map) Resolve(key string) (Renderer, bool) {
	value, ok := m[key]
	if ok && value == nil {
		return Null{}, true
	}
	return value, ok
}

// RenderSection renders ctx's body with value according to its section
// semantics: custom SectionRenderers decide for themselves, everything else
// renders once with value pushed when it is truthy.
func RenderSection(value Renderer, ctx Context, w *Writer) error {
	if section, ok := value.(SectionRenderer); ok {
		return section.RenderSection(ctx, w)
	}
	if !value.IsTruthy() {
		return nil
	}
	return ctx.Push(value).Render(w)
}
