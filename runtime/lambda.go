package runtime

import (
	"github.com/deicod/gostache/nodes"
)

// Lambda is a zero-argument callable value. It is invoked on every use. A
// string result is treated as a template: it is parsed with the default
// delimiters and rendered against the current context before being written.
// In a section, a string result is rendered the same way using the section's
// delimiters, and any other result is used as the section value.
//
// A result that is an error aborts the render.
type Lambda func() any

func (Lambda) IsTruthy() bool { return true }
func (Lambda) SizeHint() int  { return 0 }

func (f Lambda) RenderEscaped(ctx Context, w *Writer) error {
	return renderResult(ctx, w, f(), true)
}

func (f Lambda) RenderUnescaped(ctx Context, w *Writer) error {
	return renderResult(ctx, w, f(), false)
}

func (f Lambda) RenderSection(ctx Context, w *Writer) error {
	result := f()
	if err, ok := result.(error); ok {
		return err
	}
	if s, ok := result.(string); ok {
		return ctx.Expand(s, ctx.Delims(), w)
	}
	return RenderSection(Reflect(result), ctx, w)
}

// SectionLambda receives the unrendered source of the section body it is
// used on. A string result is parsed with the delimiters active at the
// section and rendered against the current context; other results are
// written escaped. As a variable it is called with the empty string.
type SectionLambda func(text string) any

func (SectionLambda) IsTruthy() bool { return true }
func (SectionLambda) SizeHint() int  { return 0 }

func (f SectionLambda) RenderEscaped(ctx Context, w *Writer) error {
	return renderResult(ctx, w, f(""), true)
}

func (f SectionLambda) RenderUnescaped(ctx Context, w *Writer) error {
	return renderResult(ctx, w, f(""), false)
}

func (f SectionLambda) RenderSection(ctx Context, w *Writer) error {
	result := f(ctx.Capture())
	if err, ok := result.(error); ok {
		return err
	}
	if s, ok := result.(string); ok {
		return ctx.Expand(s, ctx.Delims(), w)
	}
	return Reflect(result).RenderEscaped(ctx, w)
}

// renderResult writes the result of an interpolated lambda.
func renderResult(ctx Context, w *Writer, result any, escape bool) error {
	if err, ok := result.(error); ok {
		return err
	}
	s, ok := result.(string)
	if !ok {
		value := Reflect(result)
		if escape {
			return value.RenderEscaped(ctx, w)
		}
		return value.RenderUnescaped(ctx, w)
	}

	buf := getBuffer()
	defer putBuffer(buf)
	if err := ctx.Expand(s, nodes.Delimiters{}, NewWriter(buf)); err != nil {
		return err
	}
	return w.Write(escape, buf.String())
}
