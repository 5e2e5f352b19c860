package runtime

import (
	"fmt"
	"io"

	"github.com/deicod/gostache/nodes"
)

// Template represents a compiled template ready for rendering. It is
// immutable and safe for concurrent use. Standalone templates come from
// ParseString, templates that include others from an Environment.
type Template struct {
	name     string
	source   string
	nodes    []nodes.Node
	sizeHint int
	strict   bool
	env      *Environment
}

// Render renders the template against data and returns the output. data may
// be a Renderer or any value accepted by Reflect.
func (t *Template) Render(data any) (string, error) {
	buf := getBuffer()
	defer putBuffer(buf)
	buf.Grow(t.sizeHint)

	if err := t.Execute(buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Execute renders the template against data into w.
func (t *Template) Execute(w io.Writer, data any) error {
	ctx := NewContext(t.nodes, Reflect(data), t.strict).WithEnvironment(t.env)
	return t.ExecuteContext(ctx, w)
}

// ExecuteContext renders the template with an existing context, replacing
// its nodes. It lets a caller render with several frames already pushed.
func (t *Template) ExecuteContext(ctx Context, w io.Writer) error {
	ctx = ctx.slice(t.nodes)
	if ctx.env == nil {
		ctx.env = t.env
	}
	if err := ctx.Render(NewWriter(w)); err != nil {
		return WrapError(err, t.name)
	}
	return nil
}

// Name returns the template name
func (t *Template) Name() string {
	return t.name
}

// Source returns the text the template was compiled from.
func (t *Template) Source() string {
	return t.source
}

// Nodes returns the flattened node list. Callers must not modify it.
func (t *Template) Nodes() []nodes.Node {
	return t.nodes
}

// SizeHint returns the number of literal bytes the template emits.
func (t *Template) SizeHint() int {
	return t.sizeHint
}

// Strict reports whether missing variables fail the render.
func (t *Template) Strict() bool {
	return t.strict
}

// String returns a string representation of the template
func (t *Template) String() string {
	return fmt.Sprintf("Template(%s, %d nodes)", t.name, len(t.nodes))
}

// Dump returns an indented listing of the template nodes
func (t *Template) Dump() string {
	return nodes.Dump(t.nodes)
}
