package runtime

import (
	"fmt"

	"github.com/deicod/gostache/lexer"
	"github.com/deicod/gostache/nodes"
	"github.com/deicod/gostache/parser"
)

// maxDepth bounds nested dynamic partials and lambda expansions.
const maxDepth = 64

// Context binds a Stack to the node slice being rendered. Like Stack it is a
// value; rendering a section renders a copy restricted to the section body.
type Context struct {
	stack  Stack
	nodes  []nodes.Node
	strict bool
	env    *Environment

	// chain holds the value found for the previous segment of an exploded
	// dotted name. chained is set while rendering the body of such a
	// segment; chain is nil when that segment did not resolve.
	chain   Renderer
	chained bool

	capture string
	delims  nodes.Delimiters
	depth   int
}

// NewContext creates a context rendering list against root.
func NewContext(list []nodes.Node, root Renderer, strict bool) Context {
	return Context{
		stack:  NewStack(root),
		nodes:  list,
		strict: strict,
	}
}

// WithEnvironment lets the context load templates named at render time.
func (ctx Context) WithEnvironment(env *Environment) Context {
	ctx.env = env
	return ctx
}

// Push returns the context with frame as the newest stack frame.
func (ctx Context) Push(frame Renderer) Context {
	ctx.stack = ctx.stack.Push(frame)
	ctx.chain, ctx.chained = nil, false
	return ctx
}

// Stack returns the current frames.
func (ctx Context) Stack() Stack {
	return ctx.stack
}

// Nodes returns the node slice the context renders.
func (ctx Context) Nodes() []nodes.Node {
	return ctx.nodes
}

// Strict reports whether missing variables are errors.
func (ctx Context) Strict() bool {
	return ctx.strict
}

// Capture returns the raw source of the section being rendered.
func (ctx Context) Capture() string {
	return ctx.capture
}

// Delims returns the delimiters that were active where the section being
// rendered was opened.
func (ctx Context) Delims() nodes.Delimiters {
	return ctx.delims
}

func (ctx Context) slice(list []nodes.Node) Context {
	ctx.nodes = list
	ctx.chain, ctx.chained = nil, false
	return ctx
}

// Render walks the node slice and writes its output to w.
func (ctx Context) Render(w *Writer) error {
	list := ctx.nodes
	for i := 0; i < len(list); i++ {
		node := list[i]
		if err := w.WriteUnescaped(node.Text); err != nil {
			return err
		}

		switch node.Kind {
		case nodes.KindEscaped, nodes.KindUnescaped:
			value, ok := ctx.lookup(node)
			if !ok {
				if ctx.strict {
					return missingVariable(node)
				}
				continue
			}
			inner := ctx.slice(nil)
			var err error
			if node.Kind == nodes.KindEscaped {
				err = value.RenderEscaped(inner, w)
			} else {
				err = value.RenderUnescaped(inner, w)
			}
			if err != nil {
				return err
			}

		case nodes.KindSection, nodes.KindInverted:
			body := nodes.Body(list, i)
			i += node.Children
			value, ok := ctx.lookup(node)
			inner := ctx.slice(body)

			var err error
			switch {
			case node.Intermediate():
				inner.chained = true
				if ok {
					inner.chain = value
				}
				err = inner.Render(w)
			case node.Kind == nodes.KindInverted:
				if !ok || !value.IsTruthy() {
					err = inner.Render(w)
				}
			case ok:
				inner.capture = node.Capture
				inner.delims = node.Delims
				err = RenderSection(value, inner, w)
			}
			if err != nil {
				return err
			}

		case nodes.KindPartial:
			// Static partials are spliced in and render as part of this walk.
			if node.Dynamic {
				if err := ctx.renderPartial(node, w); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// lookup resolves the key a node is responsible for.
func (ctx Context) lookup(node nodes.Node) (Renderer, bool) {
	key := node.Key()
	if node.Chained() && ctx.chained {
		if ctx.chain == nil {
			return nil, false
		}
		return Lookup(ctx.chain, key)
	}
	return ctx.stack.Find(key)
}

func (ctx Context) renderPartial(node nodes.Node, w *Writer) error {
	value, ok := ctx.stack.Resolve(node.Name)
	if !ok {
		if ctx.strict {
			return missingVariable(node)
		}
		return nil
	}
	name, err := textOf(ctx.slice(nil), value)
	if err != nil || name == "" {
		return err
	}

	if ctx.depth >= maxDepth {
		return NewError(ErrorTypeRecursion,
			fmt.Sprintf("partial %s nested more than %d levels deep", name, maxDepth))
	}
	if ctx.env == nil {
		return NewError(ErrorTypeLoadingDisabled,
			fmt.Sprintf("cannot load partial %s without an environment", name))
	}

	tmpl, err := ctx.env.LoadTemplate(name)
	if err != nil {
		if IsNotFound(err) && ctx.env.IgnoreMissingPartials() {
			ctx.env.logf("skipping missing partial %s", name)
			return nil
		}
		return err
	}

	list := tmpl.nodes
	if node.Indent != "" {
		list = parser.Indent(list, node.Indent)
	}
	inner := ctx.slice(list)
	inner.depth++
	if err := inner.Render(w); err != nil {
		return WrapError(err, name)
	}
	return nil
}

// missingVariable reports node's name, positioned in the template the node
// was parsed from.
func missingVariable(node nodes.Node) *Error {
	err := NewMissingVariable(node.Name.String(), node.Name.Start, node.Name.End())
	err.Template = node.Template
	return err
}

// Expand parses source as a template with the given delimiters and renders
// it against the current stack. Zero delimiters mean {{ }}.
func (ctx Context) Expand(source string, delims nodes.Delimiters, w *Writer) error {
	if ctx.depth >= maxDepth {
		return NewError(ErrorTypeRecursion,
			fmt.Sprintf("lambda expansion nested more than %d levels deep", maxDepth))
	}

	opts := parser.Options{
		Name:       "lambda",
		Delimiters: lexer.Delimiters{Open: delims.Open, Close: delims.Close},
	}
	if ctx.env != nil {
		opts.Loader = ctx.env.newSession()
	}
	list, _, err := parser.ParseWithOptions(source, opts)
	if err != nil {
		return WrapError(err, "lambda")
	}

	inner := ctx.slice(nodes.FromTemplate(list, "lambda"))
	inner.depth++
	return inner.Render(w)
}

// textOf renders value unescaped into a string.
func textOf(ctx Context, value Renderer) (string, error) {
	if s, ok := value.(String); ok {
		return string(s), nil
	}
	buf := getBuffer()
	defer putBuffer(buf)
	if err := value.RenderUnescaped(ctx, NewWriter(buf)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
