package parser

import (
	"strings"

	"github.com/deicod/gostache/nodes"
)

// explode turns a tag with a dotted name into one node per segment. Every
// segment but the last becomes a scoping section whose body is the next
// segment, so {{#a.b}}x{{/a.b}} behaves like {{#a}}{{#b}}x{{/b}}{{/a}} with
// the lookup of b confined to the value of a. body must already include the
// closing node.
func explode(kind nodes.Kind, text string, name nodes.Name, body []nodes.Node, capture string, delims nodes.Delimiters, standalone bool) []nodes.Node {
	segments := len(name.Keys)
	if name.IsDot() {
		segments = 1
	}

	out := make([]nodes.Node, 0, segments+len(body))
	for i := 0; i < segments; i++ {
		node := nodes.Node{
			Kind:       nodes.KindSection,
			Name:       name,
			Segment:    i,
			Children:   segments - 1 - i + len(body),
			Standalone: standalone,
		}
		if i == 0 {
			node.Text = text
		}
		if i == segments-1 {
			node.Kind = kind
			node.Capture = capture
			node.Delims = delims
		}
		out = append(out, node)
	}
	return append(out, body...)
}

// Overrides collects the top level blocks of a parent tag body by name. The
// body of a standalone block has its own indentation removed.
func Overrides(body []nodes.Node) map[string][]nodes.Node {
	blocks := make(map[string][]nodes.Node)
	for i := 0; i < len(body); i++ {
		node := body[i]
		if node.Kind == nodes.KindBlock {
			override := nodes.Body(body, i)
			if node.Standalone {
				override = reindent(override, blockIndent(node, override), "")
			}
			blocks[node.Name.String()] = override
		}
		i += node.Children
	}
	return blocks
}

// blockIndent returns the indentation of a standalone block: that of the
// first line of its content, or that of the tag when the content is empty.
func blockIndent(block nodes.Node, body []nodes.Node) string {
	for _, node := range body {
		if node.Text != "" {
			return node.Text[:len(node.Text)-len(strings.TrimLeft(node.Text, " \t"))]
		}
		if node.Kind != nodes.KindClosing && !node.Standalone {
			return ""
		}
	}
	return block.Indent
}

// Inherit copies list with the body of every block named in blocks replaced
// by the override. The block node keeps its own leading text, and an
// override of a standalone block takes on the block's indentation.
// Overrides are applied inside substituted bodies too, except for the block
// being replaced.
func Inherit(list []nodes.Node, blocks map[string][]nodes.Node) []nodes.Node {
	out := make([]nodes.Node, 0, len(list))
	for i := 0; i < len(list); i++ {
		node := list[i]
		if node.Children == 0 {
			out = append(out, node)
			continue
		}
		body := nodes.Body(list, i)
		i += node.Children

		if node.Kind == nodes.KindBlock {
			key := node.Name.String()
			if override, ok := blocks[key]; ok {
				if node.Standalone {
					override = reindent(override, "", blockIndent(node, body))
				}
				body = Inherit(override, without(blocks, key))
				node.Children = len(body)
				out = append(out, node)
				out = append(out, body...)
				continue
			}
		}

		body = Inherit(body, blocks)
		node.Children = len(body)
		out = append(out, node)
		out = append(out, body...)
	}
	return out
}

func without(blocks map[string][]nodes.Node, key string) map[string][]nodes.Node {
	rest := make(map[string][]nodes.Node, len(blocks))
	for k, v := range blocks {
		if k != key {
			rest[k] = v
		}
	}
	return rest
}

// Indent prefixes every output line of an included node list with indent.
// Lines taken up by a standalone tag are gone from the output and get no
// indentation, and neither does the end of a list ending in a newline.
func Indent(list []nodes.Node, indent string) []nodes.Node {
	return reindent(list, "", indent)
}

// reindent replaces the leading from of every output line in list with to.
func reindent(list []nodes.Node, from, to string) []nodes.Node {
	if from == to || len(list) == 0 {
		return list
	}

	out := make([]nodes.Node, len(list))
	copy(out, list)
	lineStart := true
	for i := range out {
		node := &out[i]

		var b strings.Builder
		for _, line := range strings.SplitAfter(node.Text, "\n") {
			if line == "" {
				continue
			}
			if lineStart {
				b.WriteString(to)
				line = strings.TrimPrefix(line, from)
			}
			b.WriteString(line)
			lineStart = strings.HasSuffix(line, "\n")
		}
		node.Text = b.String()

		switch {
		case node.Kind == nodes.KindContent:
		case node.Standalone:
			// A standalone dynamic partial indents what it includes.
			if node.Dynamic {
				node.Indent = to + strings.TrimPrefix(node.Indent, from)
			}
		case lineStart:
			node.Text += to
			lineStart = false
		}
	}
	return out
}
