// Package nodes defines the flattened syntax representation of a parsed template.
//
// A template is a single []Node. Nodes with a body (sections, inverted
// sections, blocks, parents, partials) are followed by exactly Children nodes
// forming that body, so list[i+1:i+1+list[i].Children] is always the subtree
// of node i. Bodies that came from a closed tag end with a KindClosing node.
package nodes

import (
	"fmt"
	"strings"
)

// Kind identifies what a node does when rendered.
type Kind uint8

const (
	KindContent Kind = iota
	KindEscaped
	KindUnescaped
	KindSection
	KindInverted
	KindBlock
	KindParent
	KindPartial
	KindClosing
)

var kindNames = [...]string{
	KindContent:   "Content",
	KindEscaped:   "Escaped",
	KindUnescaped: "Unescaped",
	KindSection:   "Section",
	KindInverted:  "Inverted",
	KindBlock:     "Block",
	KindParent:    "Parent",
	KindPartial:   "Partial",
	KindClosing:   "Closing",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// HasBody reports whether nodes of this kind own a subtree.
func (k Kind) HasBody() bool {
	switch k {
	case KindSection, KindInverted, KindBlock, KindParent, KindPartial:
		return true
	}
	return false
}

// Name is a non-empty dotted key such as foo.bar.baz, plus the byte offset
// where it starts in the source. A single "." key denotes the current frame.
type Name struct {
	Keys  []string `json:"keys"`
	Start int      `json:"start"`
}

// NewName creates a name from its segments.
func NewName(start int, keys ...string) Name {
	return Name{Keys: keys, Start: start}
}

// ParseName splits a dotted string into a Name.
func ParseName(start int, dotted string) Name {
	if dotted == "." {
		return NewName(start, ".")
	}
	return NewName(start, strings.Split(dotted, ".")...)
}

// IsDot reports whether the name refers to the current frame.
func (n Name) IsDot() bool {
	return len(n.Keys) == 1 && n.Keys[0] == "."
}

// IsEmpty reports whether the name has no segments.
func (n Name) IsEmpty() bool {
	return len(n.Keys) == 0
}

// End returns the byte offset just past the name in the source.
func (n Name) End() int {
	return n.Start + len(n.String())
}

// Equal compares the dotted form of two names, ignoring positions.
func (n Name) Equal(other Name) bool {
	if len(n.Keys) != len(other.Keys) {
		return false
	}
	for i := range n.Keys {
		if n.Keys[i] != other.Keys[i] {
			return false
		}
	}
	return true
}

func (n Name) String() string {
	if len(n.Keys) == 0 {
		return "<unknown>"
	}
	return strings.Join(n.Keys, ".")
}

// Delimiters records the tag markers active where a node was parsed.
type Delimiters struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// Node is one flattened unit of template structure.
type Node struct {
	// Kind selects the render behaviour.
	Kind Kind `json:"kind"`
	// Text is literal source emitted verbatim before the node takes effect.
	Text string `json:"text,omitempty"`
	// Name is the full dotted name of the tag. Exploded dotted tags share it.
	Name Name `json:"name"`
	// Segment indexes the key in Name that this node resolves.
	Segment int `json:"segment,omitempty"`
	// Children counts the nodes that make up this node's body.
	Children int `json:"children,omitempty"`
	// Capture is the raw source of a section body, handed to section lambdas.
	Capture string `json:"capture,omitempty"`
	// Delims are the delimiters in effect for Capture.
	Delims Delimiters `json:"delims,omitempty"`
	// Dynamic marks a partial whose name is resolved at render time.
	Dynamic bool `json:"dynamic,omitempty"`
	// Standalone marks a tag that stood alone on its line. The line, its
	// indentation and its newline are not part of the output.
	Standalone bool `json:"standalone,omitempty"`
	// Indent is the indentation cut from a standalone dynamic partial or
	// block tag.
	Indent string `json:"indent,omitempty"`
	// Template names the template a spliced node was parsed from. It is
	// empty for nodes of the template being rendered.
	Template string `json:"template,omitempty"`
}

// Content creates a node that only carries literal text.
func Content(text string) Node {
	return Node{Kind: KindContent, Text: text}
}

// Key returns the single segment this node resolves.
func (n Node) Key() string {
	if n.Segment < 0 || n.Segment >= len(n.Name.Keys) {
		return ""
	}
	return n.Name.Keys[n.Segment]
}

// Chained reports whether the key must be resolved against the value found
// for the previous segment rather than against the whole context stack.
func (n Node) Chained() bool {
	return n.Segment > 0
}

// Intermediate reports whether this node is an exploded prefix of a dotted
// name: it only scopes its body to the value it resolves.
func (n Node) Intermediate() bool {
	return n.Segment < len(n.Name.Keys)-1
}

func (n Node) String() string {
	var b strings.Builder
	b.WriteString(n.Kind.String())
	if !n.Name.IsEmpty() {
		fmt.Fprintf(&b, " %s", n.Name)
		if len(n.Name.Keys) > 1 {
			fmt.Fprintf(&b, "[%d]", n.Segment)
		}
	}
	if n.Children > 0 {
		fmt.Fprintf(&b, " children=%d", n.Children)
	}
	if n.Dynamic {
		b.WriteString(" dynamic")
	}
	if n.Text != "" {
		fmt.Fprintf(&b, " text=%q", n.Text)
	}
	return b.String()
}

// Body returns the subtree of list[i].
func Body(list []Node, i int) []Node {
	return list[i+1 : i+1+list[i].Children]
}

// Visitor is called for every node in document order. Returning false skips
// the node's body.
type Visitor func(index, depth int, node Node) bool

// Walk traverses a node list depth first.
func Walk(list []Node, visit Visitor) {
	walk(list, 0, 0, visit)
}

func walk(list []Node, offset, depth int, visit Visitor) {
	for i := 0; i < len(list); i++ {
		node := list[i]
		descend := visit(offset+i, depth, node)
		if node.Children == 0 {
			continue
		}
		end := i + 1 + node.Children
		if end > len(list) {
			end = len(list)
		}
		if descend {
			walk(list[i+1:end], offset+i+1, depth+1, visit)
		}
		i = end - 1
	}
}

// Validate checks that every body lies within its parent's body.
func Validate(list []Node) error {
	for i := 0; i < len(list); i++ {
		node := list[i]
		if node.Children < 0 {
			return fmt.Errorf("node %d (%s) has negative children", i, node.Kind)
		}
		end := i + 1 + node.Children
		if end > len(list) {
			return fmt.Errorf("node %d (%s) claims %d children but only %d follow",
				i, node.Kind, node.Children, len(list)-i-1)
		}
		if err := Validate(list[i+1 : end]); err != nil {
			return fmt.Errorf("in body of node %d: %w", i, err)
		}
		i = end - 1
	}
	return nil
}

// SizeHint sums the literal text lengths of a node list.
func SizeHint(list []Node) int {
	size := 0
	for _, node := range list {
		size += len(node.Text)
	}
	return size
}

// Dump returns an indented representation of a node list for debugging.
func Dump(list []Node) string {
	var buf strings.Builder
	Walk(list, func(index, depth int, node Node) bool {
		buf.WriteString(strings.Repeat("  ", depth))
		fmt.Fprintf(&buf, "%d: %s\n", index, node)
		return true
	})
	return buf.String()
}

// FromTemplate returns a copy of list in which nodes without a template are
// attributed to name.
func FromTemplate(list []Node, name string) []Node {
	out := make([]Node, len(list))
	copy(out, list)
	for i := range out {
		if out[i].Template == "" {
			out[i].Template = name
		}
	}
	return out
}
