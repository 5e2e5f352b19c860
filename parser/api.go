package parser

import (
	"github.com/deicod/gostache/nodes"
)

// Parse parses a template that may include other templates through loader.
// It returns the node list and a size hint for the rendered output.
func Parse(source string, loader Loader) ([]nodes.Node, int, error) {
	return ParseWithOptions(source, Options{Loader: loader})
}

// ParseWithOptions parses a template using the given options
// Returns the nodes or an error with position information
func ParseWithOptions(source string, opts Options) ([]nodes.Node, int, error) {
	parser, err := NewParser(source, opts)
	if err != nil {
		return nil, 0, err
	}

	list, err := parser.Parse()
	if err != nil {
		return nil, 0, err
	}

	return list, nodes.SizeHint(list), nil
}
