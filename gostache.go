// Package gostache is a Go implementation of the Mustache template language,
// including partials, parent templates with blocks, set delimiters and lambdas.
package gostache

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/deicod/gostache/nodes"
	"github.com/deicod/gostache/runtime"
)

// Version of the gostache library
const Version = "0.1.0"

// Template represents a compiled Mustache template
type Template = runtime.Template

// Environment loads, compiles and caches templates by name
type Environment = runtime.Environment

// Context represents the template rendering context
type Context = runtime.Context

// Renderer is implemented by every value a template can render
type Renderer = runtime.Renderer

// Value is a JSON-like data tree
type Value = runtime.Value

// Lambda and SectionLambda are callable template values
type (
	Lambda        = runtime.Lambda
	SectionLambda = runtime.SectionLambda
)

// NewEnvironment creates an environment without a loader
func NewEnvironment() *Environment {
	return runtime.NewEnvironment()
}

// NewFileEnvironment creates an environment loading templates with the
// given extension from below dir.
func NewFileEnvironment(dir, ext string) *Environment {
	env := runtime.NewEnvironment()
	env.SetLoader(runtime.NewFileSystemLoader(dir, ext))
	return env
}

// ParseString parses a template from a string. It cannot include partials.
func ParseString(source string) (*Template, error) {
	return runtime.ParseString(source)
}

// ParseFile parses a template from a file. Partials and parents are loaded
// from the file's directory and share its extension.
func ParseFile(filename string) (*Template, error) {
	if filename == "" {
		return nil, runtime.NewError(runtime.ErrorTypeTemplate, "filename must not be empty")
	}

	absPath, err := filepath.Abs(filename)
	if err != nil {
		return nil, err
	}

	dir, base := filepath.Split(absPath)
	ext := filepath.Ext(base)
	if ext == "" {
		source, err := os.ReadFile(absPath)
		if err != nil {
			return nil, runtime.WrapError(err, base)
		}
		return NewFileEnvironment(dir, "").NewTemplateWithName(string(source), base)
	}

	return NewFileEnvironment(dir, ext).LoadTemplate(strings.TrimSuffix(base, ext))
}

// Render parses source and renders it against data.
func Render(source string, data any) (string, error) {
	return runtime.RenderTemplate(source, data)
}

// FromJSON decodes JSON data for rendering.
func FromJSON(data []byte) (Value, error) {
	return runtime.FromJSON(data)
}

// Node access for tooling

// Node represents one flattened template node
type Node = nodes.Node

// DumpNodes returns a string representation of a node list for debugging
func DumpNodes(list []Node) string {
	return nodes.Dump(list)
}

// Error types

// Error represents a gostache error
type Error = runtime.Error

// ErrorType represents the type of error
type ErrorType = runtime.ErrorType
