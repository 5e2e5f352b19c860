package runtime

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/deicod/gostache/parser"
)

// ErrorType represents different types of runtime errors
type ErrorType string

const (
	ErrorTypeIO              ErrorType = "io_error"
	ErrorTypeLoadingDisabled ErrorType = "loading_disabled"
	ErrorTypeInvalidPartial  ErrorType = "invalid_partial"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeSyntax          ErrorType = "syntax_error"
	ErrorTypeMissingVariable ErrorType = "missing_variable"
	ErrorTypeRecursion       ErrorType = "recursion_error"
	ErrorTypeTemplate        ErrorType = "template_error"
)

// Error represents a runtime error with position information
type Error struct {
	Type    ErrorType
	Message string
	// Template is the name of the template the error belongs to, if known.
	Template string
	// Variable is the dotted name of a missing variable.
	Variable string
	// Start and End are the byte span of the offending source, both zero
	// when the error has no position.
	Start int
	End   int
	Cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	if e.Template != "" {
		fmt.Fprintf(&b, " in %s", e.Template)
	}
	if e.End > 0 {
		fmt.Fprintf(&b, " at %d..%d", e.Start, e.End)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// HasSpan reports whether the error points into the template source.
func (e *Error) HasSpan() bool {
	return e.End > e.Start || e.Start > 0
}

// Snippet renders a caret diagnostic of the error span against source.
func (e *Error) Snippet(source string) string {
	if !e.HasSpan() || e.Start > len(source) {
		return e.Error()
	}

	line, column := parser.LineColumn(source, e.Start)
	lineStart := e.Start - (column - 1)
	lineEnd := strings.IndexByte(source[lineStart:], '\n')
	if lineEnd < 0 {
		lineEnd = len(source)
	} else {
		lineEnd += lineStart
	}
	text := strings.TrimSuffix(source[lineStart:lineEnd], "\r")

	width := e.End - e.Start
	if e.Start+width > lineStart+len(text) {
		width = lineStart + len(text) - e.Start
	}
	if width < 1 {
		width = 1
	}

	gutter := fmt.Sprint(line)
	pad := strings.Repeat(" ", len(gutter))
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", e.Error())
	fmt.Fprintf(&b, "%s--> line %d, column %d\n", pad, line, column)
	fmt.Fprintf(&b, "%s |\n", pad)
	fmt.Fprintf(&b, "%s | %s\n", gutter, text)
	fmt.Fprintf(&b, "%s | %s%s", pad, strings.Repeat(" ", column-1), strings.Repeat("^", width))
	return b.String()
}

// NewError creates a new runtime error
func NewError(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
	}
}

// NewErrorWithCause creates a new runtime error with an underlying cause
func NewErrorWithCause(errorType ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewMissingVariable creates the error raised by strict templates.
func NewMissingVariable(name string, start, end int) *Error {
	return &Error{
		Type:     ErrorTypeMissingVariable,
		Message:  fmt.Sprintf("variable %q is not defined", name),
		Variable: name,
		Start:    start,
		End:      end,
	}
}

// NewNotFound creates a not found error for a template name.
func NewNotFound(name string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Message: fmt.Sprintf("template %s not found", name),
		Cause:   cause,
	}
}

// WrapError converts err into an *Error attributed to the named template.
func WrapError(err error, template string) error {
	if err == nil {
		return nil
	}

	var runtimeErr *Error
	if errors.As(err, &runtimeErr) {
		if runtimeErr.Template == "" {
			runtimeErr.Template = template
		}
		return err
	}

	var syntaxErr *parser.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &Error{
			Type:     ErrorTypeSyntax,
			Message:  fmt.Sprintf("%s (%s)", syntaxErr.Message, syntaxErr.Kind),
			Template: template,
			Start:    syntaxErr.Start,
			End:      syntaxErr.End,
			Cause:    err,
		}
	}

	if errors.Is(err, parser.ErrLoadingDisabled) {
		return &Error{
			Type:     ErrorTypeLoadingDisabled,
			Message:  "this template cannot include other templates",
			Template: template,
			Cause:    err,
		}
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return &Error{
			Type:     ErrorTypeIO,
			Message:  pathErr.Error(),
			Template: template,
			Cause:    err,
		}
	}

	return &Error{
		Type:     ErrorTypeTemplate,
		Message:  err.Error(),
		Template: template,
		Cause:    err,
	}
}

// IsType checks whether err is, or wraps, an *Error of the given type.
func IsType(err error, errorType ErrorType) bool {
	var runtimeErr *Error
	if !errors.As(err, &runtimeErr) {
		return false
	}
	return runtimeErr.Type == errorType
}

// IsNotFound checks if an error reports a missing template
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsMissingVariable checks if an error is a strict mode lookup failure
func IsMissingVariable(err error) bool {
	return IsType(err, ErrorTypeMissingVariable)
}

// IsRecursion checks if an error reports an include cycle or runaway nesting
func IsRecursion(err error) bool {
	return IsType(err, ErrorTypeRecursion)
}

// IsSyntaxError checks if an error is a template syntax error
func IsSyntaxError(err error) bool {
	return IsType(err, ErrorTypeSyntax)
}

// IsLoadingDisabled checks if an error comes from a template without a loader
func IsLoadingDisabled(err error) bool {
	return IsType(err, ErrorTypeLoadingDisabled)
}
