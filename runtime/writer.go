package runtime

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

var bufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// maxPooledBuffer keeps one oversized render from pinning memory in the pool.
const maxPooledBuffer = 64 << 10

func getBuffer() *bytes.Buffer {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	bufPool.Put(buf)
}

// Writer is the output sink of a render. It either copies text through or
// applies HTML entity escaping to it.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteUnescaped writes s unchanged.
func (w *Writer) WriteUnescaped(s string) error {
	if s == "" {
		return nil
	}
	if _, err := io.WriteString(w.w, s); err != nil {
		return NewErrorWithCause(ErrorTypeIO, "write failed", err)
	}
	return nil
}

// WriteEscaped writes s with < > " & replaced by their entities. Every other
// byte, including multi-byte UTF-8 sequences, is written as is.
func (w *Writer) WriteEscaped(s string) error {
	start := 0
	for i := 0; i < len(s); i++ {
		replacement := escapeByte(s[i])
		if replacement == "" {
			continue
		}
		if err := w.WriteUnescaped(s[start:i]); err != nil {
			return err
		}
		if err := w.WriteUnescaped(replacement); err != nil {
			return err
		}
		start = i + 1
	}
	return w.WriteUnescaped(s[start:])
}

// Write dispatches to WriteEscaped or WriteUnescaped.
func (w *Writer) Write(escape bool, s string) error {
	if escape {
		return w.WriteEscaped(s)
	}
	return w.WriteUnescaped(s)
}

func escapeByte(b byte) string {
	switch b {
	case '<':
		return "&lt;"
	case '>':
		return "&gt;"
	case '"':
		return "&quot;"
	case '&':
		return "&amp;"
	}
	return ""
}

// EscapeString returns s as WriteEscaped would write it.
func EscapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	_ = NewWriter(&b).WriteEscaped(s)
	return b.String()
}
