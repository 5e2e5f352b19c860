package runtime

import (
	"errors"
	"io"
	"strings"
	"sync"
)

// errStreamClosed aborts the producing render after the consumer gave up.
var errStreamClosed = errors.New("template stream closed")

// TemplateStream yields the output of a render in fragments as the template
// produces them. Rendering runs in its own goroutine; a consumer that stops
// early must call Close.
type TemplateStream struct {
	chunks chan streamChunk
	done   chan struct{}
	once   sync.Once
	closed sync.Once
}

type streamChunk struct {
	text string
	err  error
}

// Stream starts rendering the template against data and returns the stream
// of its output.
func (t *Template) Stream(data any) *TemplateStream {
	s := &TemplateStream{
		chunks: make(chan streamChunk, 1),
		done:   make(chan struct{}),
	}
	go func() {
		err := t.Execute(&streamWriter{stream: s}, data)
		if errors.Is(err, errStreamClosed) {
			err = nil
		}
		s.finish(err)
	}()
	return s
}

func (s *TemplateStream) emit(text string) error {
	select {
	case s.chunks <- streamChunk{text: text}:
		return nil
	case <-s.done:
		return errStreamClosed
	}
}

func (s *TemplateStream) finish(err error) {
	s.once.Do(func() {
		if err != nil {
			select {
			case s.chunks <- streamChunk{err: err}:
			case <-s.done:
			}
		}
		close(s.chunks)
	})
}

// Next returns the next rendered fragment. When the stream is exhausted
// io.EOF is returned. A render error is returned once and ends the stream.
func (s *TemplateStream) Next() (string, error) {
	chunk, ok := <-s.chunks
	if !ok {
		return "", io.EOF
	}
	if chunk.err != nil {
		return "", chunk.err
	}
	return chunk.text, nil
}

// Collect concatenates all remaining fragments into a single string.
func (s *TemplateStream) Collect() (string, error) {
	var builder strings.Builder
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			return builder.String(), nil
		}
		if err != nil {
			return "", err
		}
		builder.WriteString(chunk)
	}
}

// WriteTo copies the remaining fragments to w. A write error closes the
// stream.
func (s *TemplateStream) WriteTo(w io.Writer) (int64, error) {
	var written int64
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
		n, err := io.WriteString(w, chunk)
		written += int64(n)
		if err != nil {
			s.Close()
			return written, err
		}
	}
}

// Close stops the render and discards the remaining output. It is safe to
// call more than once and after the stream is exhausted.
func (s *TemplateStream) Close() {
	s.closed.Do(func() {
		close(s.done)
	})
	for range s.chunks {
	}
}

type streamWriter struct {
	stream *TemplateStream
}

func (w *streamWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := w.stream.emit(string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}
