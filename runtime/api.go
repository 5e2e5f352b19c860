package runtime

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// ParseString compiles a standalone template named "template".
func ParseString(source string) (*Template, error) {
	return ParseStringWithName(source, "template")
}

// ParseStringWithName compiles a standalone template under name. The name
// only shows up in errors.
func ParseStringWithName(source, name string) (*Template, error) {
	tmpl, err := NewEnvironment().NewTemplateWithName(source, name)
	if err != nil {
		return nil, err
	}
	tmpl.env = nil
	return tmpl, nil
}

// RenderTemplate compiles source and renders it against data.
func RenderTemplate(source string, data any) (string, error) {
	tmpl, err := ParseString(source)
	if err != nil {
		return "", err
	}
	return tmpl.Render(data)
}

// RenderTemplateWithEnvironment compiles source in env, so it may include
// the templates env can load, and renders it against data.
func RenderTemplateWithEnvironment(env *Environment, source string, data any) (string, error) {
	tmpl, err := env.NewTemplate(source)
	if err != nil {
		return "", err
	}
	return tmpl.Render(data)
}

// RenderTemplateToWriter compiles source and renders it into w.
func RenderTemplateToWriter(source string, data any, w io.Writer) error {
	tmpl, err := ParseString(source)
	if err != nil {
		return err
	}
	return tmpl.Execute(w, data)
}

// BatchRenderer holds a named set of templates that can include one another
// as partials or parents.
type BatchRenderer struct {
	env       *Environment
	templates *MapLoader
	names     map[string]struct{}
	mu        sync.RWMutex
}

// NewBatchRenderer creates an empty batch renderer. Its templates use the
// missing variable and logging policy of env, which is copied; a nil env
// selects the defaults.
func NewBatchRenderer(env *Environment) *BatchRenderer {
	batch := NewEnvironment()
	if env != nil {
		batch.SetStrict(env.Strict())
		batch.SetIgnoreMissingPartials(env.IgnoreMissingPartials())
		env.mu.RLock()
		batch.SetLogger(env.logger)
		env.mu.RUnlock()
	}

	templates := NewMapLoader(nil)
	batch.SetLoader(templates)
	return &BatchRenderer{
		env:       batch,
		templates: templates,
		names:     make(map[string]struct{}),
	}
}

// AddTemplate compiles source under name. Templates that include name are
// recompiled the next time they render. Partials that are not added yet do
// not fail; a syntax error does, and leaves name unset.
func (br *BatchRenderer) AddTemplate(name, source string) error {
	br.templates.Set(name, source)
	br.env.Invalidate(name)
	if _, err := br.env.LoadTemplate(name); err != nil && !missingPartial(err, name) {
		br.RemoveTemplate(name)
		return err
	}

	br.mu.Lock()
	br.names[name] = struct{}{}
	br.mu.Unlock()
	return nil
}

// Render renders a template by name
func (br *BatchRenderer) Render(name string, data any) (string, error) {
	tmpl, err := br.lookup(name)
	if err != nil {
		return "", err
	}
	return tmpl.Render(data)
}

// RenderToWriter renders a template by name to a writer
func (br *BatchRenderer) RenderToWriter(name string, data any, w io.Writer) error {
	tmpl, err := br.lookup(name)
	if err != nil {
		return err
	}
	return tmpl.Execute(w, data)
}

func (br *BatchRenderer) lookup(name string) (*Template, error) {
	if !br.HasTemplate(name) {
		return nil, NewNotFound(name, nil)
	}
	return br.env.LoadTemplate(name)
}

func missingPartial(err error, name string) bool {
	var runtimeErr *Error
	return errors.As(err, &runtimeErr) && runtimeErr.Type == ErrorTypeNotFound && runtimeErr.Template != name
}

// HasTemplate checks if a template exists in the batch renderer
func (br *BatchRenderer) HasTemplate(name string) bool {
	br.mu.RLock()
	defer br.mu.RUnlock()
	_, ok := br.names[name]
	return ok
}

// RemoveTemplate removes a template by name
func (br *BatchRenderer) RemoveTemplate(name string) {
	br.mu.Lock()
	delete(br.names, name)
	br.mu.Unlock()

	br.templates.Delete(name)
	br.env.Invalidate(name)
}

// Clear removes all templates
func (br *BatchRenderer) Clear() {
	for _, name := range br.Names() {
		br.RemoveTemplate(name)
	}
}

// Size returns the number of templates
func (br *BatchRenderer) Size() int {
	br.mu.RLock()
	defer br.mu.RUnlock()
	return len(br.names)
}

// Names returns the sorted template names.
func (br *BatchRenderer) Names() []string {
	br.mu.RLock()
	defer br.mu.RUnlock()

	names := make([]string, 0, len(br.names))
	for name := range br.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String returns a string representation of the batch renderer
func (br *BatchRenderer) String() string {
	return fmt.Sprintf("BatchRenderer(%s)", strings.Join(br.Names(), ", "))
}
