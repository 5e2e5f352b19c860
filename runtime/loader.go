package runtime

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Loader represents a template loader interface
type Loader interface {
	Load(name string) (string, error)
}

// ModTimeLoader is implemented by loaders that can tell when a template
// last changed. The cache uses it to drop stale entries.
type ModTimeLoader interface {
	TemplateModTime(name string) (time.Time, error)
}

// DefaultExtension is the file extension FileSystemLoader appends to names.
const DefaultExtension = "mustache"

// FileSystemLoader loads templates from files below a root directory.
// A template name is a slash separated path relative to the root whose
// extension is replaced by the loader's extension. Names that resolve
// outside the root, directly or through symlinks, are rejected.
type FileSystemLoader struct {
	root string
	ext  string
}

// NewFileSystemLoader creates a loader for root. An empty ext selects
// DefaultExtension.
func NewFileSystemLoader(root, ext string) *FileSystemLoader {
	if root == "" {
		root = "."
	}
	if ext == "" {
		ext = DefaultExtension
	}
	return &FileSystemLoader{
		root: root,
		ext:  strings.TrimPrefix(ext, "."),
	}
}

// Root returns the configured root directory.
func (l *FileSystemLoader) Root() string {
	return l.root
}

// Extension returns the extension given to template files.
func (l *FileSystemLoader) Extension() string {
	return l.ext
}

// Path returns the file that holds the named template.
func (l *FileSystemLoader) Path(name string) (string, error) {
	root, err := filepath.Abs(l.root)
	if err != nil {
		return "", NewErrorWithCause(ErrorTypeIO, fmt.Sprintf("cannot resolve root %s", l.root), err)
	}
	if real, err := filepath.EvalSymlinks(root); err == nil {
		root = real
	}

	file := filepath.FromSlash(name)
	file = strings.TrimSuffix(file, filepath.Ext(file)) + "." + l.ext
	path := filepath.Join(root, file)
	if !within(root, path) {
		return "", invalidPartial(name)
	}

	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", NewNotFound(name, err)
		}
		return "", NewErrorWithCause(ErrorTypeIO, err.Error(), err)
	}
	if !within(root, real) {
		return "", invalidPartial(name)
	}
	return real, nil
}

// Load loads a template from the file system
func (l *FileSystemLoader) Load(name string) (string, error) {
	path, err := l.Path(name)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", NewNotFound(name, err)
		}
		return "", NewErrorWithCause(ErrorTypeIO, err.Error(), err)
	}
	return string(data), nil
}

// TemplateModTime returns the modification time for the requested template.
func (l *FileSystemLoader) TemplateModTime(name string) (time.Time, error) {
	path, err := l.Path(name)
	if err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func invalidPartial(name string) *Error {
	return NewError(ErrorTypeInvalidPartial, fmt.Sprintf("template %s resolves outside the template root", name))
}

// MapLoader loads templates from a map
type MapLoader struct {
	templates map[string]string
	modified  map[string]time.Time
	mu        sync.RWMutex
}

// NewMapLoader creates a new map loader
func NewMapLoader(templates map[string]string) *MapLoader {
	l := &MapLoader{
		templates: make(map[string]string, len(templates)),
		modified:  make(map[string]time.Time, len(templates)),
	}
	now := time.Now()
	for name, source := range templates {
		l.templates[name] = source
		l.modified[name] = now
	}
	return l
}

// Set adds or replaces a template. Cached templates that include it become
// stale.
func (l *MapLoader) Set(name, source string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.templates[name] = source

	now := time.Now()
	if prev, ok := l.modified[name]; ok && !now.After(prev) {
		now = prev.Add(time.Nanosecond)
	}
	l.modified[name] = now
}

// Delete removes a template.
func (l *MapLoader) Delete(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.templates, name)
	delete(l.modified, name)
}

// Load loads a template from the map
func (l *MapLoader) Load(name string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	template, ok := l.templates[name]
	if !ok {
		return "", NewNotFound(name, nil)
	}
	return template, nil
}

// TemplateModTime returns the time the template was last set.
func (l *MapLoader) TemplateModTime(name string) (time.Time, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	modified, ok := l.modified[name]
	if !ok {
		return time.Time{}, NewNotFound(name, nil)
	}
	return modified, nil
}
