package runtime

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/deicod/gostache/nodes"
)

// CompiledArtifact is a compiled template as stored in a CompiledCache: the
// node list with partials and parents already spliced in, plus the
// modification times of every template it was built from.
type CompiledArtifact struct {
	Source        string
	Nodes         []nodes.Node
	SizeHint      int
	Dependencies  map[string]time.Time
	IgnoreMissing bool
	GeneratedAt   time.Time
}

// fresh reports whether none of the artifact's dependencies changed.
func (a *CompiledArtifact) fresh(loader Loader) bool {
	mt, ok := loader.(ModTimeLoader)
	if !ok {
		return true
	}
	for name, modified := range a.Dependencies {
		if modified.IsZero() {
			continue
		}
		current, err := mt.TemplateModTime(name)
		if err != nil || !current.Equal(modified) {
			return false
		}
	}
	return true
}

// CompiledCache persists compiled templates between environments or
// process runs, so loading a template can skip parsing.
type CompiledCache interface {
	// Load retrieves the cached artifact for the given key. A nil artifact with
	// a nil error indicates a cache miss.
	Load(key string) (*CompiledArtifact, error)

	// Store persists the artifact for the given key.
	Store(key string, artifact *CompiledArtifact) error

	// Remove deletes the cached artifact for the given key, ignoring missing
	// entries.
	Remove(key string) error

	// Clear removes all cached artifacts.
	Clear() error
}

func encodeArtifact(artifact *CompiledArtifact) ([]byte, error) {
	if artifact == nil {
		return nil, errors.New("compiled artifact cannot be nil")
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(artifact); err != nil {
		return nil, fmt.Errorf("encode compiled artifact: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeArtifact(data []byte) (*CompiledArtifact, error) {
	var artifact CompiledArtifact
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&artifact); err != nil {
		return nil, fmt.Errorf("decode compiled artifact: %w", err)
	}
	return &artifact, nil
}

// MemoryCompiledCache keeps gob encoded artifacts in memory. Every Load
// returns a private copy of the stored nodes.
type MemoryCompiledCache struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryCompiledCache creates an empty in-memory cache.
func NewMemoryCompiledCache() *MemoryCompiledCache {
	return &MemoryCompiledCache{
		items: make(map[string][]byte),
	}
}

func (c *MemoryCompiledCache) Load(key string) (*CompiledArtifact, error) {
	c.mu.RLock()
	data, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	return decodeArtifact(data)
}

func (c *MemoryCompiledCache) Store(key string, artifact *CompiledArtifact) error {
	data, err := encodeArtifact(artifact)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.items[key] = data
	c.mu.Unlock()
	return nil
}

func (c *MemoryCompiledCache) Remove(key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCompiledCache) Clear() error {
	c.mu.Lock()
	c.items = make(map[string][]byte)
	c.mu.Unlock()
	return nil
}

// DirCompiledCache stores one file per template in a directory.
type DirCompiledCache struct {
	dir string
}

// NewDirCompiledCache creates the directory if needed.
func NewDirCompiledCache(dir string) (*DirCompiledCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DirCompiledCache{dir: dir}, nil
}

func (c *DirCompiledCache) path(key string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%x.gob", key))
}

func (c *DirCompiledCache) Load(key string) (*CompiledArtifact, error) {
	data, err := os.ReadFile(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeArtifact(data)
}

func (c *DirCompiledCache) Store(key string, artifact *CompiledArtifact) error {
	data, err := encodeArtifact(artifact)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(c.dir, "artifact-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path(key))
}

func (c *DirCompiledCache) Remove(key string) error {
	err := os.Remove(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (c *DirCompiledCache) Clear() error {
	matches, err := filepath.Glob(filepath.Join(c.dir, "*.gob"))
	if err != nil {
		return err
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}
