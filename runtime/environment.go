package runtime

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/deicod/gostache/nodes"
	"github.com/deicod/gostache/parser"
)

// DefaultCacheSize is the number of compiled templates an Environment keeps.
const DefaultCacheSize = 400

// Environment loads templates by name through a Loader, compiles them with
// their partials and parents spliced in, and caches the result.
type Environment struct {
	loader        Loader
	strict        bool
	ignoreMissing bool
	logger        *log.Logger
	cache         *TemplateCache
	compiled      CompiledCache
	mu            sync.RWMutex
}

// NewEnvironment creates an environment without a loader. Templates are
// strict and cached without expiry.
func NewEnvironment() *Environment {
	return &Environment{
		strict: true,
		cache:  NewTemplateCache(0, DefaultCacheSize),
	}
}

// SetLoader sets the template loader and drops every cached template.
func (env *Environment) SetLoader(loader Loader) {
	env.mu.Lock()
	env.loader = loader
	env.mu.Unlock()
	env.cache.Clear()
}

// Loader returns the configured loader.
func (env *Environment) Loader() Loader {
	env.mu.RLock()
	defer env.mu.RUnlock()
	return env.loader
}

// SetStrict selects whether templates compiled from now on fail on missing
// variables (the default) or render them as empty.
func (env *Environment) SetStrict(strict bool) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.strict = strict
}

// Strict reports the missing variable policy.
func (env *Environment) Strict() bool {
	env.mu.RLock()
	defer env.mu.RUnlock()
	return env.strict
}

// SetIgnoreMissingPartials makes templates that cannot be found while
// including them render as empty instead of failing.
func (env *Environment) SetIgnoreMissingPartials(ignore bool) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.ignoreMissing = ignore
}

// IgnoreMissingPartials reports the missing partial policy.
func (env *Environment) IgnoreMissingPartials() bool {
	env.mu.RLock()
	defer env.mu.RUnlock()
	return env.ignoreMissing
}

// SetCacheTTL sets the cache time-to-live
func (env *Environment) SetCacheTTL(ttl time.Duration) {
	env.cache.SetTTL(ttl)
}

// SetCacheSize sets how many templates are cached. Zero disables the limit.
func (env *Environment) SetCacheSize(size int) {
	env.cache.SetMaxSize(size)
}

// SetCompiledCache sets a second level cache consulted when a template is
// not in memory. Artifacts whose dependencies changed are recompiled.
func (env *Environment) SetCompiledCache(cache CompiledCache) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.compiled = cache
}

// CompiledCache returns the configured compiled cache, if any.
func (env *Environment) CompiledCache() CompiledCache {
	env.mu.RLock()
	defer env.mu.RUnlock()
	return env.compiled
}

// SetLogger enables logging of loads, cache activity and skipped partials.
func (env *Environment) SetLogger(logger *log.Logger) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.logger = logger
}

func (env *Environment) logf(format string, args ...any) {
	env.mu.RLock()
	logger := env.logger
	env.mu.RUnlock()
	if logger != nil {
		logger.Printf("INFO: "+format, args...)
	}
}

// NewTemplate compiles source. Partials and parents it names are loaded
// through the environment.
func (env *Environment) NewTemplate(source string) (*Template, error) {
	return env.NewTemplateWithName(source, "template")
}

// NewTemplateWithName compiles source under the given name without caching it.
func (env *Environment) NewTemplateWithName(source, name string) (*Template, error) {
	return env.compile(name, source, env.newSession())
}

// LoadTemplate loads and compiles a template by name, using the cache.
func (env *Environment) LoadTemplate(name string) (*Template, error) {
	return env.newSession().load(name)
}

// Invalidate drops name and every cached template that includes it.
func (env *Environment) Invalidate(name string) int {
	dropped := env.cache.Invalidate(name)
	if compiled := env.CompiledCache(); compiled != nil {
		if err := compiled.Remove(name); err != nil {
			env.logf("cannot remove compiled template %s: %v", name, err)
		}
	}
	if dropped > 0 {
		env.logf("invalidated %d cached template(s) depending on %s", dropped, name)
	}
	return dropped
}

// ClearCache clears the template cache
func (env *Environment) ClearCache() {
	env.cache.Clear()
}

// CacheSize returns the current cache size
func (env *Environment) CacheSize() int {
	return env.cache.Size()
}

func (env *Environment) compile(name, source string, loader parser.Loader) (*Template, error) {
	list, size, err := parser.ParseWithOptions(source, parser.Options{Name: name, Loader: loader})
	if err != nil {
		return nil, WrapError(err, name)
	}

	return &Template{
		name:     name,
		source:   source,
		nodes:    list,
		sizeHint: size,
		strict:   env.Strict(),
		env:      env,
	}, nil
}

func (env *Environment) newSession() *loadSession {
	return &loadSession{env: env}
}

// loadSession resolves the templates included by one compilation. It tracks
// the chain of templates being compiled to detect include cycles, and the
// files each of them was built from.
type loadSession struct {
	env    *Environment
	frames []*loadFrame
}

type loadFrame struct {
	name string
	deps map[string]time.Time
}

// Load implements parser.Loader.
func (s *loadSession) Load(name string) ([]nodes.Node, error) {
	tmpl, err := s.load(name)
	if err != nil {
		if IsNotFound(err) && s.env.IgnoreMissingPartials() {
			s.env.logf("skipping missing partial %s", name)
			return nil, nil
		}
		return nil, err
	}
	return nodes.FromTemplate(tmpl.nodes, name), nil
}

func (s *loadSession) load(name string) (*Template, error) {
	for i, frame := range s.frames {
		if frame.name != name {
			continue
		}
		chain := make([]string, 0, len(s.frames)-i+1)
		for _, f := range s.frames[i:] {
			chain = append(chain, f.name)
		}
		chain = append(chain, name)
		return nil, &Error{
			Type:     ErrorTypeRecursion,
			Message:  fmt.Sprintf("template %s includes itself: %s", name, strings.Join(chain, " -> ")),
			Template: name,
		}
	}

	env := s.env
	loader := env.Loader()
	if loader == nil {
		return nil, &Error{
			Type:     ErrorTypeLoadingDisabled,
			Message:  fmt.Sprintf("no loader configured to load %s", name),
			Template: name,
		}
	}

	if tmpl, ok := env.cache.Get(name, loader); ok {
		s.record(env.cache.Dependencies(name))
		return tmpl, nil
	}

	if tmpl, deps, ok := s.fromCompiled(name, loader); ok {
		env.cache.Set(name, tmpl, deps)
		s.record(deps)
		return tmpl, nil
	}

	source, err := loader.Load(name)
	if err != nil {
		return nil, WrapError(err, name)
	}

	frame := &loadFrame{name: name, deps: map[string]time.Time{name: modTime(loader, name)}}
	s.frames = append(s.frames, frame)
	tmpl, err := env.compile(name, source, s)
	s.frames = s.frames[:len(s.frames)-1]
	if err != nil {
		return nil, err
	}

	env.cache.Set(name, tmpl, frame.deps)
	env.logf("loaded template %s (%d nodes, %d dependencies)", name, len(tmpl.nodes), len(frame.deps))
	s.storeCompiled(tmpl, frame.deps)
	s.record(frame.deps)
	return tmpl, nil
}

// fromCompiled rebuilds a template from the compiled cache when its artifact
// is still fresh.
func (s *loadSession) fromCompiled(name string, loader Loader) (*Template, map[string]time.Time, bool) {
	env := s.env
	compiled := env.CompiledCache()
	if compiled == nil {
		return nil, nil, false
	}

	artifact, err := compiled.Load(name)
	if err != nil {
		env.logf("cannot read compiled template %s: %v", name, err)
		return nil, nil, false
	}
	if artifact == nil || artifact.IgnoreMissing != env.IgnoreMissingPartials() || !artifact.fresh(loader) {
		return nil, nil, false
	}

	env.logf("restored compiled template %s generated at %s", name, artifact.GeneratedAt.Format(time.RFC3339))
	return &Template{
		name:     name,
		source:   artifact.Source,
		nodes:    artifact.Nodes,
		sizeHint: artifact.SizeHint,
		strict:   env.Strict(),
		env:      env,
	}, artifact.Dependencies, true
}

func (s *loadSession) storeCompiled(tmpl *Template, deps map[string]time.Time) {
	env := s.env
	compiled := env.CompiledCache()
	if compiled == nil {
		return
	}

	artifact := &CompiledArtifact{
		Source:        tmpl.source,
		Nodes:         tmpl.nodes,
		SizeHint:      tmpl.sizeHint,
		Dependencies:  deps,
		IgnoreMissing: env.IgnoreMissingPartials(),
		GeneratedAt:   time.Now(),
	}
	if err := compiled.Store(tmpl.name, artifact); err != nil {
		env.logf("cannot store compiled template %s: %v", tmpl.name, err)
	}
}

// record adds deps to every template still being compiled.
func (s *loadSession) record(deps map[string]time.Time) {
	for _, frame := range s.frames {
		for name, modified := range deps {
			frame.deps[name] = modified
		}
	}
}

func modTime(loader Loader, name string) time.Time {
	mt, ok := loader.(ModTimeLoader)
	if !ok {
		return time.Time{}
	}
	modified, err := mt.TemplateModTime(name)
	if err != nil {
		return time.Time{}
	}
	return modified
}
