package runtime

import (
	"sync"
	"testing"
	"time"
)

type countingLoader struct {
	mu      sync.Mutex
	source  string
	modTime time.Time
	loads   int
}

func newCountingLoader(source string) *countingLoader {
	return &countingLoader{
		source:  source,
		modTime: time.Now().UTC(),
	}
}

func (l *countingLoader) Load(name string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads++
	return l.source, nil
}

func (l *countingLoader) TemplateModTime(name string) (time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.modTime, nil
}

func (l *countingLoader) setSource(source string) {
	l.mu.Lock()
	l.source = source
	l.modTime = l.modTime.Add(time.Minute)
	l.mu.Unlock()
}

func (l *countingLoader) loadCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}

func TestMemoryCompiledCacheReuse(t *testing.T) {
	loader := newCountingLoader("Hello {{name}}")

	env := NewEnvironment()
	env.SetLoader(loader)
	env.SetCompiledCache(NewMemoryCompiledCache())

	tmpl, err := env.LoadTemplate("greeting")
	if err != nil {
		t.Fatalf("LoadTemplate error: %v", err)
	}

	out, err := tmpl.Render(map[string]any{"name": "Go"})
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if got, want := out, "Hello Go"; got != want {
		t.Fatalf("unexpected render output: got %q want %q", got, want)
	}

	if count := loader.loadCount(); count != 1 {
		t.Fatalf("expected loader to be invoked once, got %d", count)
	}

	env.ClearCache()

	tmpl, err = env.LoadTemplate("greeting")
	if err != nil {
		t.Fatalf("LoadTemplate (compiled) error: %v", err)
	}

	out, err = tmpl.Render(map[string]any{"name": "Gopher"})
	if err != nil {
		t.Fatalf("Render after cache error: %v", err)
	}
	if got, want := out, "Hello Gopher"; got != want {
		t.Fatalf("unexpected cached render output: got %q want %q", got, want)
	}
	if got, want := tmpl.Source(), "Hello {{name}}"; got != want {
		t.Fatalf("restored source: got %q want %q", got, want)
	}

	if count := loader.loadCount(); count != 1 {
		t.Fatalf("expected compiled cache to prevent reload, got %d loads", count)
	}

	env.ClearCache()
	loader.setSource("Hi {{name}}")

	tmpl, err = env.LoadTemplate("greeting")
	if err != nil {
		t.Fatalf("LoadTemplate after change error: %v", err)
	}

	out, err = tmpl.Render(map[string]any{"name": "Go"})
	if err != nil {
		t.Fatalf("Render after change error: %v", err)
	}
	if got, want := out, "Hi Go"; got != want {
		t.Fatalf("unexpected reloaded output: got %q want %q", got, want)
	}

	if count := loader.loadCount(); count != 2 {
		t.Fatalf("expected loader to reload after modification, got %d loads", count)
	}
}

func TestDirCompiledCacheSharedBetweenEnvironments(t *testing.T) {
	cache, err := NewDirCompiledCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirCompiledCache error: %v", err)
	}
	loader := NewMapLoader(map[string]string{
		"page":   "<{{>header}}|{{body}}>",
		"header": "[{{title}}]",
	})

	first := NewEnvironment()
	first.SetLoader(loader)
	first.SetCompiledCache(cache)
	if _, err := first.LoadTemplate("page"); err != nil {
		t.Fatalf("LoadTemplate error: %v", err)
	}

	artifact, err := cache.Load("page")
	if err != nil {
		t.Fatalf("cache Load error: %v", err)
	}
	if artifact == nil {
		t.Fatal("expected page to be stored in the compiled cache")
	}
	if _, ok := artifact.Dependencies["header"]; !ok {
		t.Fatalf("expected header among dependencies, got %v", artifact.Dependencies)
	}

	second := NewEnvironment()
	second.SetLoader(loader)
	second.SetCompiledCache(cache)
	tmpl, err := second.LoadTemplate("page")
	if err != nil {
		t.Fatalf("LoadTemplate from second environment error: %v", err)
	}
	out, err := tmpl.Render(map[string]any{"title": "T", "body": "B"})
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if out != "<[T]|B>" {
		t.Fatalf("unexpected output %q", out)
	}

	loader.Set("header", "({{title}})")
	second.ClearCache()
	tmpl, err = second.LoadTemplate("page")
	if err != nil {
		t.Fatalf("LoadTemplate after partial change error: %v", err)
	}
	out, err = tmpl.Render(map[string]any{"title": "T", "body": "B"})
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if out != "<(T)|B>" {
		t.Fatalf("expected changed partial to be picked up, got %q", out)
	}

	if err := cache.Clear(); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if artifact, err := cache.Load("page"); err != nil || artifact != nil {
		t.Fatalf("expected empty cache after Clear, got %v, %v", artifact, err)
	}
}

func TestCompiledCacheRemove(t *testing.T) {
	cache := NewMemoryCompiledCache()
	artifact := &CompiledArtifact{Source: "x", GeneratedAt: time.Now()}
	if err := cache.Store("a", artifact); err != nil {
		t.Fatalf("Store error: %v", err)
	}
	if err := cache.Store("a", nil); err == nil {
		t.Fatal("expected storing a nil artifact to fail")
	}

	loaded, err := cache.Load("a")
	if err != nil || loaded == nil || loaded.Source != "x" {
		t.Fatalf("unexpected Load result %+v, %v", loaded, err)
	}
	if err := cache.Remove("a"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if err := cache.Remove("a"); err != nil {
		t.Fatalf("Remove of missing key error: %v", err)
	}
	if loaded, _ := cache.Load("a"); loaded != nil {
		t.Fatal("expected artifact to be removed")
	}
}

func TestCompiledCacheRespectsMissingPartialPolicy(t *testing.T) {
	cache := NewMemoryCompiledCache()
	loader := NewMapLoader(map[string]string{"page": "a{{>missing}}b"})

	lenient := NewEnvironment()
	lenient.SetLoader(loader)
	lenient.SetIgnoreMissingPartials(true)
	lenient.SetCompiledCache(cache)
	if _, err := lenient.LoadTemplate("page"); err != nil {
		t.Fatalf("LoadTemplate error: %v", err)
	}

	strict := NewEnvironment()
	strict.SetLoader(loader)
	strict.SetCompiledCache(cache)
	if _, err := strict.LoadTemplate("page"); !IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}
