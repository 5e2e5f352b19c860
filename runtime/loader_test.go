package runtime

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemplate(t *testing.T, dir, name, source string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}
}

func TestFileSystemLoaderExtension(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "greeting.mustache", "hello")
	writeTemplate(t, dir, "partials/footer.mustache", "bye")
	writeTemplate(t, dir, "page.html", "html page")

	loader := NewFileSystemLoader(dir, "")
	if loader.Extension() != DefaultExtension {
		t.Fatalf("expected default extension, got %q", loader.Extension())
	}

	tests := []struct {
		name     string
		expected string
	}{
		{"greeting", "hello"},
		{"greeting.mustache", "hello"},
		{"greeting.txt", "hello"},
		{"partials/footer", "bye"},
	}
	for _, tt := range tests {
		content, err := loader.Load(tt.name)
		if err != nil {
			t.Fatalf("Load(%q) error: %v", tt.name, err)
		}
		if content != tt.expected {
			t.Fatalf("Load(%q): expected %q, got %q", tt.name, tt.expected, content)
		}
	}

	html := NewFileSystemLoader(dir, ".html")
	if content, err := html.Load("page"); err != nil || content != "html page" {
		t.Fatalf("expected html page, got %q, %v", content, err)
	}
}

func TestFileSystemLoaderNotFound(t *testing.T) {
	loader := NewFileSystemLoader(t.TempDir(), "")

	_, err := loader.Load("missing")
	if !IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if _, err := loader.TemplateModTime("missing"); !IsNotFound(err) {
		t.Fatalf("expected not found error from TemplateModTime, got %v", err)
	}
}

func TestFileSystemLoaderRejectsTraversal(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "templates")
	writeTemplate(t, root, "inside.mustache", "inside")
	writeTemplate(t, base, "secret.mustache", "secret")

	loader := NewFileSystemLoader(root, "")
	for _, name := range []string{"../secret", "a/../../secret", "/../secret"} {
		_, err := loader.Load(name)
		if !IsType(err, ErrorTypeInvalidPartial) {
			t.Fatalf("Load(%q): expected invalid partial error, got %v", name, err)
		}
	}

	if content, err := loader.Load("sub/../inside"); err != nil || content != "inside" {
		t.Fatalf("expected path staying below the root to load, got %q, %v", content, err)
	}
}

func TestFileSystemLoaderRejectsSymlinkEscape(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "templates")
	writeTemplate(t, root, "inside.mustache", "inside")
	writeTemplate(t, base, "secret.mustache", "secret")

	if err := os.Symlink(filepath.Join(base, "secret.mustache"), filepath.Join(root, "link.mustache")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "inside.mustache"), filepath.Join(root, "alias.mustache")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	loader := NewFileSystemLoader(root, "")
	if _, err := loader.Load("link"); !IsType(err, ErrorTypeInvalidPartial) {
		t.Fatalf("expected symlink leaving the root to be rejected, got %v", err)
	}
	if content, err := loader.Load("alias"); err != nil || content != "inside" {
		t.Fatalf("expected symlink inside the root to load, got %q, %v", content, err)
	}
}

func TestMapLoaderModTime(t *testing.T) {
	loader := NewMapLoader(map[string]string{"a": "one"})

	first, err := loader.TemplateModTime("a")
	if err != nil {
		t.Fatalf("TemplateModTime error: %v", err)
	}
	loader.Set("a", "two")
	second, err := loader.TemplateModTime("a")
	if err != nil {
		t.Fatalf("TemplateModTime error: %v", err)
	}
	if !second.After(first) {
		t.Fatalf("expected modification time to advance, got %v then %v", first, second)
	}

	if content, _ := loader.Load("a"); content != "two" {
		t.Fatalf("expected replaced template, got %q", content)
	}

	loader.Delete("a")
	if _, err := loader.Load("a"); !IsNotFound(err) {
		t.Fatalf("expected not found after Delete, got %v", err)
	}
}
