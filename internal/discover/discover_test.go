package discover

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

var scriptExts = []string{".js", ".jsx", ".ts", ".tsx"}

func relPaths(t *testing.T, root string, paths []string) []string {
	t.Helper()
	root, err := filepath.Abs(root)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		if !filepath.IsAbs(p) {
			t.Errorf("path %q is not absolute", p)
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatal(err)
		}
		out[i] = filepath.ToSlash(rel)
	}
	return out
}

func TestDiscoverScriptFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.ts", "export {}")
	writeFile(t, dir, "lib/util.js", "module.exports = {}")
	// Unlisted extension should be ignored
	writeFile(t, dir, "readme.md", "hello")
	// Hidden file should be ignored
	writeFile(t, dir, ".hidden.js", "secret")

	paths, err := Files(context.Background(), dir, Options{Extensions: scriptExts})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	got := relPaths(t, dir, paths)
	if len(got) != 2 {
		t.Fatalf("expected 2 paths, got %d: %v", len(got), got)
	}

	// Should be sorted
	if got[0] != "lib/util.js" {
		t.Errorf("path 0: got %q", got[0])
	}
	if got[1] != "main.ts" {
		t.Errorf("path 1: got %q", got[1])
	}
}

func TestDiscoverSkipDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "index.js", "")
	writeFile(t, dir, "node_modules/pkg/index.js", "")
	writeFile(t, dir, "dist/bundle.js", "")
	writeFile(t, dir, ".hidden/secret.js", "")

	paths, err := Files(context.Background(), dir, Options{Extensions: scriptExts})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	got := relPaths(t, dir, paths)
	if len(got) != 1 {
		t.Fatalf("expected 1 path, got %d: %v", len(got), got)
	}
	if got[0] != "index.js" {
		t.Errorf("expected index.js, got %q", got[0])
	}
}

func TestDiscoverExtensionFilter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "App.vue", "<script></script>")
	writeFile(t, dir, "main.TS", "")

	paths, err := Files(context.Background(), dir, Options{Extensions: []string{".vue"}})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if got := relPaths(t, dir, paths); len(got) != 1 || got[0] != "App.vue" {
		t.Fatalf("expected only App.vue, got %v", got)
	}

	paths, err = Files(context.Background(), dir, Options{Extensions: []string{".ts"}})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if got := relPaths(t, dir, paths); len(got) != 1 || got[0] != "main.TS" {
		t.Fatalf("extension match should ignore case, got %v", got)
	}
}

func TestDiscoverGitignore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, ".gitignore", "generated/\n*.min.js\n")
	writeFile(t, dir, "app.js", "")
	writeFile(t, dir, "vendor.min.js", "")
	writeFile(t, dir, "generated/api.ts", "")

	paths, err := Files(context.Background(), dir, Options{Extensions: scriptExts})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if got := relPaths(t, dir, paths); len(got) != 1 || got[0] != "app.js" {
		t.Fatalf("expected only app.js, got %v", got)
	}
}

func TestDiscoverSkipTests(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "src/api.ts", "")
	writeFile(t, dir, "src/api.test.ts", "")
	writeFile(t, dir, "src/__tests__/api.ts", "")

	all, err := Files(context.Background(), dir, Options{Extensions: scriptExts})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 paths without SkipTests, got %d", len(all))
	}

	prod, err := Files(context.Background(), dir, Options{Extensions: scriptExts, SkipTests: true})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if got := relPaths(t, dir, prod); len(got) != 1 || got[0] != "src/api.ts" {
		t.Fatalf("expected only src/api.ts, got %v", got)
	}
}

func TestDiscoverSymlinksSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "real.js", "")

	// Create symlink
	err := os.Symlink(filepath.Join(dir, "real.js"), filepath.Join(dir, "link.js"))
	if err != nil {
		t.Skip("symlinks not supported")
	}

	paths, err := Files(context.Background(), dir, Options{Extensions: scriptExts})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	got := relPaths(t, dir, paths)
	if len(got) != 1 {
		t.Fatalf("expected 1 path (no symlink), got %d", len(got))
	}
	if got[0] != "real.js" {
		t.Errorf("expected real.js, got %q", got[0])
	}
}

func TestDiscoverCanceled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.js", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Files(ctx, dir, Options{Extensions: scriptExts}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestIsTestFile(t *testing.T) {
	t.Parallel()
	cases := []struct {
		path string
		want bool
	}{
		// Test directory components
		{"src/__tests__/foo.js", true},
		{"src/__mocks__/axios.ts", true},
		{"test/setup.js", true},
		{"tests/e2e.spec.ts", true},
		{"spec/models/user.js", true},
		// Filename patterns
		{"foo.test.js", true},
		{"foo.spec.ts", true},
		{"components/Button.test.tsx", true},
		// Production files
		{"src/index.ts", false},
		{"src/testing/utils.js", false},
		{"latest.js", false},
		{"contest.ts", false},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			got := IsTestFile(tc.path)
			if got != tc.want {
				t.Errorf("IsTestFile(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
