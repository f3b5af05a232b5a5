package base

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/apiaudit/internal/hook"
)

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestHooksArePost(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	assert.Equal(t, Name, p.Name)
	assert.Equal(t, hook.Post, p.ScanFiles.Order)
	assert.Equal(t, hook.Post, p.Parse.Order)
	assert.Nil(t, p.Analyze.Handler)
}

func TestScanConcatenatesRoots(t *testing.T) {
	t.Parallel()

	a, b := t.TempDir(), t.TempDir()
	writeFile(t, a, "x.ts", "")
	writeFile(t, a, "App.vue", "")
	writeFile(t, b, "y.js", "")
	writeFile(t, b, "y.test.js", "")

	p := New(Options{SkipTests: true})
	paths, err := p.ScanFiles.Handler(context.Background(), []string{a, b})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, "x.ts", filepath.Base(paths[0]))
	assert.Equal(t, "y.js", filepath.Base(paths[1]))
}

func TestScanMissingRoot(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	_, err := p.ScanFiles.Handler(context.Background(), []string{filepath.Join(t.TempDir(), "nope")})
	assert.NoError(t, err, "a missing root walks nothing")
}

func TestParseClaimsScripts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	js := writeFile(t, dir, "a.js", "import x from 'y';\n")
	vue := writeFile(t, dir, "b.vue", "<script></script>\n")

	p := New(Options{})
	units, err := p.Parse.Handler(js)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.NotNil(t, units[0].Resolver)

	units, err = p.Parse.Handler(vue)
	require.NoError(t, err)
	assert.Nil(t, units)
}
