package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PiloTracer/aiagents/core"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("content of "+path), 0o644))
}

func TestLocalAdapterDiscoverRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.txt"))
	writeFile(t, filepath.Join(dir, "a.pdf"))
	writeFile(t, filepath.Join(dir, "nested", "deep", "c.md"))
	writeFile(t, filepath.Join(dir, "ignored.bin"))

	adapter := NewLocalAdapter([]string{".pdf", ".txt", ".md"})
	files, err := adapter.Discover(context.Background(), dir, true)
	require.NoError(t, err)

	require.Len(t, files, 3)
	// Sorted by path, subtree included.
	assert.Equal(t, "a.pdf", filepath.Base(files[0].Path))
	assert.Equal(t, "b.txt", filepath.Base(files[1].Path))
	assert.Equal(t, "c.md", filepath.Base(files[2].Path))
	for _, f := range files {
		assert.True(t, filepath.IsAbs(f.Path))
		assert.Contains(t, f.URI, "file://")
	}
}

func TestLocalAdapterDiscoverNonRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "top.txt"))
	writeFile(t, filepath.Join(dir, "nested", "hidden.txt"))

	adapter := NewLocalAdapter(nil)
	files, err := adapter.Discover(context.Background(), dir, false)
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "top.txt", filepath.Base(files[0].Path))
}

func TestLocalAdapterSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "only.txt")
	writeFile(t, path)

	adapter := NewLocalAdapter([]string{".txt"})
	files, err := adapter.Discover(context.Background(), path, true)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, path, files[0].Path)
}

func TestLocalAdapterMissingPath(t *testing.T) {
	adapter := NewLocalAdapter(nil)
	_, err := adapter.Discover(context.Background(), "/does/not/exist", true)

	pe, ok := core.AsPipelineError(err)
	require.True(t, ok)
	assert.Equal(t, core.StageSource, pe.Stage)
	assert.Equal(t, core.KindPathNotFound, pe.Kind)
}

func TestLocalAdapterDeterministicOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"zeta.txt", "alpha.txt", "mid.txt"} {
		writeFile(t, filepath.Join(dir, name))
	}

	adapter := NewLocalAdapter(nil)
	first, err := adapter.Discover(context.Background(), dir, true)
	require.NoError(t, err)
	second, err := adapter.Discover(context.Background(), dir, true)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "alpha.txt", filepath.Base(first[0].Path))
}

func TestRegistryUnsupportedScheme(t *testing.T) {
	registry := NewRegistry(NewLocalAdapter(nil))
	_, err := registry.Discover(context.Background(), core.Location{
		URI: "s3://bucket/prefix", AreaSlug: "area1", AgentSlug: "agent",
	})

	pe, ok := core.AsPipelineError(err)
	require.True(t, ok)
	assert.Equal(t, core.KindUnsupportedScheme, pe.Kind)
	assert.False(t, pe.Fatal())
}

func TestRegistryFileScheme(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "doc.txt"))

	registry := NewRegistry(NewLocalAdapter(nil))
	files, err := registry.Discover(context.Background(), core.Location{
		URI: "file://" + dir, AreaSlug: "area1", AgentSlug: "agent", Recursive: true,
	})
	require.NoError(t, err)
	require.Len(t, files, 1)
}
