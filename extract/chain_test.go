package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PiloTracer/aiagents/core"
)

// fakeBackend implements Backend for chain tests.
type fakeBackend struct {
	name     string
	text     string
	err      error
	attempts int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Extract(ctx context.Context, path string) (string, error) {
	f.attempts++
	return f.text, f.err
}

func TestChainFirstBackendWins(t *testing.T) {
	first := &fakeBackend{name: "first", text: "first text"}
	second := &fakeBackend{name: "second", text: "second text"}

	text, backend, err := NewChain(first, second).Extract(context.Background(), "/tmp/doc")
	require.NoError(t, err)
	assert.Equal(t, "first text", text)
	assert.Equal(t, "first", backend)
	assert.Equal(t, 0, second.attempts)
}

func TestChainFallbackOrder(t *testing.T) {
	// The failing backend's partial output must not leak into the result.
	first := &fakeBackend{name: "first", text: "garbled partial", err: errors.New("parse failure")}
	second := &fakeBackend{name: "second", text: "clean text"}

	text, backend, err := NewChain(first, second).Extract(context.Background(), "/tmp/doc")
	require.NoError(t, err)
	assert.Equal(t, "clean text", text)
	assert.Equal(t, "second", backend)
	assert.NotContains(t, text, "garbled")
}

func TestChainEmptyResultIsSoftFailure(t *testing.T) {
	first := &fakeBackend{name: "first", text: "   \n\t "}
	second := &fakeBackend{name: "second", text: "usable"}

	text, backend, err := NewChain(first, second).Extract(context.Background(), "/tmp/doc")
	require.NoError(t, err)
	assert.Equal(t, "usable", text)
	assert.Equal(t, "second", backend)
}

func TestChainExhausted(t *testing.T) {
	first := &fakeBackend{name: "first", err: errors.New("boom")}
	second := &fakeBackend{name: "second", text: ""}

	_, _, err := NewChain(first, second).Extract(context.Background(), "/tmp/doc")
	pe, ok := core.AsPipelineError(err)
	require.True(t, ok)
	assert.Equal(t, core.StageExtract, pe.Stage)
	assert.Equal(t, core.KindChainExhausted, pe.Kind)
	assert.False(t, pe.Fatal())
	assert.Contains(t, err.Error(), "boom")
}

func TestChainSingleAttemptPerBackend(t *testing.T) {
	first := &fakeBackend{name: "first", err: errors.New("no")}
	second := &fakeBackend{name: "second", err: errors.New("also no")}

	_, _, err := NewChain(first, second).Extract(context.Background(), "/tmp/doc")
	require.Error(t, err)
	assert.Equal(t, 1, first.attempts)
	assert.Equal(t, 1, second.attempts)
}

func TestPlaintextBackendUTF8(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain utf-8 text, äöü"), 0o644))

	text, err := NewPlaintextBackend().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "plain utf-8 text, äöü", text)
}

func TestPlaintextBackendLatin1Fallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "legacy.txt")
	// "café" in Latin-1: 0xE9 is invalid as UTF-8.
	require.NoError(t, os.WriteFile(path, []byte{'c', 'a', 'f', 0xE9}, 0o644))

	text, err := NewPlaintextBackend().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "café", text)
}

func TestPDFBackendRejectsNonPDF(t *testing.T) {
	_, err := NewPDFBackend(nil).Extract(context.Background(), "/tmp/file.txt")
	assert.Error(t, err)
}

func TestPDFBackendScratchDirectoryError(t *testing.T) {
	// A regular file where the scratch directory should go makes
	// MkdirAll fail before any PDF work starts.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	backend := NewPDFBackend(nil)
	backend.tempDir = filepath.Join(blocker, "nested")

	_, err := backend.Extract(context.Background(), "document.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scratch directory")
}

func TestScrapeContentText(t *testing.T) {
	content := "BT /F1 12 Tf (Hello) Tj (World) Tj ET"
	assert.Equal(t, "Hello World", scrapeContentText(content))

	escaped := `(line one\nline two) Tj (paren \( inside) Tj`
	assert.Equal(t, "line one\nline two paren ( inside", scrapeContentText(escaped))
}
