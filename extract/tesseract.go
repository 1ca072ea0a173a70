package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// TesseractBackend shells out to the tesseract CLI. It is the degraded
// OCR fallback used when the vision tier is disabled or failing.
type TesseractBackend struct {
	binary string
}

// Compile-time interface assertion.
var _ Backend = (*TesseractBackend)(nil)

// NewTesseractBackend creates the CLI OCR fallback.
func NewTesseractBackend() *TesseractBackend {
	return &TesseractBackend{binary: "tesseract"}
}

func (b *TesseractBackend) Name() string { return "tesseract" }

// Extract runs `tesseract <path> stdout`. A missing binary or an
// unsupported format is an ordinary soft failure for the chain.
func (b *TesseractBackend) Extract(ctx context.Context, path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp", ".gif", ".webp":
	default:
		return "", fmt.Errorf("unsupported format for tesseract: %s", filepath.Ext(path))
	}

	if _, err := exec.LookPath(b.binary); err != nil {
		return "", fmt.Errorf("tesseract not installed: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, b.binary, path, "stdout")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
