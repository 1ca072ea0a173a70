package source

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PiloTracer/aiagents/core"
)

// LocalAdapter discovers documents in the local filesystem. It handles
// bare paths and file:// URIs.
type LocalAdapter struct {
	allowed map[string]struct{}
}

// Compile-time interface assertion.
var _ Adapter = (*LocalAdapter)(nil)

// NewLocalAdapter creates a filesystem adapter. Extensions are lowered
// and must include the leading dot; an empty list admits every file.
func NewLocalAdapter(allowedExtensions []string) *LocalAdapter {
	allowed := make(map[string]struct{}, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		allowed[ext] = struct{}{}
	}
	return &LocalAdapter{allowed: allowed}
}

// Supports reports whether the URI names a local path.
func (a *LocalAdapter) Supports(uri string) bool {
	parsed, err := url.Parse(uri)
	if err != nil {
		// Windows-style or otherwise unparsable paths still belong to
		// the filesystem adapter.
		return true
	}
	return parsed.Scheme == "" || parsed.Scheme == "file"
}

// Discover lists supported files under the URI in sorted path order.
func (a *LocalAdapter) Discover(ctx context.Context, uri string, recursive bool) ([]File, error) {
	root := localPath(uri)

	info, err := os.Stat(root)
	if err != nil {
		return nil, core.NewSourceError(core.KindPathNotFound,
			fmt.Errorf("source path not found: %s", root))
	}

	if !info.IsDir() {
		return a.fileIfSupported(root), nil
	}

	var files []File
	if recursive {
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !d.IsDir() {
				files = append(files, a.fileIfSupported(path)...)
			}
			return nil
		})
	} else {
		var entries []fs.DirEntry
		entries, err = os.ReadDir(root)
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			files = append(files, a.fileIfSupported(filepath.Join(root, entry.Name()))...)
		}
	}
	if err != nil {
		return nil, core.NewSourceError(core.KindPathNotFound, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (a *LocalAdapter) fileIfSupported(path string) []File {
	ext := strings.ToLower(filepath.Ext(path))
	if len(a.allowed) > 0 {
		if _, ok := a.allowed[ext]; !ok {
			return nil
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return []File{{
		URI:         "file://" + abs,
		Path:        abs,
		ContentType: mime.TypeByExtension(ext),
	}}
}

// localPath strips a file:// scheme from the URI if present.
func localPath(uri string) string {
	if strings.HasPrefix(uri, "file://") {
		if parsed, err := url.Parse(uri); err == nil && parsed.Path != "" {
			return parsed.Path
		}
		return strings.TrimPrefix(uri, "file://")
	}
	return uri
}
