// Package source enumerates the photos that make up a gallery.
//
// A photo is identified by an opaque string: a filesystem path for local
// photos or a URL for hosted ones. Every backend returns identifiers in a
// stable order so that repeated runs over an unchanged photo set see the
// same sequence.
package source

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/kozaktomas/face-gallery/internal/config"
)

// ErrUnsupportedBackend is returned by New for an unknown storage backend name.
var ErrUnsupportedBackend = errors.New("unsupported storage backend")

// Source lists the photo identifiers of a gallery.
type Source interface {
	// ListPhotos returns every photo identifier, filtered by extension and sorted.
	ListPhotos(ctx context.Context) ([]string, error)
	// Name returns the backend name for logs and status output.
	Name() string
}

// New builds the source selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (Source, error) {
	switch strings.ToLower(cfg.Backend) {
	case config.BackendLocal:
		return NewLocal(cfg.LocalFolder, cfg.ExtensionsAllowed), nil
	case config.BackendURLList, config.BackendCloudinary:
		return NewURLList(cfg.URLList, cfg.ExtensionsAllowed), nil
	case config.BackendS3:
		return NewS3FromConfig(ctx, cfg.S3, cfg.ExtensionsAllowed)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, cfg.Backend)
	}
}

// FilterExtensions keeps the identifiers whose extension is in allowed
// (case-insensitive). Query strings and fragments of URLs are ignored.
func FilterExtensions(ids []string, allowed []string) []string {
	exts := make(map[string]bool, len(allowed))
	for _, ext := range config.NormalizeExtensions(allowed) {
		exts[ext] = true
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if exts[Extension(id)] {
			out = append(out, id)
		}
	}
	return out
}

// Extension returns the lower-cased extension of a photo identifier.
func Extension(id string) string {
	if isURL(id) {
		if i := strings.IndexAny(id, "?#"); i >= 0 {
			id = id[:i]
		}
		return strings.ToLower(path.Ext(id))
	}
	return strings.ToLower(filepath.Ext(id))
}

func isURL(id string) bool {
	return strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://")
}
