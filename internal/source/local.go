package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/facette/natsort"
)

// Local lists photos stored directly in a folder. Sub-folders are not descended.
type Local struct {
	folder     string
	extensions []string
}

func NewLocal(folder string, extensions []string) *Local {
	return &Local{folder: folder, extensions: extensions}
}

func (l *Local) Name() string {
	return "local"
}

func (l *Local) ListPhotos(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.folder)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("photos folder %q does not exist", l.folder)
		}
		return nil, fmt.Errorf("failed to list photos folder %q: %w", l.folder, err)
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(l.folder, entry.Name()))
	}

	paths = FilterExtensions(paths, l.extensions)
	natsort.Sort(paths)
	return paths, nil
}
