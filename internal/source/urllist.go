package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// URLList reads hosted photo URLs from a pre-generated file, one URL per line.
// This is how Cloudinary galleries are enumerated without API credentials.
type URLList struct {
	path       string
	extensions []string
}

func NewURLList(path string, extensions []string) *URLList {
	return &URLList{path: path, extensions: extensions}
}

func (u *URLList) Name() string {
	return "urllist"
}

func (u *URLList) ListPhotos(ctx context.Context) ([]string, error) {
	f, err := os.Open(u.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("url list %q does not exist, generate it first", u.path)
		}
		return nil, fmt.Errorf("failed to open url list: %w", err)
	}
	defer f.Close()

	var urls []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || seen[line] {
			continue
		}
		seen[line] = true
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read url list: %w", err)
	}

	urls = FilterExtensions(urls, u.extensions)
	sort.Strings(urls)
	return urls, nil
}
