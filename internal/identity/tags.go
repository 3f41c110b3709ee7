package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Tags maps a photo to the names of people shown in it. It covers photos in
// which no face was detected, so they can still appear under a person.
type Tags map[string][]string

// tagList accepts both a list of names and the older single-name string.
type tagList []string

func (t *tagList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("tag must be a name or a list of names: %w", err)
	}
	if single == "" {
		*t = nil
		return nil
	}
	*t = []string{single}
	return nil
}

// LoadTags reads a tags file. A missing file yields no tags.
func LoadTags(path string) (Tags, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Tags{}, nil
		}
		return nil, fmt.Errorf("failed to read photo tags: %w", err)
	}

	raw := map[string]tagList{}
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse photo tags %s: %w", path, err)
		}
	}

	tags := make(Tags, len(raw))
	for photo, names := range raw {
		tags.Set(photo, names)
	}
	return tags, nil
}

// Save writes all tags as indented JSON.
func (t Tags) Save(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode photo tags: %w", err)
	}
	return writeFileAtomic(path, append(data, '\n'))
}

// Set replaces the names tagged on a photo. Blank and duplicate names are
// dropped; an empty list removes the photo.
func (t Tags) Set(photo string, names []string) {
	seen := make(map[string]bool, len(names))
	clean := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		clean = append(clean, name)
	}
	if len(clean) == 0 {
		delete(t, photo)
		return
	}
	t[photo] = clean
}

// PhotosFor returns the photos tagged with name, compared by normalized name, sorted.
func (t Tags) PhotosFor(name string) []string {
	want := NormalizeName(name)
	var photos []string
	for photo, names := range t {
		for _, n := range names {
			if NormalizeName(n) == want {
				photos = append(photos, photo)
				break
			}
		}
	}
	sort.Strings(photos)
	return photos
}
