// Package identity maps person clusters to human names and keeps those names
// attached to the right people when photos are re-clustered.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/kozaktomas/face-gallery/internal/constants"
)

// Names maps cluster ids, encoded as decimal strings, to person names.
// Negative ids below the noise label identify people added by hand.
type Names map[string]string

// LoadNames reads a names file. A missing file yields an empty mapping.
func LoadNames(path string) (Names, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Names{}, nil
		}
		return nil, fmt.Errorf("failed to read names: %w", err)
	}

	names := Names{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return names, nil
	}
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("failed to parse names file %s: %w", path, err)
	}
	return names, nil
}

// Save writes the full mapping as indented JSON.
func (n Names) Save(path string) error {
	data, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode names: %w", err)
	}
	return writeFileAtomic(path, append(data, '\n'))
}

// Get returns the raw name stored for a cluster, valid or not.
func (n Names) Get(clusterID int) string {
	return n[strconv.Itoa(clusterID)]
}

// Resolve returns the name of a cluster if it has a valid one.
func (n Names) Resolve(clusterID int) (string, bool) {
	name := strings.TrimSpace(n.Get(clusterID))
	if !IsValidName(name) {
		return "", false
	}
	return name, true
}

// Set stores a trimmed name for a cluster; an empty name removes the entry.
func (n Names) Set(clusterID int, name string) {
	key := strconv.Itoa(clusterID)
	name = strings.TrimSpace(name)
	if name == "" {
		delete(n, key)
		return
	}
	n[key] = name
}

// IDs returns the integer keys of the mapping, sorted. Keys that are not
// integers are ignored.
func (n Names) IDs() []int {
	ids := make([]int, 0, len(n))
	for key := range n {
		if id, err := strconv.Atoi(key); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// NextSyntheticID returns an id for a person added by hand: one below the
// lowest existing key, and never above FirstSyntheticID so that it cannot be
// mistaken for a cluster label.
func (n Names) NextSyntheticID() int {
	ids := n.IDs()
	if len(ids) == 0 {
		return constants.FirstSyntheticID
	}
	return min(ids[0]-1, constants.FirstSyntheticID)
}

// AddPerson stores name under a new synthetic id and returns the id.
func (n Names) AddPerson(name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("name must not be empty")
	}
	id := n.NextSyntheticID()
	n.Set(id, name)
	return id, nil
}

// IsSynthetic reports whether id belongs to a person added by hand.
func IsSynthetic(id int) bool {
	return id < constants.NoiseLabel
}

// ValidNames returns the distinct valid names, sorted.
func (n Names) ValidNames() []string {
	seen := make(map[string]bool, len(n))
	out := make([]string, 0, len(n))
	for _, name := range n {
		name = strings.TrimSpace(name)
		if IsValidName(name) && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (n Names) Clone() Names {
	out := make(Names, len(n))
	for k, v := range n {
		out[k] = v
	}
	return out
}
