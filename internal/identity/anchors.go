package identity

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/kozaktomas/face-gallery/internal/cache"
	"github.com/kozaktomas/face-gallery/internal/fingerprint"
)

// Anchor ties a name to where that person sits in embedding space: the
// centroid of the cluster that carried the name.
type Anchor struct {
	Name      string    `msgpack:"name" json:"name"`
	ClusterID int       `msgpack:"cluster_id" json:"cluster_id"`
	Centroid  []float32 `msgpack:"centroid" json:"-"`
	Faces     int       `msgpack:"faces" json:"faces"`
	// Retained anchors lost their cluster in a re-clustering and wait for the
	// person to show up again.
	Retained bool `msgpack:"retained,omitempty" json:"retained,omitempty"`
}

// AnchorSet is the persisted list of anchors.
type AnchorSet struct {
	CreatedAt time.Time `msgpack:"created_at"`
	Anchors   []Anchor  `msgpack:"anchors"`
}

// BuildAnchors records an anchor for every named, non-noise cluster of d.
// Any non-empty name is kept, placeholders included, so review decisions
// survive re-clustering as well.
func BuildAnchors(d *cache.Dataset, names Names) *AnchorSet {
	set := &AnchorSet{CreatedAt: time.Now().UTC()}
	for _, person := range d.People() {
		name := names.Get(person.ID)
		if name == "" {
			continue
		}
		set.Anchors = append(set.Anchors, Anchor{
			Name:      name,
			ClusterID: person.ID,
			Centroid:  person.Centroid(d.Faces),
			Faces:     person.Size(),
		})
	}
	return set
}

// Retain appends anchors that no longer name a cluster, skipping any whose
// name is already anchored by s.
func (s *AnchorSet) Retain(anchors []Anchor) {
	current := make(map[string]bool, len(s.Anchors))
	for _, a := range s.Anchors {
		current[NormalizeName(a.Name)] = true
	}
	for _, a := range anchors {
		if current[NormalizeName(a.Name)] {
			continue
		}
		a.Retained = true
		s.Anchors = append(s.Anchors, a)
	}
}

// Retained returns the anchors waiting for their person to reappear.
func (s *AnchorSet) Retained() []Anchor {
	var out []Anchor
	for _, a := range s.Anchors {
		if a.Retained {
			out = append(out, a)
		}
	}
	return out
}

// LoadAnchors reads an anchors file; a missing file yields an empty set.
func LoadAnchors(path string) (*AnchorSet, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &AnchorSet{}, nil
		}
		return nil, fmt.Errorf("failed to read anchors: %w", err)
	}
	var set AnchorSet
	if err := msgpack.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to decode anchors %s: %w", path, err)
	}
	set.CreatedAt = set.CreatedAt.UTC()
	return &set, nil
}

// Save writes the anchors atomically.
func (s *AnchorSet) Save(path string) error {
	data, err := msgpack.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode anchors: %w", err)
	}
	return writeFileAtomic(path, data)
}

// RemapReport describes how names moved to a new clustering.
type RemapReport struct {
	Carried   []RemapMove `json:"carried"`
	Unmatched []Anchor    `json:"unmatched"`
	Manual    int         `json:"manual"` // hand-added people kept as they were
}

// RemapMove is one name carried from an old cluster to a new one.
type RemapMove struct {
	Name     string  `json:"name"`
	From     int     `json:"from"`
	To       int     `json:"to"`
	Distance float64 `json:"distance"`
}

type candidate struct {
	cluster  int
	anchor   int
	distance float64
}

// Remap names the clusters of a freshly built dataset after the anchors
// nearest to their centroids. Every cluster is compared with every anchor;
// each anchor names at most one cluster and each cluster takes at most one
// name. Pairs are matched closest first and only within maxDistance. Hand-added people in previous are kept unchanged.
func Remap(d *cache.Dataset, anchors *AnchorSet, previous Names, maxDistance float64) (Names, *RemapReport) {
	out := Names{}
	report := &RemapReport{}

	for _, id := range previous.IDs() {
		if IsSynthetic(id) {
			out.Set(id, previous.Get(id))
			report.Manual++
		}
	}

	people := d.People()
	if anchors == nil || len(anchors.Anchors) == 0 || len(people) == 0 {
		if anchors != nil {
			report.Unmatched = append(report.Unmatched, anchors.Anchors...)
		}
		return out, report
	}

	var candidates []candidate
	for ci, person := range people {
		centroid := person.Centroid(d.Faces)
		for ai, a := range anchors.Anchors {
			if len(a.Centroid) != len(centroid) {
				continue
			}
			dist := fingerprint.EuclideanDistance(centroid, a.Centroid)
			if dist <= maxDistance {
				candidates = append(candidates, candidate{cluster: ci, anchor: ai, distance: dist})
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		if candidates[i].cluster != candidates[j].cluster {
			return candidates[i].cluster < candidates[j].cluster
		}
		return candidates[i].anchor < candidates[j].anchor
	})

	clusterTaken := make(map[int]bool)
	anchorTaken := make(map[int]bool)
	for _, c := range candidates {
		if clusterTaken[c.cluster] || anchorTaken[c.anchor] {
			continue
		}
		clusterTaken[c.cluster] = true
		anchorTaken[c.anchor] = true

		a := anchors.Anchors[c.anchor]
		to := people[c.cluster].ID
		out[strconv.Itoa(to)] = a.Name
		report.Carried = append(report.Carried, RemapMove{Name: a.Name, From: a.ClusterID, To: to, Distance: c.distance})
	}

	for i, a := range anchors.Anchors {
		if !anchorTaken[i] {
			report.Unmatched = append(report.Unmatched, a)
		}
	}
	sort.Slice(report.Carried, func(i, j int) bool {
		return report.Carried[i].To < report.Carried[j].To
	})
	return out, report
}
