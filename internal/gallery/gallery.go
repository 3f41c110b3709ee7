// Package gallery builds the read-only views the gallery and admin tools show
// from a dataset and its identity files.
package gallery

import (
	"sort"
	"strings"

	"github.com/kozaktomas/face-gallery/internal/cache"
	"github.com/kozaktomas/face-gallery/internal/cluster"
	"github.com/kozaktomas/face-gallery/internal/constants"
	"github.com/kozaktomas/face-gallery/internal/fingerprint"
	"github.com/kozaktomas/face-gallery/internal/identity"
)

// Person is one cluster as listed in the face selector.
type Person struct {
	ID             int                     `json:"id"`
	Name           string                  `json:"name,omitempty"`
	Named          bool                    `json:"named"`
	Faces          int                     `json:"faces"`
	Photos         int                     `json:"photos"`
	Representative int                     `json:"representative_face"`
	Photo          string                  `json:"photo"`
	Box            fingerprint.BoundingBox `json:"box"`
}

// NamedPerson merges every cluster and tag carrying the same name.
type NamedPerson struct {
	Name     string   `json:"name"`
	Clusters []int    `json:"clusters"`
	Photos   []string `json:"photos"`
	Faces    int      `json:"faces"`
	Tagged   int      `json:"tagged"`
}

type Stats struct {
	People          int `json:"people"`
	Labeled         int `json:"labeled"`
	Unlabeled       int `json:"unlabeled"`
	Faces           int `json:"faces"`
	NoiseFaces      int `json:"noise_faces"`
	Photos          int `json:"photos"`
	PhotosWithFaces int `json:"photos_with_faces"`
	TaggedPhotos    int `json:"tagged_photos"`
}

// View answers gallery queries over one dataset. It does not modify its inputs.
type View struct {
	dataset *cache.Dataset
	names   identity.Names
	tags    identity.Tags
	people  []cluster.PersonCluster
}

func New(d *cache.Dataset, names identity.Names, tags identity.Tags) *View {
	if names == nil {
		names = identity.Names{}
	}
	if tags == nil {
		tags = identity.Tags{}
	}
	return &View{
		dataset: d,
		names:   names,
		tags:    tags,
		people:  d.People(),
	}
}

// People lists the clusters, largest first, noise excluded.
func (v *View) People() []Person {
	out := make([]Person, 0, len(v.people))
	for _, p := range v.people {
		out = append(out, v.person(p))
	}
	return out
}

// Person returns a single cluster; noise and unknown ids are not found.
func (v *View) Person(id int) (Person, bool) {
	p, ok := cluster.Find(v.dataset.Labels, id)
	if !ok {
		return Person{}, false
	}
	return v.person(p), true
}

func (v *View) person(p cluster.PersonCluster) Person {
	rep := p.Representative()
	face := v.dataset.Faces[rep]
	name, named := v.names.Resolve(p.ID)
	return Person{
		ID:             p.ID,
		Name:           name,
		Named:          named,
		Faces:          p.Size(),
		Photos:         p.PhotoCount(v.dataset.Faces),
		Representative: rep,
		Photo:          face.Photo,
		Box:            face.Box,
	}
}

// PhotosFor returns the sorted distinct photos of a cluster, nil if unknown.
func (v *View) PhotosFor(id int) []string {
	p, ok := cluster.Find(v.dataset.Labels, id)
	if !ok {
		return nil
	}
	return p.Photos(v.dataset.Faces)
}

// AllPhotos returns every photo with at least one detected face, sorted.
func (v *View) AllPhotos() []string {
	return sortedKeys(v.dataset.FacePhotos())
}

// NamedPeople lists people with a valid name. Clusters whose names match
// after normalization are merged, and tagged photos are added to them. The
// list is ordered by photo count, then name.
func (v *View) NamedPeople() []NamedPerson {
	byKey := make(map[string]*NamedPerson)
	var order []string
	photoSets := make(map[string]map[string]bool)

	get := func(name string) *NamedPerson {
		key := identity.NormalizeName(name)
		np, ok := byKey[key]
		if !ok {
			np = &NamedPerson{Name: name}
			byKey[key] = np
			photoSets[key] = make(map[string]bool)
			order = append(order, key)
		}
		return np
	}

	for _, p := range v.people {
		name, ok := v.names.Resolve(p.ID)
		if !ok {
			continue
		}
		np := get(name)
		np.Clusters = append(np.Clusters, p.ID)
		np.Faces += p.Size()
		for _, photo := range p.Photos(v.dataset.Faces) {
			photoSets[identity.NormalizeName(name)][photo] = true
		}
	}

	// Hand-added people only appear through their tags.
	for _, name := range v.taggedNames() {
		np := get(name)
		set := photoSets[identity.NormalizeName(name)]
		for _, photo := range v.tags.PhotosFor(name) {
			if !set[photo] {
				set[photo] = true
				np.Tagged++
			}
		}
	}

	out := make([]NamedPerson, 0, len(order))
	for _, key := range order {
		np := byKey[key]
		np.Photos = sortedKeys(photoSets[key])
		if len(np.Photos) == 0 {
			continue
		}
		if np.Clusters == nil {
			np.Clusters = []int{}
		}
		out = append(out, *np)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].Photos) != len(out[j].Photos) {
			return len(out[i].Photos) > len(out[j].Photos)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// taggedNames returns the distinct valid names used in tags, sorted.
func (v *View) taggedNames() []string {
	seen := make(map[string]bool)
	var out []string
	for _, names := range v.tags {
		for _, name := range names {
			key := identity.NormalizeName(name)
			if !identity.IsValidName(name) || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// PhotosForName returns the photos of the named person matching name after
// normalization, nil if there is none.
func (v *View) PhotosForName(name string) []string {
	want := identity.NormalizeName(name)
	for _, np := range v.NamedPeople() {
		if identity.NormalizeName(np.Name) == want {
			return np.Photos
		}
	}
	return nil
}

// UnusedPhotos returns the photos of all that no validly named person
// appears in, keeping the order of all. Hosting sample images are left out.
func (v *View) UnusedPhotos(all []string) []string {
	used := make(map[string]bool)
	for _, p := range v.people {
		if _, ok := v.names.Resolve(p.ID); !ok {
			continue
		}
		for _, idx := range p.Members {
			used[v.dataset.Faces[idx].Photo] = true
		}
	}

	out := []string{}
	for _, photo := range all {
		if used[photo] || isSampleImage(photo) {
			continue
		}
		out = append(out, photo)
	}
	return out
}

func isSampleImage(photo string) bool {
	for _, marker := range constants.SampleImageMarkers {
		if strings.Contains(photo, marker) {
			return true
		}
	}
	return false
}

// Stats summarizes the dataset and its labelling progress.
func (v *View) Stats() Stats {
	s := Stats{
		People:          len(v.people),
		Faces:           v.dataset.TotalFaces,
		Photos:          v.dataset.TotalPhotos,
		PhotosWithFaces: len(v.dataset.FacePhotos()),
		TaggedPhotos:    len(v.tags),
	}
	for _, p := range v.people {
		if _, ok := v.names.Resolve(p.ID); ok {
			s.Labeled++
		}
	}
	s.Unlabeled = s.People - s.Labeled
	for _, label := range v.dataset.Labels {
		if label == cluster.Noise {
			s.NoiseFaces++
		}
	}
	return s
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
