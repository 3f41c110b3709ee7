// Package cache persists the derived face dataset and decides whether it is still valid.
package cache

import (
	"time"

	"github.com/kozaktomas/face-gallery/internal/cluster"
	"github.com/kozaktomas/face-gallery/internal/fingerprint"
)

// Dataset format versions. Version 2 added the photo snapshot and build settings.
const (
	LegacyVersion  = 1
	CurrentVersion = 2
)

// Dataset is the full result of a pipeline run. Faces and Labels are parallel:
// the face index is the face identity used everywhere else.
type Dataset struct {
	Version     int
	CreatedAt   time.Time
	Faces       []fingerprint.Face
	Labels      []int
	TotalPhotos int
	TotalFaces  int

	// Photos is the full photo set enumerated when the dataset was built,
	// including photos without faces. Legacy datasets have none.
	Photos []string

	Model     string
	Jitters   int
	Tolerance float64
}

// NewDataset assembles a current-version dataset.
func NewDataset(photos []string, faces []fingerprint.Face, labels []int) *Dataset {
	if faces == nil {
		faces = []fingerprint.Face{}
	}
	if labels == nil {
		labels = []int{}
	}
	if photos == nil {
		photos = []string{}
	}
	return &Dataset{
		Version:     CurrentVersion,
		CreatedAt:   time.Now().UTC(),
		Faces:       faces,
		Labels:      labels,
		TotalPhotos: len(photos),
		TotalFaces:  len(faces),
		Photos:      photos,
	}
}

// HasSnapshot reports whether the dataset recorded its full photo set.
func (d *Dataset) HasSnapshot() bool {
	return d.Version >= CurrentVersion
}

// People returns the person clusters, largest first, noise excluded.
func (d *Dataset) People() []cluster.PersonCluster {
	return cluster.People(d.Labels)
}

// Embeddings returns the face embeddings in face order.
func (d *Dataset) Embeddings() [][]float32 {
	out := make([][]float32, len(d.Faces))
	for i := range d.Faces {
		out[i] = d.Faces[i].Embedding
	}
	return out
}

// FacePhotos returns the set of photos that contributed at least one face.
func (d *Dataset) FacePhotos() map[string]bool {
	out := make(map[string]bool, len(d.Faces))
	for _, f := range d.Faces {
		out[f.Photo] = true
	}
	return out
}

// photoSet is the set the dataset is validated against.
func (d *Dataset) photoSet() map[string]bool {
	if !d.HasSnapshot() {
		return d.FacePhotos()
	}
	out := make(map[string]bool, len(d.Photos))
	for _, p := range d.Photos {
		out[p] = true
	}
	return out
}
