package gallery

import (
	"sort"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-gallery/internal/cache"
	"github.com/kozaktomas/face-gallery/internal/constants"
	"github.com/kozaktomas/face-gallery/internal/fingerprint"
	"github.com/kozaktomas/face-gallery/internal/identity"
)

// SimilarFace is one hit of a face similarity search.
type SimilarFace struct {
	FaceIndex  int     `json:"face_index"`
	Photo      string  `json:"photo"`
	ClusterID  int     `json:"cluster_id"`
	PersonName string  `json:"person_name,omitempty"`
	Distance   float64 `json:"distance"`
}

// SimilarIndex is an approximate nearest-neighbour index over the faces of a
// dataset, for browsing lookalikes without the Postgres mirror.
type SimilarIndex struct {
	graph   *hnsw.Graph[int]
	dataset *cache.Dataset
	names   identity.Names
}

// NewSimilarIndex indexes every face of d.
func NewSimilarIndex(d *cache.Dataset, names identity.Names) *SimilarIndex {
	g := hnsw.NewGraph[int]()
	g.M = constants.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors)
	g.EfSearch = constants.HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance

	for i, face := range d.Faces {
		if len(face.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(i, face.Embedding))
	}
	return &SimilarIndex{graph: g, dataset: d, names: names}
}

// Len returns the number of indexed faces.
func (x *SimilarIndex) Len() int {
	return x.graph.Len()
}

// Search returns up to limit faces close to the face at faceIndex, nearest
// first. The face itself is included at distance 0.
func (x *SimilarIndex) Search(faceIndex, limit int) []SimilarFace {
	if faceIndex < 0 || faceIndex >= len(x.dataset.Faces) || limit <= 0 || x.graph.Len() == 0 {
		return []SimilarFace{}
	}
	query := x.dataset.Faces[faceIndex].Embedding

	nodes := x.graph.Search(query, limit)
	out := make([]SimilarFace, 0, len(nodes))
	for _, node := range nodes {
		face := x.dataset.Faces[node.Key]
		label := x.dataset.Labels[node.Key]
		hit := SimilarFace{
			FaceIndex: node.Key,
			Photo:     face.Photo,
			ClusterID: label,
			Distance:  fingerprint.EuclideanDistance(query, node.Value),
		}
		if name, ok := x.names.Resolve(label); ok && label >= 0 {
			hit.PersonName = name
		}
		out = append(out, hit)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].FaceIndex < out[j].FaceIndex
	})
	return out
}
