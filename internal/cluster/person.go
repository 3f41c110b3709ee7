package cluster

import (
	"sort"
	"strconv"
	"strings"

	"github.com/kozaktomas/face-gallery/internal/fingerprint"
)

// PersonCluster is the set of faces sharing one cluster label.
// Members are face indices in detection order.
type PersonCluster struct {
	ID      int   `json:"id"`
	Members []int `json:"members"`
}

// Size returns the number of faces in the cluster.
func (p PersonCluster) Size() int {
	return len(p.Members)
}

// Representative returns the index of the face shown for the cluster, its first member.
func (p PersonCluster) Representative() int {
	if len(p.Members) == 0 {
		return -1
	}
	return p.Members[0]
}

// Photos returns the distinct photos of the cluster's faces, sorted.
func (p PersonCluster) Photos(faces []fingerprint.Face) []string {
	seen := make(map[string]bool, len(p.Members))
	photos := make([]string, 0, len(p.Members))
	for _, idx := range p.Members {
		photo := faces[idx].Photo
		if !seen[photo] {
			seen[photo] = true
			photos = append(photos, photo)
		}
	}
	sort.Strings(photos)
	return photos
}

// PhotoCount returns the number of distinct photos the cluster's faces appear in.
func (p PersonCluster) PhotoCount(faces []fingerprint.Face) int {
	return len(p.Photos(faces))
}

// Centroid returns the mean embedding of the cluster's faces.
func (p PersonCluster) Centroid(faces []fingerprint.Face) []float32 {
	if len(p.Members) == 0 {
		return nil
	}
	dim := len(faces[p.Members[0]].Embedding)
	sum := make([]float64, dim)
	for _, idx := range p.Members {
		for i, v := range faces[idx].Embedding {
			sum[i] += float64(v)
		}
	}
	out := make([]float32, dim)
	for i := range sum {
		out[i] = float32(sum[i] / float64(len(p.Members)))
	}
	return out
}

// Group collects face indices by label, noise included, sorted by descending
// size with ties broken by ascending label.
func Group(labels []int) []PersonCluster {
	byLabel := make(map[int][]int)
	for idx, label := range labels {
		byLabel[label] = append(byLabel[label], idx)
	}

	clusters := make([]PersonCluster, 0, len(byLabel))
	for label, members := range byLabel {
		clusters = append(clusters, PersonCluster{ID: label, Members: members})
	}
	sort.Slice(clusters, func(i, j int) bool {
		if len(clusters[i].Members) != len(clusters[j].Members) {
			return len(clusters[i].Members) > len(clusters[j].Members)
		}
		return clusters[i].ID < clusters[j].ID
	})
	return clusters
}

// People is Group without the noise group.
func People(labels []int) []PersonCluster {
	groups := Group(labels)
	out := groups[:0]
	for _, g := range groups {
		if g.ID != Noise {
			out = append(out, g)
		}
	}
	return out
}

// Find returns the cluster with the given id from People(labels).
func Find(labels []int, id int) (PersonCluster, bool) {
	if id == Noise {
		return PersonCluster{}, false
	}
	var members []int
	for idx, label := range labels {
		if label == id {
			members = append(members, idx)
		}
	}
	if len(members) == 0 {
		return PersonCluster{}, false
	}
	return PersonCluster{ID: id, Members: members}, true
}

// Partition returns the clustering as a canonical set of sets: each non-noise
// cluster as a sorted list of face indices, the lists ordered by their first
// index. Two labelings describe the same grouping exactly when their
// partitions are equal, whatever the label numbers.
func Partition(labels []int) [][]int {
	clusters := People(labels)
	out := make([][]int, len(clusters))
	for i, c := range clusters {
		members := append([]int(nil), c.Members...)
		sort.Ints(members)
		out[i] = members
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i][0] < out[j][0]
	})
	return out
}

// PartitionKey renders a partition as a string, handy for comparing runs.
func PartitionKey(labels []int) string {
	var b strings.Builder
	for i, set := range Partition(labels) {
		if i > 0 {
			b.WriteByte('|')
		}
		for j, idx := range set {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(idx))
		}
	}
	return b.String()
}
