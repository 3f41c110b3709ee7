// Package cluster groups face embeddings into person clusters with DBSCAN.
package cluster

import (
	"errors"
	"fmt"
	"math"

	"github.com/kozaktomas/face-gallery/internal/constants"
)

// Noise is the label of a face that belongs to no person.
const Noise = constants.NoiseLabel

// DBSCAN labels every point with a cluster id or Noise.
//
// Two points are neighbours when their Euclidean distance is at most eps; a
// point is its own neighbour. A point with at least minSamples neighbours is a
// core point. Clusters are numbered 0, 1, 2, ... in the order their first core
// point appears in points, and a border point joins the first cluster that
// reaches it, so the result depends only on the input order and eps.
//
// Neighbourhoods are computed exactly by brute force, one point at a time,
// so memory stays linear in the number of points.
func DBSCAN(points [][]float32, eps float64, minSamples int) []int {
	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	if n == 0 {
		return labels
	}
	if minSamples < 1 {
		minSamples = 1
	}

	neighbours := func(i int) []int {
		var out []int
		for j := range points {
			if distance(points[i], points[j]) <= eps {
				out = append(out, j)
			}
		}
		return out
	}

	next := 0
	var stack []int
	for i := range points {
		if labels[i] != Noise {
			continue
		}
		seed := neighbours(i)
		if len(seed) < minSamples {
			continue
		}

		label := next
		next++
		labels[i] = label
		for _, j := range seed {
			if labels[j] == Noise {
				stack = append(stack, j)
			}
		}

		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if labels[p] != Noise {
				continue
			}
			labels[p] = label

			neigh := neighbours(p)
			if len(neigh) < minSamples {
				continue
			}
			for _, j := range neigh {
				if labels[j] == Noise {
					stack = append(stack, j)
				}
			}
		}
	}
	return labels
}

// Cluster validates the embeddings and runs DBSCAN. All embeddings must have
// the same length and eps must be a non-negative number (+Inf is allowed).
func Cluster(embeddings [][]float32, eps float64, minSamples int) ([]int, error) {
	if math.IsNaN(eps) || eps < 0 {
		return nil, fmt.Errorf("eps must be a non-negative number, got %v", eps)
	}
	if minSamples < 1 {
		return nil, fmt.Errorf("min samples must be at least 1, got %d", minSamples)
	}
	if len(embeddings) > 0 {
		dim := len(embeddings[0])
		if dim == 0 {
			return nil, errors.New("embeddings must not be empty")
		}
		for i, e := range embeddings {
			if len(e) != dim {
				return nil, fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(e), dim)
			}
		}
	}
	return DBSCAN(embeddings, eps, minSamples), nil
}

func distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
