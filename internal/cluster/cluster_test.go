package cluster

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/face-gallery/internal/fingerprint"
)

func TestDBSCAN_ThreePhotoScenario(t *testing.T) {
	faces := []fingerprint.Face{
		{Photo: "A.jpg", Embedding: []float32{0.10, 0.20, 0.30}},
		{Photo: "B.jpg", Embedding: []float32{0.15, 0.22, 0.28}},
		{Photo: "C.jpg", Embedding: []float32{0.90, 0.80, 0.95}},
	}
	embeddings := make([][]float32, len(faces))
	for i := range faces {
		embeddings[i] = faces[i].Embedding
	}

	labels, err := Cluster(embeddings, 0.6, 1)
	require.NoError(t, err)
	require.Len(t, labels, 3)

	people := People(labels)
	require.Len(t, people, 2)
	assert.Equal(t, []int{0, 1}, people[0].Members)
	assert.Equal(t, []string{"A.jpg", "B.jpg"}, people[0].Photos(faces))
	assert.Equal(t, []int{2}, people[1].Members)
	assert.Equal(t, 1, people[1].PhotoCount(faces))
}

func TestDBSCAN_EmptyInput(t *testing.T) {
	labels, err := Cluster(nil, 0.6, 1)
	require.NoError(t, err)
	assert.NotNil(t, labels)
	assert.Empty(t, labels)
	assert.Empty(t, People(labels))
}

func TestDBSCAN_ZeroEpsMakesSingletons(t *testing.T) {
	points := [][]float32{{0, 0}, {0.01, 0}, {1, 1}, {0, 0.01}}

	labels := DBSCAN(points, 0, 1)
	assert.Equal(t, []int{0, 1, 2, 3}, labels)
	assert.Len(t, People(labels), 4)
}

func TestDBSCAN_ZeroEpsKeepsIdenticalTogether(t *testing.T) {
	points := [][]float32{{1, 2}, {3, 4}, {1, 2}}

	labels := DBSCAN(points, 0, 1)
	assert.Equal(t, "0,2|1", PartitionKey(labels))
}

func TestDBSCAN_InfiniteEpsMergesAll(t *testing.T) {
	points := [][]float32{{0, 0}, {100, 100}, {-50, 3}, {1e6, -1e6}}

	labels := DBSCAN(points, math.Inf(1), 1)
	assert.Equal(t, []int{0, 0, 0, 0}, labels)
}

func TestDBSCAN_Chaining(t *testing.T) {
	// 0-1 and 1-2 are within eps, 0-2 is not: density reachability joins all three
	points := [][]float32{{0}, {0.5}, {1.0}, {5}}

	labels := DBSCAN(points, 0.6, 1)
	assert.Equal(t, []int{0, 0, 0, 1}, labels)
}

func TestDBSCAN_BoundaryIsInclusive(t *testing.T) {
	points := [][]float32{{0, 0}, {3, 4}}

	assert.Equal(t, []int{0, 0}, DBSCAN(points, 5, 1))
	assert.Equal(t, []int{0, 1}, DBSCAN(points, 4.999, 1))
}

func TestDBSCAN_MinSamplesNoise(t *testing.T) {
	points := [][]float32{{0}, {0.1}, {0.2}, {10}}

	labels := DBSCAN(points, 0.15, 2)
	// the first three each have a neighbour besides themselves, 10 has none
	assert.Equal(t, []int{0, 0, 0, Noise}, labels)
	assert.Len(t, Group(labels), 2)
	assert.Len(t, People(labels), 1)
}

func TestDBSCAN_DeterministicPartition(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	points := make([][]float32, 200)
	for i := range points {
		center := float32(i % 5 * 10)
		points[i] = []float32{center + rng.Float32(), center + rng.Float32(), rng.Float32()}
	}

	first := DBSCAN(points, 2, 1)
	for range 3 {
		assert.Equal(t, Partition(first), Partition(DBSCAN(points, 2, 1)))
	}
	assert.Len(t, People(first), 5)
}

func TestPartition_IgnoresLabelNumbers(t *testing.T) {
	a := []int{0, 0, 1, 2, 1}
	b := []int{7, 7, 3, 0, 3}
	c := []int{0, 1, 1, 2, 1}

	assert.Equal(t, Partition(a), Partition(b))
	assert.NotEqual(t, Partition(a), Partition(c))
	assert.Equal(t, [][]int{{0, 1}, {2, 4}, {3}}, Partition(a))
}

func TestCluster_Validation(t *testing.T) {
	_, err := Cluster([][]float32{{1, 2}, {1, 2, 3}}, 0.6, 1)
	require.Error(t, err)

	_, err = Cluster([][]float32{{1}}, -1, 1)
	require.Error(t, err)

	_, err = Cluster([][]float32{{1}}, math.NaN(), 1)
	require.Error(t, err)

	_, err = Cluster([][]float32{{1}}, 0.6, 0)
	require.Error(t, err)

	_, err = Cluster([][]float32{{}}, 0.6, 1)
	require.Error(t, err)
}

func TestGroup_SortsBySizeThenLabel(t *testing.T) {
	labels := []int{2, 0, 1, 1, Noise, 2, Noise, Noise, 0}

	groups := Group(labels)
	require.Len(t, groups, 4)
	assert.Equal(t, Noise, groups[0].ID)
	assert.Equal(t, []int{4, 6, 7}, groups[0].Members)
	assert.Equal(t, 0, groups[1].ID)
	assert.Equal(t, 1, groups[2].ID)
	assert.Equal(t, 2, groups[3].ID)

	people := People(labels)
	require.Len(t, people, 3)
	assert.Equal(t, []int{1, 8}, people[0].Members)
	assert.Equal(t, 1, people[0].Representative())
}

func TestFind(t *testing.T) {
	labels := []int{0, 1, 0, Noise}

	c, ok := Find(labels, 0)
	require.True(t, ok)
	assert.Equal(t, []int{0, 2}, c.Members)

	_, ok = Find(labels, Noise)
	assert.False(t, ok)

	_, ok = Find(labels, 5)
	assert.False(t, ok)
}

func TestCentroid(t *testing.T) {
	faces := []fingerprint.Face{
		{Embedding: []float32{0, 2}},
		{Embedding: []float32{2, 4}},
		{Embedding: []float32{100, 100}},
	}
	c := PersonCluster{ID: 0, Members: []int{0, 1}}
	assert.Equal(t, []float32{1, 3}, c.Centroid(faces))
	assert.Nil(t, PersonCluster{}.Centroid(faces))
	assert.Equal(t, -1, PersonCluster{}.Representative())
}
