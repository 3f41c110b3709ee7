package identity

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/face-gallery/internal/cache"
	"github.com/kozaktomas/face-gallery/internal/config"
	"github.com/kozaktomas/face-gallery/internal/fingerprint"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadNames_MissingFileIsEmpty(t *testing.T) {
	names, err := LoadNames(filepath.Join(t.TempDir(), "names.json"))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLoadNames_BlankFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.json")
	writeFile(t, path, "  \n")

	names, err := LoadNames(path)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLoadNames_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.json")
	writeFile(t, path, "{not json")

	_, err := LoadNames(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestNames_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "names.json")
	names := Names{}
	names.Set(0, "  Alice ")
	names.Set(1, "skip")
	names.Set(-1000, "Bob")

	require.NoError(t, names.Save(path))
	loaded, err := LoadNames(path)
	require.NoError(t, err)
	assert.Equal(t, Names{"0": "Alice", "1": "skip", "-1000": "Bob"}, loaded)
}

func TestNames_Resolve(t *testing.T) {
	names := Names{"0": "Alice", "1": "skip", "2": " "}

	name, ok := names.Resolve(0)
	assert.True(t, ok)
	assert.Equal(t, "Alice", name)

	_, ok = names.Resolve(1)
	assert.False(t, ok)
	_, ok = names.Resolve(2)
	assert.False(t, ok)
	_, ok = names.Resolve(7)
	assert.False(t, ok)
}

func TestNames_SetEmptyDeletes(t *testing.T) {
	names := Names{"3": "Carol"}
	names.Set(3, "   ")
	assert.Empty(t, names)
}

func TestNames_IDsIgnoresNonIntegerKeys(t *testing.T) {
	names := Names{"5": "a", "-2": "b", "x": "c", "0": "d"}
	assert.Equal(t, []int{-2, 0, 5}, names.IDs())
}

func TestNames_NextSyntheticID(t *testing.T) {
	tests := []struct {
		name  string
		names Names
		want  int
	}{
		{"empty", Names{}, -1000},
		{"only cluster ids", Names{"0": "a", "4": "b"}, -1000},
		{"below existing synthetic", Names{"0": "a", "-1000": "b"}, -1001},
		{"lowest wins", Names{"-1003": "a", "-1000": "b"}, -1004},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.names.NextSyntheticID())
		})
	}
}

func TestNames_AddPerson(t *testing.T) {
	names := Names{"0": "Alice"}

	id, err := names.AddPerson(" Dave ")
	require.NoError(t, err)
	assert.Equal(t, -1000, id)
	assert.Equal(t, "Dave", names.Get(id))
	assert.True(t, IsSynthetic(id))

	next, err := names.AddPerson("Eve")
	require.NoError(t, err)
	assert.Equal(t, -1001, next)

	_, err = names.AddPerson("  ")
	require.Error(t, err)
}

func TestIsSynthetic(t *testing.T) {
	assert.False(t, IsSynthetic(0))
	assert.False(t, IsSynthetic(-1))
	assert.True(t, IsSynthetic(-2))
	assert.True(t, IsSynthetic(-1000))
}

func TestNames_ValidNames(t *testing.T) {
	names := Names{"0": "Bob", "1": "Alice", "2": "skip", "3": "Bob", "4": "???"}
	assert.Equal(t, []string{"Alice", "Bob"}, names.ValidNames())
}

func TestLoadTags_AcceptsLegacySingleName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.json")
	writeFile(t, path, `{"a.jpg": "Alice", "b.jpg": ["Bob", "Alice", "Bob"], "c.jpg": ""}`)

	tags, err := LoadTags(path)
	require.NoError(t, err)
	assert.Equal(t, Tags{
		"a.jpg": {"Alice"},
		"b.jpg": {"Bob", "Alice"},
	}, tags)
}

func TestLoadTags_RejectsOtherShapes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.json")
	writeFile(t, path, `{"a.jpg": 42}`)

	_, err := LoadTags(path)
	require.Error(t, err)
}

func TestTags_SaveLoadAndPhotosFor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.json")
	tags := Tags{}
	tags.Set("b.jpg", []string{"Jiří Novák"})
	tags.Set("a.jpg", []string{"jiri-novak", "Eve"})
	tags.Set("c.jpg", []string{"Eve"})
	tags.Set("c.jpg", nil)
	require.NoError(t, tags.Save(path))

	loaded, err := LoadTags(path)
	require.NoError(t, err)
	assert.Equal(t, tags, loaded)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, loaded.PhotosFor("Jiri Novak"))
	assert.Equal(t, []string{"a.jpg"}, loaded.PhotosFor("eve"))
	assert.Empty(t, loaded.PhotosFor("nobody"))
}

// twoPeople builds a dataset with two well separated clusters.
func twoPeople(labels []int) *cache.Dataset {
	faces := []fingerprint.Face{
		{Photo: "a.jpg", Embedding: []float32{0, 0}},
		{Photo: "b.jpg", Embedding: []float32{0.1, 0}},
		{Photo: "c.jpg", Embedding: []float32{5, 5}},
	}
	return cache.NewDataset([]string{"a.jpg", "b.jpg", "c.jpg"}, faces, labels)
}

func TestBuildAnchors(t *testing.T) {
	d := twoPeople([]int{0, 0, 1})
	anchors := BuildAnchors(d, Names{"0": "Alice", "1": "", "-1000": "Manual"})

	require.Len(t, anchors.Anchors, 1)
	a := anchors.Anchors[0]
	assert.Equal(t, "Alice", a.Name)
	assert.Equal(t, 0, a.ClusterID)
	assert.Equal(t, 2, a.Faces)
	assert.InDeltaSlice(t, []float32{0.05, 0}, a.Centroid, 1e-6)
}

func TestAnchors_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anchors.msgpack")
	anchors := BuildAnchors(twoPeople([]int{0, 0, 1}), Names{"0": "Alice", "1": "Bob"})
	require.NoError(t, anchors.Save(path))

	loaded, err := LoadAnchors(path)
	require.NoError(t, err)
	assert.Equal(t, anchors.Anchors, loaded.Anchors)
	assert.True(t, anchors.CreatedAt.Equal(loaded.CreatedAt))
}

func TestLoadAnchors_Missing(t *testing.T) {
	anchors, err := LoadAnchors(filepath.Join(t.TempDir(), "anchors.msgpack"))
	require.NoError(t, err)
	assert.Empty(t, anchors.Anchors)
}

func TestRemap_FollowsPeopleAcrossRelabel(t *testing.T) {
	before := twoPeople([]int{0, 0, 1})
	names := Names{"0": "Alice", "1": "Bob", "-1000": "Manual"}
	anchors := BuildAnchors(before, names)

	// Same faces, labels swapped by the new clustering.
	after := twoPeople([]int{1, 1, 0})
	remapped, report := Remap(after, anchors, names, 0.5)

	assert.Equal(t, Names{"1": "Alice", "0": "Bob", "-1000": "Manual"}, remapped)
	assert.Len(t, report.Carried, 2)
	assert.Empty(t, report.Unmatched)
	assert.Equal(t, 1, report.Manual)
}

func TestRemap_OneNamePerCluster(t *testing.T) {
	before := twoPeople([]int{0, 0, 1})
	anchors := BuildAnchors(before, Names{"0": "Alice", "1": "Bob"})

	// Everything collapses into one cluster; only the closest anchor names it.
	after := twoPeople([]int{0, 0, 0})
	remapped, report := Remap(after, anchors, Names{}, 100)

	require.Len(t, remapped, 1)
	require.Len(t, report.Unmatched, 1)
	assert.Len(t, report.Carried, 1)
}

func TestRemap_RespectsMaxDistance(t *testing.T) {
	before := twoPeople([]int{0, 0, 1})
	anchors := BuildAnchors(before, Names{"0": "Alice"})

	faces := []fingerprint.Face{{Photo: "z.jpg", Embedding: []float32{9, 9}}}
	after := cache.NewDataset([]string{"z.jpg"}, faces, []int{0})
	remapped, report := Remap(after, anchors, Names{}, 0.5)

	assert.Empty(t, remapped)
	require.Len(t, report.Unmatched, 1)
	assert.Equal(t, "Alice", report.Unmatched[0].Name)
}

func TestRemap_ManyAnchorsAllCarried(t *testing.T) {
	const people, dim = 150, 128
	rng := rand.New(rand.NewSource(7)) //nolint:gosec // deterministic test data

	anchors := &AnchorSet{}
	centroids := make([][]float32, people)
	for i := range people {
		centroids[i] = make([]float32, dim)
		for j := range dim {
			centroids[i][j] = rng.Float32()
		}
		anchors.Anchors = append(anchors.Anchors, Anchor{
			Name:      fmt.Sprintf("Person %d", i),
			ClusterID: i,
			Centroid:  centroids[i],
			Faces:     1,
		})
	}

	// Every new cluster sits exactly on one anchor, under a shuffled id.
	perm := rng.Perm(people)
	faces := make([]fingerprint.Face, people)
	labels := make([]int, people)
	photos := make([]string, people)
	for i, from := range perm {
		photos[i] = fmt.Sprintf("%03d.jpg", i)
		faces[i] = fingerprint.Face{Photo: photos[i], Embedding: centroids[from]}
		labels[i] = i
	}
	after := cache.NewDataset(photos, faces, labels)

	remapped, report := Remap(after, anchors, Names{}, 0.01)

	assert.Empty(t, report.Unmatched)
	assert.Len(t, report.Carried, people)
	for i, from := range perm {
		assert.Equal(t, fmt.Sprintf("Person %d", from), remapped.Get(i))
	}
}

func TestRemap_NoAnchors(t *testing.T) {
	remapped, report := Remap(twoPeople([]int{0, 0, 1}), &AnchorSet{}, Names{"0": "Alice"}, 0.5)
	assert.Empty(t, remapped)
	assert.Empty(t, report.Carried)
}

func newStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore(config.IdentityConfig{
		NamesFile:   filepath.Join(dir, "names.json"),
		TagsFile:    filepath.Join(dir, "tags.json"),
		AnchorsFile: filepath.Join(dir, "anchors.msgpack"),
	})
}

func TestStore_SaveNamesRefreshesAnchors(t *testing.T) {
	s := newStore(t)
	d := twoPeople([]int{0, 0, 1})

	require.NoError(t, s.SaveNames(Names{"0": "Alice"}, d))

	anchors, err := s.Anchors()
	require.NoError(t, err)
	require.Len(t, anchors.Anchors, 1)
	assert.Equal(t, "Alice", anchors.Anchors[0].Name)
}

func TestStore_UpdateNames(t *testing.T) {
	s := newStore(t)

	names, err := s.UpdateNames(nil, func(n Names) error {
		_, err := n.AddPerson("Zoe")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, Names{"-1000": "Zoe"}, names)

	stored, err := s.Names()
	require.NoError(t, err)
	assert.Equal(t, names, stored)
}

func TestStore_RemapNames(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.SaveNames(Names{"0": "Alice", "1": "Bob"}, twoPeople([]int{0, 0, 1})))

	report, err := s.RemapNames(twoPeople([]int{1, 1, 0}), 0.5)
	require.NoError(t, err)
	assert.Len(t, report.Carried, 2)

	names, err := s.Names()
	require.NoError(t, err)
	assert.Equal(t, Names{"0": "Bob", "1": "Alice"}, names)
}

func TestStore_RemapNamesWithoutAnchorsKeepsNames(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.SaveNames(Names{"0": "Alice"}, nil))

	report, err := s.RemapNames(twoPeople([]int{0, 0, 1}), 0.5)
	require.NoError(t, err)
	assert.Empty(t, report.Carried)

	names, err := s.Names()
	require.NoError(t, err)
	assert.Equal(t, Names{"0": "Alice"}, names)
}

func TestStore_RetainedAnchorSurvivesNameEdits(t *testing.T) {
	s := newStore(t)
	full := twoPeople([]int{0, 0, 1})
	require.NoError(t, s.SaveNames(Names{"0": "Alice", "1": "Carol"}, full))

	// Carol's only photo is gone for now.
	withoutCarol := cache.NewDataset([]string{"a.jpg", "b.jpg"}, full.Faces[:2], []int{0, 0})
	report, err := s.RemapNames(withoutCarol, 0.5)
	require.NoError(t, err)
	require.Len(t, report.Unmatched, 1)
	assert.Equal(t, "Carol", report.Unmatched[0].Name)

	_, err = s.UpdateNames(withoutCarol, func(n Names) error {
		n.Set(0, "Alicia")
		return nil
	})
	require.NoError(t, err)

	anchors, err := s.Anchors()
	require.NoError(t, err)
	require.Len(t, anchors.Retained(), 1)
	assert.Equal(t, "Carol", anchors.Retained()[0].Name)

	_, err = s.RemapNames(full, 0.5)
	require.NoError(t, err)

	names, err := s.Names()
	require.NoError(t, err)
	assert.Equal(t, Names{"0": "Alicia", "1": "Carol"}, names)
}

func TestAnchorSet_RetainSkipsCurrentNames(t *testing.T) {
	set := &AnchorSet{Anchors: []Anchor{{Name: "Carol", ClusterID: 4}}}
	set.Retain([]Anchor{{Name: "carol", ClusterID: 1}, {Name: "Dan", ClusterID: 2}})

	require.Len(t, set.Anchors, 2)
	assert.False(t, set.Anchors[0].Retained)
	assert.Equal(t, []Anchor{{Name: "Dan", ClusterID: 2, Retained: true}}, set.Retained())
}

func TestStore_SetTags(t *testing.T) {
	s := newStore(t)

	_, err := s.SetTags("a.jpg", []string{"Alice"})
	require.NoError(t, err)
	tags, err := s.SetTags("b.jpg", []string{"Bob"})
	require.NoError(t, err)
	assert.Len(t, tags, 2)

	loaded, err := s.Tags()
	require.NoError(t, err)
	assert.Equal(t, tags, loaded)
}
