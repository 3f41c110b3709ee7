package cache

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/kozaktomas/face-gallery/internal/fingerprint"
)

// record is the on-disk layout of a Dataset.
type record struct {
	Version        int         `msgpack:"version"`
	CreatedAt      time.Time   `msgpack:"created_at"`
	FaceEncodings  [][]float32 `msgpack:"face_encodings"`
	FaceToPhotoMap []photoRef  `msgpack:"face_to_photo_map"`
	ClusterLabels  []int       `msgpack:"cluster_labels"`
	TotalPhotos    int         `msgpack:"total_photos"`
	TotalFaces     int         `msgpack:"total_faces"`
	Photos         []string    `msgpack:"photos,omitempty"`
	Model          string      `msgpack:"model,omitempty"`
	Jitters        int         `msgpack:"jitters,omitempty"`
	Tolerance      float64     `msgpack:"tolerance,omitempty"`
}

type photoRef struct {
	PhotoPath string `msgpack:"photo_path"`
	Location  [4]int `msgpack:"location"` // top, right, bottom, left
}

func encode(d *Dataset) ([]byte, error) {
	rec := record{
		Version:        d.Version,
		CreatedAt:      d.CreatedAt.UTC(),
		FaceEncodings:  make([][]float32, len(d.Faces)),
		FaceToPhotoMap: make([]photoRef, len(d.Faces)),
		ClusterLabels:  d.Labels,
		TotalPhotos:    d.TotalPhotos,
		TotalFaces:     d.TotalFaces,
		Photos:         d.Photos,
		Model:          d.Model,
		Jitters:        d.Jitters,
		Tolerance:      d.Tolerance,
	}
	if rec.ClusterLabels == nil {
		rec.ClusterLabels = []int{}
	}
	for i, f := range d.Faces {
		rec.FaceEncodings[i] = f.Embedding
		rec.FaceToPhotoMap[i] = photoRef{
			PhotoPath: f.Photo,
			Location:  [4]int{f.Box.Top, f.Box.Right, f.Box.Bottom, f.Box.Left},
		}
	}
	return msgpack.Marshal(&rec)
}

func decode(data []byte) (*Dataset, error) {
	var rec record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if err := rec.check(); err != nil {
		return nil, err
	}

	d := &Dataset{
		Version:     rec.Version,
		CreatedAt:   rec.CreatedAt.UTC(),
		Faces:       make([]fingerprint.Face, len(rec.FaceEncodings)),
		Labels:      rec.ClusterLabels,
		TotalPhotos: rec.TotalPhotos,
		TotalFaces:  rec.TotalFaces,
		Photos:      rec.Photos,
		Model:       rec.Model,
		Jitters:     rec.Jitters,
		Tolerance:   rec.Tolerance,
	}
	if d.Version == 0 {
		d.Version = LegacyVersion
	}
	if d.Labels == nil {
		d.Labels = []int{}
	}
	if d.HasSnapshot() && d.Photos == nil {
		d.Photos = []string{}
	}
	for i, emb := range rec.FaceEncodings {
		ref := rec.FaceToPhotoMap[i]
		d.Faces[i] = fingerprint.Face{
			Embedding: emb,
			Photo:     ref.PhotoPath,
			Box: fingerprint.BoundingBox{
				Top:    ref.Location[0],
				Right:  ref.Location[1],
				Bottom: ref.Location[2],
				Left:   ref.Location[3],
			},
		}
	}
	return d, nil
}

func (r *record) check() error {
	if r.Version > CurrentVersion {
		return fmt.Errorf("unsupported dataset version %d", r.Version)
	}
	if len(r.FaceToPhotoMap) != len(r.FaceEncodings) {
		return fmt.Errorf("%d face encodings but %d photo references", len(r.FaceEncodings), len(r.FaceToPhotoMap))
	}
	if len(r.ClusterLabels) != len(r.FaceEncodings) {
		return fmt.Errorf("%d face encodings but %d cluster labels", len(r.FaceEncodings), len(r.ClusterLabels))
	}
	if r.TotalFaces != len(r.FaceEncodings) {
		return fmt.Errorf("total faces %d does not match %d encodings", r.TotalFaces, len(r.FaceEncodings))
	}
	if r.Version >= CurrentVersion && r.TotalPhotos != len(r.Photos) {
		return fmt.Errorf("total photos %d does not match snapshot of %d photos", r.TotalPhotos, len(r.Photos))
	}
	for i, emb := range r.FaceEncodings {
		if len(emb) != len(r.FaceEncodings[0]) {
			return fmt.Errorf("face encoding %d has dimension %d, expected %d", i, len(emb), len(r.FaceEncodings[0]))
		}
	}
	for i, label := range r.ClusterLabels {
		if label < -1 {
			return fmt.Errorf("cluster label %d at index %d is below noise", label, i)
		}
	}
	return nil
}
