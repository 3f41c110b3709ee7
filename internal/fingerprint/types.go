package fingerprint

import "math"

// BoundingBox locates a face within its photo, in pixels.
type BoundingBox struct {
	Top    int `json:"top" msgpack:"top"`
	Right  int `json:"right" msgpack:"right"`
	Bottom int `json:"bottom" msgpack:"bottom"`
	Left   int `json:"left" msgpack:"left"`
}

// Width returns the horizontal extent of the box.
func (b BoundingBox) Width() int {
	return b.Right - b.Left
}

// Height returns the vertical extent of the box.
func (b BoundingBox) Height() int {
	return b.Bottom - b.Top
}

// Scale multiplies every coordinate by f, rounding to the nearest pixel.
func (b BoundingBox) Scale(f float64) BoundingBox {
	if f == 1 {
		return b
	}
	return BoundingBox{
		Top:    int(math.Round(float64(b.Top) * f)),
		Right:  int(math.Round(float64(b.Right) * f)),
		Bottom: int(math.Round(float64(b.Bottom) * f)),
		Left:   int(math.Round(float64(b.Left) * f)),
	}
}

// BoxFromBBox converts an [x1, y1, x2, y2] box as returned by the embedding
// service into top/right/bottom/left order.
func BoxFromBBox(bbox []float64) (BoundingBox, bool) {
	if len(bbox) != 4 {
		return BoundingBox{}, false
	}
	return BoundingBox{
		Top:    int(math.Round(bbox[1])),
		Right:  int(math.Round(bbox[2])),
		Bottom: int(math.Round(bbox[3])),
		Left:   int(math.Round(bbox[0])),
	}, true
}

// Face is one detected face: its embedding, where it is, and which photo it came from.
// The embedding is never modified after detection.
type Face struct {
	Embedding []float32   `json:"embedding"`
	Box       BoundingBox `json:"box"`
	Photo     string      `json:"photo"`
}

// EuclideanDistance returns the L2 distance between two embeddings of equal length.
func EuclideanDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Failure records a photo that was skipped during detection.
type Failure struct {
	Photo     string `json:"photo"`
	Error     string `json:"error"`
	Transient bool   `json:"transient"`
}

// Detection is the outcome of running the detector over a photo list.
type Detection struct {
	Faces       []Face    `json:"faces"`
	Failures    []Failure `json:"failures,omitempty"`
	TotalPhotos int       `json:"total_photos"`
	TotalFaces  int       `json:"total_faces"`
}

// Embeddings returns the face embeddings in face order.
func (d *Detection) Embeddings() [][]float32 {
	out := make([][]float32, len(d.Faces))
	for i := range d.Faces {
		out[i] = d.Faces[i].Embedding
	}
	return out
}
