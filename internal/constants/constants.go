// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Face detection constants
const (
	// DetectionModelHOG is the faster, lower-accuracy detection model
	DetectionModelHOG = "hog"

	// DetectionModelCNN is the slower, higher-accuracy detection model
	DetectionModelCNN = "cnn"

	// DefaultJitterCount is the number of re-sampling passes used when encoding a face
	DefaultJitterCount = 1
)

// Clustering constants
const (
	// DefaultTolerance is the default DBSCAN eps (Euclidean distance between embeddings).
	// Lower values = stricter matching
	DefaultTolerance = 0.6

	// DefaultMinSamples is the DBSCAN min_samples value; a single face may form a person
	DefaultMinSamples = 1

	// NoiseLabel is the cluster label assigned to faces with no sufficiently similar neighbour
	NoiseLabel = -1

	// DefaultRemapDistance is the maximum centroid distance for carrying a name over
	// to a re-clustered person
	DefaultRemapDistance = 0.5
)

// Identity constants
const (
	// FirstSyntheticID is the id given to the first manually added person
	FirstSyntheticID = -1000
)

// Processing constants
const (
	// DefaultWorkers is the default number of parallel detection workers.
	// One worker processes photos strictly sequentially.
	DefaultWorkers = 1

	// MaxWorkers caps the detection worker pool
	MaxWorkers = 64

	// DefaultRetryAttempts is the default number of attempts for fetching a photo
	DefaultRetryAttempts = 3

	// DefaultRetryInitialInterval is the first backoff delay between fetch attempts
	DefaultRetryInitialInterval = 500 * time.Millisecond

	// DefaultRetryMaxInterval caps the backoff delay between fetch attempts
	DefaultRetryMaxInterval = 10 * time.Second
)

// Gallery constants
const (
	// DefaultThumbnailSize is the edge length of face thumbnails in pixels
	DefaultThumbnailSize = 100

	// ThumbnailPadding is the padding added around a face box before cropping
	ThumbnailPadding = 20

	// ThumbnailJPEGQuality is the JPEG quality for generated face thumbnails
	ThumbnailJPEGQuality = 85

	// CloudinaryThumbnailSize is the edge length requested from Cloudinary for face crops
	CloudinaryThumbnailSize = 150
)

// DefaultExtensions lists the photo file extensions accepted by photo sources.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".bmp"}

// SampleImageMarkers identify the demo images a hosting provider adds to new
// accounts; they are never reported as unused photos.
var SampleImageMarkers = []string{"sample.jpg.jpg", "cld-sample-2.jpg.jpg", "cld-sample-5.jpg.jpg"}

// Similarity search constants
const (
	// HNSWMaxNeighbors is the M parameter of the in-memory face index
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size
	HNSWEfSearch = 100
)
