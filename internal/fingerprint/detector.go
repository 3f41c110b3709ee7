package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/face-gallery/internal/fetch"
	"github.com/kozaktomas/face-gallery/internal/metrics"
)

// Loader returns the bytes of a photo.
type Loader interface {
	Load(ctx context.Context, photo string) ([]byte, error)
}

// Encoder detects faces in an image and computes one embedding per face.
type Encoder interface {
	ComputeFaceEmbeddings(ctx context.Context, imageData []byte, opts EncodeOptions) (*FaceResponse, error)
}

// ProgressFunc is called once per finished photo with the number of photos
// finished so far. Calls never overlap.
type ProgressFunc func(current, total int, photo string)

// DetectorOptions configure a Detector.
type DetectorOptions struct {
	Encode       EncodeOptions
	Workers      int // parallel photos, 1 = sequential
	MaxImageSize int // downscale before encoding, 0 = off
}

// Detector turns a list of photos into faces.
type Detector struct {
	loader  Loader
	encoder Encoder
	opts    DetectorOptions
	logger  zerolog.Logger
}

func NewDetector(loader Loader, encoder Encoder, opts DetectorOptions, logger zerolog.Logger) *Detector {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Detector{loader: loader, encoder: encoder, opts: opts, logger: logger}
}

type photoResult struct {
	faces   []Face
	failure *Failure
}

// Detect processes every photo. A photo that cannot be loaded, decoded or
// encoded is logged, recorded in Failures and skipped; it never aborts the
// batch. Faces are ordered by photo position in photos, then by detection
// order within the photo, whatever the number of workers. The only error
// returned is the context error when ctx is cancelled.
func (d *Detector) Detect(ctx context.Context, photos []string, progress ProgressFunc) (*Detection, error) {
	results := make([]photoResult, len(photos))

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)

	for i, photo := range photos {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = d.detectPhoto(gctx, photo)

			mu.Lock()
			done++
			if progress != nil {
				progress(done, len(photos), photo)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	detection := &Detection{TotalPhotos: len(photos)}
	for _, res := range results {
		detection.Faces = append(detection.Faces, res.faces...)
		if res.failure != nil {
			detection.Failures = append(detection.Failures, *res.failure)
		}
	}
	if detection.Faces == nil {
		detection.Faces = []Face{}
	}
	detection.TotalFaces = len(detection.Faces)
	return detection, nil
}

func (d *Detector) detectPhoto(ctx context.Context, photo string) photoResult {
	metrics.PhotosProcessedTotal.Inc()

	faces, err := d.facesIn(ctx, photo)
	if err != nil {
		if ctx.Err() != nil {
			return photoResult{}
		}
		transient := isTransient(err)
		kind := "permanent"
		if transient {
			kind = "transient"
		}
		metrics.PhotoFailuresTotal.WithLabelValues(kind).Inc()
		d.logger.Warn().Err(err).Str("photo", photo).Bool("transient", transient).Msg("skipping photo")
		return photoResult{failure: &Failure{Photo: photo, Error: err.Error(), Transient: transient}}
	}

	metrics.FacesDetectedTotal.Add(float64(len(faces)))
	d.logger.Debug().Str("photo", photo).Int("faces", len(faces)).Msg("photo processed")
	return photoResult{faces: faces}
}

func (d *Detector) facesIn(ctx context.Context, photo string) ([]Face, error) {
	data, err := d.loader.Load(ctx, photo)
	if err != nil {
		return nil, fmt.Errorf("failed to load photo: %w", err)
	}

	prepared, scale, err := PrepareImage(data, d.opts.MaxImageSize)
	if err != nil {
		return nil, err
	}

	resp, err := d.encoder.ComputeFaceEmbeddings(ctx, prepared, d.opts.Encode)
	if err != nil {
		return nil, fmt.Errorf("failed to encode faces: %w", err)
	}

	detections := append([]FaceDetection(nil), resp.Faces...)
	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].FaceIndex < detections[j].FaceIndex
	})

	faces := make([]Face, 0, len(detections))
	for _, det := range detections {
		box, ok := BoxFromBBox(det.BBox)
		if !ok || len(det.Embedding) == 0 {
			d.logger.Warn().Str("photo", photo).Int("face_index", det.FaceIndex).Msg("ignoring malformed face")
			continue
		}
		faces = append(faces, Face{
			Embedding: det.Embedding,
			Box:       box.Scale(scale),
			Photo:     photo,
		})
	}
	return faces, nil
}

func isTransient(err error) bool {
	if fetch.IsTransient(err) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return false
}
