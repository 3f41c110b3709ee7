// Package pipeline turns a photo set into a clustered face dataset, reusing
// the cached dataset while the photo set is unchanged.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kozaktomas/face-gallery/internal/cache"
	"github.com/kozaktomas/face-gallery/internal/cluster"
	"github.com/kozaktomas/face-gallery/internal/config"
	"github.com/kozaktomas/face-gallery/internal/fingerprint"
	"github.com/kozaktomas/face-gallery/internal/identity"
	"github.com/kozaktomas/face-gallery/internal/metrics"
	"github.com/kozaktomas/face-gallery/internal/source"
)

// Phases reported through ProgressInfo.
const (
	PhaseCache      = "checking_cache"
	PhaseListing    = "listing"
	PhaseDetecting  = "detecting"
	PhaseClustering = "clustering"
	PhaseSaving     = "saving"
)

// ProgressInfo contains progress information for callbacks
type ProgressInfo struct {
	Phase   string `json:"phase"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Photo   string `json:"photo,omitempty"`
	Message string `json:"message,omitempty"`
}

type Options struct {
	Force      bool               // Ignore a valid cache and process every photo again
	OnProgress func(ProgressInfo) // Optional progress callback for CLI and web UI
}

type Result struct {
	Dataset   *cache.Dataset
	FromCache bool
	Failures  []fingerprint.Failure
	Remap     *identity.RemapReport
	Duration  time.Duration
}

// Detector finds and encodes the faces of a photo set.
type Detector interface {
	Detect(ctx context.Context, photos []string, progress fingerprint.ProgressFunc) (*fingerprint.Detection, error)
}

// Remapper carries person names over to a freshly clustered dataset.
type Remapper interface {
	RemapNames(d *cache.Dataset, maxDistance float64) (*identity.RemapReport, error)
}

type Pipeline struct {
	source   source.Source
	detector Detector
	store    *cache.Store
	remapper Remapper
	cfg      config.Config
	logger   zerolog.Logger
}

func New(src source.Source, detector Detector, store *cache.Store, cfg config.Config, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		source:   src,
		detector: detector,
		store:    store,
		cfg:      cfg,
		logger:   logger.With().Str("component", "pipeline").Logger(),
	}
}

// WithRemapper makes every freshly built dataset inherit the names of the
// previous one. Remapping failures are logged, never fatal.
func (p *Pipeline) WithRemapper(r Remapper) *Pipeline {
	p.remapper = r
	return p
}

// Run returns the cached dataset when it still matches the photo source, and
// otherwise detects, clusters and saves a new one. Photos that cannot be
// processed are skipped and reported in Result.Failures; failing to list
// photos or to save the dataset aborts the run.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	result, err := p.run(ctx, opts)
	switch {
	case err != nil:
		metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	case result.FromCache:
		metrics.PipelineRunsTotal.WithLabelValues("cache").Inc()
	default:
		metrics.PipelineRunsTotal.WithLabelValues("processed").Inc()
		metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	}
	result.Duration = time.Since(start)
	observeDataset(result.Dataset)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, opts Options) (*Result, error) {
	report := func(info ProgressInfo) {
		if opts.OnProgress != nil {
			opts.OnProgress(info)
		}
	}

	report(ProgressInfo{Phase: PhaseListing, Message: "Listing photos from " + p.source.Name()})
	photos, err := p.source.ListPhotos(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	p.logger.Info().Int("photos", len(photos)).Str("source", p.source.Name()).Msg("listed photos")

	if !opts.Force {
		report(ProgressInfo{Phase: PhaseCache, Total: len(photos), Message: "Checking cache"})
		if d := p.cached(photos); d != nil {
			return &Result{Dataset: d, FromCache: true}, nil
		}
	}

	detection, err := p.detector.Detect(ctx, photos, func(current, total int, photo string) {
		report(ProgressInfo{Phase: PhaseDetecting, Current: current, Total: total, Photo: photo})
	})
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}
	if len(detection.Faces) == 0 {
		p.logger.Warn().Int("photos", len(photos)).Msg("no faces detected in any photo")
	}

	report(ProgressInfo{Phase: PhaseClustering, Total: detection.TotalFaces, Message: "Clustering faces"})
	labels, err := cluster.Cluster(detection.Embeddings(), p.cfg.Clustering.Tolerance, p.cfg.Clustering.MinSamples)
	if err != nil {
		return nil, fmt.Errorf("clustering failed: %w", err)
	}

	d := cache.NewDataset(photos, detection.Faces, labels)
	d.Model = p.cfg.Detection.Model
	d.Jitters = p.cfg.Detection.JitterCount
	d.Tolerance = p.cfg.Clustering.Tolerance

	report(ProgressInfo{Phase: PhaseSaving, Message: "Saving dataset"})
	if err := p.store.Save(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to save dataset: %w", err)
	}
	p.logger.Info().
		Int("photos", d.TotalPhotos).
		Int("faces", d.TotalFaces).
		Int("people", len(d.People())).
		Int("failures", len(detection.Failures)).
		Msg("dataset saved")

	result := &Result{Dataset: d, Failures: detection.Failures}
	if p.remapper != nil {
		remap, err := p.remapper.RemapNames(d, p.cfg.Clustering.RemapDistance)
		if err != nil {
			p.logger.Error().Err(err).Msg("failed to carry names over to new clusters")
		} else {
			result.Remap = remap
			p.logger.Info().
				Int("carried", len(remap.Carried)).
				Int("unmatched", len(remap.Unmatched)).
				Msg("names carried over")
		}
	}
	return result, nil
}

// cached returns the saved dataset if it was built from photos. Any load
// problem means the dataset is rebuilt.
func (p *Pipeline) cached(photos []string) *cache.Dataset {
	d, err := p.store.Load()
	switch {
	case errors.Is(err, cache.ErrAbsent):
		p.logger.Info().Str("path", p.store.Path()).Msg("no cached dataset")
		return nil
	case errors.Is(err, cache.ErrCorrupt):
		p.logger.Warn().Err(err).Msg("cached dataset is corrupt, regenerating")
		return nil
	case err != nil:
		p.logger.Warn().Err(err).Msg("failed to read cached dataset, regenerating")
		return nil
	}

	if !d.MatchesPhotos(photos) {
		p.logger.Info().Int("cached_photos", d.TotalPhotos).Int("photos", len(photos)).Msg("photo set changed, reprocessing")
		return nil
	}
	p.logger.Info().Int("faces", d.TotalFaces).Msg("using cached dataset")
	return d
}

func observeDataset(d *cache.Dataset) {
	metrics.DatasetFaces.Set(float64(d.TotalFaces))
	metrics.DatasetPhotos.Set(float64(d.TotalPhotos))
	metrics.DatasetClusters.Set(float64(len(d.People())))
}
