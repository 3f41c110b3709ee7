package cmd

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/kozaktomas/face-gallery/internal/cache"
	"github.com/kozaktomas/face-gallery/internal/config"
	"github.com/kozaktomas/face-gallery/internal/fetch"
	"github.com/kozaktomas/face-gallery/internal/fingerprint"
	"github.com/kozaktomas/face-gallery/internal/identity"
	"github.com/kozaktomas/face-gallery/internal/pipeline"
	"github.com/kozaktomas/face-gallery/internal/source"
)

// app holds the collaborators shared by the commands.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	source   source.Source
	loader   *fetch.Loader
	store    *cache.Store
	identity *identity.Store
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	src, err := source.New(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:      cfg,
		logger:   logger,
		source:   src,
		loader:   fetch.NewLoader(cfg.Fetch, logger),
		store:    cache.New(cfg.Cache.Location),
		identity: identity.NewStore(cfg.Identity),
	}, nil
}

// pipeline wires detection against the embedding server. Fresh datasets
// inherit the names of the previous one.
func (a *app) pipeline() *pipeline.Pipeline {
	encoder := fingerprint.NewEmbeddingClient(a.cfg.Embedding.URL, &http.Client{})
	detector := fingerprint.NewDetector(a.loader, encoder, fingerprint.DetectorOptions{
		Encode: fingerprint.EncodeOptions{
			Model:   a.cfg.Detection.Model,
			Jitters: a.cfg.Detection.JitterCount,
		},
		Workers:      a.cfg.Detection.Workers,
		MaxImageSize: a.cfg.Detection.MaxImageSize,
	}, a.logger)

	return pipeline.New(a.source, detector, a.store, *a.cfg, a.logger).WithRemapper(a.identity)
}

// dataset loads the saved dataset.
func (a *app) dataset() (*cache.Dataset, error) {
	return a.store.Load()
}
