package handlers

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kozaktomas/face-gallery/internal/cache"
	"github.com/kozaktomas/face-gallery/internal/gallery"
	"github.com/kozaktomas/face-gallery/internal/identity"
	"github.com/kozaktomas/face-gallery/internal/pipeline"
)

// Runner runs the face pipeline; *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error)
}

// PhotoLister enumerates the full photo set; source.Source satisfies it.
type PhotoLister interface {
	ListPhotos(ctx context.Context) ([]string, error)
}

// Deps are the collaborators shared by all handlers.
type Deps struct {
	Store         *cache.Store
	Identity      *identity.Store
	Source        PhotoLister
	Loader        gallery.Loader
	Runner        Runner
	ThumbnailSize int
	Logger        zerolog.Logger
}

// State is the application state the handlers share: the collaborators and
// the dataset currently served.
type State struct {
	Deps

	mu      sync.RWMutex
	dataset *cache.Dataset
}

func NewState(deps Deps) *State {
	return &State{Deps: deps}
}

// Dataset returns the dataset being served, loading the saved one on first use.
func (s *State) Dataset() (*cache.Dataset, error) {
	s.mu.RLock()
	d := s.dataset
	s.mu.RUnlock()
	if d != nil {
		return d, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dataset != nil {
		return s.dataset, nil
	}
	d, err := s.Store.Load()
	if err != nil {
		return nil, err
	}
	s.dataset = d
	return d, nil
}

// SetDataset replaces the dataset being served; nil forces a reload.
func (s *State) SetDataset(d *cache.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataset = d
}

// View builds a gallery view of the current dataset, names and tags.
func (s *State) View() (*gallery.View, error) {
	d, err := s.Dataset()
	if err != nil {
		return nil, err
	}
	names, err := s.Identity.Names()
	if err != nil {
		return nil, err
	}
	tags, err := s.Identity.Tags()
	if err != nil {
		return nil, err
	}
	return gallery.New(d, names, tags), nil
}
