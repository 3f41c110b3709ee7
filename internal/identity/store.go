package identity

import (
	"fmt"
	"sync"

	"github.com/kozaktomas/face-gallery/internal/cache"
	"github.com/kozaktomas/face-gallery/internal/config"
)

// Store gives serialized access to the names, tags and anchors files.
type Store struct {
	cfg config.IdentityConfig
	mu  sync.Mutex
}

func NewStore(cfg config.IdentityConfig) *Store {
	return &Store{cfg: cfg}
}

// Names loads the current names mapping.
func (s *Store) Names() (Names, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return LoadNames(s.cfg.NamesFile)
}

// SaveNames persists names. When d is non-nil the anchors are rebuilt from it
// so the names can be carried over to a future clustering.
func (s *Store) SaveNames(names Names, d *cache.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveNames(names, d)
}

func (s *Store) saveNames(names Names, d *cache.Dataset) error {
	if err := names.Save(s.cfg.NamesFile); err != nil {
		return err
	}
	if d == nil || s.cfg.AnchorsFile == "" {
		return nil
	}
	previous, err := LoadAnchors(s.cfg.AnchorsFile)
	if err != nil {
		return err
	}
	next := BuildAnchors(d, names)
	next.Retain(previous.Retained())
	if err := next.Save(s.cfg.AnchorsFile); err != nil {
		return fmt.Errorf("failed to save anchors: %w", err)
	}
	return nil
}

// UpdateNames applies fn to the stored names and saves the result.
func (s *Store) UpdateNames(d *cache.Dataset, fn func(Names) error) (Names, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := LoadNames(s.cfg.NamesFile)
	if err != nil {
		return nil, err
	}
	if err := fn(names); err != nil {
		return nil, err
	}
	if err := s.saveNames(names, d); err != nil {
		return nil, err
	}
	return names, nil
}

// Tags loads the photo tags.
func (s *Store) Tags() (Tags, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return LoadTags(s.cfg.TagsFile)
}

// SetTags replaces the names tagged on one photo and saves the tags file.
func (s *Store) SetTags(photo string, names []string) (Tags, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags, err := LoadTags(s.cfg.TagsFile)
	if err != nil {
		return nil, err
	}
	tags.Set(photo, names)
	if err := tags.Save(s.cfg.TagsFile); err != nil {
		return nil, err
	}
	return tags, nil
}

// Anchors loads the anchors file.
func (s *Store) Anchors() (*AnchorSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return LoadAnchors(s.cfg.AnchorsFile)
}

// RemapNames carries the stored names over to the clusters of d using the
// saved anchors, then saves the new names and anchors. Without anchors the
// stored names are left untouched.
func (s *Store) RemapNames(d *cache.Dataset, maxDistance float64) (*RemapReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	anchors, err := LoadAnchors(s.cfg.AnchorsFile)
	if err != nil {
		return nil, err
	}
	if len(anchors.Anchors) == 0 {
		return &RemapReport{}, nil
	}

	previous, err := LoadNames(s.cfg.NamesFile)
	if err != nil {
		return nil, err
	}
	names, report := Remap(d, anchors, previous, maxDistance)

	if err := names.Save(s.cfg.NamesFile); err != nil {
		return nil, err
	}
	// Unmatched anchors are kept so the name can come back after a later run.
	next := BuildAnchors(d, names)
	next.Retain(report.Unmatched)
	if err := next.Save(s.cfg.AnchorsFile); err != nil {
		return nil, fmt.Errorf("failed to save anchors: %w", err)
	}
	return report, nil
}

// AnchorsPath returns the location of the anchors file.
func (s *Store) AnchorsPath() string {
	return s.cfg.AnchorsFile
}
