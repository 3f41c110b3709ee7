package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/kozaktomas/face-gallery/internal/metrics"
)

var (
	// ErrAbsent means no dataset has been saved yet.
	ErrAbsent = errors.New("cache absent")
	// ErrCorrupt means a cache file exists but cannot be decoded.
	ErrCorrupt = errors.New("cache corrupt")
	// ErrLocked means another writer holds the cache lock.
	ErrLocked = errors.New("cache is locked by another writer")
)

const lockRetryDelay = 50 * time.Millisecond

// PhotoLister enumerates the current photo set; source.Source satisfies it.
type PhotoLister interface {
	ListPhotos(ctx context.Context) ([]string, error)
}

// Store owns the on-disk dataset at a fixed path.
type Store struct {
	path string
	lock *flock.Flock
}

func New(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the location of the cache file.
func (s *Store) Path() string {
	return s.path
}

// Save writes the dataset atomically: it is encoded to a temporary file in the
// cache directory, synced and renamed over the previous file, so readers see
// either the old or the new dataset. Writers are serialized with an advisory
// file lock; if ctx ends before the lock is obtained ErrLocked is returned.
func (s *Store) Save(ctx context.Context, d *Dataset) error {
	err := s.save(ctx, d)
	observe("save", err)
	return err
}

func (s *Store) save(ctx context.Context, d *Dataset) error {
	if d == nil {
		return errors.New("cannot save a nil dataset")
	}
	if len(d.Labels) != len(d.Faces) {
		return fmt.Errorf("dataset has %d faces but %d labels", len(d.Faces), len(d.Labels))
	}

	data, err := encode(d)
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}

	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return writeAtomic(s.path, data)
}

// Load reads the saved dataset. It returns ErrAbsent when there is none and an
// error wrapping ErrCorrupt when the file cannot be decoded or is inconsistent.
func (s *Store) Load() (*Dataset, error) {
	d, err := s.load()
	observe("load", err)
	return d, err
}

func (s *Store) load() (*Dataset, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrAbsent
		}
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}

	d, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, s.path, err)
	}
	return d, nil
}

// IsValid reports whether the saved dataset was built from exactly the photo
// set src lists now, compared as unordered sets. Datasets with a photo
// snapshot are compared against it; legacy datasets against the photos their
// faces came from. A missing or corrupt cache is simply not valid.
func (s *Store) IsValid(ctx context.Context, src PhotoLister) (bool, error) {
	d, err := s.Load()
	if err != nil {
		if errors.Is(err, ErrAbsent) || errors.Is(err, ErrCorrupt) {
			return false, nil
		}
		return false, err
	}
	return Matches(ctx, d, src)
}

// Matches compares the dataset's photo set with the current listing of src.
func Matches(ctx context.Context, d *Dataset, src PhotoLister) (bool, error) {
	current, err := src.ListPhotos(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list photos: %w", err)
	}
	return d.MatchesPhotos(current), nil
}

// MatchesPhotos reports whether current is the photo set the dataset was built from.
func (d *Dataset) MatchesPhotos(current []string) bool {
	cached := d.photoSet()
	seen := make(map[string]bool, len(current))
	for _, p := range current {
		if !cached[p] {
			return false
		}
		seen[p] = true
	}
	return len(seen) == len(cached)
}

// Clear removes the saved dataset. Clearing an absent cache succeeds.
func (s *Store) Clear(ctx context.Context) error {
	err := s.clear(ctx)
	observe("clear", err)
	return err
}

func (s *Store) clear(ctx context.Context) error {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove cache: %w", err)
	}
	return nil
}

// Status summarizes the cache for display.
type Status struct {
	Path      string    `json:"path"`
	Exists    bool      `json:"exists"`
	Corrupt   bool      `json:"corrupt"`
	Valid     bool      `json:"valid"`
	Version   int       `json:"version,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	SizeBytes int64     `json:"size_bytes"`
	Photos    int       `json:"photos"`
	Faces     int       `json:"faces"`
	People    int       `json:"people"`
	Error     string    `json:"error,omitempty"`
}

// Status loads the cache and checks it against src. Only failures to list
// photos are returned as errors.
func (s *Store) Status(ctx context.Context, src PhotoLister) (*Status, error) {
	st := &Status{Path: s.path}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return st, nil
		}
		return nil, fmt.Errorf("failed to stat cache: %w", err)
	}
	st.Exists = true
	st.SizeBytes = info.Size()

	d, err := s.Load()
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			st.Corrupt = true
			st.Error = err.Error()
			return st, nil
		}
		return nil, err
	}

	st.Version = d.Version
	st.CreatedAt = d.CreatedAt
	st.Photos = d.TotalPhotos
	st.Faces = d.TotalFaces
	st.People = len(d.People())

	st.Valid, err = Matches(ctx, d, src)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) acquire(ctx context.Context) (func(), error) {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrLocked, ctx.Err())
		}
		return nil, fmt.Errorf("failed to lock cache: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() { _ = s.lock.Unlock() }, nil
}

func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync cache: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache: %w", err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil { //nolint:gosec // cache is not secret
		return fmt.Errorf("failed to set cache permissions: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace cache: %w", err)
	}

	if d, dirErr := os.Open(dir); dirErr == nil { //nolint:gosec // cache directory
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

func observe(op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrAbsent):
		result = "absent"
	case errors.Is(err, ErrCorrupt):
		result = "corrupt"
	default:
		result = "error"
	}
	metrics.CacheOperationsTotal.WithLabelValues(op, result).Inc()
}
