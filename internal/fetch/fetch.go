// Package fetch loads photo bytes from the local filesystem or over HTTP with bounded retry.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/kozaktomas/face-gallery/internal/config"
	"github.com/kozaktomas/face-gallery/internal/metrics"
)

var (
	// ErrTransient marks failures that may succeed on a later attempt (network errors, 5xx, 429).
	ErrTransient = errors.New("transient fetch error")
	// ErrPermanent marks failures that retrying cannot fix (missing or unreadable file, 4xx, undecodable data).
	ErrPermanent = errors.New("permanent fetch error")
)

// maxPhotoSize bounds a single download.
const maxPhotoSize = 100 << 20

// Loader fetches photo bytes by identifier.
type Loader struct {
	client          *http.Client
	attempts        int
	initialInterval time.Duration
	maxInterval     time.Duration
	timeout         time.Duration
	logger          zerolog.Logger
}

// Option customizes a Loader.
type Option func(*Loader)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Loader) {
		l.client = client
	}
}

// NewLoader creates a loader using the retry and timeout settings of cfg.
func NewLoader(cfg config.FetchConfig, logger zerolog.Logger, opts ...Option) *Loader {
	l := &Loader{
		client:          &http.Client{},
		attempts:        max(cfg.RetryAttempts, 1),
		initialInterval: cfg.RetryInitialInterval,
		maxInterval:     cfg.RetryMaxInterval,
		timeout:         cfg.Timeout,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the bytes of the photo identified by id. Transient failures are
// retried with exponential backoff up to the configured number of attempts.
// The returned error wraps ErrTransient or ErrPermanent, or the context error
// when ctx is done.
func (l *Loader) Load(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	attempt := 0

	operation := func() error {
		attempt++
		var err error
		data, err = l.loadOnce(ctx, id)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return backoff.Permanent(ctxErr)
		}
		if errors.Is(err, ErrPermanent) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		metrics.FetchRetriesTotal.Inc()
		l.logger.Debug().Err(err).Str("photo", id).Int("attempt", attempt).Dur("wait", wait).Msg("retrying photo fetch")
	}

	if err := backoff.RetryNotify(operation, l.backoff(ctx), notify); err != nil {
		return nil, err
	}
	return data, nil
}

func (l *Loader) backoff(ctx context.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	if l.initialInterval > 0 {
		expo.InitialInterval = l.initialInterval
	}
	if l.maxInterval > 0 {
		expo.MaxInterval = l.maxInterval
	}
	// the attempt count is the only limit
	expo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(expo, uint64(l.attempts-1)), ctx) //nolint:gosec // attempts >= 1
}

func (l *Loader) loadOnce(ctx context.Context, id string) ([]byte, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	if IsRemote(id) {
		return l.loadHTTP(ctx, id)
	}
	return loadFile(id)
}

func loadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the photo source
	if err != nil {
		return nil, fmt.Errorf("%w: %w", classifyFileError(err), err)
	}
	return data, nil
}

// transientFileErrors are the read errors worth retrying; anything else
// (missing file, permissions, a directory) fails the same way every time.
var transientFileErrors = []error{syscall.EIO, syscall.EAGAIN, syscall.EINTR, syscall.EBUSY, syscall.ETIMEDOUT}

func classifyFileError(err error) error {
	for _, target := range transientFileErrors {
		if errors.Is(err, target) {
			return ErrTransient
		}
	}
	return ErrPermanent
}

func (l *Loader) loadHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", ErrPermanent, err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: unexpected status %d for %s", classifyStatus(resp.StatusCode), resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrTransient, err)
	}
	if len(data) > maxPhotoSize {
		return nil, fmt.Errorf("%w: photo larger than %d bytes", ErrPermanent, maxPhotoSize)
	}
	return data, nil
}

func classifyStatus(status int) error {
	if status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout {
		return ErrTransient
	}
	return ErrPermanent
}

// IsRemote reports whether id is fetched over HTTP.
func IsRemote(id string) bool {
	return strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://")
}

// IsTransient reports whether err is a transient fetch failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
