package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kozaktomas/face-gallery/internal/cache"
	"github.com/kozaktomas/face-gallery/internal/config"
	"github.com/kozaktomas/face-gallery/internal/fingerprint"
	"github.com/kozaktomas/face-gallery/internal/identity"
	"github.com/kozaktomas/face-gallery/internal/pipeline"
)

type stubLister struct {
	photos []string
	err    error
}

func (s stubLister) ListPhotos(context.Context) ([]string, error) {
	return s.photos, s.err
}

type stubLoader map[string][]byte

func (s stubLoader) Load(_ context.Context, id string) ([]byte, error) {
	data, ok := s[id]
	if !ok {
		return nil, context.DeadlineExceeded
	}
	return data, nil
}

// stubRunner returns result, or blocks until its context ends when block is set.
type stubRunner struct {
	result *pipeline.Result
	err    error
	block  chan struct{}
}

func (s *stubRunner) Run(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error) {
	if opts.OnProgress != nil {
		opts.OnProgress(pipeline.ProgressInfo{Phase: pipeline.PhaseListing})
	}
	if s.block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.block:
		}
	}
	return s.result, s.err
}

// testDataset has two people: cluster 0 in a.jpg and b.jpg, cluster 1 in
// c.jpg, plus a noise face in d.jpg.
func testDataset() *cache.Dataset {
	box := fingerprint.BoundingBox{Top: 10, Right: 50, Bottom: 60, Left: 20}
	faces := []fingerprint.Face{
		{Photo: "a.jpg", Box: box, Embedding: []float32{0, 0}},
		{Photo: "b.jpg", Box: box, Embedding: []float32{0.1, 0}},
		{Photo: "c.jpg", Box: box, Embedding: []float32{5, 5}},
		{Photo: "d.jpg", Box: box, Embedding: []float32{9, 9}},
	}
	return cache.NewDataset([]string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"}, faces, []int{0, 0, 1, -1})
}

// newTestState builds a state backed by temporary files. A nil dataset
// leaves the cache empty.
func newTestState(t *testing.T, d *cache.Dataset) *State {
	t.Helper()
	dir := t.TempDir()

	store := cache.New(filepath.Join(dir, "cache.msgpack"))
	if d != nil {
		if err := store.Save(context.Background(), d); err != nil {
			t.Fatalf("failed to save dataset: %v", err)
		}
	}

	return NewState(Deps{
		Store: store,
		Identity: identity.NewStore(config.IdentityConfig{
			NamesFile:   filepath.Join(dir, "names.json"),
			TagsFile:    filepath.Join(dir, "tags.json"),
			AnchorsFile: filepath.Join(dir, "anchors.msgpack"),
		}),
		Source:        stubLister{photos: []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"}},
		Loader:        stubLoader{},
		Runner:        &stubRunner{},
		ThumbnailSize: 100,
		Logger:        zerolog.Nop(),
	})
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
