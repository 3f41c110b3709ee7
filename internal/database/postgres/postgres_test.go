//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/face-gallery/internal/cache"
	"github.com/kozaktomas/face-gallery/internal/config"
	"github.com/kozaktomas/face-gallery/internal/fingerprint"
	"github.com/kozaktomas/face-gallery/internal/identity"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil || container == nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := Open(ctx, cfg, zerolog.Nop())
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("Failed to open database: %v", err)
	}

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}
	return pool, cleanup
}

func testDataset() *cache.Dataset {
	faces := []fingerprint.Face{
		{Photo: "a.jpg", Embedding: []float32{0, 0, 0}, Box: fingerprint.BoundingBox{Top: 1, Right: 2, Bottom: 3, Left: 4}},
		{Photo: "b.jpg", Embedding: []float32{0.1, 0, 0}},
		{Photo: "c.jpg", Embedding: []float32{1, 1, 1}},
		{Photo: "c.jpg", Embedding: []float32{5, 5, 5}},
	}
	d := cache.NewDataset([]string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"}, faces, []int{0, 0, 1, -1})
	d.Model = "hog"
	d.Jitters = 1
	d.Tolerance = 0.6
	return d
}

func TestMigrateIsIdempotent(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	if err := pool.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
	versions, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("MigrationsApplied failed: %v", err)
	}
	if len(versions) != 1 || versions[0] != "001_faces.sql" {
		t.Errorf("unexpected migrations: %v", versions)
	}
}

func TestFaceRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewFaceRepository(pool)

	info, err := repo.Info(ctx)
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info != nil {
		t.Fatalf("expected no dataset before push, got %+v", info)
	}

	names := identity.Names{"0": "Alice", "1": "skip"}
	if err := repo.ReplaceDataset(ctx, testDataset(), names); err != nil {
		t.Fatalf("ReplaceDataset failed: %v", err)
	}

	t.Run("Count", func(t *testing.T) {
		count, err := repo.Count(ctx)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if count != 4 {
			t.Errorf("expected 4 faces, got %d", count)
		}
	})

	t.Run("Info", func(t *testing.T) {
		info, err := repo.Info(ctx)
		if err != nil {
			t.Fatalf("Info failed: %v", err)
		}
		if info.TotalPhotos != 4 || info.TotalFaces != 4 || info.Model != "hog" {
			t.Errorf("unexpected info: %+v", info)
		}
	})

	t.Run("FacesByCluster", func(t *testing.T) {
		faces, err := repo.FacesByCluster(ctx, 0)
		if err != nil {
			t.Fatalf("FacesByCluster failed: %v", err)
		}
		if len(faces) != 2 {
			t.Fatalf("expected 2 faces, got %d", len(faces))
		}
		if faces[0].PersonName != "Alice" || faces[0].Box.Left != 4 {
			t.Errorf("unexpected first face: %+v", faces[0])
		}

		skipped, err := repo.FacesByCluster(ctx, 1)
		if err != nil {
			t.Fatalf("FacesByCluster failed: %v", err)
		}
		if len(skipped) != 1 || skipped[0].PersonName != "" {
			t.Errorf("placeholder names must not be mirrored: %+v", skipped)
		}
	})

	t.Run("FindSimilar", func(t *testing.T) {
		faces, err := repo.FindSimilar(ctx, []float32{0.09, 0, 0}, 2)
		if err != nil {
			t.Fatalf("FindSimilar failed: %v", err)
		}
		if len(faces) != 2 {
			t.Fatalf("expected 2 faces, got %d", len(faces))
		}
		if faces[0].FaceIndex != 1 || faces[1].FaceIndex != 0 {
			t.Errorf("unexpected order: %d, %d", faces[0].FaceIndex, faces[1].FaceIndex)
		}
		if faces[0].Distance > faces[1].Distance {
			t.Errorf("distances not ascending: %v, %v", faces[0].Distance, faces[1].Distance)
		}
	})

	t.Run("ReplaceDataset replaces", func(t *testing.T) {
		small := cache.NewDataset([]string{"z.jpg"}, []fingerprint.Face{{Photo: "z.jpg", Embedding: []float32{1, 2, 3}}}, []int{0})
		if err := repo.ReplaceDataset(ctx, small, nil); err != nil {
			t.Fatalf("ReplaceDataset failed: %v", err)
		}
		count, err := repo.Count(ctx)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 face after replace, got %d", count)
		}
	})
}
