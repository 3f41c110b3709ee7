package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-gallery/internal/cache"
	"github.com/kozaktomas/face-gallery/internal/fingerprint"
	"github.com/kozaktomas/face-gallery/internal/identity"
)

// StoredFace is one mirrored face row.
type StoredFace struct {
	FaceIndex  int                     `json:"face_index"`
	Photo      string                  `json:"photo"`
	Box        fingerprint.BoundingBox `json:"box"`
	ClusterID  int                     `json:"cluster_id"`
	PersonName string                  `json:"person_name,omitempty"`
	Embedding  []float32               `json:"-"`
	Distance   float64                 `json:"distance"`
}

// DatasetInfo describes the dataset currently mirrored.
type DatasetInfo struct {
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	PushedAt    time.Time `json:"pushed_at"`
	TotalPhotos int       `json:"total_photos"`
	TotalFaces  int       `json:"total_faces"`
	Model       string    `json:"model"`
	Jitters     int       `json:"jitters"`
	Tolerance   float64   `json:"tolerance"`
}

// FaceRepository reads and writes the mirrored dataset.
type FaceRepository struct {
	pool *Pool
}

// NewFaceRepository creates a new PostgreSQL face repository.
func NewFaceRepository(pool *Pool) *FaceRepository {
	return &FaceRepository{pool: pool}
}

// ReplaceDataset swaps the mirrored dataset for d in a single transaction.
// Faces of clusters with a valid name carry that name.
func (r *FaceRepository) ReplaceDataset(ctx context.Context, d *cache.Dataset, names identity.Names) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "TRUNCATE faces, photos, datasets"); err != nil {
		return fmt.Errorf("truncate dataset: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO datasets (id, version, created_at, total_photos, total_faces, model, jitters, tolerance)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7)
	`, d.Version, d.CreatedAt, d.TotalPhotos, d.TotalFaces, d.Model, d.Jitters, d.Tolerance); err != nil {
		return fmt.Errorf("insert dataset: %w", err)
	}

	if err := insertPhotos(ctx, tx, d.Photos); err != nil {
		return err
	}
	if err := insertFaces(ctx, tx, d, names); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertPhotos(ctx context.Context, tx *sql.Tx, photos []string) error {
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO photos (photo) VALUES ($1) ON CONFLICT DO NOTHING")
	if err != nil {
		return fmt.Errorf("prepare photo insert: %w", err)
	}
	defer stmt.Close()

	for _, photo := range photos {
		if _, err := stmt.ExecContext(ctx, photo); err != nil {
			return fmt.Errorf("insert photo %s: %w", photo, err)
		}
	}
	return nil
}

func insertFaces(ctx context.Context, tx *sql.Tx, d *cache.Dataset, names identity.Names) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO faces (face_index, photo, box_top, box_right, box_bottom, box_left, cluster_id, person_name, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::vector)
	`)
	if err != nil {
		return fmt.Errorf("prepare face insert: %w", err)
	}
	defer stmt.Close()

	for i, face := range d.Faces {
		label := d.Labels[i]
		var personName sql.NullString
		if name, ok := names.Resolve(label); ok && label >= 0 {
			personName = sql.NullString{String: name, Valid: true}
		}

		_, err := stmt.ExecContext(ctx,
			i,
			face.Photo,
			face.Box.Top,
			face.Box.Right,
			face.Box.Bottom,
			face.Box.Left,
			label,
			personName,
			pgvector.NewVector(face.Embedding),
		)
		if err != nil {
			return fmt.Errorf("insert face %d: %w", i, err)
		}
	}
	return nil
}

// Info returns the mirrored dataset's metadata, nil if nothing was pushed yet.
func (r *FaceRepository) Info(ctx context.Context) (*DatasetInfo, error) {
	var info DatasetInfo
	err := r.pool.QueryRow(ctx, `
		SELECT version, created_at, pushed_at, total_photos, total_faces, model, jitters, tolerance
		FROM datasets WHERE id = 1
	`).Scan(&info.Version, &info.CreatedAt, &info.PushedAt, &info.TotalPhotos, &info.TotalFaces,
		&info.Model, &info.Jitters, &info.Tolerance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query dataset: %w", err)
	}
	return &info, nil
}

// Count returns the total number of faces stored.
func (r *FaceRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM faces").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count faces: %w", err)
	}
	return count, nil
}

// FacesByCluster returns the faces of one cluster in detection order.
func (r *FaceRepository) FacesByCluster(ctx context.Context, clusterID int) ([]StoredFace, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT face_index, photo, box_top, box_right, box_bottom, box_left, cluster_id, person_name, embedding, 0
		FROM faces
		WHERE cluster_id = $1
		ORDER BY face_index
	`, clusterID)
	if err != nil {
		return nil, fmt.Errorf("query cluster faces: %w", err)
	}
	defer rows.Close()

	return scanFaces(rows)
}

// FindSimilar returns the faces closest to embedding by Euclidean distance.
func (r *FaceRepository) FindSimilar(ctx context.Context, embedding []float32, limit int) ([]StoredFace, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT face_index, photo, box_top, box_right, box_bottom, box_left, cluster_id, person_name, embedding,
		       embedding <-> $1::vector AS distance
		FROM faces
		ORDER BY embedding <-> $1::vector, face_index
		LIMIT $2
	`, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("query similar faces: %w", err)
	}
	defer rows.Close()

	return scanFaces(rows)
}

func scanFaces(rows *sql.Rows) ([]StoredFace, error) {
	faces := []StoredFace{}
	for rows.Next() {
		var face StoredFace
		var vec pgvector.Vector
		var personName sql.NullString

		if err := rows.Scan(
			&face.FaceIndex,
			&face.Photo,
			&face.Box.Top,
			&face.Box.Right,
			&face.Box.Bottom,
			&face.Box.Left,
			&face.ClusterID,
			&personName,
			&vec,
			&face.Distance,
		); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		face.Embedding = vec.Slice()
		face.PersonName = personName.String
		faces = append(faces, face)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return faces, nil
}
