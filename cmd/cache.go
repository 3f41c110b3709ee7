package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-gallery/internal/database/postgres"
	"github.com/kozaktomas/face-gallery/internal/gallery"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Cache management commands",
	Long:  `Commands for inspecting, clearing and mirroring the processed face dataset.`,
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the cached dataset and whether it matches the photo source",
	RunE:  runCacheStatus,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the cached dataset",
	Long: `Delete the cached dataset so the next run processes every photo again.
Names, tags and anchors are kept.`,
	RunE: runCacheClear,
}

var cachePushCmd = &cobra.Command{
	Use:   "push",
	Short: "Mirror the cached dataset into PostgreSQL",
	Long: `Replace the PostgreSQL mirror with the cached dataset. Each face is stored
with its embedding (pgvector), its cluster and the person's name.

Requires database.url (env FACES_DATABASE_URL).`,
	RunE: runCachePush,
}

var cacheSimilarCmd = &cobra.Command{
	Use:   "similar <face-index>",
	Short: "List the faces closest to a face (Postgres mirror when configured)",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheSimilar,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatusCmd, cacheClearCmd, cachePushCmd, cacheSimilarCmd)

	cacheStatusCmd.Flags().Bool("json", false, "Output as JSON")
	cacheClearCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
	cacheSimilarCmd.Flags().Int("limit", 10, "Number of faces to return")
	cacheSimilarCmd.Flags().Bool("json", false, "Output as JSON")
}

func runCacheStatus(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	st, err := a.store.Status(ctx, a.source)
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(st)
	}

	fmt.Printf("Cache: %s\n", st.Path)
	switch {
	case !st.Exists:
		fmt.Println("  No dataset saved yet, run 'face-gallery process'.")
		return nil
	case st.Corrupt:
		fmt.Printf("  Corrupt: %s\n", st.Error)
		return nil
	}
	fmt.Printf("  Version: %d\n", st.Version)
	fmt.Printf("  Created: %s\n", st.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Size:    %d bytes\n", st.SizeBytes)
	fmt.Printf("  Photos:  %d\n", st.Photos)
	fmt.Printf("  Faces:   %d\n", st.Faces)
	fmt.Printf("  People:  %d\n", st.People)
	if st.Valid {
		fmt.Println("  Status:  up to date")
	} else {
		fmt.Println("  Status:  photo set changed, the next run reprocesses")
	}
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	if !mustGetBool(cmd, "yes") && !confirmAction(fmt.Sprintf("Delete the cached dataset at %s? [y/N]: ", a.store.Path())) {
		fmt.Println("Cancelled.")
		return nil
	}
	if err := a.store.Clear(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Cache cleared.")
	return nil
}

// openMirror connects to PostgreSQL and applies pending migrations.
func openMirror(ctx context.Context, a *app) (*postgres.Pool, error) {
	if a.cfg.Database.URL == "" {
		return nil, errors.New("database.url (FACES_DATABASE_URL) is required")
	}
	return postgres.Open(ctx, a.cfg.Database, a.logger)
}

func runCachePush(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	d, err := a.dataset()
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	names, err := a.identity.Names()
	if err != nil {
		return err
	}

	pool, err := openMirror(ctx, a)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo := postgres.NewFaceRepository(pool)
	if err := repo.ReplaceDataset(ctx, d, names); err != nil {
		return err
	}
	count, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	info, err := repo.Info(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Pushed %d faces from %d photos", count, d.TotalPhotos)
	if info != nil {
		fmt.Printf(" (dataset created %s)", info.CreatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Println()
	return nil
}

func runCacheSimilar(cmd *cobra.Command, args []string) error {
	faceIndex, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid face index %q", args[0])
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	d, err := a.dataset()
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	if faceIndex < 0 || faceIndex >= len(d.Faces) {
		return fmt.Errorf("face index %d out of range (dataset has %d faces)", faceIndex, len(d.Faces))
	}

	names, err := a.identity.Names()
	if err != nil {
		return err
	}
	limit := mustGetInt(cmd, "limit")

	var faces []gallery.SimilarFace
	if a.cfg.Database.URL == "" {
		faces = gallery.NewSimilarIndex(d, names).Search(faceIndex, limit)
	} else {
		faces, err = mirrorSimilar(ctx, a, d.Faces[faceIndex].Embedding, limit)
		if err != nil {
			return err
		}
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(faces)
	}

	rows := make([][]string, 0, len(faces))
	for _, f := range faces {
		rows = append(rows, []string{
			strconv.Itoa(f.FaceIndex),
			f.Photo,
			strconv.Itoa(f.ClusterID),
			f.PersonName,
			strconv.FormatFloat(f.Distance, 'f', 4, 64),
		})
	}
	fmt.Println(renderTable([]string{"Face", "Photo", "Person", "Name", "Distance"}, rows, 1, 3, 5))
	return nil
}

// mirrorSimilar runs the similarity search against the Postgres mirror.
func mirrorSimilar(ctx context.Context, a *app, embedding []float32, limit int) ([]gallery.SimilarFace, error) {
	pool, err := openMirror(ctx, a)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	stored, err := postgres.NewFaceRepository(pool).FindSimilar(ctx, embedding, limit)
	if err != nil {
		return nil, err
	}
	faces := make([]gallery.SimilarFace, 0, len(stored))
	for _, f := range stored {
		faces = append(faces, gallery.SimilarFace{
			FaceIndex:  f.FaceIndex,
			Photo:      f.Photo,
			ClusterID:  f.ClusterID,
			PersonName: f.PersonName,
			Distance:   f.Distance,
		})
	}
	return faces, nil
}
