package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-gallery/internal/database/postgres"
	"github.com/kozaktomas/face-gallery/internal/gallery"
)

var clustersCmd = &cobra.Command{
	Use:     "clusters",
	Aliases: []string{"people"},
	Short:   "Inspect the people found in the photos",
}

var clustersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List person clusters, largest first",
	Long: `List person clusters, largest first.

With --named, people are merged by name (clusters with the same name and
photos tagged by hand count as one person).`,
	RunE: runClustersList,
}

var clustersPhotosCmd = &cobra.Command{
	Use:   "photos <cluster-id>",
	Short: "List the photos a person appears in",
	Args:  cobra.ExactArgs(1),
	RunE:  runClustersPhotos,
}

var clustersFacesCmd = &cobra.Command{
	Use:   "faces <cluster-id>",
	Short: "List the mirrored faces of a cluster from PostgreSQL",
	Args:  cobra.ExactArgs(1),
	RunE:  runClustersFaces,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show people, face and photo counts",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(clustersCmd, statsCmd)
	clustersCmd.AddCommand(clustersListCmd, clustersPhotosCmd, clustersFacesCmd)

	clustersListCmd.Flags().Bool("named", false, "Merge clusters by person name")
	clustersListCmd.Flags().Bool("json", false, "Output as JSON")
	clustersPhotosCmd.Flags().Bool("json", false, "Output as JSON")
	statsCmd.Flags().Bool("json", false, "Output as JSON")
}

// loadView builds the gallery view of the saved dataset.
func loadView(cmd *cobra.Command) (*gallery.View, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}

	d, err := a.dataset()
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset, run 'face-gallery process' first: %w", err)
	}
	names, err := a.identity.Names()
	if err != nil {
		return nil, err
	}
	tags, err := a.identity.Tags()
	if err != nil {
		return nil, err
	}
	return gallery.New(d, names, tags), nil
}

func parseClusterID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid cluster id %q", arg)
	}
	return id, nil
}

func runClustersList(cmd *cobra.Command, args []string) error {
	view, err := loadView(cmd)
	if err != nil {
		return err
	}
	jsonOutput := mustGetBool(cmd, "json")

	if mustGetBool(cmd, "named") {
		people := view.NamedPeople()
		if jsonOutput {
			return outputJSON(people)
		}
		rows := make([][]string, 0, len(people))
		for _, p := range people {
			clusters := make([]string, len(p.Clusters))
			for i, c := range p.Clusters {
				clusters[i] = strconv.Itoa(c)
			}
			rows = append(rows, []string{
				p.Name,
				strconv.Itoa(len(p.Photos)),
				strconv.Itoa(p.Faces),
				strconv.Itoa(p.Tagged),
				strings.Join(clusters, ", "),
			})
		}
		fmt.Println(renderTable([]string{"Name", "Photos", "Faces", "Tagged", "Clusters"}, rows, 2, 3, 4))
		return nil
	}

	people := view.People()
	if jsonOutput {
		return outputJSON(people)
	}
	rows := make([][]string, 0, len(people))
	for _, p := range people {
		rows = append(rows, []string{
			strconv.Itoa(p.ID),
			p.Name,
			strconv.Itoa(p.Faces),
			strconv.Itoa(p.Photos),
			p.Photo,
		})
	}
	fmt.Println(renderTable([]string{"ID", "Name", "Faces", "Photos", "Sample photo"}, rows, 1, 3, 4))
	return nil
}

func runClustersPhotos(cmd *cobra.Command, args []string) error {
	id, err := parseClusterID(args[0])
	if err != nil {
		return err
	}
	view, err := loadView(cmd)
	if err != nil {
		return err
	}
	if _, ok := view.Person(id); !ok {
		return fmt.Errorf("no person with cluster id %d", id)
	}

	photos := view.PhotosFor(id)
	if mustGetBool(cmd, "json") {
		return outputJSON(photos)
	}
	for _, photo := range photos {
		fmt.Println(photo)
	}
	return nil
}

func runClustersFaces(cmd *cobra.Command, args []string) error {
	id, err := parseClusterID(args[0])
	if err != nil {
		return err
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

	pool, err := openMirror(ctx, a)
	if err != nil {
		return err
	}
	defer pool.Close()

	faces, err := postgres.NewFaceRepository(pool).FacesByCluster(ctx, id)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(faces))
	for _, f := range faces {
		rows = append(rows, []string{
			strconv.Itoa(f.FaceIndex),
			f.Photo,
			fmt.Sprintf("%d,%d,%d,%d", f.Box.Top, f.Box.Right, f.Box.Bottom, f.Box.Left),
			f.PersonName,
		})
	}
	fmt.Println(renderTable([]string{"Face", "Photo", "Box (t,r,b,l)", "Name"}, rows, 1))
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	view, err := loadView(cmd)
	if err != nil {
		return err
	}
	stats := view.Stats()
	if mustGetBool(cmd, "json") {
		return outputJSON(stats)
	}

	fmt.Printf("People:            %d (%d named, %d unnamed)\n", stats.People, stats.Labeled, stats.Unlabeled)
	fmt.Printf("Faces:             %d (%d unmatched)\n", stats.Faces, stats.NoiseFaces)
	fmt.Printf("Photos:            %d\n", stats.Photos)
	fmt.Printf("Photos with faces: %d\n", stats.PhotosWithFaces)
	fmt.Printf("Tagged photos:     %d\n", stats.TaggedPhotos)
	return nil
}
