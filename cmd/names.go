package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-gallery/internal/cache"
	"github.com/kozaktomas/face-gallery/internal/constants"
	"github.com/kozaktomas/face-gallery/internal/identity"
)

var namesCmd = &cobra.Command{
	Use:   "names",
	Short: "Name the people found in the photos",
}

var namesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cluster names",
	RunE:  runNamesList,
}

var namesSetCmd = &cobra.Command{
	Use:   "set <cluster-id> [name]",
	Short: "Name a cluster, or remove its name when none is given",
	Long: `Name a cluster, or remove its name when none is given.

Placeholder names such as "skip" or "???" mark a cluster as reviewed
without naming it.

Examples:
  face-gallery names set 3 "Jiří Novák"
  face-gallery names set 7 skip
  face-gallery names set 3`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runNamesSet,
}

var namesAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a person without a face cluster, for tagging photos by hand",
	Args:  cobra.ExactArgs(1),
	RunE:  runNamesAdd,
}

var namesRemapCmd = &cobra.Command{
	Use:   "remap",
	Short: "Carry saved names over to the current clusters",
	Long: `Match the saved anchors (the faces of every named cluster at the time it
was named) against the current clusters and move each name to the closest
cluster. This runs automatically after every fresh process run.`,
	RunE: runNamesRemap,
}

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Tag photos with people by hand",
}

var tagsSetCmd = &cobra.Command{
	Use:   "set <photo> [name...]",
	Short: "Replace the names tagged on a photo; no names removes the photo",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTagsSet,
}

var tagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tagged photos",
	RunE:  runTagsList,
}

func init() {
	rootCmd.AddCommand(namesCmd, tagsCmd)
	namesCmd.AddCommand(namesListCmd, namesSetCmd, namesAddCmd, namesRemapCmd)
	tagsCmd.AddCommand(tagsSetCmd, tagsListCmd)

	namesListCmd.Flags().Bool("json", false, "Output as JSON")
	namesRemapCmd.Flags().Float64("max-distance", 0, "Maximum embedding distance for a name to move (default from config)")
	tagsListCmd.Flags().Bool("json", false, "Output as JSON")
}

// loadIdentityApp loads config and the app without requiring a dataset.
func loadIdentityApp(cmd *cobra.Command) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cmd.Context(), cfg, logger)
}

// optionalDataset returns the saved dataset, or nil when there is none yet.
func optionalDataset(a *app) (*cache.Dataset, error) {
	d, err := a.dataset()
	if errors.Is(err, cache.ErrAbsent) {
		return nil, nil
	}
	return d, err
}

func runNamesList(cmd *cobra.Command, args []string) error {
	a, err := loadIdentityApp(cmd)
	if err != nil {
		return err
	}
	names, err := a.identity.Names()
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(names)
	}

	rows := make([][]string, 0, len(names))
	for _, id := range names.IDs() {
		name := names.Get(id)
		kind := "cluster"
		switch {
		case identity.IsSynthetic(id):
			kind = "added"
		case !identity.IsValidName(name):
			kind = "placeholder"
		}
		rows = append(rows, []string{strconv.Itoa(id), name, kind})
	}
	fmt.Println(renderTable([]string{"ID", "Name", "Kind"}, rows, 1))
	return nil
}

func runNamesSet(cmd *cobra.Command, args []string) error {
	id, err := parseClusterID(args[0])
	if err != nil {
		return err
	}
	if id == constants.NoiseLabel {
		return errors.New("noise faces cannot be named")
	}
	name := ""
	if len(args) == 2 {
		name = args[1]
	}

	a, err := loadIdentityApp(cmd)
	if err != nil {
		return err
	}
	d, err := optionalDataset(a)
	if err != nil {
		return err
	}

	if _, err := a.identity.UpdateNames(d, func(n identity.Names) error {
		n.Set(id, name)
		return nil
	}); err != nil {
		return err
	}

	if strings.TrimSpace(name) == "" {
		fmt.Printf("Removed name of cluster %d\n", id)
	} else {
		fmt.Printf("Cluster %d is now %q\n", id, strings.TrimSpace(name))
	}
	return nil
}

func runNamesAdd(cmd *cobra.Command, args []string) error {
	a, err := loadIdentityApp(cmd)
	if err != nil {
		return err
	}
	d, err := optionalDataset(a)
	if err != nil {
		return err
	}

	var id int
	if _, err := a.identity.UpdateNames(d, func(n identity.Names) error {
		id, err = n.AddPerson(args[0])
		return err
	}); err != nil {
		return err
	}
	fmt.Printf("Added %q with id %d\n", strings.TrimSpace(args[0]), id)
	return nil
}

func runNamesRemap(cmd *cobra.Command, args []string) error {
	a, err := loadIdentityApp(cmd)
	if err != nil {
		return err
	}
	d, err := a.dataset()
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	maxDistance := mustGetFloat64(cmd, "max-distance")
	if maxDistance <= 0 {
		maxDistance = a.cfg.Clustering.RemapDistance
	}

	report, err := a.identity.RemapNames(d, maxDistance)
	if err != nil {
		return err
	}

	sort.Slice(report.Carried, func(i, j int) bool { return report.Carried[i].Name < report.Carried[j].Name })
	for _, move := range report.Carried {
		fmt.Printf("  %-30s %4d -> %-4d (distance %.3f)\n", move.Name, move.From, move.To, move.Distance)
	}
	for _, anchor := range report.Unmatched {
		fmt.Printf("  %-30s no matching cluster\n", anchor.Name)
	}
	fmt.Printf("Carried %d names, %d unmatched\n", len(report.Carried), len(report.Unmatched))
	return nil
}

func runTagsSet(cmd *cobra.Command, args []string) error {
	a, err := loadIdentityApp(cmd)
	if err != nil {
		return err
	}
	photo := args[0]
	if _, err := a.identity.SetTags(photo, args[1:]); err != nil {
		return err
	}
	if len(args) == 1 {
		fmt.Printf("Removed tags of %s\n", photo)
	} else {
		fmt.Printf("Tagged %s with %s\n", photo, strings.Join(args[1:], ", "))
	}
	return nil
}

func runTagsList(cmd *cobra.Command, args []string) error {
	a, err := loadIdentityApp(cmd)
	if err != nil {
		return err
	}
	tags, err := a.identity.Tags()
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(tags)
	}

	photos := make([]string, 0, len(tags))
	for photo := range tags {
		photos = append(photos, photo)
	}
	sort.Strings(photos)
	rows := make([][]string, 0, len(photos))
	for _, photo := range photos {
		rows = append(rows, []string{photo, strings.Join(tags[photo], ", ")})
	}
	fmt.Println(renderTable([]string{"Photo", "Names"}, rows))
	return nil
}
