package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-gallery/internal/constants"
	"github.com/kozaktomas/face-gallery/internal/pipeline"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Detect and cluster the faces of every photo",
	Long: `Detect the faces in every photo of the configured source, group them into
people and save the dataset to the cache.

The saved dataset is reused as long as the photo set is unchanged. Names given
to people are carried over to the new clusters when the dataset is rebuilt.

Examples:
  # Process with the configured settings
  face-gallery process

  # Ignore the cache and use 8 parallel workers
  face-gallery process --force --workers 8

  # JSON output for scripting
  face-gallery process --json`,
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().Bool("force", false, "Reprocess every photo even if the cache is valid")
	processCmd.Flags().Int("workers", 0, "Number of parallel detection workers (default from config)")
	processCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
}

// ProcessResult represents the result of a process run
type ProcessResult struct {
	Success        bool     `json:"success"`
	FromCache      bool     `json:"from_cache"`
	TotalPhotos    int      `json:"total_photos"`
	TotalFaces     int      `json:"total_faces"`
	People         int      `json:"people"`
	Failures       []string `json:"failures,omitempty"`
	NamesCarried   int      `json:"names_carried"`
	NamesUnmatched int      `json:"names_unmatched"`
	DurationMs     int64    `json:"duration_ms"`
	DurationHuman  string   `json:"duration_human,omitempty"`
}

func runProcess(cmd *cobra.Command, args []string) error {
	force := mustGetBool(cmd, "force")
	workers := mustGetInt(cmd, "workers")
	jsonOutput := mustGetBool(cmd, "json")

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if workers > 0 {
		cfg.Detection.Workers = min(workers, constants.MaxWorkers)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	showBar := !jsonOutput && isatty.IsTerminal(os.Stderr.Fd())
	var bar *progressbar.ProgressBar
	opts := pipeline.Options{Force: force}
	if showBar {
		opts.OnProgress = func(info pipeline.ProgressInfo) {
			if info.Phase != pipeline.PhaseDetecting {
				return
			}
			if bar == nil {
				bar = progressbar.NewOptions(info.Total,
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetDescription("Detecting faces"),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("photos"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionSetPredictTime(true),
					progressbar.OptionFullWidth(),
				)
			}
			_ = bar.Set(info.Current)
		}
	}

	result, err := a.pipeline().Run(ctx, opts)
	if bar != nil {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	out := ProcessResult{
		Success:       true,
		FromCache:     result.FromCache,
		TotalPhotos:   result.Dataset.TotalPhotos,
		TotalFaces:    result.Dataset.TotalFaces,
		People:        len(result.Dataset.People()),
		DurationMs:    result.Duration.Milliseconds(),
		DurationHuman: formatDuration(result.Duration),
	}
	for _, f := range result.Failures {
		out.Failures = append(out.Failures, f.Photo)
	}
	if result.Remap != nil {
		out.NamesCarried = len(result.Remap.Carried)
		out.NamesUnmatched = len(result.Remap.Unmatched)
	}

	if jsonOutput {
		out.DurationHuman = ""
		return outputJSON(out)
	}

	if out.FromCache {
		fmt.Println("Photo set unchanged, using cached dataset.")
	} else {
		fmt.Println("Processing complete!")
	}
	fmt.Printf("  Photos:   %d\n", out.TotalPhotos)
	fmt.Printf("  Faces:    %d\n", out.TotalFaces)
	fmt.Printf("  People:   %d\n", out.People)
	if len(out.Failures) > 0 {
		fmt.Printf("  Failed:   %d\n", len(out.Failures))
		for _, photo := range out.Failures {
			fmt.Printf("    - %s\n", photo)
		}
	}
	if result.Remap != nil && (out.NamesCarried > 0 || out.NamesUnmatched > 0) {
		fmt.Printf("  Names carried over: %d (unmatched: %d)\n", out.NamesCarried, out.NamesUnmatched)
	}
	if !out.FromCache {
		fmt.Printf("  Duration: %s\n", out.DurationHuman)
	}
	return nil
}
