package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-gallery/internal/web"
	"github.com/kozaktomas/face-gallery/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Gallery API server.
The server lists people and their photos, edits names and tags, builds face
thumbnails and runs processing jobs with live progress over server-sent events.
Prometheus metrics are served at /metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	state := handlers.NewState(handlers.Deps{
		Store:         a.store,
		Identity:      a.identity,
		Source:        a.source,
		Loader:        a.loader,
		Runner:        a.pipeline(),
		ThumbnailSize: cfg.Gallery.ThumbnailSize,
		Logger:        logger,
	})
	server := web.NewServer(cfg.Web, state, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("error during shutdown")
		}
	}()

	return server.Start()
}
