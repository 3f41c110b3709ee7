package web

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kozaktomas/face-gallery/internal/constants"
	"github.com/kozaktomas/face-gallery/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	// Create handlers
	statsHandler := handlers.NewStatsHandler(s.state)
	peopleHandler := handlers.NewPeopleHandler(s.state)
	photosHandler := handlers.NewPhotosHandler(s.state)
	namesHandler := handlers.NewNamesHandler(s.state)
	processHandler := handlers.NewProcessHandler(s.state, s.jobManager)
	cacheHandler := handlers.NewCacheHandler(s.state, s.jobManager)

	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		// Event streams stay open for the whole job and skip the request timeout.
		r.Get("/process/{jobId}/events", processHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(constants.RequestTimeout))

			r.Get("/stats", statsHandler.Get)

			// People
			r.Get("/people", peopleHandler.List)
			r.Get("/people/{id}/photos", peopleHandler.Photos)
			r.Get("/people/{id}/thumbnail", peopleHandler.Thumbnail)
			r.Get("/named-people", photosHandler.NamedPeople)

			// Photos
			r.Get("/photos", photosHandler.List)
			r.Get("/unused-photos", photosHandler.Unused)

			// Names and tags
			r.Get("/names", namesHandler.List)
			r.Post("/names", namesHandler.Add)
			r.Put("/names/{id}", namesHandler.Set)
			r.Get("/tags", namesHandler.ListTags)
			r.Put("/tags", namesHandler.SetTags)

			// Processing
			r.Post("/process", processHandler.Start)
			r.Get("/process/{jobId}", processHandler.Get)
			r.Delete("/process/{jobId}", processHandler.Cancel)

			// Cache
			r.Get("/cache", cacheHandler.Status)
			r.Delete("/cache", cacheHandler.Clear)
		})
	})
}
