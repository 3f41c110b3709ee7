// Package metrics holds the prometheus collectors of the face pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Pipeline Metrics
// =============================================================================

var (
	// PipelineRunsTotal counts pipeline runs by how they ended
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "face_gallery_pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"result"}, // "cache", "processed", "error"
	)

	// PipelineDuration tracks how long a full (non-cached) pipeline run takes
	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "face_gallery_pipeline_duration_seconds",
			Help:    "Duration of pipeline runs that processed photos",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	// DatasetFaces is the number of faces in the current dataset
	DatasetFaces = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "face_gallery_dataset_faces",
			Help: "Number of faces in the current dataset",
		},
	)

	// DatasetPhotos is the number of photos in the current dataset
	DatasetPhotos = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "face_gallery_dataset_photos",
			Help: "Number of photos in the current dataset",
		},
	)

	// DatasetClusters is the number of person clusters (noise excluded)
	DatasetClusters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "face_gallery_dataset_clusters",
			Help: "Number of person clusters in the current dataset",
		},
	)
)

// =============================================================================
// Detection Metrics
// =============================================================================

var (
	// PhotosProcessedTotal counts photos sent through detection
	PhotosProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "face_gallery_photos_processed_total",
			Help: "Total number of photos processed by the face detector",
		},
	)

	// PhotoFailuresTotal counts photos skipped because of an error
	PhotoFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "face_gallery_photo_failures_total",
			Help: "Total number of photos skipped because they could not be fetched or encoded",
		},
		[]string{"kind"}, // "transient", "permanent"
	)

	// FacesDetectedTotal counts detected faces
	FacesDetectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "face_gallery_faces_detected_total",
			Help: "Total number of faces detected",
		},
	)

	// FetchRetriesTotal counts retried photo fetches
	FetchRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "face_gallery_fetch_retries_total",
			Help: "Total number of photo fetch retries after a transient error",
		},
	)
)

// =============================================================================
// Cache Metrics
// =============================================================================

var (
	// CacheOperationsTotal counts cache store operations by outcome
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "face_gallery_cache_operations_total",
			Help: "Total number of cache store operations",
		},
		[]string{"operation", "result"}, // "save", "load", "clear" | "ok", "absent", "corrupt", "error"
	)
)

// =============================================================================
// HTTP Metrics
// =============================================================================

var (
	// HTTPRequestsTotal counts served API requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "face_gallery_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "status"},
	)
)
