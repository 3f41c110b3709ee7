package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/face-gallery/internal/pipeline"
)

// ProcessHandler handles photo processing endpoints
type ProcessHandler struct {
	state      *State
	jobManager *ProcessJobManager
}

// NewProcessHandler creates a new process handler
func NewProcessHandler(state *State, jobs *ProcessJobManager) *ProcessHandler {
	return &ProcessHandler{
		state:      state,
		jobManager: jobs,
	}
}

// ProcessStartRequest represents a request to start processing
type ProcessStartRequest struct {
	Force bool `json:"force"`
}

// Start starts a new processing job
func (h *ProcessHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req ProcessStartRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	job, ok := h.jobManager.Start(uuid.NewString(), req.Force, cancel)
	if !ok {
		cancel()
		respondError(w, http.StatusConflict, "a process job is already running")
		return
	}

	h.state.Logger.Info().Str("job", job.ID).Bool("force", req.Force).Msg("process job started")
	go h.runProcessJob(ctx, cancel, job)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": string(JobStatusPending),
	})
}

// Get returns the status of a process job.
func (h *ProcessHandler) Get(w http.ResponseWriter, r *http.Request) {
	job := h.jobManager.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Events streams process job events via SSE
func (h *ProcessHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r, h.lookupJob, func(job SSEJob) any {
		return job.(*ProcessJob).Snapshot()
	})
}

func (h *ProcessHandler) lookupJob(id string) SSEJob {
	job := h.jobManager.GetJob(id)
	if job == nil {
		return nil
	}
	return job
}

// Cancel cancels a process job
func (h *ProcessHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	job.Cancel()
	h.state.Logger.Info().Str("job", job.ID).Msg("process job cancelled")
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// runProcessJob executes the process job in the background
func (h *ProcessHandler) runProcessJob(ctx context.Context, cancel context.CancelFunc, job *ProcessJob) {
	defer cancel()
	logger := h.state.Logger.With().Str("job", job.ID).Logger()

	job.setRunning()
	job.SendEvent(JobEvent{Type: "started", Message: "Process job started"})

	result, err := h.state.Runner.Run(ctx, pipeline.Options{
		Force: job.Force,
		OnProgress: func(info pipeline.ProgressInfo) {
			job.setProgress(info)
			job.SendEvent(JobEvent{Type: "progress", Data: info})
		},
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("process job stopped after cancellation")
			return
		}
		if job.finish(JobStatusFailed, err.Error(), nil) {
			logger.Error().Err(err).Msg("process job failed")
			job.SendEvent(JobEvent{Type: "job_error", Message: err.Error()})
		}
		return
	}

	h.state.SetDataset(result.Dataset)

	summary := &ProcessJobResult{
		FromCache:   result.FromCache,
		TotalPhotos: result.Dataset.TotalPhotos,
		TotalFaces:  result.Dataset.TotalFaces,
		People:      len(result.Dataset.People()),
		DurationMs:  result.Duration.Milliseconds(),
	}
	for _, f := range result.Failures {
		summary.Failures = append(summary.Failures, f.Photo)
	}
	if result.Remap != nil {
		summary.Carried = len(result.Remap.Carried)
		summary.Unmatched = len(result.Remap.Unmatched)
	}

	if job.finish(JobStatusCompleted, "", summary) {
		logger.Info().
			Bool("from_cache", summary.FromCache).
			Int("faces", summary.TotalFaces).
			Int("people", summary.People).
			Msg("process job completed")
		job.SendEvent(JobEvent{Type: "completed", Data: summary})
	}
}
