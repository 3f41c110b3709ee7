package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/face-gallery/internal/constants"
	"github.com/kozaktomas/face-gallery/internal/pipeline"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ProcessJob is one asynchronous pipeline run.
type ProcessJob struct {
	EventBroadcaster

	ID          string                 `json:"id"`
	Force       bool                   `json:"force"`
	Status      JobStatus              `json:"status"`
	Progress    *pipeline.ProgressInfo `json:"progress,omitempty"`
	Error       string                 `json:"error,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Result      *ProcessJobResult      `json:"result,omitempty"`
}

// ProcessJobResult summarizes a finished run.
type ProcessJobResult struct {
	FromCache   bool     `json:"from_cache"`
	TotalPhotos int      `json:"total_photos"`
	TotalFaces  int      `json:"total_faces"`
	People      int      `json:"people"`
	Failures    []string `json:"failures,omitempty"`
	Carried     int      `json:"names_carried"`
	Unmatched   int      `json:"names_unmatched"`
	DurationMs  int64    `json:"duration_ms"`
}

// GetStatus returns the current job status (implements SSEJob).
func (j *ProcessJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// Snapshot returns a copy of the job that is safe to encode.
func (j *ProcessJob) Snapshot() ProcessJobView {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return ProcessJobView{
		ID:          j.ID,
		Force:       j.Force,
		Status:      j.Status,
		Progress:    j.Progress,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Result:      j.Result,
	}
}

// ProcessJobView is the JSON form of a ProcessJob.
type ProcessJobView struct {
	ID          string                 `json:"id"`
	Force       bool                   `json:"force"`
	Status      JobStatus              `json:"status"`
	Progress    *pipeline.ProgressInfo `json:"progress,omitempty"`
	Error       string                 `json:"error,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Result      *ProcessJobResult      `json:"result,omitempty"`
}

func (j *ProcessJob) setRunning() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status == JobStatusPending {
		j.Status = JobStatusRunning
	}
}

func (j *ProcessJob) setProgress(info pipeline.ProgressInfo) {
	j.mu.Lock()
	j.Progress = &info
	j.mu.Unlock()
}

// finish records the terminal state unless the job was already cancelled.
func (j *ProcessJob) finish(status JobStatus, errMsg string, result *ProcessJobResult) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status == JobStatusCancelled {
		return false
	}
	now := time.Now()
	j.Status = status
	j.Error = errMsg
	j.Result = result
	j.CompletedAt = &now
	return true
}

// Cancel cancels the process job.
func (j *ProcessJob) Cancel() {
	j.mu.Lock()
	if j.Status == JobStatusCompleted || j.Status == JobStatusFailed || j.Status == JobStatusCancelled {
		j.mu.Unlock()
		return
	}
	now := time.Now()
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
	j.mu.Unlock()
	j.EventBroadcaster.Cancel()
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// ProcessJobManager tracks process jobs. At most one runs at a time; finished
// jobs are kept for a while so clients can still read their outcome.
type ProcessJobManager struct {
	jobs   map[string]*ProcessJob
	active *ProcessJob
	mu     sync.RWMutex
}

func NewProcessJobManager() *ProcessJobManager {
	return &ProcessJobManager{
		jobs: make(map[string]*ProcessJob),
	}
}

// Start registers a new pending job, or returns false if one is still running.
func (m *ProcessJobManager) Start(id string, force bool, cancel context.CancelFunc) (*ProcessJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil && !isJobTerminal(m.active.GetStatus()) {
		return nil, false
	}
	m.prune(time.Now())

	job := &ProcessJob{
		ID:        id,
		Force:     force,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
	}
	job.cancel = cancel
	m.jobs[id] = job
	m.active = job
	return job, true
}

// prune drops finished jobs older than the retention period.
func (m *ProcessJobManager) prune(now time.Time) {
	for id, job := range m.jobs {
		snap := job.Snapshot()
		if snap.CompletedAt != nil && now.Sub(*snap.CompletedAt) > constants.JobRetention {
			delete(m.jobs, id)
		}
	}
}

// GetJob retrieves a job by ID.
func (m *ProcessJobManager) GetJob(id string) *ProcessJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// Active returns the most recently started job, nil if none was started.
func (m *ProcessJobManager) Active() *ProcessJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// IsRunning reports whether a job is pending or running.
func (m *ProcessJobManager) IsRunning() bool {
	job := m.Active()
	return job != nil && !isJobTerminal(job.GetStatus())
}
