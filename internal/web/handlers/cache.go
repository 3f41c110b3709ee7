package handlers

import (
	"net/http"
)

// CacheHandler manages the saved dataset.
type CacheHandler struct {
	state *State
	jobs  *ProcessJobManager
}

func NewCacheHandler(state *State, jobs *ProcessJobManager) *CacheHandler {
	return &CacheHandler{state: state, jobs: jobs}
}

// Status reports whether the saved dataset still matches the photo source.
func (h *CacheHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.state.Store.Status(r.Context(), h.state.Source)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// Clear deletes the saved dataset so the next run processes every photo.
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if h.jobs.IsRunning() {
		respondError(w, http.StatusConflict, "a process job is running")
		return
	}
	if err := h.state.Store.Clear(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.state.SetDataset(nil)
	h.state.Logger.Info().Str("path", h.state.Store.Path()).Msg("cache cleared")
	respondJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}
