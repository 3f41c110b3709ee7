package handlers

import (
	"net/http"
)

// StatsHandler serves dataset statistics.
type StatsHandler struct {
	state *State
}

func NewStatsHandler(state *State) *StatsHandler {
	return &StatsHandler{state: state}
}

// Get returns people, face and photo counts.
func (h *StatsHandler) Get(w http.ResponseWriter, _ *http.Request) {
	view, err := h.state.View()
	if err != nil {
		respondDatasetError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view.Stats())
}
