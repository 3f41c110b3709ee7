package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-gallery/internal/cache"
	"github.com/kozaktomas/face-gallery/internal/cluster"
	"github.com/kozaktomas/face-gallery/internal/identity"
)

// NamesHandler edits the cluster names and photo tags.
type NamesHandler struct {
	state *State
}

func NewNamesHandler(state *State) *NamesHandler {
	return &NamesHandler{state: state}
}

type nameRequest struct {
	Name string `json:"name"`
}

type tagsRequest struct {
	Photo string   `json:"photo"`
	Names []string `json:"names"`
}

// List returns the raw names mapping, placeholders included.
func (h *NamesHandler) List(w http.ResponseWriter, _ *http.Request) {
	names, err := h.state.Identity.Names()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, names)
}

// Set names a cluster; an empty name removes it.
func (h *NamesHandler) Set(w http.ResponseWriter, r *http.Request) {
	id, ok := clusterIDParam(w, r)
	if !ok {
		return
	}
	if id == cluster.Noise {
		respondError(w, http.StatusBadRequest, "noise faces cannot be named")
		return
	}
	var req nameRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	names, err := h.state.Identity.UpdateNames(h.currentDataset(), func(n identity.Names) error {
		n.Set(id, req.Name)
		return nil
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.state.Logger.Info().Int("person", id).Str("name", sanitizeForLog(req.Name)).Msg("person renamed")
	respondJSON(w, http.StatusOK, names)
}

// Add creates a person without a cluster, for tagging photos with no detected face.
func (h *NamesHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "name must not be empty")
		return
	}

	var id int
	_, err := h.state.Identity.UpdateNames(h.currentDataset(), func(n identity.Names) error {
		var err error
		id, err = n.AddPerson(req.Name)
		return err
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id, "name": strings.TrimSpace(req.Name)})
}

// currentDataset is used to refresh anchors; without a dataset only names are saved.
func (h *NamesHandler) currentDataset() *cache.Dataset {
	d, err := h.state.Dataset()
	if err != nil {
		if !errors.Is(err, cache.ErrAbsent) {
			h.state.Logger.Warn().Err(err).Msg("saving names without refreshing anchors")
		}
		return nil
	}
	return d
}

// ListTags returns all photo tags.
func (h *NamesHandler) ListTags(w http.ResponseWriter, _ *http.Request) {
	tags, err := h.state.Identity.Tags()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, tags)
}

// SetTags replaces the names tagged on one photo.
func (h *NamesHandler) SetTags(w http.ResponseWriter, r *http.Request) {
	var req tagsRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.Photo) == "" {
		respondError(w, http.StatusBadRequest, "photo is required")
		return
	}

	tags, err := h.state.Identity.SetTags(req.Photo, req.Names)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, tags)
}
