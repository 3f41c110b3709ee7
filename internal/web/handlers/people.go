package handlers

import (
	"net/http"
	"strconv"

	"github.com/kozaktomas/face-gallery/internal/gallery"
)

// PeopleHandler serves the person clusters and the photos they appear in.
type PeopleHandler struct {
	state *State
}

func NewPeopleHandler(state *State) *PeopleHandler {
	return &PeopleHandler{state: state}
}

// PersonResponse is a cluster plus the URL of its face thumbnail.
type PersonResponse struct {
	gallery.Person
	ThumbnailURL string `json:"thumbnail_url"`
}

// PhotosResponse is a list of photos.
type PhotosResponse struct {
	Photos []string `json:"photos"`
	Count  int      `json:"count"`
}

func photosResponse(photos []string) PhotosResponse {
	if photos == nil {
		photos = []string{}
	}
	return PhotosResponse{Photos: photos, Count: len(photos)}
}

// List returns every person cluster, largest first.
func (h *PeopleHandler) List(w http.ResponseWriter, _ *http.Request) {
	view, err := h.state.View()
	if err != nil {
		respondDatasetError(w, err)
		return
	}

	people := view.People()
	out := make([]PersonResponse, 0, len(people))
	for _, p := range people {
		out = append(out, PersonResponse{Person: p, ThumbnailURL: thumbnailURL(p)})
	}
	respondJSON(w, http.StatusOK, out)
}

// thumbnailURL points hosted photos at the host's crop transformation and
// everything else at the thumbnail endpoint.
func thumbnailURL(p gallery.Person) string {
	if u := gallery.CloudinaryThumbnailURL(p.Photo, p.Box); u != p.Photo {
		return u
	}
	return "/api/v1/people/" + strconv.Itoa(p.ID) + "/thumbnail"
}

// Photos returns the photos one person appears in.
func (h *PeopleHandler) Photos(w http.ResponseWriter, r *http.Request) {
	id, ok := clusterIDParam(w, r)
	if !ok {
		return
	}
	view, err := h.state.View()
	if err != nil {
		respondDatasetError(w, err)
		return
	}

	if _, found := view.Person(id); !found {
		respondError(w, http.StatusNotFound, "person not found")
		return
	}
	respondJSON(w, http.StatusOK, photosResponse(view.PhotosFor(id)))
}

// Thumbnail returns a JPEG crop of the person's representative face.
func (h *PeopleHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := clusterIDParam(w, r)
	if !ok {
		return
	}
	view, err := h.state.View()
	if err != nil {
		respondDatasetError(w, err)
		return
	}
	person, found := view.Person(id)
	if !found {
		respondError(w, http.StatusNotFound, "person not found")
		return
	}

	size := h.state.ThumbnailSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1024 {
			respondError(w, http.StatusBadRequest, "size must be between 1 and 1024")
			return
		}
		size = n
	}

	d, err := h.state.Dataset()
	if err != nil {
		respondDatasetError(w, err)
		return
	}
	data, err := gallery.Thumbnail(r.Context(), h.state.Loader, d.Faces[person.Representative], size)
	if err != nil {
		h.state.Logger.Warn().Err(err).Int("person", id).Str("photo", sanitizeForLog(person.Photo)).Msg("thumbnail failed")
		respondError(w, http.StatusBadGateway, "failed to build thumbnail")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "max-age=3600")
	_, _ = w.Write(data)
}

// PhotosHandler serves photo lists.
type PhotosHandler struct {
	state *State
}

func NewPhotosHandler(state *State) *PhotosHandler {
	return &PhotosHandler{state: state}
}

// List returns every photo with a face, or with ?name= the photos of that
// named person including tagged ones.
func (h *PhotosHandler) List(w http.ResponseWriter, r *http.Request) {
	view, err := h.state.View()
	if err != nil {
		respondDatasetError(w, err)
		return
	}

	if name := r.URL.Query().Get("name"); name != "" {
		respondJSON(w, http.StatusOK, photosResponse(view.PhotosForName(name)))
		return
	}
	respondJSON(w, http.StatusOK, photosResponse(view.AllPhotos()))
}

// NamedPeople lists validly named people merged by name.
func (h *PhotosHandler) NamedPeople(w http.ResponseWriter, _ *http.Request) {
	view, err := h.state.View()
	if err != nil {
		respondDatasetError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view.NamedPeople())
}

// Unused lists the photos in which no named person appears.
func (h *PhotosHandler) Unused(w http.ResponseWriter, r *http.Request) {
	view, err := h.state.View()
	if err != nil {
		respondDatasetError(w, err)
		return
	}
	all, err := h.state.Source.ListPhotos(r.Context())
	if err != nil {
		h.state.Logger.Error().Err(err).Msg("failed to list photos")
		respondError(w, http.StatusBadGateway, "failed to list photos")
		return
	}

	unused := view.UnusedPhotos(all)
	respondJSON(w, http.StatusOK, map[string]any{
		"photos": unused,
		"count":  len(unused),
		"total":  len(all),
	})
}
