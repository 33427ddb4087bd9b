package handlers

import (
	"net/http"
	"strconv"

	"github.com/Harshitk-cp/doxa/internal/domain"
)

type ProfileHandler struct {
	profile domain.ProfileStore
}

func NewProfileHandler(profile domain.ProfileStore) *ProfileHandler {
	return &ProfileHandler{profile: profile}
}

type profileResponse struct {
	Notes []domain.ProfileNote `json:"notes"`
	Count int                  `json:"count"`
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	notes, err := h.profile.ListNotes(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list profile notes")
		return
	}
	if notes == nil {
		notes = []domain.ProfileNote{}
	}

	writeJSON(w, http.StatusOK, profileResponse{
		Notes: notes,
		Count: len(notes),
	})
}
