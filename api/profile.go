package api

import (
	"net/http"
	"strings"

	"github.com/garnizeh/mockinterview/internal/apperr"
	"github.com/garnizeh/mockinterview/internal/models"
	"github.com/garnizeh/mockinterview/pkg/repository"
)

type ProfileHandler struct {
	repo repository.ProfileRepo
}

func NewProfileHandler(pr repository.ProfileRepo) *ProfileHandler {
	return &ProfileHandler{repo: pr}
}

type profileRequest struct {
	DisplayName     string `json:"display_name"`
	Bio             string `json:"bio"`
	Location        string `json:"location"`
	ExperienceLevel string `json:"experience_level"`
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	p, err := h.repo.GetProfile(r.Context(), userID)
	if err != nil {
		writeError(w, r, apperr.Persistence("load profile", err))
		return
	}
	if p == nil {
		p = &models.Profile{UserID: userID}
	}
	writeJSON(w, p, http.StatusOK)
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Bio) > 4000 {
		writeError(w, r, apperr.Validation("bio too long"))
		return
	}

	p := &models.Profile{
		UserID:          userID,
		DisplayName:     strings.TrimSpace(req.DisplayName),
		Bio:             strings.TrimSpace(req.Bio),
		Location:        strings.TrimSpace(req.Location),
		ExperienceLevel: strings.TrimSpace(req.ExperienceLevel),
	}
	if err := h.repo.UpdateProfile(r.Context(), p); err != nil {
		writeError(w, r, apperr.Persistence("update profile", err))
		return
	}
	saved, err := h.repo.GetProfile(r.Context(), userID)
	if err != nil || saved == nil {
		writeError(w, r, apperr.Persistence("load profile", err))
		return
	}
	writeJSON(w, saved, http.StatusOK)
}
