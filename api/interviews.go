package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/garnizeh/mockinterview/internal/apperr"
	"github.com/garnizeh/mockinterview/internal/interview"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type InterviewHandler struct {
	svc *interview.Service
}

func NewInterviewHandler(svc *interview.Service) *InterviewHandler {
	return &InterviewHandler{svc: svc}
}

type successResponse struct {
	Success bool `json:"success"`
}

type submitRequest struct {
	Responses []interview.ResponseInput `json:"responses"`
}

type responseRequest struct {
	Answer       string `json:"answer"`
	ResponseTime int    `json:"response_time"`
}

func (h *InterviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	var in interview.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	iv, err := h.svc.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, iv, http.StatusCreated)
}

// List returns the caller's interviews, newest first. Supports ?limit= and ?offset=.
func (h *InterviewHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	q := r.URL.Query()

	limit := defaultListLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, apperr.Validation("invalid limit"))
			return
		}
		limit = min(n, maxListLimit)
	}
	offset := 0
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, apperr.Validation("invalid offset"))
			return
		}
		offset = n
	}

	list, err := h.svc.List(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, list, http.StatusOK)
}

func (h *InterviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	d, err := h.svc.Get(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, d, http.StatusOK)
}

func (h *InterviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	id := mux.Vars(r)["id"]
	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}

	logger.Info("interview deleted", slog.String("interview_id", id), slog.String("user_id", userID))
	writeJSON(w, successResponse{Success: true}, http.StatusOK)
}

func (h *InterviewHandler) GenerateQuestions(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	qs, err := h.svc.GenerateQuestions(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, qs, http.StatusOK)
}

func (h *InterviewHandler) SaveResponse(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	vars := mux.Vars(r)
	var req responseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.svc.SaveResponse(r.Context(), userID, vars["id"], vars["question_id"], req.Answer, req.ResponseTime)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, resp, http.StatusOK)
}

func (h *InterviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.svc.Submit(r.Context(), userID, mux.Vars(r)["id"], req.Responses); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, successResponse{Success: true}, http.StatusOK)
}

func (h *InterviewHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	ev, err := h.svc.Evaluate(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, ev, http.StatusOK)
}
