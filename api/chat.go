package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/mockinterview/internal/apperr"
	"github.com/garnizeh/mockinterview/internal/coach"
	"github.com/garnizeh/mockinterview/internal/interview"
	"github.com/garnizeh/mockinterview/internal/models"
)

// Conversation streams interviewer and helper replies.
type Conversation interface {
	Interview(ctx context.Context, iv models.Interview, current *models.Question, turns []coach.Turn, fn func(string) error) error
	Assist(ctx context.Context, iv models.Interview, message, extra string, fn func(string) error) error
}

type ChatHandler struct {
	svc   *interview.Service
	coach Conversation
}

func NewChatHandler(svc *interview.Service, c Conversation) *ChatHandler {
	return &ChatHandler{svc: svc, coach: c}
}

type chatRequest struct {
	Messages   []coach.Turn `json:"messages"`
	QuestionID string       `json:"question_id,omitempty"`
}

type assistantRequest struct {
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

// Interviewer streams the interviewer persona's next turn as text/plain.
func (h *ChatHandler) Interviewer(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	iv, q, err := h.svc.ChatContext(r.Context(), userID, mux.Vars(r)["id"], req.QuestionID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s := newChunkStream(w)
	err = h.coach.Interview(r.Context(), *iv, q, req.Messages, s.write)
	s.finish(r, err)
}

// Assistant streams a helper reply to one candidate message.
func (h *ChatHandler) Assistant(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	var req assistantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	iv, _, err := h.svc.ChatContext(r.Context(), userID, mux.Vars(r)["id"], "")
	if err != nil {
		writeError(w, r, err)
		return
	}

	s := newChunkStream(w)
	err = h.coach.Assist(r.Context(), *iv, req.Message, req.Context, s.write)
	s.finish(r, err)
}

// chunkStream writes chunks as they arrive and flushes after each one.
// Headers are committed with the first chunk, so a failure before it can
// still be reported as a JSON error.
type chunkStream struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

func newChunkStream(w http.ResponseWriter) *chunkStream {
	return &chunkStream{w: w, rc: http.NewResponseController(w)}
}

func (s *chunkStream) write(chunk string) error {
	if !s.started {
		s.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("X-Content-Type-Options", "nosniff")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	if _, err := s.w.Write([]byte(chunk)); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

func (s *chunkStream) finish(r *http.Request, err error) {
	if err == nil {
		if !s.started {
			// the model produced nothing; still answer with an empty stream
			s.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			s.w.WriteHeader(http.StatusOK)
		}
		return
	}
	if r.Context().Err() != nil {
		logger.Info("chat stream cancelled by client", slog.String("path", r.URL.Path))
		return
	}
	if s.started {
		logger.Error("chat stream aborted", slog.String("path", r.URL.Path), slog.Any("err", err))
		return
	}
	if errors.Is(err, coach.ErrEmptyMessage) {
		writeError(s.w, r, apperr.Validation(err.Error()))
		return
	}
	writeError(s.w, r, apperr.Generation("chat failed", err))
}
