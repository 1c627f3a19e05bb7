package api

import (
	"errors"
	"net/http"

	"github.com/garnizeh/mockinterview/internal/apperr"
	"github.com/garnizeh/mockinterview/internal/speech"
)

const defaultMaxUploadBytes = 10 << 20

type SpeechHandler struct {
	transcriber speech.Transcriber
	maxBytes    int64
}

func NewSpeechHandler(t speech.Transcriber, maxBytes int64) *SpeechHandler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &SpeechHandler{transcriber: t, maxBytes: maxBytes}
}

type transcriptResponse struct {
	Transcript string `json:"transcript"`
}

// Transcribe accepts a multipart upload with the clip in the "audio" field.
func (h *SpeechHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, r, apperr.Validation("audio file too large"))
			return
		}
		writeError(w, r, apperr.Validation("expected multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, r, apperr.Validation("audio file is required"))
		return
	}
	defer file.Close()

	text, err := h.transcriber.Transcribe(r.Context(), file)
	if errors.Is(err, speech.ErrEmptyAudio) {
		writeError(w, r, apperr.Validation("audio file is empty"))
		return
	}
	if err != nil {
		writeError(w, r, apperr.Generation("transcription failed", err))
		return
	}

	writeJSON(w, transcriptResponse{Transcript: text}, http.StatusOK)
}
