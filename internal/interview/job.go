package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/garnizeh/mockinterview/internal/apperr"
)

// EvaluatePayload is the JSON payload of a JobEvaluate job.
type EvaluatePayload struct {
	InterviewID string `json:"interview_id"`
	UserID      string `json:"user_id"`
}

// HandleEvaluateJob runs a queued evaluation. An interview that is already
// evaluated, deleted or has nothing to evaluate completes the job without retry.
func (s *Service) HandleEvaluateJob(ctx context.Context, payload []byte) error {
	var p EvaluatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if p.InterviewID == "" || p.UserID == "" {
		return fmt.Errorf("payload missing interview_id or user_id")
	}

	_, err := s.Evaluate(ctx, p.UserID, p.InterviewID)
	switch apperr.KindOf(err) {
	case apperr.KindConflict, apperr.KindNotFound, apperr.KindValidation:
		logger.Info("evaluation job skipped", slog.String("interview_id", p.InterviewID), slog.Any("reason", err))
		return nil
	}
	return err
}
