// Package interview implements the interview pipeline: creation, question
// generation, response collection, evaluation and deletion. Every operation
// checks that the caller owns the interview before touching it.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/garnizeh/mockinterview/internal/apperr"
	"github.com/garnizeh/mockinterview/internal/db"
	"github.com/garnizeh/mockinterview/internal/metrics"
	"github.com/garnizeh/mockinterview/internal/models"
	"github.com/garnizeh/mockinterview/pkg/repository"
)

// JobEvaluate is the background job type enqueued on submit when enabled.
const JobEvaluate = "interview.evaluate"

// package-level logger; replaced by cmd/server.
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by the package. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// QuestionGenerator produces the questions for an interview.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, iv models.Interview) ([]models.GeneratedQuestion, error)
}

// Evaluator scores an interview from its answered questions.
type Evaluator interface {
	EvaluateInterview(ctx context.Context, iv models.Interview, answers []models.AnsweredQuestion) (*models.Evaluation, error)
}

// Enqueuer schedules background work.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload any) (string, error)
}

// Store is the persistence the service needs.
type Store interface {
	repository.InterviewRepo
	repository.QuestionRepo
	repository.ResponseRepo
}

type Service struct {
	store Store
	gen   QuestionGenerator
	eval  Evaluator
	jobs  Enqueuer
}

func NewService(store Store, gen QuestionGenerator, eval Evaluator) *Service {
	return &Service{store: store, gen: gen, eval: eval}
}

// EnqueueEvaluationOnSubmit makes Submit schedule an evaluation job.
func (s *Service) EnqueueEvaluationOnSubmit(q Enqueuer) {
	s.jobs = q
}

// CreateInput carries the fields a caller may set on a new interview.
type CreateInput struct {
	Title      string `json:"title"`
	Role       string `json:"role"`
	Company    string `json:"company"`
	Difficulty string `json:"difficulty"`
}

// ResponseInput is one answer in a bulk submission.
type ResponseInput struct {
	QuestionID   string `json:"question_id"`
	Answer       string `json:"answer"`
	ResponseTime int    `json:"response_time"`
}

// Detail is an interview with its questions and saved responses.
type Detail struct {
	Interview *models.Interview `json:"interview"`
	Questions []models.Question `json:"questions"`
	Responses []models.Response `json:"responses"`
}

func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*models.Interview, error) {
	role := strings.TrimSpace(in.Role)
	if role == "" {
		return nil, apperr.Validation("role is required")
	}
	diff := models.DifficultyIntermediate
	if strings.TrimSpace(in.Difficulty) != "" {
		d, ok := models.ParseDifficulty(in.Difficulty)
		if !ok {
			return nil, apperr.Validation("difficulty must be one of beginner, intermediate, advanced")
		}
		diff = d
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = role + " Interview"
	}

	iv := &models.Interview{
		UserID:     userID,
		Title:      title,
		Role:       role,
		Company:    strings.TrimSpace(in.Company),
		Difficulty: diff,
		Status:     models.StatusDraft,
	}
	id, err := s.store.CreateInterview(ctx, iv)
	if err != nil {
		return nil, apperr.Persistence("create interview", err)
	}

	created, err := s.store.GetInterview(ctx, id)
	if err != nil || created == nil {
		return nil, apperr.Persistence("load created interview", err)
	}
	logger.Info("interview created", slog.String("interview_id", id), slog.String("user_id", userID))
	return created, nil
}

// owned loads the interview and hides interviews of other users behind NotFound.
func (s *Service) owned(ctx context.Context, userID, id string) (*models.Interview, error) {
	iv, err := s.store.GetInterview(ctx, id)
	if err != nil {
		return nil, apperr.Persistence("load interview", err)
	}
	if iv == nil || iv.UserID != userID {
		return nil, apperr.NotFound("interview not found")
	}
	return iv, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (*Detail, error) {
	iv, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	qs, err := s.store.ListQuestions(ctx, id)
	if err != nil {
		return nil, apperr.Persistence("list questions", err)
	}
	rs, err := s.store.ListResponses(ctx, id)
	if err != nil {
		return nil, apperr.Persistence("list responses", err)
	}
	return &Detail{Interview: iv, Questions: nonNilQuestions(qs), Responses: nonNilResponses(rs)}, nil
}

func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]models.Interview, error) {
	ivs, err := s.store.ListInterviewsByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperr.Persistence("list interviews", err)
	}
	if ivs == nil {
		ivs = []models.Interview{}
	}
	return ivs, nil
}

// ChatContext returns the interview and, when questionID is set, the question
// the candidate is currently answering.
func (s *Service) ChatContext(ctx context.Context, userID, interviewID, questionID string) (*models.Interview, *models.Question, error) {
	iv, err := s.owned(ctx, userID, interviewID)
	if err != nil {
		return nil, nil, err
	}
	if questionID == "" {
		return iv, nil, nil
	}
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, nil, apperr.Persistence("load question", err)
	}
	if q == nil || q.InterviewID != interviewID {
		return nil, nil, apperr.NotFound("question not found")
	}
	return iv, q, nil
}

// GenerateQuestions returns the interview's questions, generating them on the
// first call. Later calls return the stored set without contacting the model.
func (s *Service) GenerateQuestions(ctx context.Context, userID, id string) ([]models.Question, error) {
	iv, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.ListQuestions(ctx, id)
	if err != nil {
		return nil, apperr.Persistence("list questions", err)
	}
	if len(existing) > 0 {
		return existing, nil
	}

	generated, err := s.gen.GenerateQuestions(ctx, *iv)
	if err != nil {
		logger.Warn("question generation failed", slog.String("interview_id", id), slog.Any("err", err))
		return nil, apperr.Generation("question generation failed", err)
	}

	stored, err := s.store.StoreGeneratedQuestions(ctx, id, generated)
	if errors.Is(err, repository.ErrDuplicate) {
		// another request stored its set first
		winner, lerr := s.store.ListQuestions(ctx, id)
		if lerr != nil {
			return nil, apperr.Persistence("list questions", lerr)
		}
		return winner, nil
	}
	if err != nil {
		return nil, apperr.Persistence("store questions", err)
	}

	metrics.QuestionsGenerated.Add(float64(len(stored)))
	logger.Info("questions generated", slog.String("interview_id", id), slog.Int("count", len(stored)))
	return stored, nil
}

// SaveResponse upserts the answer for one question and moves a ready interview to in_progress.
func (s *Service) SaveResponse(ctx context.Context, userID, interviewID, questionID, answer string, seconds int) (*models.Response, error) {
	iv, err := s.owned(ctx, userID, interviewID)
	if err != nil {
		return nil, err
	}
	if iv.Status == models.StatusCompleted {
		return nil, apperr.Conflict("interview already evaluated")
	}
	if strings.TrimSpace(answer) == "" {
		return nil, apperr.Validation("answer is required")
	}
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, apperr.Persistence("load question", err)
	}
	if q == nil || q.InterviewID != interviewID {
		return nil, apperr.NotFound("question not found")
	}

	saved, err := s.store.UpsertResponse(ctx, &models.Response{
		InterviewID:         interviewID,
		QuestionID:          questionID,
		UserID:              userID,
		Answer:              answer,
		ResponseTimeSeconds: max(seconds, 0),
	})
	if err != nil {
		return nil, apperr.Persistence("save response", err)
	}

	if iv.Status == models.StatusReady {
		if _, err := s.store.UpdateInterviewStatus(ctx, interviewID, []models.Status{models.StatusReady}, models.StatusInProgress); err != nil {
			return nil, apperr.Persistence("update interview status", err)
		}
	}
	return saved, nil
}

// Submit upserts every answered item and marks the interview submitted.
// Items with a blank answer are skipped.
func (s *Service) Submit(ctx context.Context, userID, interviewID string, items []ResponseInput) error {
	iv, err := s.owned(ctx, userID, interviewID)
	if err != nil {
		return err
	}
	switch iv.Status {
	case models.StatusCompleted:
		return apperr.Conflict("interview already evaluated")
	case models.StatusDraft:
		return apperr.Validation("questions have not been generated")
	}

	qs, err := s.store.ListQuestions(ctx, interviewID)
	if err != nil {
		return apperr.Persistence("list questions", err)
	}
	known := make(map[string]bool, len(qs))
	for _, q := range qs {
		known[q.ID] = true
	}
	for _, it := range items {
		if !known[it.QuestionID] {
			return apperr.NotFound(fmt.Sprintf("question %s not found", it.QuestionID))
		}
	}

	for _, it := range items {
		if strings.TrimSpace(it.Answer) == "" {
			continue
		}
		if _, err := s.store.UpsertResponse(ctx, &models.Response{
			InterviewID:         interviewID,
			QuestionID:          it.QuestionID,
			UserID:              userID,
			Answer:              it.Answer,
			ResponseTimeSeconds: max(it.ResponseTime, 0),
		}); err != nil {
			return apperr.Persistence("save response", err)
		}
	}

	if err := s.store.MarkSubmitted(ctx, interviewID, db.Now()); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return apperr.Conflict("interview already evaluated")
		}
		return apperr.Persistence("mark submitted", err)
	}
	logger.Info("interview submitted", slog.String("interview_id", interviewID), slog.Int("items", len(items)))

	if s.jobs != nil {
		payload := EvaluatePayload{InterviewID: interviewID, UserID: userID}
		if _, err := s.jobs.Enqueue(ctx, JobEvaluate, payload); err != nil {
			// the caller can still evaluate synchronously
			logger.Error("enqueue evaluation failed", slog.String("interview_id", interviewID), slog.Any("err", err))
		}
	}
	return nil
}

// Evaluate scores the interview once. A completed interview is never
// re-evaluated; its stored evaluation is returned instead, so a caller racing
// the queued evaluation still gets the result that won.
func (s *Service) Evaluate(ctx context.Context, userID, interviewID string) (*models.Evaluation, error) {
	iv, err := s.owned(ctx, userID, interviewID)
	if err != nil {
		return nil, err
	}
	switch iv.Status {
	case models.StatusCompleted:
		return storedEvaluation(iv)
	case models.StatusDraft:
		return nil, apperr.Validation("questions have not been generated")
	}

	answered, err := s.store.ListAnswered(ctx, interviewID)
	if err != nil {
		return nil, apperr.Persistence("list responses", err)
	}
	if len(answered) == 0 {
		return nil, apperr.Validation("no responses to evaluate")
	}

	ev, err := s.eval.EvaluateInterview(ctx, *iv, answered)
	if err != nil {
		logger.Warn("evaluation failed", slog.String("interview_id", interviewID), slog.Any("err", err))
		return nil, apperr.Generation("evaluation failed", err)
	}

	if err := s.store.SaveEvaluation(ctx, interviewID, *ev, db.Now()); err != nil {
		if errors.Is(err, repository.ErrStale) {
			logger.Info("evaluation lost to a concurrent one", slog.String("interview_id", interviewID))
			iv, err := s.owned(ctx, userID, interviewID)
			if err != nil {
				return nil, err
			}
			return storedEvaluation(iv)
		}
		return nil, apperr.Persistence("save evaluation", err)
	}

	metrics.EvaluationsCompleted.Inc()
	logger.Info("interview evaluated", slog.String("interview_id", interviewID), slog.Int("overall_score", ev.OverallScore))
	return ev, nil
}

// Delete removes responses, then questions, then the interview. It stops at
// the first failing step and names it in the error.
func (s *Service) Delete(ctx context.Context, userID, interviewID string) error {
	if _, err := s.owned(ctx, userID, interviewID); err != nil {
		return err
	}
	if err := s.store.DeleteResponsesByInterview(ctx, interviewID); err != nil {
		return apperr.Persistence("delete responses", err)
	}
	if err := s.store.DeleteQuestionsByInterview(ctx, interviewID); err != nil {
		return apperr.Persistence("delete questions", err)
	}
	if err := s.store.DeleteInterview(ctx, interviewID); err != nil {
		return apperr.Persistence("delete interview", err)
	}
	logger.Info("interview deleted", slog.String("interview_id", interviewID))
	return nil
}

func storedEvaluation(iv *models.Interview) (*models.Evaluation, error) {
	if iv.Evaluation == nil {
		return nil, apperr.Conflict("interview already evaluated")
	}
	return iv.Evaluation, nil
}

func nonNilQuestions(qs []models.Question) []models.Question {
	if qs == nil {
		return []models.Question{}
	}
	return qs
}

func nonNilResponses(rs []models.Response) []models.Response {
	if rs == nil {
		return []models.Response{}
	}
	return rs
}
