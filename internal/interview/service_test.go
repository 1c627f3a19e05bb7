package interview_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/garnizeh/mockinterview/internal/apperr"
	"github.com/garnizeh/mockinterview/internal/interview"
	"github.com/garnizeh/mockinterview/internal/models"
	"github.com/garnizeh/mockinterview/pkg/repository/mock"
)

type fakeGenerator struct {
	calls atomic.Int32
	n     int
	err   error
}

func (f *fakeGenerator) GenerateQuestions(ctx context.Context, iv models.Interview) ([]models.GeneratedQuestion, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	cats := []models.Category{models.CategoryTechnical, models.CategoryBehavioral, models.CategorySituational, models.CategoryCompanySpecific}
	out := make([]models.GeneratedQuestion, f.n)
	for i := range out {
		out[i] = models.GeneratedQuestion{
			Text:       fmt.Sprintf("Question %d for %s", i, iv.Role),
			Category:   cats[i%len(cats)],
			Difficulty: iv.Difficulty,
		}
	}
	return out, nil
}

type fakeEvaluator struct {
	calls atomic.Int32
	err   error
	seen  int
}

func (f *fakeEvaluator) EvaluateInterview(ctx context.Context, iv models.Interview, answers []models.AnsweredQuestion) (*models.Evaluation, error) {
	f.calls.Add(1)
	f.seen = len(answers)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Evaluation{
		OverallScore:        78,
		CategoryScores:      models.CategoryScores{Technical: 80, Communication: 75, ProblemSolving: 70, CulturalFit: 90},
		Strengths:           []string{"clear structure"},
		AreasForImprovement: []string{"more detail"},
		DetailedFeedback:    "solid",
		Recommendations:     []string{"practice system design"},
	}, nil
}

type fakeQueue struct {
	jobs []string
}

func (q *fakeQueue) Enqueue(ctx context.Context, jobType string, payload any) (string, error) {
	q.jobs = append(q.jobs, jobType)
	return "job-1", nil
}

type fixture struct {
	store *mock.Store
	gen   *fakeGenerator
	eval  *fakeEvaluator
	svc   *interview.Service
}

func newFixture() *fixture {
	f := &fixture{store: mock.New(), gen: &fakeGenerator{n: 10}, eval: &fakeEvaluator{}}
	f.svc = interview.NewService(f.store, f.gen, f.eval)
	return f
}

func (f *fixture) create(t *testing.T, userID string) *models.Interview {
	t.Helper()
	iv, err := f.svc.Create(context.Background(), userID, interview.CreateInput{Role: "Backend Engineer", Company: "Acme"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return iv
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, got, err)
	}
}

func TestCreate_Defaults(t *testing.T) {
	f := newFixture()
	iv := f.create(t, "u1")
	if iv.Title != "Backend Engineer Interview" {
		t.Errorf("unexpected default title %q", iv.Title)
	}
	if iv.Difficulty != models.DifficultyIntermediate || iv.Status != models.StatusDraft {
		t.Errorf("unexpected defaults: %+v", iv)
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Create(ctx, "u1", interview.CreateInput{Role: "  "})
	requireKind(t, err, apperr.KindValidation)
	_, err = f.svc.Create(ctx, "u1", interview.CreateInput{Role: "SRE", Difficulty: "expert"})
	requireKind(t, err, apperr.KindValidation)

	iv, err := f.svc.Create(ctx, "u1", interview.CreateInput{Role: "SRE", Difficulty: "Advanced"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if iv.Difficulty != models.DifficultyAdvanced {
		t.Errorf("difficulty not normalised: %s", iv.Difficulty)
	}
}

func TestGenerateQuestions_Idempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	iv := f.create(t, "u1")

	first, err := f.svc.GenerateQuestions(ctx, "u1", iv.ID)
	if err != nil {
		t.Fatalf("GenerateQuestions: %v", err)
	}
	second, err := f.svc.GenerateQuestions(ctx, "u1", iv.ID)
	if err != nil {
		t.Fatalf("GenerateQuestions again: %v", err)
	}
	if f.gen.calls.Load() != 1 {
		t.Fatalf("generator called %d times, want 1", f.gen.calls.Load())
	}
	if len(first) != 10 || len(second) != 10 {
		t.Fatalf("unexpected counts %d/%d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || second[i].OrderIndex != i {
			t.Fatalf("question %d differs between calls", i)
		}
		if !second[i].Category.Valid() {
			t.Fatalf("invalid category %q", second[i].Category)
		}
	}

	got, _ := f.store.GetInterview(ctx, iv.ID)
	if got.Status != models.StatusReady {
		t.Fatalf("status = %s, want ready", got.Status)
	}
}

func TestGenerateQuestions_FailureLeavesDraft(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	iv := f.create(t, "u1")
	f.gen.err = errors.New("model offline")

	_, err := f.svc.GenerateQuestions(ctx, "u1", iv.ID)
	requireKind(t, err, apperr.KindUpstreamGeneration)

	got, _ := f.store.GetInterview(ctx, iv.ID)
	if got.Status != models.StatusDraft {
		t.Fatalf("status = %s, want draft", got.Status)
	}
	if n := f.store.CountQuestions(iv.ID); n != 0 {
		t.Fatalf("expected no stored questions, got %d", n)
	}
}

func TestGenerateQuestions_NotOwned(t *testing.T) {
	f := newFixture()
	iv := f.create(t, "u1")
	_, err := f.svc.GenerateQuestions(context.Background(), "u2", iv.ID)
	requireKind(t, err, apperr.KindNotFound)
	if f.gen.calls.Load() != 0 {
		t.Fatalf("generator must not run for a foreign interview")
	}
}

func TestSaveResponse_UpsertAndStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	iv := f.create(t, "u1")
	qs, err := f.svc.GenerateQuestions(ctx, "u1", iv.ID)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.SaveResponse(ctx, "u1", iv.ID, qs[0].ID, "first draft", 12); err != nil {
		t.Fatalf("SaveResponse: %v", err)
	}
	r, err := f.svc.SaveResponse(ctx, "u1", iv.ID, qs[0].ID, "final answer", -5)
	if err != nil {
		t.Fatalf("SaveResponse again: %v", err)
	}
	if r.Answer != "final answer" || r.ResponseTimeSeconds != 0 {
		t.Fatalf("unexpected response %+v", r)
	}
	if n := f.store.CountResponses(iv.ID); n != 1 {
		t.Fatalf("expected one response row, got %d", n)
	}

	got, _ := f.store.GetInterview(ctx, iv.ID)
	if got.Status != models.StatusInProgress {
		t.Fatalf("status = %s, want in_progress", got.Status)
	}
}

func TestSaveResponse_Rejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	iv := f.create(t, "u1")
	other := f.create(t, "u1")
	qs, _ := f.svc.GenerateQuestions(ctx, "u1", iv.ID)
	otherQs, _ := f.svc.GenerateQuestions(ctx, "u1", other.ID)

	_, err := f.svc.SaveResponse(ctx, "u1", iv.ID, qs[0].ID, "   ", 3)
	requireKind(t, err, apperr.KindValidation)

	_, err = f.svc.SaveResponse(ctx, "u1", iv.ID, otherQs[0].ID, "answer", 3)
	requireKind(t, err, apperr.KindNotFound)

	_, err = f.svc.SaveResponse(ctx, "u2", iv.ID, qs[0].ID, "answer", 3)
	requireKind(t, err, apperr.KindNotFound)
}

func answerAll(t *testing.T, f *fixture, userID string, iv *models.Interview) []models.Question {
	t.Helper()
	ctx := context.Background()
	qs, err := f.svc.GenerateQuestions(ctx, userID, iv.ID)
	if err != nil {
		t.Fatal(err)
	}
	items := make([]interview.ResponseInput, 0, len(qs))
	for i, q := range qs {
		items = append(items, interview.ResponseInput{QuestionID: q.ID, Answer: "answer " + q.ID, ResponseTime: 30 + i})
	}
	if err := f.svc.Submit(ctx, userID, iv.ID, items); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return qs
}

func TestSubmitAndEvaluate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	iv := f.create(t, "u1")
	qs := answerAll(t, f, "u1", iv)

	got, _ := f.store.GetInterview(ctx, iv.ID)
	if got.Status != models.StatusSubmitted || got.Submitted == nil {
		t.Fatalf("expected submitted with timestamp, got %+v", got)
	}

	ev, err := f.svc.Evaluate(ctx, "u1", iv.ID)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if f.eval.seen != len(qs) {
		t.Fatalf("evaluator saw %d answers, want %d", f.eval.seen, len(qs))
	}
	for _, s := range []int{ev.OverallScore, ev.CategoryScores.Technical, ev.CategoryScores.Communication, ev.CategoryScores.ProblemSolving, ev.CategoryScores.CulturalFit} {
		if s < 0 || s > 100 {
			t.Fatalf("score out of range: %d", s)
		}
	}

	got, _ = f.store.GetInterview(ctx, iv.ID)
	if got.Status != models.StatusCompleted || got.Completed == nil || got.Evaluation == nil {
		t.Fatalf("expected completed interview with evaluation, got %+v", got)
	}

	again, err := f.svc.Evaluate(ctx, "u1", iv.ID)
	if err != nil {
		t.Fatalf("Evaluate on completed interview: %v", err)
	}
	if again.OverallScore != ev.OverallScore || again.DetailedFeedback != ev.DetailedFeedback {
		t.Fatalf("expected stored evaluation, got %+v", again)
	}
	if f.eval.calls.Load() != 1 {
		t.Fatalf("completed interview must not be re-evaluated")
	}

	err = f.svc.Submit(ctx, "u1", iv.ID, nil)
	requireKind(t, err, apperr.KindConflict)
}

// inlineQueue runs the evaluation job as soon as it is enqueued, so the
// worker always finishes before the client's own Evaluate call.
type inlineQueue struct {
	svc *interview.Service
	err error
}

func (q *inlineQueue) Enqueue(ctx context.Context, jobType string, payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	q.err = q.svc.HandleEvaluateJob(ctx, b)
	return "job-1", nil
}

func TestEvaluate_AfterQueuedEvaluationReturnsStoredResult(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	q := &inlineQueue{svc: f.svc}
	f.svc.EnqueueEvaluationOnSubmit(q)
	iv := f.create(t, "u1")
	answerAll(t, f, "u1", iv)
	if q.err != nil {
		t.Fatalf("queued evaluation: %v", q.err)
	}

	ev, err := f.svc.Evaluate(ctx, "u1", iv.ID)
	if err != nil {
		t.Fatalf("client Evaluate after queued evaluation: %v", err)
	}
	if ev == nil || ev.OverallScore != 78 {
		t.Fatalf("expected the stored evaluation, got %+v", ev)
	}
	if n := f.eval.calls.Load(); n != 1 {
		t.Fatalf("evaluator called %d times, want 1", n)
	}
}

// racingEvaluator stores a competing evaluation before returning its own.
type racingEvaluator struct {
	store *mock.Store
}

func (r *racingEvaluator) EvaluateInterview(ctx context.Context, iv models.Interview, answers []models.AnsweredQuestion) (*models.Evaluation, error) {
	winner := models.Evaluation{OverallScore: 55, DetailedFeedback: "first"}
	if err := r.store.SaveEvaluation(ctx, iv.ID, winner, 1); err != nil {
		return nil, err
	}
	return &models.Evaluation{OverallScore: 99, DetailedFeedback: "second"}, nil
}

func TestEvaluate_LosingConcurrentSaveReturnsWinner(t *testing.T) {
	store := mock.New()
	svc := interview.NewService(store, &fakeGenerator{n: 8}, &racingEvaluator{store: store})
	f := &fixture{store: store, gen: &fakeGenerator{n: 8}, svc: svc}
	iv := f.create(t, "u1")
	answerAll(t, f, "u1", iv)

	ev, err := svc.Evaluate(context.Background(), "u1", iv.ID)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ev.OverallScore != 55 || ev.DetailedFeedback != "first" {
		t.Fatalf("expected the first stored evaluation to win, got %+v", ev)
	}
}

func TestSubmit_UnknownQuestion(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	iv := f.create(t, "u1")
	if _, err := f.svc.GenerateQuestions(ctx, "u1", iv.ID); err != nil {
		t.Fatal(err)
	}
	err := f.svc.Submit(ctx, "u1", iv.ID, []interview.ResponseInput{{QuestionID: "nope", Answer: "x"}})
	requireKind(t, err, apperr.KindNotFound)
	if n := f.store.CountResponses(iv.ID); n != 0 {
		t.Fatalf("nothing should be saved, got %d", n)
	}
}

func TestEvaluate_ZeroResponses(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	iv := f.create(t, "u1")

	_, err := f.svc.Evaluate(ctx, "u1", iv.ID)
	requireKind(t, err, apperr.KindValidation)

	if _, err := f.svc.GenerateQuestions(ctx, "u1", iv.ID); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.Evaluate(ctx, "u1", iv.ID)
	requireKind(t, err, apperr.KindValidation)
	if f.eval.calls.Load() != 0 {
		t.Fatalf("evaluator must not run without responses")
	}
}

func TestEvaluate_UpstreamFailureKeepsStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	iv := f.create(t, "u1")
	answerAll(t, f, "u1", iv)
	f.eval.err = errors.New("timeout")

	_, err := f.svc.Evaluate(ctx, "u1", iv.ID)
	requireKind(t, err, apperr.KindUpstreamGeneration)

	got, _ := f.store.GetInterview(ctx, iv.ID)
	if got.Status != models.StatusSubmitted || got.Evaluation != nil {
		t.Fatalf("status changed after failed evaluation: %+v", got)
	}
}

func TestDelete_Cascade(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	iv := f.create(t, "u1")
	answerAll(t, f, "u1", iv)

	if err := f.svc.Delete(ctx, "u1", iv.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if f.store.CountQuestions(iv.ID) != 0 || f.store.CountResponses(iv.ID) != 0 {
		t.Fatalf("child rows left behind")
	}
	got, _ := f.store.GetInterview(ctx, iv.ID)
	if got != nil {
		t.Fatalf("interview still present")
	}

	var order []string
	for _, c := range f.store.Calls {
		if strings.HasPrefix(c, "Delete") {
			order = append(order, c)
		}
	}
	want := []string{"DeleteResponsesByInterview", "DeleteQuestionsByInterview", "DeleteInterview"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("delete order = %v, want %v", order, want)
	}
}

func TestDelete_OtherUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	iv := f.create(t, "u1")
	qs := answerAll(t, f, "u1", iv)

	err := f.svc.Delete(ctx, "u2", iv.ID)
	requireKind(t, err, apperr.KindNotFound)
	if f.store.CountQuestions(iv.ID) != len(qs) || f.store.CountResponses(iv.ID) != len(qs) {
		t.Fatalf("rows touched by foreign delete")
	}
}

func TestDelete_StopsAtFailingStep(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	iv := f.create(t, "u1")
	answerAll(t, f, "u1", iv)
	f.store.Fail["DeleteQuestionsByInterview"] = errors.New("disk full")

	err := f.svc.Delete(ctx, "u1", iv.ID)
	requireKind(t, err, apperr.KindPersistence)
	if !strings.Contains(err.Error(), "delete questions") {
		t.Fatalf("error should name the failing step: %v", err)
	}
	got, _ := f.store.GetInterview(ctx, iv.ID)
	if got == nil {
		t.Fatalf("interview must survive a failed cascade")
	}
}

func TestSubmit_EnqueuesEvaluation(t *testing.T) {
	f := newFixture()
	q := &fakeQueue{}
	f.svc.EnqueueEvaluationOnSubmit(q)
	iv := f.create(t, "u1")
	answerAll(t, f, "u1", iv)

	if len(q.jobs) != 1 || q.jobs[0] != interview.JobEvaluate {
		t.Fatalf("unexpected jobs %v", q.jobs)
	}
}

func TestHandleEvaluateJob(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	iv := f.create(t, "u1")
	answerAll(t, f, "u1", iv)

	payload := []byte(fmt.Sprintf(`{"interview_id":%q,"user_id":"u1"}`, iv.ID))
	if err := f.svc.HandleEvaluateJob(ctx, payload); err != nil {
		t.Fatalf("HandleEvaluateJob: %v", err)
	}
	// already completed: the job finishes without error
	if err := f.svc.HandleEvaluateJob(ctx, payload); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if f.eval.calls.Load() != 1 {
		t.Fatalf("evaluator calls = %d, want 1", f.eval.calls.Load())
	}

	if err := f.svc.HandleEvaluateJob(ctx, []byte(`{`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestHandleEvaluateJob_RetryableFailure(t *testing.T) {
	f := newFixture()
	iv := f.create(t, "u1")
	answerAll(t, f, "u1", iv)
	f.eval.err = errors.New("model offline")

	payload := []byte(fmt.Sprintf(`{"interview_id":%q,"user_id":"u1"}`, iv.ID))
	err := f.svc.HandleEvaluateJob(context.Background(), payload)
	requireKind(t, err, apperr.KindUpstreamGeneration)
}

func TestChatContext(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	iv := f.create(t, "u1")
	other := f.create(t, "u1")
	qs, _ := f.svc.GenerateQuestions(ctx, "u1", iv.ID)
	otherQs, _ := f.svc.GenerateQuestions(ctx, "u1", other.ID)

	gotIv, q, err := f.svc.ChatContext(ctx, "u1", iv.ID, "")
	if err != nil || gotIv.ID != iv.ID || q != nil {
		t.Fatalf("without question: %v %v %v", gotIv, q, err)
	}
	_, q, err = f.svc.ChatContext(ctx, "u1", iv.ID, qs[2].ID)
	if err != nil || q == nil || q.ID != qs[2].ID {
		t.Fatalf("with question: %v %v", q, err)
	}
	_, _, err = f.svc.ChatContext(ctx, "u1", iv.ID, otherQs[0].ID)
	requireKind(t, err, apperr.KindNotFound)
	_, _, err = f.svc.ChatContext(ctx, "u2", iv.ID, "")
	requireKind(t, err, apperr.KindNotFound)
}
