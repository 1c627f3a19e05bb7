// Package collector holds the client-side state of answering an interview:
// one question at a time, typed or dictated drafts, and saved answers keyed
// by (interview, question).
package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/garnizeh/mockinterview/internal/interview"
	"github.com/garnizeh/mockinterview/internal/models"
	"github.com/garnizeh/mockinterview/internal/speech"
)

var (
	ErrNoQuestions  = errors.New("interview has no questions")
	ErrRecording    = errors.New("recording in progress")
	ErrNotRecording = errors.New("not recording")
	ErrFinished     = errors.New("interview already submitted")
)

// Backend persists answers and runs the evaluation.
type Backend interface {
	SaveResponse(ctx context.Context, interviewID, questionID, answer string, seconds int) error
	Submit(ctx context.Context, interviewID string, items []interview.ResponseInput) error
	Evaluate(ctx context.Context, interviewID string) (*models.Evaluation, error)
}

// Key identifies one saved answer.
type Key struct {
	InterviewID string
	QuestionID  string
}

// Answer is what was last saved for a question.
type Answer struct {
	Text    string
	Seconds int
}

// Session is the state of one pass through an interview. It is not safe for
// concurrent use; the caller drives it from a single input loop.
type Session struct {
	interviewID string
	questions   []models.Question
	backend     Backend
	transcriber speech.Transcriber
	now         func() time.Time

	index      int
	draft      string
	answers    map[Key]Answer
	shown      map[string]time.Time
	recording  bool
	evaluation *models.Evaluation
}

type Option func(*Session)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithTranscriber sets the speech-to-text used by FinishRecording.
func WithTranscriber(t speech.Transcriber) Option {
	return func(s *Session) { s.transcriber = t }
}

func New(interviewID string, questions []models.Question, backend Backend, opts ...Option) (*Session, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	s := &Session{
		interviewID: interviewID,
		questions:   append([]models.Question(nil), questions...),
		backend:     backend,
		transcriber: speech.Stub{},
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.Reset()
	return s, nil
}

// Reset returns the session to its initial state: first question, no drafts,
// no saved answers, no evaluation.
func (s *Session) Reset() {
	s.index = 0
	s.draft = ""
	s.answers = make(map[Key]Answer, len(s.questions))
	s.shown = make(map[string]time.Time, len(s.questions))
	s.recording = false
	s.evaluation = nil
	s.show()
}

// Restore loads answers saved earlier, e.g. when resuming an interview.
func (s *Session) Restore(responses []models.Response) {
	for _, r := range responses {
		if r.InterviewID != "" && r.InterviewID != s.interviewID {
			continue
		}
		s.answers[s.key(r.QuestionID)] = Answer{Text: r.Answer, Seconds: r.ResponseTimeSeconds}
	}
	s.loadDraft()
}

func (s *Session) key(questionID string) Key {
	return Key{InterviewID: s.interviewID, QuestionID: questionID}
}

func (s *Session) show() {
	q := s.questions[s.index]
	if _, ok := s.shown[q.ID]; !ok {
		s.shown[q.ID] = s.now()
	}
	s.loadDraft()
}

func (s *Session) loadDraft() {
	s.draft = s.answers[s.key(s.questions[s.index].ID)].Text
}

func (s *Session) Current() models.Question { return s.questions[s.index] }
func (s *Session) Index() int               { return s.index }
func (s *Session) Len() int                 { return len(s.questions) }
func (s *Session) IsLast() bool             { return s.index == len(s.questions)-1 }
func (s *Session) Draft() string            { return s.draft }
func (s *Session) Recording() bool          { return s.recording }

// Evaluation returns the result once the session has been submitted.
func (s *Session) Evaluation() *models.Evaluation { return s.evaluation }

// Saved returns the saved answer for a question.
func (s *Session) Saved(questionID string) (Answer, bool) {
	a, ok := s.answers[s.key(questionID)]
	return a, ok
}

// SetDraft replaces the typed answer for the current question.
func (s *Session) SetDraft(text string) error {
	if err := s.editable(); err != nil {
		return err
	}
	s.draft = text
	return nil
}

func (s *Session) StartRecording() error {
	if err := s.editable(); err != nil {
		return err
	}
	s.recording = true
	return nil
}

// FinishRecording transcribes the clip and appends the text to the draft.
// The recording flag is cleared even when transcription fails.
func (s *Session) FinishRecording(ctx context.Context, audio io.Reader) (string, error) {
	if !s.recording {
		return "", ErrNotRecording
	}
	s.recording = false
	text, err := s.transcriber.Transcribe(ctx, audio)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	if strings.TrimSpace(s.draft) == "" {
		s.draft = text
	} else {
		s.draft = strings.TrimRight(s.draft, " ") + " " + text
	}
	return text, nil
}

func (s *Session) editable() error {
	if s.evaluation != nil {
		return ErrFinished
	}
	if s.recording {
		return ErrRecording
	}
	return nil
}

// Next saves the current draft and moves forward. On the last question it
// submits the interview and returns the evaluation.
func (s *Session) Next(ctx context.Context) (*models.Evaluation, error) {
	if err := s.editable(); err != nil {
		return nil, err
	}
	if s.IsLast() {
		return s.Submit(ctx)
	}
	if err := s.save(ctx); err != nil {
		return nil, err
	}
	s.index++
	s.show()
	return nil, nil
}

// Prev moves back one question and reloads its saved answer. Unsaved text
// on the current question is dropped; saved answers are never deleted.
func (s *Session) Prev() (bool, error) {
	if err := s.editable(); err != nil {
		return false, err
	}
	if s.index == 0 {
		return false, nil
	}
	s.index--
	s.show()
	return true, nil
}

// Submit saves the current draft, sends every saved answer and evaluates.
func (s *Session) Submit(ctx context.Context) (*models.Evaluation, error) {
	if err := s.editable(); err != nil {
		return nil, err
	}
	if err := s.save(ctx); err != nil {
		return nil, err
	}

	items := make([]interview.ResponseInput, 0, len(s.answers))
	for _, q := range s.questions {
		if a, ok := s.answers[s.key(q.ID)]; ok {
			items = append(items, interview.ResponseInput{QuestionID: q.ID, Answer: a.Text, ResponseTime: a.Seconds})
		}
	}
	if err := s.backend.Submit(ctx, s.interviewID, items); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	ev, err := s.backend.Evaluate(ctx, s.interviewID)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	s.evaluation = ev
	return ev, nil
}

// save upserts the draft for the current question, retrying once before
// giving up. A blank draft is not saved.
func (s *Session) save(ctx context.Context) error {
	if strings.TrimSpace(s.draft) == "" {
		return nil
	}
	q := s.questions[s.index]
	seconds := int(math.Floor(s.now().Sub(s.shown[q.ID]).Seconds()))
	seconds = max(seconds, 0)

	err := s.backend.SaveResponse(ctx, s.interviewID, q.ID, s.draft, seconds)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("save answer: %w", err)
		}
		err = s.backend.SaveResponse(ctx, s.interviewID, q.ID, s.draft, seconds)
	}
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	s.answers[s.key(q.ID)] = Answer{Text: s.draft, Seconds: seconds}
	return nil
}
