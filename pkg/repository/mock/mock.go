// Package mock provides an in-memory implementation of the repository
// interfaces for tests, with per-operation failure injection.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/mockinterview/internal/models"
	"github.com/garnizeh/mockinterview/pkg/repository"
)

type responseKey struct {
	interviewID, questionID string
}

// Store is a concurrency-safe in-memory repository. Set an entry in Fail to
// make the named operation return that error, e.g. Fail["DeleteQuestionsByInterview"].
type Store struct {
	mu         sync.Mutex
	users      map[string]models.User
	profiles   map[string]models.Profile
	interviews map[string]models.Interview
	questions  map[string][]models.Question
	responses  map[responseKey]models.Response
	schemas    map[string]models.Schema
	templates  map[string]models.Template

	Fail  map[string]error
	Calls []string
}

var (
	_ repository.UserRepo      = (*Store)(nil)
	_ repository.ProfileRepo   = (*Store)(nil)
	_ repository.InterviewRepo = (*Store)(nil)
	_ repository.QuestionRepo  = (*Store)(nil)
	_ repository.ResponseRepo  = (*Store)(nil)
	_ repository.SchemaRepo    = (*Store)(nil)
	_ repository.TemplateRepo  = (*Store)(nil)
)

func New() *Store {
	return &Store{
		users:      map[string]models.User{},
		profiles:   map[string]models.Profile{},
		interviews: map[string]models.Interview{},
		questions:  map[string][]models.Question{},
		responses:  map[responseKey]models.Response{},
		schemas:    map[string]models.Schema{},
		templates:  map[string]models.Template{},
		Fail:       map[string]error{},
	}
}

// call records the operation and returns its injected failure, if any. Callers hold mu.
func (s *Store) call(op string) error {
	s.Calls = append(s.Calls, op)
	return s.Fail[op]
}

func now() int64 { return time.Now().UnixMilli() }

func (s *Store) CreateUser(ctx context.Context, u *models.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("CreateUser"); err != nil {
		return "", err
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return "", repository.ErrDuplicate
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Created = now()
	s.users[u.ID] = *u
	return u.ID, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("GetUserByID"); err != nil {
		return nil, err
	}
	if u, ok := s.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("GetUserByEmail"); err != nil {
		return nil, err
	}
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateProfile(ctx context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("CreateProfile"); err != nil {
		return err
	}
	p.Updated = now()
	s.profiles[p.UserID] = *p
	return nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("GetProfile"); err != nil {
		return nil, err
	}
	if p, ok := s.profiles[userID]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *Store) UpdateProfile(ctx context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("UpdateProfile"); err != nil {
		return err
	}
	p.Updated = now()
	s.profiles[p.UserID] = *p
	return nil
}

func (s *Store) CreateInterview(ctx context.Context, iv *models.Interview) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("CreateInterview"); err != nil {
		return "", err
	}
	if iv.ID == "" {
		iv.ID = uuid.NewString()
	}
	if iv.Status == "" {
		iv.Status = models.StatusDraft
	}
	iv.Created = now()
	iv.Updated = iv.Created
	s.interviews[iv.ID] = *iv
	return iv.ID, nil
}

func (s *Store) GetInterview(ctx context.Context, id string) (*models.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("GetInterview"); err != nil {
		return nil, err
	}
	if iv, ok := s.interviews[id]; ok {
		return &iv, nil
	}
	return nil, nil
}

func (s *Store) ListInterviewsByUser(ctx context.Context, userID string, limit, offset int) ([]models.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("ListInterviewsByUser"); err != nil {
		return nil, err
	}
	out := []models.Interview{}
	for _, iv := range s.interviews {
		if iv.UserID == userID {
			out = append(out, iv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created > out[j].Created })
	if offset > len(out) {
		return []models.Interview{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpdateInterviewStatus(ctx context.Context, id string, from []models.Status, to models.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("UpdateInterviewStatus"); err != nil {
		return false, err
	}
	iv, ok := s.interviews[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if iv.Status == f {
			iv.Status = to
			iv.Updated = now()
			s.interviews[id] = iv
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) MarkSubmitted(ctx context.Context, id string, at int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("MarkSubmitted"); err != nil {
		return err
	}
	iv, ok := s.interviews[id]
	if !ok || iv.Status == models.StatusCompleted {
		return repository.ErrStale
	}
	iv.Status = models.StatusSubmitted
	iv.Submitted = &at
	iv.Updated = at
	s.interviews[id] = iv
	return nil
}

func (s *Store) SaveEvaluation(ctx context.Context, id string, ev models.Evaluation, at int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("SaveEvaluation"); err != nil {
		return err
	}
	iv, ok := s.interviews[id]
	if !ok || iv.Status == models.StatusCompleted {
		return repository.ErrStale
	}
	iv.Status = models.StatusCompleted
	iv.Evaluation = &ev
	iv.Completed = &at
	iv.Updated = at
	s.interviews[id] = iv
	return nil
}

func (s *Store) DeleteInterview(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("DeleteInterview"); err != nil {
		return err
	}
	delete(s.interviews, id)
	return nil
}

func (s *Store) StoreGeneratedQuestions(ctx context.Context, interviewID string, qs []models.GeneratedQuestion) ([]models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("StoreGeneratedQuestions"); err != nil {
		return nil, err
	}
	if len(s.questions[interviewID]) > 0 {
		return nil, repository.ErrDuplicate
	}
	ts := now()
	out := make([]models.Question, 0, len(qs))
	for i, g := range qs {
		out = append(out, models.Question{
			ID:                uuid.NewString(),
			InterviewID:       interviewID,
			Text:              g.Text,
			Category:          g.Category,
			Difficulty:        g.Difficulty,
			OrderIndex:        i,
			ExpectedAnswer:    g.ExpectedAnswer,
			FollowUpQuestions: g.FollowUpQuestions,
			Created:           ts,
		})
	}
	s.questions[interviewID] = out
	if iv, ok := s.interviews[interviewID]; ok {
		iv.Status = models.StatusReady
		iv.Updated = ts
		s.interviews[interviewID] = iv
	}
	return append([]models.Question(nil), out...), nil
}

func (s *Store) ListQuestions(ctx context.Context, interviewID string) ([]models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("ListQuestions"); err != nil {
		return nil, err
	}
	return append([]models.Question{}, s.questions[interviewID]...), nil
}

func (s *Store) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("GetQuestion"); err != nil {
		return nil, err
	}
	for _, qs := range s.questions {
		for _, q := range qs {
			if q.ID == id {
				return &q, nil
			}
		}
	}
	return nil, nil
}

func (s *Store) DeleteQuestionsByInterview(ctx context.Context, interviewID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("DeleteQuestionsByInterview"); err != nil {
		return err
	}
	delete(s.questions, interviewID)
	return nil
}

func (s *Store) UpsertResponse(ctx context.Context, r *models.Response) (*models.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("UpsertResponse"); err != nil {
		return nil, err
	}
	k := responseKey{r.InterviewID, r.QuestionID}
	ts := now()
	stored, ok := s.responses[k]
	if !ok {
		stored = models.Response{ID: uuid.NewString(), InterviewID: r.InterviewID, QuestionID: r.QuestionID, UserID: r.UserID, Created: ts}
	}
	stored.Answer = r.Answer
	stored.ResponseTimeSeconds = r.ResponseTimeSeconds
	stored.Updated = ts
	s.responses[k] = stored
	return &stored, nil
}

func (s *Store) ListResponses(ctx context.Context, interviewID string) ([]models.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("ListResponses"); err != nil {
		return nil, err
	}
	out := []models.Response{}
	for k, r := range s.responses {
		if k.interviewID == interviewID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created < out[j].Created })
	return out, nil
}

func (s *Store) ListAnswered(ctx context.Context, interviewID string) ([]models.AnsweredQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("ListAnswered"); err != nil {
		return nil, err
	}
	out := []models.AnsweredQuestion{}
	for _, q := range s.questions[interviewID] {
		if r, ok := s.responses[responseKey{interviewID, q.ID}]; ok {
			out = append(out, models.AnsweredQuestion{Question: q, Response: r})
		}
	}
	return out, nil
}

func (s *Store) DeleteResponsesByInterview(ctx context.Context, interviewID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("DeleteResponsesByInterview"); err != nil {
		return err
	}
	for k := range s.responses {
		if k.interviewID == interviewID {
			delete(s.responses, k)
		}
	}
	return nil
}

func (s *Store) CreateSchema(ctx context.Context, version, description, schemaJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("CreateSchema"); err != nil {
		return err
	}
	ts := now()
	s.schemas[version] = models.Schema{Version: version, Description: description, SchemaJSON: schemaJSON, Created: ts, Updated: ts}
	return nil
}

func (s *Store) GetSchemaByVersion(ctx context.Context, version string) (*models.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("GetSchemaByVersion"); err != nil {
		return nil, err
	}
	if sc, ok := s.schemas[version]; ok {
		return &sc, nil
	}
	return nil, nil
}

func (s *Store) ListSchemas(ctx context.Context) ([]models.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("ListSchemas"); err != nil {
		return nil, err
	}
	out := make([]models.Schema, 0, len(s.schemas))
	for _, sc := range s.schemas {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (s *Store) DeleteSchema(ctx context.Context, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("DeleteSchema"); err != nil {
		return err
	}
	delete(s.schemas, version)
	return nil
}

func templateKey(name, version string) string { return name + "/" + version }

func (s *Store) CreateTemplate(ctx context.Context, name, version, templateText string, schemaVersion *string, metadata *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("CreateTemplate"); err != nil {
		return err
	}
	ts := now()
	s.templates[templateKey(name, version)] = models.Template{
		Name: name, Version: version, TemplateTxt: templateText, SchemaVer: schemaVersion, Metadata: metadata, Created: ts, Updated: ts,
	}
	return nil
}

func (s *Store) GetTemplate(ctx context.Context, name, version string) (*models.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("GetTemplate"); err != nil {
		return nil, err
	}
	if t, ok := s.templates[templateKey(name, version)]; ok {
		return &t, nil
	}
	return nil, nil
}

func (s *Store) ListTemplates(ctx context.Context) ([]models.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("ListTemplates"); err != nil {
		return nil, err
	}
	out := make([]models.Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return templateKey(out[i].Name, out[i].Version) < templateKey(out[j].Name, out[j].Version)
	})
	return out, nil
}

func (s *Store) DeleteTemplate(ctx context.Context, name, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("DeleteTemplate"); err != nil {
		return err
	}
	delete(s.templates, templateKey(name, version))
	return nil
}

// CountQuestions and CountResponses let tests assert on stored state without locking details.
func (s *Store) CountQuestions(interviewID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.questions[interviewID])
}

func (s *Store) CountResponses(interviewID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.responses {
		if k.interviewID == interviewID {
			n++
		}
	}
	return n
}
