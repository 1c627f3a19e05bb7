package repository

import (
	"context"
	"errors"

	"github.com/garnizeh/mockinterview/internal/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
// Getters return (nil, nil) when the row does not exist.

var (
	// ErrDuplicate is returned when a unique key rejects an insert.
	ErrDuplicate = errors.New("duplicate key")
	// ErrStale is returned when a conditional update matched no row.
	ErrStale = errors.New("row not in expected state")
)

type UserRepo interface {
	CreateUser(ctx context.Context, u *models.User) (string, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type ProfileRepo interface {
	CreateProfile(ctx context.Context, p *models.Profile) error
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, p *models.Profile) error
}

type InterviewRepo interface {
	CreateInterview(ctx context.Context, iv *models.Interview) (string, error)
	GetInterview(ctx context.Context, id string) (*models.Interview, error)
	ListInterviewsByUser(ctx context.Context, userID string, limit, offset int) ([]models.Interview, error)
	UpdateInterviewStatus(ctx context.Context, id string, from []models.Status, to models.Status) (bool, error)
	MarkSubmitted(ctx context.Context, id string, at int64) error
	// SaveEvaluation stores the evaluation and sets status completed in one statement.
	// It returns ErrStale when the interview is already completed.
	SaveEvaluation(ctx context.Context, id string, ev models.Evaluation, at int64) error
	DeleteInterview(ctx context.Context, id string) error
}

type QuestionRepo interface {
	// StoreGeneratedQuestions inserts all questions with order index 0..N-1 and sets
	// the interview status to ready, atomically. It returns ErrDuplicate when another
	// writer already stored questions for the interview.
	StoreGeneratedQuestions(ctx context.Context, interviewID string, qs []models.GeneratedQuestion) ([]models.Question, error)
	ListQuestions(ctx context.Context, interviewID string) ([]models.Question, error)
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	DeleteQuestionsByInterview(ctx context.Context, interviewID string) error
}

type ResponseRepo interface {
	// UpsertResponse writes the response keyed by (interview, question); last write wins.
	UpsertResponse(ctx context.Context, r *models.Response) (*models.Response, error)
	ListResponses(ctx context.Context, interviewID string) ([]models.Response, error)
	// ListAnswered joins responses with their questions in question order.
	ListAnswered(ctx context.Context, interviewID string) ([]models.AnsweredQuestion, error)
	DeleteResponsesByInterview(ctx context.Context, interviewID string) error
}

type SchemaRepo interface {
	CreateSchema(ctx context.Context, version, description, schemaJSON string) error
	GetSchemaByVersion(ctx context.Context, version string) (*models.Schema, error)
	ListSchemas(ctx context.Context) ([]models.Schema, error)
	DeleteSchema(ctx context.Context, version string) error
}

type TemplateRepo interface {
	CreateTemplate(ctx context.Context, name, version, templateText string, schemaVersion *string, metadata *string) error
	GetTemplate(ctx context.Context, name, version string) (*models.Template, error)
	ListTemplates(ctx context.Context) ([]models.Template, error)
	DeleteTemplate(ctx context.Context, name, version string) error
}
