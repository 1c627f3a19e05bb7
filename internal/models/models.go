package models

import "strings"

type Status string

const (
	StatusDraft      Status = "draft"
	StatusReady      Status = "ready"
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted"
	StatusCompleted  Status = "completed"
)

type Category string

const (
	CategoryTechnical       Category = "technical"
	CategoryBehavioral      Category = "behavioral"
	CategorySituational     Category = "situational"
	CategoryCompanySpecific Category = "company_specific"
)

// Valid reports whether c is one of the closed set of categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryTechnical, CategoryBehavioral, CategorySituational, CategoryCompanySpecific:
		return true
	}
	return false
}

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// ParseCategory normalises model output such as "Company-Specific" to a Category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ReplaceAll(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"), " ", "_"))
	return c, c.Valid()
}

func ParseDifficulty(s string) (Difficulty, bool) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	return d, d.Valid()
}

type User struct {
	ID           string `json:"id" db:"id"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password_hash"`
	Created      int64  `json:"created" db:"created"`
}

type Profile struct {
	UserID          string `json:"user_id" db:"user_id"`
	DisplayName     string `json:"display_name" db:"display_name"`
	Bio             string `json:"bio" db:"bio"`
	Location        string `json:"location" db:"location"`
	ExperienceLevel string `json:"experience_level" db:"experience_level"`
	Updated         int64  `json:"updated" db:"updated"`
}

// Interview is one mock-interview session. Evaluation is set only when
// Status is StatusCompleted.
type Interview struct {
	ID         string      `json:"id" db:"id"`
	UserID     string      `json:"user_id" db:"user_id"`
	Title      string      `json:"title" db:"title"`
	Role       string      `json:"role" db:"role"`
	Company    string      `json:"company,omitempty" db:"company"`
	Difficulty Difficulty  `json:"difficulty" db:"difficulty"`
	Status     Status      `json:"status" db:"status"`
	Evaluation *Evaluation `json:"evaluation,omitempty"`
	Created    int64       `json:"created" db:"created"`
	Updated    int64       `json:"updated" db:"updated"`
	Submitted  *int64      `json:"submitted,omitempty" db:"submitted"`
	Completed  *int64      `json:"completed,omitempty" db:"completed"`
}

type CategoryScores struct {
	Technical      int `json:"technical"`
	Communication  int `json:"communication"`
	ProblemSolving int `json:"problem_solving"`
	CulturalFit    int `json:"cultural_fit"`
}

type Evaluation struct {
	OverallScore        int            `json:"overall_score"`
	CategoryScores      CategoryScores `json:"category_scores"`
	Strengths           []string       `json:"strengths"`
	AreasForImprovement []string       `json:"areas_for_improvement"`
	DetailedFeedback    string         `json:"detailed_feedback"`
	Recommendations     []string       `json:"recommendations"`
}

type Question struct {
	ID                string     `json:"id" db:"id"`
	InterviewID       string     `json:"interview_id" db:"interview_id"`
	Text              string     `json:"question" db:"question_text"`
	Category          Category   `json:"category" db:"category"`
	Difficulty        Difficulty `json:"difficulty" db:"difficulty"`
	OrderIndex        int        `json:"order_index" db:"order_index"`
	ExpectedAnswer    string     `json:"expected_answer,omitempty" db:"expected_answer"`
	FollowUpQuestions []string   `json:"follow_up_questions,omitempty" db:"follow_up_questions"`
	Created           int64      `json:"created" db:"created"`
}

// GeneratedQuestion is a question as produced by the LLM, before it is stored.
type GeneratedQuestion struct {
	Text              string
	Category          Category
	Difficulty        Difficulty
	ExpectedAnswer    string
	FollowUpQuestions []string
}

type Response struct {
	ID                  string `json:"id" db:"id"`
	InterviewID         string `json:"interview_id" db:"interview_id"`
	QuestionID          string `json:"question_id" db:"question_id"`
	UserID              string `json:"user_id" db:"user_id"`
	Answer              string `json:"answer" db:"answer_text"`
	ResponseTimeSeconds int    `json:"response_time" db:"response_time_seconds"`
	Created             int64  `json:"created" db:"created"`
	Updated             int64  `json:"updated" db:"updated"`
}

// AnsweredQuestion pairs a response with the question it answers.
type AnsweredQuestion struct {
	Question Question
	Response Response
}

type Schema struct {
	Version     string `json:"version" db:"version"`
	Description string `json:"description,omitempty" db:"description"`
	SchemaJSON  string `json:"schema_json" db:"schema_json"`
	Created     int64  `json:"created" db:"created"`
	Updated     int64  `json:"updated" db:"updated"`
}

type Template struct {
	Name        string  `json:"name" db:"name"`
	Version     string  `json:"version" db:"version"`
	TemplateTxt string  `json:"template_text" db:"template_text"`
	SchemaVer   *string `json:"schema_version,omitempty" db:"schema_version"`
	Metadata    *string `json:"metadata,omitempty" db:"metadata"`
	Created     int64   `json:"created" db:"created"`
	Updated     int64   `json:"updated" db:"updated"`
}
