package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/garnizeh/mockinterview/internal/config"
	"github.com/garnizeh/mockinterview/internal/models"
	"github.com/garnizeh/mockinterview/pkg/ollama"
	"github.com/garnizeh/mockinterview/pkg/repository"
)

const (
	QuestionsTemplateName  = "questions"
	EvaluationTemplateName = "evaluation"

	DefaultQuestionsSchema  = "questions.v1"
	DefaultEvaluationSchema = "evaluation.v1"

	MinQuestions = 8
	MaxQuestions = 12
)

// ErrInvalidOutput marks model output that could not be turned into a valid result.
var ErrInvalidOutput = errors.New("invalid model output")

// Generator is the subset of *ollama.Client used by the engine.
type Generator interface {
	Generate(ctx context.Context, model string, prompt string, opts ollama.GenerateOptions) (ollama.GenerateResult, error)
}

type prompt struct {
	text          string
	version       string
	schemaVersion string
}

// Engine renders prompts, calls the model with a schema-constrained output
// format, and validates what comes back.
type Engine struct {
	client Generator
	cfg    config.EngineConfig
	loader *Loader
	tr     repository.TemplateRepo
	logger *slog.Logger

	mu         sync.RWMutex
	questions  prompt
	evaluation prompt
}

// NewEngine creates the engine. Templates are read from tr unless the config carries inline text.
func NewEngine(ctx context.Context, client Generator, cfg config.EngineConfig, sr repository.SchemaRepo, tr repository.TemplateRepo, logger *slog.Logger) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if sr == nil {
		return nil, fmt.Errorf("schema repo is required")
	}
	if tr == nil {
		return nil, fmt.Errorf("template repo is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	loader, err := NewLoader(ctx, sr)
	if err != nil {
		return nil, fmt.Errorf("create loader: %w", err)
	}

	e := &Engine{client: client, cfg: cfg, loader: loader, tr: tr, logger: logger}
	q, ev, err := e.resolveTemplates(ctx, loader.set)
	if err != nil {
		return nil, err
	}
	e.questions, e.evaluation = q, ev
	return e, nil
}

// resolveTemplates reads both prompts and checks them against schemas.
func (e *Engine) resolveTemplates(ctx context.Context, schemas *schemaSet) (prompt, prompt, error) {
	q, err := e.resolve(ctx, schemas, QuestionsTemplateName, e.cfg.QuestionsTemplate, DefaultQuestionsSchema)
	if err != nil {
		return prompt{}, prompt{}, err
	}
	ev, err := e.resolve(ctx, schemas, EvaluationTemplateName, e.cfg.EvaluationTemplate, DefaultEvaluationSchema)
	if err != nil {
		return prompt{}, prompt{}, err
	}
	return q, ev, nil
}

func (e *Engine) resolve(ctx context.Context, schemas *schemaSet, name string, pt config.PromptTemplate, defaultSchema string) (prompt, error) {
	version := pt.Version
	if version == "" {
		version = "v1"
	}
	p := prompt{text: pt.Template, version: version, schemaVersion: defaultSchema}
	if pt.SchemaVersion != nil && *pt.SchemaVersion != "" {
		p.schemaVersion = *pt.SchemaVersion
	}

	if p.text == "" {
		tpl, err := e.tr.GetTemplate(ctx, name, version)
		if err != nil {
			return prompt{}, fmt.Errorf("load template %s:%s: %w", name, version, err)
		}
		if tpl == nil || tpl.TemplateTxt == "" {
			return prompt{}, fmt.Errorf("template %s:%s not found", name, version)
		}
		p.text = tpl.TemplateTxt
		if tpl.SchemaVer != nil && *tpl.SchemaVer != "" {
			p.schemaVersion = *tpl.SchemaVer
		}
	}

	if err := ollama.ParseTemplate(p.text); err != nil {
		return prompt{}, fmt.Errorf("parse template %s:%s: %w", name, version, err)
	}
	if !schemas.has(p.schemaVersion) {
		return prompt{}, fmt.Errorf("no schema found for version %s", p.schemaVersion)
	}
	return p, nil
}

// Reload recompiles schemas and re-reads templates. Nothing changes unless
// every schema compiles and both templates parse and resolve to a schema.
func (e *Engine) Reload(ctx context.Context) error {
	set, err := e.loader.load(ctx)
	if err != nil {
		return err
	}
	q, ev, err := e.resolveTemplates(ctx, set)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.loader.swap(set)
	e.questions, e.evaluation = q, ev
	e.mu.Unlock()
	return nil
}

type generatedQuestions struct {
	Questions []struct {
		Question          string   `json:"question"`
		Category          string   `json:"category"`
		Difficulty        string   `json:"difficulty"`
		ExpectedAnswer    string   `json:"expectedAnswer"`
		FollowUpQuestions []string `json:"followUpQuestions"`
	} `json:"questions"`
}

// GenerateQuestions asks the model for 8-12 questions for the interview.
func (e *Engine) GenerateQuestions(ctx context.Context, iv models.Interview) ([]models.GeneratedQuestion, error) {
	e.mu.RLock()
	p := e.questions
	e.mu.RUnlock()

	data := map[string]any{"Interview": iv, "MinQuestions": MinQuestions, "MaxQuestions": MaxQuestions}
	raw, err := e.call(ctx, p, data)
	if err != nil {
		return nil, err
	}

	var out generatedQuestions
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if n := len(out.Questions); n < MinQuestions || n > MaxQuestions {
		return nil, fmt.Errorf("%w: expected %d-%d questions, got %d", ErrInvalidOutput, MinQuestions, MaxQuestions, n)
	}

	qs := make([]models.GeneratedQuestion, 0, len(out.Questions))
	for i, q := range out.Questions {
		text := strings.TrimSpace(q.Question)
		if text == "" {
			return nil, fmt.Errorf("%w: question %d is empty", ErrInvalidOutput, i)
		}
		cat, ok := models.ParseCategory(q.Category)
		if !ok {
			return nil, fmt.Errorf("%w: question %d has category %q", ErrInvalidOutput, i, q.Category)
		}
		diff := iv.Difficulty
		if strings.TrimSpace(q.Difficulty) != "" {
			if diff, ok = models.ParseDifficulty(q.Difficulty); !ok {
				return nil, fmt.Errorf("%w: question %d has difficulty %q", ErrInvalidOutput, i, q.Difficulty)
			}
		}
		follow := make([]string, 0, len(q.FollowUpQuestions))
		for _, f := range q.FollowUpQuestions {
			if f = strings.TrimSpace(f); f != "" {
				follow = append(follow, f)
			}
		}
		qs = append(qs, models.GeneratedQuestion{
			Text:              text,
			Category:          cat,
			Difficulty:        diff,
			ExpectedAnswer:    strings.TrimSpace(q.ExpectedAnswer),
			FollowUpQuestions: follow,
		})
	}
	return qs, nil
}

type evaluationOutput struct {
	OverallScore   float64 `json:"overallScore"`
	CategoryScores struct {
		Technical      float64 `json:"technical"`
		Communication  float64 `json:"communication"`
		ProblemSolving float64 `json:"problemSolving"`
		CulturalFit    float64 `json:"culturalFit"`
	} `json:"categoryScores"`
	Strengths           []string `json:"strengths"`
	AreasForImprovement []string `json:"areasForImprovement"`
	DetailedFeedback    string   `json:"detailedFeedback"`
	Recommendations     []string `json:"recommendations"`
}

// EvaluateInterview scores the answered questions. Scores are clamped to [0,100].
func (e *Engine) EvaluateInterview(ctx context.Context, iv models.Interview, answers []models.AnsweredQuestion) (*models.Evaluation, error) {
	if len(answers) == 0 {
		return nil, fmt.Errorf("no answers to evaluate")
	}
	e.mu.RLock()
	p := e.evaluation
	e.mu.RUnlock()

	raw, err := e.call(ctx, p, map[string]any{"Interview": iv, "Answers": answers})
	if err != nil {
		return nil, err
	}

	var out evaluationOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}

	return &models.Evaluation{
		OverallScore: ClampScore(out.OverallScore),
		CategoryScores: models.CategoryScores{
			Technical:      ClampScore(out.CategoryScores.Technical),
			Communication:  ClampScore(out.CategoryScores.Communication),
			ProblemSolving: ClampScore(out.CategoryScores.ProblemSolving),
			CulturalFit:    ClampScore(out.CategoryScores.CulturalFit),
		},
		Strengths:           nonNil(out.Strengths),
		AreasForImprovement: nonNil(out.AreasForImprovement),
		DetailedFeedback:    strings.TrimSpace(out.DetailedFeedback),
		Recommendations:     nonNil(out.Recommendations),
	}, nil
}

// call renders the prompt, asks the model for schema-shaped output and returns the validated JSON.
func (e *Engine) call(ctx context.Context, p prompt, data any) ([]byte, error) {
	text, err := ollama.RenderTemplate(p.text, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	schema, ok := e.loader.GetSchema(p.schemaVersion)
	if !ok || schema == nil {
		return nil, fmt.Errorf("no schema found for version %s", p.schemaVersion)
	}
	format, _ := e.loader.GetRaw(p.schemaVersion)

	ctxReq, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	res, err := e.client.Generate(ctxReq, e.cfg.Model, text, ollama.GenerateOptions{Format: format})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	j := extractJSON(res.Text)
	if j == "" {
		e.logger.Warn("ai: no JSON object in model output", "schema", p.schemaVersion, "raw", truncate(res.Text, 500))
		return nil, fmt.Errorf("%w: no JSON object found in response", ErrInvalidOutput)
	}

	verrs, err := schema.ValidateBytes(ctxReq, []byte(j))
	if err != nil {
		return nil, fmt.Errorf("%w: schema validate: %v", ErrInvalidOutput, err)
	}
	if len(verrs) > 0 {
		var sb strings.Builder
		for _, v := range verrs {
			sb.WriteString(v.PropertyPath)
			sb.WriteString(": ")
			sb.WriteString(v.Message)
			sb.WriteString("; ")
		}
		e.logger.Warn("ai: model output does not match schema", "schema", p.schemaVersion, "errors", sb.String())
		return nil, fmt.Errorf("%w: response does not match schema: %s", ErrInvalidOutput, sb.String())
	}
	return []byte(j), nil
}

// extractJSON returns the substring from the first '{' to the last '}' in the input.
// Model outputs sometimes wrap JSON in prose or markdown fences.
func extractJSON(s string) string {
	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first == -1 || last == -1 || last < first {
		return ""
	}
	return s[first : last+1]
}

// ClampScore rounds a model score into the 0-100 range; NaN becomes 0.
func ClampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	r := math.Round(v)
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return int(r)
}

func nonNil(v []string) []string {
	out := make([]string, 0, len(v))
	for _, s := range v {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
