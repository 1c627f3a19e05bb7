// Package coach builds the interviewer and helper personas on top of a
// streaming chat model. Nothing said here is persisted.
package coach

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/garnizeh/mockinterview/internal/config"
	"github.com/garnizeh/mockinterview/internal/models"
	"github.com/garnizeh/mockinterview/pkg/ollama"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	roleSystem    = "system"

	kickoff = "I'm ready to begin the interview."
)

// ErrEmptyMessage is returned when the helper gets nothing to answer.
var ErrEmptyMessage = errors.New("message is required")

// Chatter streams a chat completion chunk by chunk.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []ollama.ChatMessage, opts ollama.ChatOptions, fn func(chunk string) error) error
}

// Turn is one message of a conversation as sent by a client.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const interviewerPrompt = `You are an AI interviewer conducting a {{.Interview.Role}} interview{{if .Interview.Company}} for {{.Interview.Company}}{{end}}.
Difficulty level: {{.Interview.Difficulty}}.

Your role:
- Ask thoughtful follow-up questions based on the candidate's responses
- Provide encouraging but professional feedback
- Keep the conversation focused on the interview topic
- If the candidate asks for clarification, provide it helpfully

Current question context: {{if .Question}}{{.Question.Text}}{{else}}General interview discussion{{end}}

Guidelines:
- Keep responses concise and engaging
- Ask one follow-up question at a time
- Acknowledge good points in their answers
- If they're struggling, provide gentle guidance`

const helperPrompt = `You are an AI interview assistant helping a candidate prepare for a {{.Interview.Role}} position.

Your role is to:
- Provide helpful hints and guidance during the interview
- Suggest improvements to answers
- Help clarify questions when asked
- Encourage the candidate

Be supportive, professional, and constructive. Keep responses concise and actionable.

Interview context:
- Position: {{.Interview.Role}}
- Company: {{if .Interview.Company}}{{.Interview.Company}}{{else}}Not specified{{end}}
- Difficulty: {{.Interview.Difficulty}}

Current context: {{if .Context}}{{.Context}}{{else}}No additional context provided{{end}}`

type Coach struct {
	client Chatter
	cfg    config.ChatConfig
}

// New returns a coach; zero config values fall back to conservative limits.
func New(client Chatter, cfg config.ChatConfig) *Coach {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Temperature == nil {
		t := config.DefaultChatTemperature
		cfg.Temperature = &t
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 20
	}
	return &Coach{client: client, cfg: cfg}
}

// Interview streams the interviewer's next reply. System turns from the client
// are dropped, history is capped, and an empty history gets a kickoff turn.
func (c *Coach) Interview(ctx context.Context, iv models.Interview, current *models.Question, turns []Turn, fn func(string) error) error {
	system, err := ollama.RenderTemplate(interviewerPrompt, map[string]any{"Interview": iv, "Question": current})
	if err != nil {
		return err
	}

	history := c.history(turns)
	if len(history) == 0 {
		history = append(history, ollama.ChatMessage{Role: RoleUser, Content: kickoff})
	}
	msgs := append([]ollama.ChatMessage{{Role: roleSystem, Content: system}}, history...)
	return c.stream(ctx, msgs, fn)
}

// Assist streams a helper reply to a single candidate message.
func (c *Coach) Assist(ctx context.Context, iv models.Interview, message, extra string, fn func(string) error) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return ErrEmptyMessage
	}
	system, err := ollama.RenderTemplate(helperPrompt, map[string]any{"Interview": iv, "Context": strings.TrimSpace(extra)})
	if err != nil {
		return err
	}
	msgs := []ollama.ChatMessage{
		{Role: roleSystem, Content: system},
		{Role: RoleUser, Content: message},
	}
	return c.stream(ctx, msgs, fn)
}

func (c *Coach) history(turns []Turn) []ollama.ChatMessage {
	out := make([]ollama.ChatMessage, 0, len(turns))
	for _, t := range turns {
		role := strings.ToLower(strings.TrimSpace(t.Role))
		if role != RoleUser && role != RoleAssistant {
			continue
		}
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		out = append(out, ollama.ChatMessage{Role: role, Content: t.Content})
	}
	if len(out) > c.cfg.MaxTurns {
		out = out[len(out)-c.cfg.MaxTurns:]
	}
	return out
}

func (c *Coach) stream(ctx context.Context, msgs []ollama.ChatMessage, fn func(string) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	opts := ollama.ChatOptions{MaxTokens: c.cfg.MaxTokens, Temperature: c.cfg.Temperature}
	return c.client.Chat(ctx, c.cfg.Model, msgs, opts, fn)
}
