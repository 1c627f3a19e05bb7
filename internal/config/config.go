package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const insecureJWTSecret = "supersecretkey"

// DefaultChatTemperature applies when chat.temperature is not set. An explicit 0 is kept.
const DefaultChatTemperature = 0.7

type Config struct {
	Env           string        `yaml:"env"`
	Addr          string        `yaml:"addr"`
	LogLevel      string        `yaml:"log_level"`
	JWTSecret     string        `yaml:"jwt_secret"`
	APITimeout    time.Duration `yaml:"timeout"`
	TokenDuration time.Duration `yaml:"token_duration"`
	// AdminUserIDs may manage prompt templates and schemas under /v1/ai.
	// Ids rather than emails, since signup never verifies an address.
	AdminUserIDs []string        `yaml:"admin_user_ids"`
	Database     DatabaseConfig  `yaml:"database"`
	EngineConfig EngineConfig    `yaml:"engine"`
	Chat         ChatConfig      `yaml:"chat"`
	Ollama       OllamaConfig    `yaml:"ollama"`
	Jobs         JobsConfig      `yaml:"jobs"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
	Speech       SpeechConfig    `yaml:"speech"`
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type EngineConfig struct {
	Model              string         `yaml:"model"`
	Timeout            time.Duration  `yaml:"timeout"`
	QuestionsTemplate  PromptTemplate `yaml:"questions_template"`
	EvaluationTemplate PromptTemplate `yaml:"evaluation_template"`
}

type PromptTemplate struct {
	Version       string  `yaml:"version"`
	Template      string  `yaml:"template"`
	SchemaVersion *string `yaml:"schema_version,omitempty"`
}

// ChatConfig bounds the streaming interviewer and helper conversations.
type ChatConfig struct {
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature *float64      `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxTurns    int           `yaml:"max_turns"`
}

type OllamaConfig struct {
	BaseURL                 string        `yaml:"base_url"`
	Timeout                 time.Duration `yaml:"timeout"`
	Retries                 int           `yaml:"retries"`
	Backoff                 time.Duration `yaml:"backoff"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset"`
}

type JobsConfig struct {
	Workers          int  `yaml:"workers"`
	EvaluateOnSubmit bool `yaml:"evaluate_on_submit"`
	MaxAttempts      int  `yaml:"max_attempts"`
}

// RateLimitConfig enables the Redis-backed limiter on LLM routes when RedisAddr is set.
type RateLimitConfig struct {
	RedisAddr string        `yaml:"redis_addr"`
	Requests  int           `yaml:"requests"`
	Window    time.Duration `yaml:"window"`
}

type SpeechConfig struct {
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Env:           getEnv("INTERVIEW_ENV", "development"),
		Addr:          getEnv("INTERVIEW_ADDR", ":8080"),
		LogLevel:      getEnv("INTERVIEW_LOG_LEVEL", "info"),
		JWTSecret:     getEnv("INTERVIEW_JWT_SECRET", insecureJWTSecret),
		APITimeout:    getEnvDuration("INTERVIEW_API_TIMEOUT", 15*time.Second),
		TokenDuration: getEnvDuration("INTERVIEW_TOKEN_DURATION", 24*time.Hour),
		AdminUserIDs:  getEnvList("INTERVIEW_ADMIN_USER_IDS"),
		Database: DatabaseConfig{
			Driver: getEnv("INTERVIEW_DB_DRIVER", "sqlite"),
			DSN:    getEnv("INTERVIEW_DB_DSN", "interviews.db"),
		},
		EngineConfig: EngineConfig{
			Model: getEnv("INTERVIEW_MODEL", "llama3.1"),
		},
		Ollama: OllamaConfig{
			BaseURL: getEnv("OLLAMA_HOST", ""),
		},
		RateLimit: RateLimitConfig{
			RedisAddr: getEnv("INTERVIEW_REDIS_ADDR", ""),
		},
		Jobs: JobsConfig{
			EvaluateOnSubmit: getEnvBool("INTERVIEW_EVALUATE_ON_SUBMIT", false),
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks required settings and fills defaults for optional sections.
func (c *Config) Validate() error {
	if c.Env == "" {
		c.Env = "development"
	}
	if c.JWTSecret == "" {
		return errors.New("jwt_secret is required")
	}
	if c.JWTSecret == insecureJWTSecret && c.Env != "development" {
		return fmt.Errorf("insecure jwt_secret is only allowed in development (env=%s)", c.Env)
	}
	if strings.TrimSpace(c.EngineConfig.Model) == "" {
		return errors.New("engine.model is required")
	}

	switch c.Database.Driver {
	case "":
		c.Database.Driver = "sqlite"
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}

	if c.APITimeout <= 0 {
		c.APITimeout = 15 * time.Second
	}
	for i, id := range c.AdminUserIDs {
		c.AdminUserIDs[i] = strings.TrimSpace(id)
	}
	if c.TokenDuration <= 0 {
		c.TokenDuration = 24 * time.Hour
	}
	if c.EngineConfig.Timeout <= 0 {
		c.EngineConfig.Timeout = 90 * time.Second
	}
	if c.EngineConfig.QuestionsTemplate.Version == "" {
		c.EngineConfig.QuestionsTemplate.Version = "v1"
	}
	if c.EngineConfig.EvaluationTemplate.Version == "" {
		c.EngineConfig.EvaluationTemplate.Version = "v1"
	}

	if c.Chat.Model == "" {
		c.Chat.Model = c.EngineConfig.Model
	}
	if c.Chat.MaxTokens <= 0 {
		c.Chat.MaxTokens = 500
	}
	if c.Chat.Temperature == nil {
		t := DefaultChatTemperature
		c.Chat.Temperature = &t
	}
	if c.Chat.Timeout <= 0 {
		c.Chat.Timeout = 30 * time.Second
	}
	if c.Chat.MaxTurns <= 0 {
		c.Chat.MaxTurns = 20
	}

	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = "http://localhost:11434"
	}
	if c.Ollama.Timeout <= 0 {
		c.Ollama.Timeout = 120 * time.Second
	}
	if c.Ollama.Retries == 0 {
		c.Ollama.Retries = 2
	}
	if c.Ollama.Backoff <= 0 {
		c.Ollama.Backoff = 500 * time.Millisecond
	}
	if c.Ollama.CircuitFailureThreshold <= 0 {
		c.Ollama.CircuitFailureThreshold = 5
	}
	if c.Ollama.CircuitReset <= 0 {
		c.Ollama.CircuitReset = 30 * time.Second
	}

	if c.Jobs.Workers <= 0 {
		c.Jobs.Workers = 2
	}
	if c.Jobs.MaxAttempts <= 0 {
		c.Jobs.MaxAttempts = 3
	}

	if c.RateLimit.Requests <= 0 {
		c.RateLimit.Requests = 30
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}

	if c.Speech.MaxUploadBytes <= 0 {
		c.Speech.MaxUploadBytes = 10 << 20
	}

	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}

	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}

	return def
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}

	return out
}
