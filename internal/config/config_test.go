package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/garnizeh/mockinterview/internal/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Env:           "development",
		Addr:          ":8080",
		JWTSecret:     "strongsecret",
		APITimeout:    5 * time.Second,
		TokenDuration: 1 * time.Hour,
		Database:      config.DatabaseConfig{Driver: "sqlite", DSN: "test.db"},
		EngineConfig:  config.EngineConfig{Model: "m"},
	}
}

func TestValidate_InsecureJWT_FailsWhenNotDevelopment(t *testing.T) {
	cfg := validConfig()
	cfg.Env = "production"
	cfg.JWTSecret = "supersecretkey"

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected Validate to fail for insecure JWT in non-development env")
	}
}

func TestValidate_InsecureJWT_AllowsDevelopment(t *testing.T) {
	cfg := validConfig()
	cfg.JWTSecret = "supersecretkey"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected Validate to succeed in development env, got: %v", err)
	}
}

func TestValidate_MissingEngineModel(t *testing.T) {
	cfg := validConfig()
	cfg.EngineConfig.Model = " "

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected Validate to fail when engine.model is empty")
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "mysql"

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected Validate to reject unsupported driver")
	}
}

func TestValidate_DefaultsPopulated(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed unexpectedly: %v", err)
	}

	if cfg.Ollama.BaseURL == "" {
		t.Fatalf("expected Ollama.BaseURL to be populated, got empty")
	}
	if cfg.Ollama.Timeout <= 0 {
		t.Fatalf("expected Ollama.Timeout to be > 0")
	}
	if cfg.Ollama.Retries == 0 {
		t.Fatalf("expected Ollama.Retries default to be non-zero")
	}
	if cfg.Chat.Model != "m" {
		t.Fatalf("expected chat model to fall back to engine model, got %q", cfg.Chat.Model)
	}
	if cfg.Chat.MaxTokens != 500 || cfg.Chat.Timeout != 30*time.Second {
		t.Fatalf("unexpected chat bounds: %+v", cfg.Chat)
	}
	if cfg.Chat.Temperature == nil || *cfg.Chat.Temperature != config.DefaultChatTemperature {
		t.Fatalf("expected default chat temperature, got %v", cfg.Chat.Temperature)
	}
	if cfg.EngineConfig.QuestionsTemplate.Version != "v1" || cfg.EngineConfig.EvaluationTemplate.Version != "v1" {
		t.Fatalf("expected template versions to default to v1")
	}
	if cfg.Speech.MaxUploadBytes <= 0 {
		t.Fatalf("expected speech upload limit default")
	}
}

func TestValidate_KeepsZeroTemperature(t *testing.T) {
	cfg := validConfig()
	zero := 0.0
	cfg.Chat.Temperature = &zero
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed unexpectedly: %v", err)
	}
	if *cfg.Chat.Temperature != 0 {
		t.Fatalf("explicit zero temperature replaced with %v", *cfg.Chat.Temperature)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"INTERVIEW_ADDR", "INTERVIEW_JWT_SECRET", "INTERVIEW_DB_DRIVER", "INTERVIEW_DB_DSN", "INTERVIEW_API_TIMEOUT"} {
		t.Setenv(k, "")
	}

	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig returned error for empty path: %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected Addr: got %q want %q", cfg.Addr, ":8080")
	}
	if cfg.JWTSecret != "supersecretkey" {
		t.Fatalf("unexpected JWTSecret: got %q", cfg.JWTSecret)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "interviews.db" {
		t.Fatalf("unexpected Database: %+v", cfg.Database)
	}
	if cfg.APITimeout != 15*time.Second {
		t.Fatalf("unexpected APITimeout: got %v want %v", cfg.APITimeout, 15*time.Second)
	}
	if cfg.TokenDuration != 24*time.Hour {
		t.Fatalf("unexpected TokenDuration: got %v", cfg.TokenDuration)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("INTERVIEW_ADDR", ":7000")
	t.Setenv("INTERVIEW_API_TIMEOUT", "3s")
	t.Setenv("INTERVIEW_EVALUATE_ON_SUBMIT", "true")
	t.Setenv("INTERVIEW_ADMIN_USER_IDS", "3f0c6b1e-admin, ,9a7d-lead")

	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr != ":7000" || cfg.APITimeout != 3*time.Second || !cfg.Jobs.EvaluateOnSubmit {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(cfg.AdminUserIDs) != 2 || cfg.AdminUserIDs[0] != "3f0c6b1e-admin" || cfg.AdminUserIDs[1] != "9a7d-lead" {
		t.Fatalf("unexpected admin user ids: %v", cfg.AdminUserIDs)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	f.Close()

	content := []byte(`addr: ":9090"
jwt_secret: "filekey"
timeout: "30s"
token_duration: "2h"
database:
  driver: postgres
  dsn: "postgres://u:p@localhost/interviews?sslmode=disable"
chat:
  max_tokens: 200
  timeout: "10s"
`)
	if err := os.WriteFile(f.Name(), content, 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := config.LoadConfig(f.Name())
	if err != nil {
		t.Fatalf("LoadConfig returned error for file: %v", err)
	}

	if cfg.Addr != ":9090" {
		t.Fatalf("unexpected Addr: got %q want %q", cfg.Addr, ":9090")
	}
	if cfg.JWTSecret != "filekey" {
		t.Fatalf("unexpected JWTSecret: got %q want %q", cfg.JWTSecret, "filekey")
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("unexpected driver: %q", cfg.Database.Driver)
	}
	if cfg.APITimeout != 30*time.Second {
		t.Fatalf("unexpected APITimeout: got %v want %v", cfg.APITimeout, 30*time.Second)
	}
	if cfg.TokenDuration != 2*time.Hour {
		t.Fatalf("unexpected TokenDuration: got %v want %v", cfg.TokenDuration, 2*time.Hour)
	}
	if cfg.Chat.MaxTokens != 200 || cfg.Chat.Timeout != 10*time.Second {
		t.Fatalf("unexpected chat config: %+v", cfg.Chat)
	}
}

func TestLoadConfig_BadPath(t *testing.T) {
	if _, err := config.LoadConfig("/path/that/does/not/exist.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent path, got nil")
	}
}

func TestLoadConfig_BadYAML(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "bad-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	f.Close()

	if err := os.WriteFile(f.Name(), []byte("addr: [unterminated\n"), 0o600); err != nil {
		t.Fatalf("failed to write bad yaml: %v", err)
	}

	if _, err := config.LoadConfig(f.Name()); err == nil {
		t.Fatalf("expected YAML decode error, got nil")
	}
}
