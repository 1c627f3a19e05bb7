package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garnizeh/mockinterview/internal/config"
	"github.com/garnizeh/mockinterview/internal/interview"
	"github.com/garnizeh/mockinterview/internal/ratelimit"
	"github.com/garnizeh/mockinterview/internal/speech"
	"github.com/garnizeh/mockinterview/pkg/repository"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Config    *config.Config
	Version   string
	BuildTime string

	Users      repository.UserRepo
	Profiles   repository.ProfileRepo
	Schemas    repository.SchemaRepo
	Templates  repository.TemplateRepo
	Interviews *interview.Service
	Coach      Conversation
	Speech     speech.Transcriber
	// Reloader refreshes prompts and schemas; nil makes /v1/ai/reload a no-op.
	Reloader Reloader
	// Limiter guards the LLM routes; nil disables rate limiting.
	Limiter *ratelimit.Limiter
	Health  map[string]HealthCheck
}

func SetupRoutes(d Deps) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	transcriber := d.Speech
	if transcriber == nil {
		transcriber = speech.Stub{}
	}

	// Create handlers
	systemHandler := NewSystemHandler(d.Health)
	authHandler := NewAuthHandler(d.Users, d.Profiles, d.Config.JWTSecret, d.Config.TokenDuration)
	profileHandler := NewProfileHandler(d.Profiles)
	interviewHandler := NewInterviewHandler(d.Interviews)
	chatHandler := NewChatHandler(d.Interviews, d.Coach)
	speechHandler := NewSpeechHandler(transcriber, d.Config.Speech.MaxUploadBytes)
	aiHandler := NewAIHandler(d.Reloader, d.Schemas, d.Templates)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(d.Version, d.BuildTime)).Methods(http.MethodGet)
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/v1/auth/signup", authHandler.Signup).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/signin", authHandler.Signin).Methods(http.MethodPost)

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(JWTAuthMiddlewareWithSecret(d.Config.JWTSecret))

	apiV1.HandleFunc("/auth/signout", authHandler.Signout).Methods(http.MethodPost)

	apiV1.HandleFunc("/profile", profileHandler.Get).Methods(http.MethodGet)
	apiV1.HandleFunc("/profile", profileHandler.Update).Methods(http.MethodPut)

	apiV1.HandleFunc("/speech-to-text", speechHandler.Transcribe).Methods(http.MethodPost)

	// Interviews
	apiV1.HandleFunc("/interviews", interviewHandler.Create).Methods(http.MethodPost)
	apiV1.HandleFunc("/interviews", interviewHandler.List).Methods(http.MethodGet)
	apiV1.HandleFunc("/interviews/{id}", interviewHandler.Get).Methods(http.MethodGet)
	apiV1.HandleFunc("/interviews/{id}", interviewHandler.Delete).Methods(http.MethodDelete)
	apiV1.HandleFunc("/interviews/{id}/responses/{question_id}", interviewHandler.SaveResponse).Methods(http.MethodPut)
	apiV1.HandleFunc("/interviews/{id}/submit", interviewHandler.Submit).Methods(http.MethodPost)

	// LLM-backed routes share the per-user limiter, one bucket per route.
	limited := func(route string, h http.HandlerFunc) http.Handler {
		return RateLimitMiddleware(d.Limiter, route)(h)
	}
	apiV1.Handle("/interviews/{id}/questions", limited("questions", interviewHandler.GenerateQuestions)).Methods(http.MethodPost)
	apiV1.Handle("/interviews/{id}/evaluate", limited("evaluate", interviewHandler.Evaluate)).Methods(http.MethodPost)
	apiV1.Handle("/interviews/{id}/chat", limited("chat", chatHandler.Interviewer)).Methods(http.MethodPost)
	apiV1.Handle("/interviews/{id}/assistant", limited("assistant", chatHandler.Assistant)).Methods(http.MethodPost)

	// AI admin
	aiV1 := apiV1.PathPrefix("/ai").Subrouter()
	aiV1.Use(AdminMiddleware(d.Config.AdminUserIDs))
	aiV1.HandleFunc("/reload", aiHandler.ReloadHandler).Methods(http.MethodPost)
	aiV1.HandleFunc("/schemas", aiHandler.GetSchemaHandler).Methods(http.MethodGet).Queries("version", "{version}")
	aiV1.HandleFunc("/schemas", aiHandler.ListSchemasHandler).Methods(http.MethodGet)
	aiV1.HandleFunc("/schemas", aiHandler.CreateOrUpdateSchemaHandler).Methods(http.MethodPost)
	aiV1.HandleFunc("/schemas", aiHandler.DeleteSchemaHandler).Methods(http.MethodDelete)
	aiV1.HandleFunc("/templates", aiHandler.GetTemplateHandler).Methods(http.MethodGet).Queries("name", "{name}", "version", "{version}")
	aiV1.HandleFunc("/templates", aiHandler.ListTemplatesHandler).Methods(http.MethodGet)
	aiV1.HandleFunc("/templates", aiHandler.CreateOrUpdateTemplateHandler).Methods(http.MethodPost)
	aiV1.HandleFunc("/templates", aiHandler.DeleteTemplateHandler).Methods(http.MethodDelete)

	return r
}
