package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/garnizeh/mockinterview/internal/ai"
	"github.com/garnizeh/mockinterview/internal/apperr"
	"github.com/garnizeh/mockinterview/pkg/ollama"
	"github.com/garnizeh/mockinterview/pkg/repository"
)

// maxTemplateBytes caps the body of a template upload.
const maxTemplateBytes = 64 * 1024

// Reloader refreshes cached prompts and schemas from the store.
type Reloader interface {
	Reload(ctx context.Context) error
}

type AIHandler struct {
	reloader     Reloader
	schemaRepo   repository.SchemaRepo
	templateRepo repository.TemplateRepo
}

func NewAIHandler(reloader Reloader, schemaRepo repository.SchemaRepo, templateRepo repository.TemplateRepo) *AIHandler {
	return &AIHandler{
		reloader:     reloader,
		schemaRepo:   schemaRepo,
		templateRepo: templateRepo,
	}
}

func (h *AIHandler) ReloadHandler(w http.ResponseWriter, r *http.Request) {
	if h.reloader == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.reloader.Reload(r.Context()); err != nil {
		writeError(w, r, apperr.Wrap(apperr.KindInternal, "reload prompts", err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AIHandler) ListSchemasHandler(w http.ResponseWriter, r *http.Request) {
	rows, err := h.schemaRepo.ListSchemas(r.Context())
	if err != nil {
		writeError(w, r, apperr.Persistence("list schemas", err))
		return
	}

	writeJSON(w, rows, http.StatusOK)
}

type schemaPayload struct {
	Version     string          `json:"version"`
	Description string          `json:"description,omitempty"`
	SchemaJSON  json.RawMessage `json:"schema_json"`
}

// CreateOrUpdateSchemaHandler compiles and stores a schema. It takes effect on the next reload.
func (h *AIHandler) CreateOrUpdateSchemaHandler(w http.ResponseWriter, r *http.Request) {
	var p schemaPayload
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}

	if p.Version == "" {
		writeError(w, r, apperr.Validation("version required"))
		return
	}
	if _, err := ai.CompileSchema(string(p.SchemaJSON)); err != nil {
		writeError(w, r, apperr.Validation("invalid schema: "+err.Error()))
		return
	}

	if err := h.schemaRepo.CreateSchema(r.Context(), p.Version, p.Description, string(p.SchemaJSON)); err != nil {
		writeError(w, r, apperr.Persistence("store schema", err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetSchemaHandler returns a single schema by version (expects ?version=...)
func (h *AIHandler) GetSchemaHandler(w http.ResponseWriter, r *http.Request) {
	version := r.URL.Query().Get("version")
	if version == "" {
		writeError(w, r, apperr.Validation("version required"))
		return
	}

	s, err := h.schemaRepo.GetSchemaByVersion(r.Context(), version)
	if err != nil {
		writeError(w, r, apperr.Persistence("get schema", err))
		return
	}
	if s == nil {
		writeError(w, r, apperr.NotFound("schema not found"))
		return
	}

	writeJSON(w, s, http.StatusOK)
}

// DeleteSchemaHandler deletes schema by version (expects ?version=...)
func (h *AIHandler) DeleteSchemaHandler(w http.ResponseWriter, r *http.Request) {
	version := r.URL.Query().Get("version")
	if version == "" {
		writeError(w, r, apperr.Validation("version required"))
		return
	}

	if err := h.schemaRepo.DeleteSchema(r.Context(), version); err != nil {
		writeError(w, r, apperr.Persistence("delete schema", err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AIHandler) ListTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	rows, err := h.templateRepo.ListTemplates(r.Context())
	if err != nil {
		writeError(w, r, apperr.Persistence("list templates", err))
		return
	}

	writeJSON(w, rows, http.StatusOK)
}

type templatePayload struct {
	Name        string  `json:"name"`
	Version     string  `json:"version"`
	TemplateTxt string  `json:"template_text"`
	SchemaVer   *string `json:"schema_version,omitempty"`
}

// CreateOrUpdateTemplateHandler stores a template, enforcing size limit
func (h *AIHandler) CreateOrUpdateTemplateHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTemplateBytes)
	var p templatePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, r, apperr.Validation("template too large"))
			return
		}
		writeError(w, r, apperr.Validation("invalid json"))
		return
	}

	if p.Name == "" || p.Version == "" || p.TemplateTxt == "" {
		writeError(w, r, apperr.Validation("name, version and template_text required"))
		return
	}
	if err := ollama.ParseTemplate(p.TemplateTxt); err != nil {
		writeError(w, r, apperr.Validation("template does not parse: "+err.Error()))
		return
	}
	if p.SchemaVer != nil {
		s, err := h.schemaRepo.GetSchemaByVersion(r.Context(), *p.SchemaVer)
		if err != nil {
			writeError(w, r, apperr.Persistence("get schema", err))
			return
		}
		if s == nil {
			writeError(w, r, apperr.Validation("unknown schema_version "+*p.SchemaVer))
			return
		}
	}

	if err := h.templateRepo.CreateTemplate(r.Context(), p.Name, p.Version, p.TemplateTxt, p.SchemaVer, nil); err != nil {
		writeError(w, r, apperr.Persistence("store template", err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetTemplateHandler returns one template by query params name and version
func (h *AIHandler) GetTemplateHandler(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	version := r.URL.Query().Get("version")
	if name == "" || version == "" {
		writeError(w, r, apperr.Validation("name and version required"))
		return
	}

	t, err := h.templateRepo.GetTemplate(r.Context(), name, version)
	if err != nil {
		writeError(w, r, apperr.Persistence("get template", err))
		return
	}
	if t == nil {
		writeError(w, r, apperr.NotFound("template not found"))
		return
	}

	writeJSON(w, t, http.StatusOK)
}

func (h *AIHandler) DeleteTemplateHandler(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	version := r.URL.Query().Get("version")
	if name == "" || version == "" {
		writeError(w, r, apperr.Validation("name and version required"))
		return
	}

	if err := h.templateRepo.DeleteTemplate(r.Context(), name, version); err != nil {
		writeError(w, r, apperr.Persistence("delete template", err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
