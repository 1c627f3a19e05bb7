package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/qri-io/jsonschema"

	"github.com/garnizeh/mockinterview/pkg/repository"
)

// schemaSet is one compiled snapshot of the schema table.
type schemaSet struct {
	compiled map[string]*jsonschema.Schema
	raw      map[string]json.RawMessage
}

func (s *schemaSet) has(version string) bool {
	_, ok := s.compiled[version]
	return ok
}

// Loader loads and caches compiled JSON schemas from the repository.
type Loader struct {
	repo repository.SchemaRepo
	mu   sync.RWMutex
	set  *schemaSet
}

func NewLoader(ctx context.Context, r repository.SchemaRepo) (*Loader, error) {
	l := &Loader{repo: r}
	if err := l.Reload(ctx); err != nil {
		return nil, err
	}

	return l, nil
}

// GetSchema returns a compiled schema for a version.
func (l *Loader) GetSchema(version string) (*jsonschema.Schema, bool) {
	l.mu.RLock()
	s, ok := l.set.compiled[version]
	l.mu.RUnlock()

	return s, ok
}

// GetRaw returns the schema document as stored, for use as an LLM output format.
func (l *Loader) GetRaw(version string) (json.RawMessage, bool) {
	l.mu.RLock()
	b, ok := l.set.raw[version]
	l.mu.RUnlock()

	return b, ok
}

// Reload loads all schemas from the DB and compiles them. The cache is
// replaced only when every schema compiles.
func (l *Loader) Reload(ctx context.Context) error {
	set, err := l.load(ctx)
	if err != nil {
		return err
	}
	l.swap(set)
	return nil
}

// load compiles the stored schemas without touching the live cache.
func (l *Loader) load(ctx context.Context) (*schemaSet, error) {
	rows, err := l.repo.ListSchemas(ctx)
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}

	set := &schemaSet{
		compiled: make(map[string]*jsonschema.Schema, len(rows)),
		raw:      make(map[string]json.RawMessage, len(rows)),
	}
	for _, r := range rows {
		rs, err := CompileSchema(r.SchemaJSON)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", r.Version, err)
		}
		set.compiled[r.Version] = rs
		set.raw[r.Version] = json.RawMessage(r.SchemaJSON)
	}
	return set, nil
}

func (l *Loader) swap(set *schemaSet) {
	l.mu.Lock()
	l.set = set
	l.mu.Unlock()
}

// CompileSchema parses a JSON schema document.
func CompileSchema(doc string) (*jsonschema.Schema, error) {
	if !json.Valid([]byte(doc)) {
		return nil, fmt.Errorf("schema is not valid JSON")
	}
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(doc), rs); err != nil {
		return nil, err
	}
	return rs, nil
}
