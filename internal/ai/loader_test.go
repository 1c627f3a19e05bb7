package ai_test

import (
	"context"
	"testing"

	"github.com/garnizeh/mockinterview/internal/ai"
	"github.com/garnizeh/mockinterview/pkg/repository/mock"
)

const versionSchema = `{"$schema":"http://json-schema.org/draft-07/schema#","type":"object","required":["version"],"properties":{"version":{"type":"string"}}}`

func TestLoader_ReloadAndGetSchema_Success(t *testing.T) {
	ctx := context.Background()
	st := mock.New()
	if err := st.CreateSchema(ctx, "v1", "v1 schema", versionSchema); err != nil {
		t.Fatalf("seed schema failed: %v", err)
	}

	l, err := ai.NewLoader(ctx, st)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	s, ok := l.GetSchema("v1")
	if !ok || s == nil {
		t.Fatalf("expected schema v1 to be loaded")
	}
	raw, ok := l.GetRaw("v1")
	if !ok || string(raw) != versionSchema {
		t.Fatalf("unexpected raw schema: %s", raw)
	}

	verrs, err := s.ValidateBytes(ctx, []byte(`{"version":"x"}`))
	if err != nil || len(verrs) != 0 {
		t.Fatalf("valid doc rejected: %v %v", verrs, err)
	}
	verrs, err = s.ValidateBytes(ctx, []byte(`{"other":1}`))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(verrs) == 0 {
		t.Fatalf("expected missing 'version' to be reported")
	}
}

func TestLoader_ReloadPicksUpNewSchemas(t *testing.T) {
	ctx := context.Background()
	st := mock.New()
	l, err := ai.NewLoader(ctx, st)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	if _, ok := l.GetSchema("v2"); ok {
		t.Fatalf("v2 should not exist yet")
	}

	if err := st.CreateSchema(ctx, "v2", "", versionSchema); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := l.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, ok := l.GetSchema("v2"); !ok {
		t.Fatalf("expected v2 after reload")
	}
}

func TestLoader_InvalidSchemaKeepsCache(t *testing.T) {
	ctx := context.Background()
	st := mock.New()
	_ = st.CreateSchema(ctx, "v1", "", versionSchema)
	l, err := ai.NewLoader(ctx, st)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	_ = st.CreateSchema(ctx, "broken", "", `{"type":`)
	if err := l.Reload(ctx); err == nil {
		t.Fatalf("expected reload to fail on invalid JSON")
	}
	if _, ok := l.GetSchema("v1"); !ok {
		t.Fatalf("previous cache should survive a failed reload")
	}
}

func TestCompileSchema(t *testing.T) {
	if _, err := ai.CompileSchema(versionSchema); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := ai.CompileSchema("not json"); err == nil {
		t.Fatalf("expected error for non-JSON schema")
	}
}
