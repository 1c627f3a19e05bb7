package db

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// seedSchema maps a seed file to the ai_schemas version it populates.
type seedSchema struct {
	file, version, description string
}

type seedTemplate struct {
	file, name, version, schemaVersion, description string
}

var (
	seedSchemas = []seedSchema{
		{"schema_questions_v1.json", "questions.v1", "generated interview questions"},
		{"schema_evaluation_v1.json", "evaluation.v1", "interview evaluation"},
	}
	seedTemplates = []seedTemplate{
		{"template_questions_v1.txt", "questions", "v1", "questions.v1", "default question generation prompt"},
		{"template_evaluation_v1.txt", "evaluation", "v1", "evaluation.v1", "default evaluation prompt"},
	}
)

// Migrate applies migrations and optional seed files.
// It creates a `schema_migrations` table to track applied migrations and applies
// any SQL files under `migrations/` that have not yet been recorded. Seed rows are
// inserted only when missing so operator edits survive restarts.
func Migrate(ctx context.Context, d *DB, migrationFS fs.FS, seedFS fs.FS) error {
	if _, err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied BIGINT NOT NULL)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	migDir := "migrations"

	entries, err := fs.ReadDir(migrationFS, migDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, fname := range files {
		version := strings.TrimSuffix(fname, path.Ext(fname))

		var count int
		if err := d.QueryRow(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, version).Scan(&count); err != nil {
			return fmt.Errorf("scan migration applied count: %w", err)
		}
		if count > 0 {
			continue
		}

		b, err := fs.ReadFile(migrationFS, path.Join(migDir, fname))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", fname, err)
		}
		for _, stmt := range splitStatements(string(b)) {
			if _, err := d.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("exec migration %s: %w", fname, err)
			}
		}

		if _, err := d.Exec(ctx, `INSERT INTO schema_migrations (version, applied) VALUES (?, ?)`, version, Now()); err != nil {
			return fmt.Errorf("record migration %s: %w", fname, err)
		}
	}

	if seedFS == nil {
		return nil
	}
	return seed(ctx, d, seedFS)
}

func seed(ctx context.Context, d *DB, seedFS fs.FS) error {
	now := Now()
	for _, s := range seedSchemas {
		b, err := fs.ReadFile(seedFS, path.Join("seed", s.file))
		if err != nil {
			continue
		}
		if _, err := d.Exec(ctx, `INSERT INTO ai_schemas (version, description, schema_json, created, updated)
			VALUES (?, ?, ?, ?, ?) ON CONFLICT (version) DO NOTHING`, s.version, s.description, string(b), now, now); err != nil {
			return fmt.Errorf("seed schema %s: %w", s.version, err)
		}
	}
	for _, t := range seedTemplates {
		b, err := fs.ReadFile(seedFS, path.Join("seed", t.file))
		if err != nil {
			continue
		}
		meta := fmt.Sprintf(`{"owner":"system","description":%q}`, t.description)
		if _, err := d.Exec(ctx, `INSERT INTO ai_templates (name, version, template_text, schema_version, metadata, created, updated)
			VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (name, version) DO NOTHING`, t.name, t.version, string(b), t.schemaVersion, meta, now, now); err != nil {
			return fmt.Errorf("seed template %s/%s: %w", t.name, t.version, err)
		}
	}
	return nil
}

// splitStatements splits a migration file on ';' at line ends. Migrations
// contain no procedural bodies, so this is sufficient for both drivers.
func splitStatements(src string) []string {
	var out []string
	var cur strings.Builder
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}
