package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/garnizeh/mockinterview/internal/db"
	"github.com/garnizeh/mockinterview/internal/models"
)

func (r *Store) CreateTemplate(ctx context.Context, name, version, templateText string, schemaVersion *string, metadata *string) error {
	var schemaVer, meta any
	if schemaVersion != nil {
		schemaVer = *schemaVersion
	}
	if metadata != nil {
		meta = *metadata
	}
	now := db.Now()

	_, err := r.conn.Exec(ctx, `INSERT INTO ai_templates (name, version, template_text, schema_version, metadata, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name, version) DO UPDATE SET template_text = excluded.template_text, schema_version = excluded.schema_version,
		metadata = excluded.metadata, updated = excluded.updated`,
		name, version, templateText, schemaVer, meta, now, now)
	return err
}

func (r *Store) GetTemplate(ctx context.Context, name, version string) (*models.Template, error) {
	row := r.conn.QueryRow(ctx, `SELECT name, version, template_text, schema_version, metadata, created, updated FROM ai_templates WHERE name = ? AND version = ?`, name, version)
	var t models.Template
	if err := row.Scan(&t.Name, &t.Version, &t.TemplateTxt, &t.SchemaVer, &t.Metadata, &t.Created, &t.Updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *Store) ListTemplates(ctx context.Context) ([]models.Template, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT name, version, template_text, schema_version, metadata, created, updated FROM ai_templates ORDER BY name, version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Template
	for rows.Next() {
		var t models.Template
		if err := rows.Scan(&t.Name, &t.Version, &t.TemplateTxt, &t.SchemaVer, &t.Metadata, &t.Created, &t.Updated); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Store) DeleteTemplate(ctx context.Context, name, version string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM ai_templates WHERE name = ? AND version = ?`, name, version)
	return err
}
