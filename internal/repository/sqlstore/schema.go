package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/garnizeh/mockinterview/internal/db"
	"github.com/garnizeh/mockinterview/internal/models"
)

// CreateSchema inserts or updates a schema by version.
func (r *Store) CreateSchema(ctx context.Context, version, description, schemaJSON string) error {
	now := db.Now()
	_, err := r.conn.Exec(ctx, `INSERT INTO ai_schemas (version, description, schema_json, created, updated) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (version) DO UPDATE SET description = excluded.description, schema_json = excluded.schema_json, updated = excluded.updated`,
		version, description, schemaJSON, now, now)
	return err
}

func (r *Store) GetSchemaByVersion(ctx context.Context, version string) (*models.Schema, error) {
	row := r.conn.QueryRow(ctx, `SELECT version, description, schema_json, created, updated FROM ai_schemas WHERE version = ?`, version)
	var s models.Schema
	if err := row.Scan(&s.Version, &s.Description, &s.SchemaJSON, &s.Created, &s.Updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *Store) ListSchemas(ctx context.Context) ([]models.Schema, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT version, description, schema_json, created, updated FROM ai_schemas ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Schema
	for rows.Next() {
		var s models.Schema
		if err := rows.Scan(&s.Version, &s.Description, &s.SchemaJSON, &s.Created, &s.Updated); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Store) DeleteSchema(ctx context.Context, version string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM ai_schemas WHERE version = ?`, version)
	return err
}
