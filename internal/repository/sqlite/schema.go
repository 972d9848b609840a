package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/opphub/internal/models"
	"github.com/garnizeh/opphub/pkg/docstore"
)

const schemaColumns = `id, name, version, description, schema_json, created, updated`

type scanner interface {
	Scan(dest ...any) error
}

func scanSchema(row scanner) (models.Schema, error) {
	var s models.Schema
	var desc sql.NullString
	err := row.Scan(&s.ID, &s.Name, &s.Version, &desc, &s.SchemaJSON, &s.Created, &s.Updated)
	s.Description = desc.String

	return s, err
}

// CreateSchema stores a schema, replacing the body and description of an
// existing name and version.
func (r *SQLiteRepo) CreateSchema(ctx context.Context, name, version, description, schemaJSON string) (int64, error) {
	res, err := r.conn.Exec(ctx, `INSERT INTO doc_schemas (name, version, description, schema_json, created, updated)
		VALUES (?, ?, ?, ?, strftime('%s','now'), strftime('%s','now'))
		ON CONFLICT(name, version) DO UPDATE SET description = excluded.description, schema_json = excluded.schema_json, updated = strftime('%s','now')`,
		name, version, description, schemaJSON)
	if err != nil {
		return 0, fmt.Errorf("store schema %s %s: %w", name, version, err)
	}

	return res.LastInsertId()
}

// GetSchema returns nil, nil when the schema does not exist.
func (r *SQLiteRepo) GetSchema(ctx context.Context, name, version string) (*models.Schema, error) {
	s, err := scanSchema(r.conn.QueryRow(ctx, `SELECT `+schemaColumns+` FROM doc_schemas WHERE name = ? AND version = ?`, name, version))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schema %s %s: %w", name, version, err)
	}

	return &s, nil
}

func (r *SQLiteRepo) ListSchemas(ctx context.Context) ([]models.Schema, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+schemaColumns+` FROM doc_schemas ORDER BY name, version`)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	defer rows.Close()

	var out []models.Schema
	for rows.Next() {
		s, err := scanSchema(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schema: %w", err)
		}
		out = append(out, s)
	}

	return out, rows.Err()
}

// DeleteSchema removes one version. A missing schema is ErrNotFound.
func (r *SQLiteRepo) DeleteSchema(ctx context.Context, name, version string) error {
	res, err := r.conn.Exec(ctx, `DELETE FROM doc_schemas WHERE name = ? AND version = ?`, name, version)
	if err != nil {
		return fmt.Errorf("delete schema %s %s: %w", name, version, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("schema %s %s: %w", name, version, docstore.ErrNotFound)
	}

	return nil
}
