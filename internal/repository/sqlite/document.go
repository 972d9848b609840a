package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/garnizeh/opphub/pkg/docstore"
)

func encode(data any) (string, error) {
	switch v := data.(type) {
	case json.RawMessage:
		return string(v), nil
	case []byte:
		return string(v), nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	return string(b), nil
}

func checkCollection(collection string) error {
	if !docstore.ValidCollection(collection) {
		return fmt.Errorf("%w: collection %q", docstore.ErrInvalidQuery, collection)
	}

	return nil
}

// fieldExpr returns the json_extract expression for a validated field name.
// The path is inlined so SQLite can match declared expression indexes.
func fieldExpr(field string) (string, error) {
	if !docstore.ValidName(field) {
		return "", fmt.Errorf("%w: field %q", docstore.ErrInvalidQuery, field)
	}

	return "json_extract(data, '$." + field + "')", nil
}

func (r *SQLiteRepo) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}

	row := r.conn.QueryRow(ctx, `SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id)
	var data string
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}

	return &docstore.Document{ID: id, Data: json.RawMessage(data)}, nil
}

func (r *SQLiteRepo) Add(ctx context.Context, collection string, data any) (string, error) {
	id := uuid.NewString()
	if err := r.Create(ctx, collection, id, data); err != nil {
		return "", err
	}

	return id, nil
}

func (r *SQLiteRepo) Create(ctx context.Context, collection, id string, data any) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	body, err := encode(data)
	if err != nil {
		return err
	}

	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO documents (collection, id, data, created, updated) VALUES (?, ?, ?, ?, ?) ON CONFLICT(collection, id) DO NOTHING`, collection, id, body, ts, ts)
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return docstore.ErrAlreadyExists
	}

	return nil
}

func (r *SQLiteRepo) Set(ctx context.Context, collection, id string, data any) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	body, err := encode(data)
	if err != nil {
		return err
	}

	ts := now()
	_, err = r.conn.Exec(ctx, `INSERT INTO documents (collection, id, data, created, updated) VALUES (?, ?, ?, ?, ?) ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, updated = excluded.updated`, collection, id, body, ts, ts)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}

	return nil
}

// Update merges fields with json_patch; a nil value removes the field.
func (r *SQLiteRepo) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	patch, err := encode(fields)
	if err != nil {
		return err
	}

	res, err := r.conn.Exec(ctx, `UPDATE documents SET data = json_patch(data, ?), updated = ? WHERE collection = ? AND id = ?`, patch, now(), collection, id)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return docstore.ErrNotFound
	}

	return nil
}

func (r *SQLiteRepo) Delete(ctx context.Context, collection, id string) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	if _, err := r.conn.Exec(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}

	return nil
}

// BatchDelete removes ids in one transaction.
func (r *SQLiteRepo) BatchDelete(ctx context.Context, collection string, ids []string) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.conn.BeginTx(ctx)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, collection, id); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("batch delete %s/%s: %w", collection, id, err)
		}
	}

	return tx.Commit()
}

// Query runs equality filters with an optional descending order. Ordered
// queries that filter on another field fail with a *docstore.IndexError
// unless a matching composite index was declared.
func (r *SQLiteRepo) Query(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}

	var (
		where = []string{"collection = ?"}
		args  = []any{collection}
	)
	for _, f := range q.Where {
		expr, err := fieldExpr(f.Field)
		if err != nil {
			return nil, err
		}
		where = append(where, expr+" = ?")
		args = append(args, f.Value)
	}

	order := "id"
	if q.OrderBy != "" {
		expr, err := fieldExpr(q.OrderBy)
		if err != nil {
			return nil, err
		}
		order = expr + " DESC, id"
	}

	if r.enforceIndexes.Load() && q.NeedsIndex() {
		ok, err := r.hasIndex(ctx, docstore.IndexName(collection, q.Fields(), q.OrderBy))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &docstore.IndexError{Collection: docstore.CollectionID(collection), Fields: q.Fields(), OrderBy: q.OrderBy}
		}
	}

	limit := -1
	if q.Limit > 0 {
		limit = q.Limit
	}
	args = append(args, limit)

	stmt := `SELECT id, data FROM documents WHERE ` + strings.Join(where, " AND ") + ` ORDER BY ` + order + ` LIMIT ?`
	rows, err := r.conn.QueryRows(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	out := make([]docstore.Document, 0)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		out = append(out, docstore.Document{ID: id, Data: json.RawMessage(data)})
	}

	return out, rows.Err()
}
