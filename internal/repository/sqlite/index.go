package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/garnizeh/opphub/internal/models"
	"github.com/garnizeh/opphub/pkg/docstore"
)

// DeclareIndex records a composite index and materializes it as an SQLite
// expression index over the documents table.
func (r *SQLiteRepo) DeclareIndex(ctx context.Context, collection string, fields []string, orderBy string) error {
	id := docstore.CollectionID(collection)
	if !docstore.ValidName(id) || len(fields) == 0 {
		return fmt.Errorf("%w: index on %q", docstore.ErrInvalidQuery, collection)
	}

	cols := make([]string, 0, len(fields)+2)
	cols = append(cols, "collection")
	for _, f := range fields {
		expr, err := fieldExpr(f)
		if err != nil {
			return err
		}
		cols = append(cols, expr)
	}
	orderExpr, err := fieldExpr(orderBy)
	if err != nil {
		return err
	}
	cols = append(cols, orderExpr+" DESC")

	name := docstore.IndexName(collection, fields, orderBy)
	if _, err := r.conn.Exec(ctx, `CREATE INDEX IF NOT EXISTS `+name+` ON documents (`+strings.Join(cols, ", ")+`)`); err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}

	b, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	if _, err := r.conn.Exec(ctx, `INSERT INTO doc_indexes (name, collection, fields, order_by, created) VALUES (?, ?, ?, ?, ?) ON CONFLICT(name) DO NOTHING`, name, id, string(b), orderBy, now()); err != nil {
		return fmt.Errorf("record index %s: %w", name, err)
	}
	r.logger.Info("composite index declared", "name", name)

	return nil
}

func (r *SQLiteRepo) hasIndex(ctx context.Context, name string) (bool, error) {
	var n int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM doc_indexes WHERE name = ?`, name).Scan(&n); err != nil {
		return false, fmt.Errorf("lookup index %s: %w", name, err)
	}

	return n > 0, nil
}

func (r *SQLiteRepo) ListIndexes(ctx context.Context) ([]models.Index, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT name, collection, fields, order_by, created FROM doc_indexes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Index
	for rows.Next() {
		var (
			idx    models.Index
			fields string
		)
		if err := rows.Scan(&idx.Name, &idx.Collection, &fields, &idx.OrderBy, &idx.Created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(fields), &idx.Fields); err != nil {
			return nil, fmt.Errorf("decode index %s fields: %w", idx.Name, err)
		}
		out = append(out, idx)
	}

	return out, rows.Err()
}
