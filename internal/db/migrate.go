package db

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Migrate applies migrations and seed files. It creates a `schema_migrations`
// table to track applied migrations and applies any SQL files under
// `migrations/` that have not yet been recorded. JSON files under `seed/` are
// document schemas named `<name>_<version>.json`; they are inserted once and
// never overwrite a schema an administrator already stored.
func Migrate(ctx context.Context, d *DB, migrationFS fs.FS, seedFS fs.FS) error {
	if _, err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	files, err := listFiles(migrationFS, "migrations", ".sql")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	for _, fname := range files {
		version := strings.TrimSuffix(fname, path.Ext(fname))

		var count int
		row := d.QueryRow(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, version)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("scan migration applied count: %w", err)
		}
		if count > 0 {
			continue
		}

		b, err := fs.ReadFile(migrationFS, path.Join("migrations", fname))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", fname, err)
		}
		if _, err := d.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec migration %s: %w", fname, err)
		}

		if _, err := d.Exec(ctx, `INSERT INTO schema_migrations (version, applied) VALUES (?, strftime('%s','now'))`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", fname, err)
		}
		d.logger.Info("migration applied", "version", version)
	}

	if seedFS == nil {
		return nil
	}

	seeds, err := listFiles(seedFS, "seed", ".json")
	if err != nil {
		// seed directory is optional
		return nil
	}
	for _, fname := range seeds {
		name, version, ok := strings.Cut(strings.TrimSuffix(fname, path.Ext(fname)), "_")
		if !ok || name == "" || version == "" {
			return fmt.Errorf("seed %s: expected <name>_<version>.json", fname)
		}

		b, err := fs.ReadFile(seedFS, path.Join("seed", fname))
		if err != nil {
			return fmt.Errorf("read seed %s: %w", fname, err)
		}
		if _, err := d.Exec(ctx, `INSERT INTO doc_schemas (name, version, description, schema_json, created, updated) VALUES (?, ?, ?, ?, strftime('%s','now'), strftime('%s','now')) ON CONFLICT(name, version) DO NOTHING`, name, version, "seeded "+fname, string(b)); err != nil {
			return fmt.Errorf("seed schema %s: %w", fname, err)
		}
	}

	return nil
}

func listFiles(fsys fs.FS, dir, ext string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	return files, nil
}
