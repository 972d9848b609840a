package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"

	dbfs "github.com/garnizeh/opphub/db"
	"github.com/garnizeh/opphub/internal/config"
	"github.com/garnizeh/opphub/internal/db"
	"github.com/garnizeh/opphub/internal/hub"
	"github.com/garnizeh/opphub/internal/repository/sqlite"
	"github.com/garnizeh/opphub/pkg/docstore"
	"github.com/garnizeh/opphub/pkg/models"
)

// open returns the repository over the configured database. The caller
// closes the returned DB.
func open(ctx context.Context, cfg *config.Config) (*db.DB, *sqlite.SQLiteRepo, error) {
	database, err := db.New(ctx, cfg.DatabasePath, nil)
	if err != nil {
		return nil, nil, err
	}

	return database, sqlite.New(database, nil), nil
}

func migrate(ctx context.Context, cfg *config.Config) error {
	database, err := db.New(ctx, cfg.DatabasePath, nil)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(ctx, database, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		return fmt.Errorf("migration runner: %w", err)
	}
	pterm.Success.Printfln("Database %s initialized.", cfg.DatabasePath)

	return nil
}

// backup uses VACUUM INTO so the copy is consistent while the server runs.
func backup(ctx context.Context, cfg *config.Config, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("backup target %s already exists", dst)
	}

	database, err := db.New(ctx, cfg.DatabasePath, nil)
	if err != nil {
		return err
	}
	defer database.Close()

	if _, err := database.Exec(ctx, "VACUUM INTO ?", dst); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	if st, err := os.Stat(dst); err == nil {
		pterm.Success.Printfln("Backup written to %s (%s).", dst, humanize.Bytes(uint64(st.Size())))
	}

	return nil
}

// restore copies src over the database file. The server must be stopped.
func restore(cfg *config.Config, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	defer in.Close()

	out, err := os.Create(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	defer out.Close()

	n, err := io.Copy(out, in)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(cfg.DatabasePath + suffix)
	}
	pterm.Success.Printfln("Database restored from %s (%s).", src, humanize.Bytes(uint64(n)))

	return nil
}

func setRole(ctx context.Context, cfg *config.Config, email string, admin bool) error {
	database, repo, err := open(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	email = strings.ToLower(strings.TrimSpace(email))
	docs, err := repo.Query(ctx, models.CollUsers, docstore.Where("email", email).Take(1))
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("no profile for %s: %w", email, docstore.ErrNotFound)
	}

	role := models.RoleUser
	if admin {
		role = models.RoleAdmin
	}
	if err := repo.Update(ctx, models.CollUsers, docs[0].ID, map[string]any{"role": role}); err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	pterm.Success.Printfln("%s is now %s. Active sessions pick this up on next sign-in.", email, role)

	return nil
}

func declareIndexes(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	database, repo, err := open(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	for _, idx := range cfg.Indexes {
		if err := repo.DeclareIndex(ctx, idx.Collection, idx.Fields, idx.OrderBy); err != nil {
			return fmt.Errorf("declare index on %s: %w", idx.Collection, err)
		}
	}

	indexes, err := repo.ListIndexes(ctx)
	if err != nil {
		return fmt.Errorf("list indexes: %w", err)
	}
	data := pterm.TableData{{"Name", "Collection", "Fields", "Order by", "Created"}}
	for _, idx := range indexes {
		data = append(data, []string{
			idx.Name, idx.Collection, strings.Join(idx.Fields, ", "), idx.OrderBy,
			humanize.Time(time.UnixMilli(idx.Created)),
		})
	}

	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func newHub(repo docstore.Store) *hub.Hub {
	return hub.New(repo, hub.Options{})
}

func printLogs(ctx context.Context, cfg *config.Config, limit int) error {
	database, repo, err := open(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	logs := newHub(repo).RecentLogs(ctx, limit)
	if len(logs) == 0 {
		pterm.Info.Println("No audit entries.")
		return nil
	}

	data := pterm.TableData{{"When", "User", "Action", "Details"}}
	for _, l := range logs {
		data = append(data, []string{
			humanize.Time(time.UnixMilli(l.Timestamp)), l.UserEmail, l.Action, l.Details,
		})
	}

	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func exportLogs(ctx context.Context, cfg *config.Config, path string) error {
	database, repo, err := open(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer f.Close()

	logs := newHub(repo).RecentLogs(ctx, hub.LogExportLimit)
	if err := hub.WriteLogReport(f, logs, time.Now()); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	pterm.Success.Printfln("Exported %s audit entries to %s.", humanize.Comma(int64(len(logs))), path)

	return nil
}
