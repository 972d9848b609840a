package sqlite

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/garnizeh/opphub/internal/db"
	"github.com/garnizeh/opphub/pkg/docstore"
	"github.com/garnizeh/opphub/pkg/repository"
)

// SQLiteRepo implements repository interfaces using the internal DB wrapper.
type SQLiteRepo struct {
	conn           *db.DB
	logger         *slog.Logger
	enforceIndexes atomic.Bool
}

// Ensure SQLiteRepo implements the public interfaces.
var _ docstore.Store = (*SQLiteRepo)(nil)
var _ repository.DocumentRepo = (*SQLiteRepo)(nil)
var _ repository.SchemaRepo = (*SQLiteRepo)(nil)
var _ repository.JobRepo = (*SQLiteRepo)(nil)

// New returns a repository with composite index enforcement on.
func New(conn *db.DB, logger *slog.Logger) *SQLiteRepo {
	if logger == nil {
		logger = slog.Default()
	}
	r := &SQLiteRepo{conn: conn, logger: logger}
	r.enforceIndexes.Store(true)

	return r
}

// EnforceIndexes toggles the composite index requirement on ordered queries.
func (r *SQLiteRepo) EnforceIndexes(on bool) {
	r.enforceIndexes.Store(on)
}

func now() int64 {
	return time.Now().UTC().UnixMilli()
}
