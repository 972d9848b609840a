package hub

import (
	"context"
	"fmt"
	"io"

	"github.com/garnizeh/opphub/internal/auth"
	"github.com/garnizeh/opphub/internal/catalog"
	"github.com/garnizeh/opphub/pkg/docstore"
	"github.com/garnizeh/opphub/pkg/models"
)

const (
	// LogListLimit caps the admin log table.
	LogListLimit = 100
	// LogExportLimit caps the exported report.
	LogExportLimit = 500
)

// RecentLogs returns up to limit audit entries, newest first. It needs no
// session and backs the admin CLI.
func (h *Hub) RecentLogs(ctx context.Context, limit int) []models.UserLogEntry {
	logs, _ := catalog.Cascade[models.UserLogEntry]{
		Collection: models.CollUserLogs,
		OrderBy:    "timestamp",
		Limit:      limit,
		Decode:     models.DecodeLogEntry,
		SortKey:    func(l models.UserLogEntry) int64 { return l.Timestamp },
		Logger:     h.logger,
	}.Fetch(ctx, h.store)

	return logs
}

// Logs lists the latest audit entries.
func (h *Hub) Logs(ctx context.Context, id *auth.Identity) ([]models.UserLogEntry, error) {
	if _, err := h.requireAdmin(ctx, id); err != nil {
		return nil, err
	}

	return h.RecentLogs(ctx, LogListLimit), nil
}

func (h *Hub) DeleteLog(ctx context.Context, id *auth.Identity, logID string) error {
	if _, err := h.requireAdmin(ctx, id); err != nil {
		return err
	}
	if err := h.store.Delete(ctx, models.CollUserLogs, logID); err != nil {
		return fmt.Errorf("delete log: %w", err)
	}

	return nil
}

// ClearLogs deletes every audit entry in one batch and returns how many.
func (h *Hub) ClearLogs(ctx context.Context, id *auth.Identity) (int, error) {
	if _, err := h.requireAdmin(ctx, id); err != nil {
		return 0, err
	}

	docs, err := h.store.Query(ctx, models.CollUserLogs, docstore.Query{})
	if err != nil {
		return 0, fmt.Errorf("list logs: %w", err)
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	if err := h.store.BatchDelete(ctx, models.CollUserLogs, ids); err != nil {
		return 0, fmt.Errorf("clear logs: %w", err)
	}
	h.logger.Info("audit log cleared", "count", len(ids), "by", id.UID)

	return len(ids), nil
}

// ExportLogs writes the printable report of the latest entries to w.
func (h *Hub) ExportLogs(ctx context.Context, id *auth.Identity, w io.Writer) error {
	if _, err := h.requireAdmin(ctx, id); err != nil {
		return err
	}

	return WriteLogReport(w, h.RecentLogs(ctx, LogExportLimit), h.now())
}
