package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/garnizeh/opphub/internal/models"
)

const jobColumns = `id, type, payload, status, attempts, max_attempts, priority, scheduled_at, next_try_at, last_error, created, updated`

// Enqueue inserts a job into the jobs table and returns the new ID
func (r *SQLiteRepo) Enqueue(ctx context.Context, j *models.BackgroundJob) (int64, error) {
	if j == nil {
		return 0, fmt.Errorf("job is nil")
	}
	if j.MaxAttempts == 0 {
		j.MaxAttempts = 5
	}
	if j.ScheduledAt.IsZero() {
		j.ScheduledAt = time.Now()
	}

	ts := now()
	q := `INSERT INTO jobs(type, payload, status, attempts, max_attempts, priority, scheduled_at, created, updated) VALUES(?,?,?,?,?,?,?,?,?)`
	res, err := r.conn.Exec(ctx, q, j.Type, string(j.Payload), "queued", j.Attempts, j.MaxAttempts, j.Priority, j.ScheduledAt.UTC().Unix(), ts, ts)
	if err != nil {
		return 0, fmt.Errorf("enqueue failed: %w", err)
	}

	return res.LastInsertId()
}

// FetchNext claims the next available job respecting priority and schedule.
// The claim marks the row running in the same statement so two workers never
// receive the same job.
func (r *SQLiteRepo) FetchNext(ctx context.Context) (*models.BackgroundJob, error) {
	q := `UPDATE jobs SET status = 'running', updated = ? WHERE id = (SELECT id FROM jobs WHERE (status = 'queued' OR status = 'retry') AND (next_try_at IS NULL OR next_try_at <= ?) AND scheduled_at <= ? ORDER BY priority ASC, scheduled_at ASC LIMIT 1) RETURNING ` + jobColumns
	unix := time.Now().UTC().Unix()
	row := r.conn.QueryRow(ctx, q, now(), unix, unix)
	var (
		id          int64
		typ         string
		payload     sql.NullString
		status      string
		attempts    int
		maxAttempts int
		priority    int
		scheduledAt int64
		nextTry     sql.NullInt64
		lastError   sql.NullString
		created     int64
		updated     int64
	)
	if err := row.Scan(&id, &typ, &payload, &status, &attempts, &maxAttempts, &priority, &scheduledAt, &nextTry, &lastError, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, fmt.Errorf("fetch next job: %w", err)
	}

	j := &models.BackgroundJob{
		ID:          id,
		Type:        typ,
		Status:      status,
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
		Priority:    priority,
		ScheduledAt: time.Unix(scheduledAt, 0),
		Created:     time.UnixMilli(created),
		Updated:     time.UnixMilli(updated),
	}
	if payload.Valid && payload.String != "" {
		j.Payload = json.RawMessage(payload.String)
	}
	if nextTry.Valid {
		t := time.Unix(nextTry.Int64, 0)
		j.NextTryAt = &t
	}
	if lastError.Valid {
		j.LastError = lastError.String
	}

	return j, nil
}

// UpdateJob updates attempts, status, next_try_at, last_error
func (r *SQLiteRepo) UpdateJob(ctx context.Context, j *models.BackgroundJob) error {
	var nextTry any
	if j.NextTryAt != nil {
		nextTry = j.NextTryAt.Unix()
	}
	q := `UPDATE jobs SET status = ?, attempts = ?, next_try_at = ?, last_error = ?, updated = ? WHERE id = ?`
	_, err := r.conn.Exec(ctx, q, j.Status, j.Attempts, nextTry, j.LastError, now(), j.ID)

	return err
}

// MoveToDeadLetter moves a job to dead_letter_jobs and deletes the original
func (r *SQLiteRepo) MoveToDeadLetter(ctx context.Context, j *models.BackgroundJob) error {
	tx, err := r.conn.BeginTx(ctx)
	if err != nil {
		return err
	}

	insert := `INSERT INTO dead_letter_jobs(job_id, type, payload, attempts, last_error, failed_at) VALUES(?,?,?,?,?,?)`
	if _, err := tx.ExecContext(ctx, insert, j.ID, j.Type, string(j.Payload), j.Attempts, j.LastError, time.Now().UTC().Unix()); err != nil {
		_ = tx.Rollback()
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, j.ID); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// ListDeadLetters returns the most recent failed jobs.
func (r *SQLiteRepo) ListDeadLetters(ctx context.Context, limit int) ([]models.DeadLetterJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.conn.QueryRows(ctx, `SELECT id, job_id, type, payload, attempts, last_error, failed_at FROM dead_letter_jobs ORDER BY failed_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DeadLetterJob
	for rows.Next() {
		var (
			d         models.DeadLetterJob
			payload   sql.NullString
			lastError sql.NullString
			failedAt  int64
		)
		if err := rows.Scan(&d.ID, &d.JobID, &d.Type, &payload, &d.Attempts, &lastError, &failedAt); err != nil {
			return nil, err
		}
		if payload.Valid && payload.String != "" {
			d.Payload = json.RawMessage(payload.String)
		}
		d.LastError = lastError.String
		d.FailedAt = time.Unix(failedAt, 0)
		out = append(out, d)
	}

	return out, rows.Err()
}
