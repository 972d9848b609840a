package models

import (
	"encoding/json"
	"time"
)

// Schema is a stored JSON schema used to validate document payloads.
type Schema struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Version     string `json:"version" db:"version"`
	Description string `json:"description,omitempty" db:"description"`
	SchemaJSON  string `json:"schema_json" db:"schema_json"`
	Created     int64  `json:"created" db:"created"`
	Updated     int64  `json:"updated" db:"updated"`
}

// Index is a declared composite index.
type Index struct {
	Name       string   `json:"name" db:"name"`
	Collection string   `json:"collection" db:"collection"`
	Fields     []string `json:"fields" db:"fields"`
	OrderBy    string   `json:"order_by" db:"order_by"`
	Created    int64    `json:"created" db:"created"`
}

type BackgroundJob struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Priority    int             `json:"priority"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	NextTryAt   *time.Time      `json:"next_try_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Created     time.Time       `json:"created"`
	Updated     time.Time       `json:"updated"`
}

// DeadLetterJob is a job that exhausted its attempts.
type DeadLetterJob struct {
	ID        int64           `json:"id"`
	JobID     int64           `json:"job_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"last_error,omitempty"`
	FailedAt  time.Time       `json:"failed_at"`
}
