package repository

import (
	"context"

	"github.com/garnizeh/opphub/internal/models"
	"github.com/garnizeh/opphub/pkg/docstore"
)

// Repository interfaces for the hub's persistence. These are the public
// contracts consumers depend on; concrete implementations live under internal/.

// DocumentRepo is the document store plus index management.
type DocumentRepo interface {
	docstore.Store
	DeclareIndex(ctx context.Context, collection string, fields []string, orderBy string) error
	ListIndexes(ctx context.Context) ([]models.Index, error)
}

type SchemaRepo interface {
	CreateSchema(ctx context.Context, name, version, description, schemaJSON string) (int64, error)
	GetSchema(ctx context.Context, name, version string) (*models.Schema, error)
	ListSchemas(ctx context.Context) ([]models.Schema, error)
	DeleteSchema(ctx context.Context, name, version string) error
}

type JobRepo interface {
	Enqueue(ctx context.Context, j *models.BackgroundJob) (int64, error)
	FetchNext(ctx context.Context) (*models.BackgroundJob, error)
	UpdateJob(ctx context.Context, j *models.BackgroundJob) error
	MoveToDeadLetter(ctx context.Context, j *models.BackgroundJob) error
	ListDeadLetters(ctx context.Context, limit int) ([]models.DeadLetterJob, error)
}
