package store

import (
	"errors"
	"time"

	"docintake/pkg/domain"
)

// ErrDuplicate is returned when a write violates a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// Store defines persistence operations for accounts, datasets, uploads and
// the message catalogue.
type Store interface {
	// accounts
	SaveAccount(domain.Account) error
	HasAccountEmail(email string) (bool, error)
	GetAccountByEmail(email string) (domain.Account, bool, error)
	GetAccountByID(id string) (domain.Account, bool, error)

	// datasets
	SaveDataset(domain.Dataset) error
	GetDataset(id string) (domain.Dataset, bool, error)
	ListDatasetsByTenant(tenantID string) ([]domain.Dataset, error)

	// uploads
	SaveUploadBatch(batch domain.DocumentBatch, docs []domain.Document) error
	GetBatch(id string) (domain.DocumentBatch, bool, error)
	GetDocument(id string) (domain.Document, bool, error)
	ListDocumentsByBatch(batchID string) ([]domain.Document, error)

	// message catalogue
	SaveMessage(domain.Message) error
	GetMessage(code, language string) (domain.Message, bool, error)
	ListActiveMessages(language string) ([]domain.Message, error)
}

// Migrator is an optional capability that creates or updates the schema.
type Migrator interface {
	Migrate() error
}

// PoolStats describes the connection pool behind a store.
type PoolStats struct {
	PoolSize  int
	MaxOpen   int
	Open      int
	InUse     int
	Idle      int
	Overflow  int
	WaitCount int64
	Timeout   time.Duration
	Recycle   time.Duration
}

// PoolReporter is an optional capability exposing connection pool usage.
type PoolReporter interface {
	PoolStats() (PoolStats, error)
}
