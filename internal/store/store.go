// Package store persists companies, documents, raw extractions and compiled
// statements, with Postgres and SQLite backends.
package store

import (
	"context"
	"time"

	"github.com/sells-group/finstat/internal/model"
)

// Store is the persistence interface for the compilation pipeline.
//
// Compiled statements are unique on (company ID, statement type): UpsertStatement
// overwrites in place atomically, so readers never observe a partially
// written row. Raw extractions are unique on (document ID, statement type)
// and replaced wholesale on re-extraction.
type Store interface {
	// Companies
	GetCompany(ctx context.Context, id string) (*model.Company, error)
	CreateCompany(ctx context.Context, c model.Company) (*model.Company, error)

	// Documents
	UpsertDocument(ctx context.Context, doc model.Document) (*model.Document, error)
	ListDocuments(ctx context.Context, companyID string) ([]model.Document, error)

	// Raw extractions. FetchExtractions joins the owning document for the
	// fiscal year; an empty result is not an error.
	ReplaceExtraction(ctx context.Context, ext model.RawExtraction) (*model.RawExtraction, error)
	FetchExtractions(ctx context.Context, companyID string, st model.StatementType) ([]model.RawExtraction, error)

	// Compiled statements
	UpsertStatement(ctx context.Context, stmt *model.CompiledStatement) (*model.CompiledStatement, error)
	GetStatement(ctx context.Context, companyID string, st model.StatementType) (*model.CompiledStatement, error)

	// Per-company advisory lease. AcquireLease returns false without error
	// when another holder has a live lease; an expired lease is taken over.
	AcquireLease(ctx context.Context, companyID, holder string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, companyID, holder string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
