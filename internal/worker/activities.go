// Package worker runs the compilation pipeline as Temporal workflows and
// activities: company orchestration, document processing and per-statement
// compilation.
package worker

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/sells-group/finstat/internal/fetch"
	"github.com/sells-group/finstat/internal/model"
	"github.com/sells-group/finstat/internal/normalize"
	"github.com/sells-group/finstat/internal/store"
)

// Discoverer finds source documents for a company.
type Discoverer interface {
	Discover(ctx context.Context, company model.Company) ([]model.Document, error)
}

// Extractor pulls statement line items out of free-form report text.
type Extractor interface {
	Extract(ctx context.Context, text string, st model.StatementType) ([]model.RawLineItem, error)
}

// Activities bundles the pipeline dependencies behind Temporal activity
// methods. All collaborators are injected; nothing here reaches for globals
// beyond the process logger.
type Activities struct {
	Store      store.Store
	Normalizer *normalize.Normalizer
	Fetcher    fetch.Fetcher
	Extractor  Extractor
	Discoverer Discoverer

	DownloadDir string
	Concurrency int
}

// LeaseRequest identifies a per-company orchestration lease.
type LeaseRequest struct {
	CompanyID string `json:"company_id"`
	Holder    string `json:"holder"`
	TTLSecs   int    `json:"ttl_secs"`
}

// VerifyCompany loads the company, failing fast when it does not exist.
func (a *Activities) VerifyCompany(ctx context.Context, companyID string) (*model.Company, error) {
	company, err := a.Store.GetCompany(ctx, companyID)
	if err != nil {
		return nil, asActivityError(eris.Wrapf(err, "worker: verify company %s", companyID))
	}
	return company, nil
}

// AcquireLease takes the per-company advisory lease. Returns false when
// another orchestration run holds a live lease.
func (a *Activities) AcquireLease(ctx context.Context, req LeaseRequest) (bool, error) {
	ttl := time.Duration(req.TTLSecs) * time.Second
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	ok, err := a.Store.AcquireLease(ctx, req.CompanyID, req.Holder, ttl)
	if err != nil {
		return false, asActivityError(err)
	}
	return ok, nil
}

// ReleaseLease drops the per-company advisory lease.
func (a *Activities) ReleaseLease(ctx context.Context, req LeaseRequest) error {
	if err := a.Store.ReleaseLease(ctx, req.CompanyID, req.Holder); err != nil {
		// The lease expires on its own; releasing is best-effort.
		zap.L().Warn("worker: release lease failed",
			zap.String("company_id", req.CompanyID), zap.Error(err))
	}
	return nil
}

// DiscoverDocuments asks the discovery collaborator for the company's source
// documents and upserts them. A permanent rejection from the source degrades
// to an empty result, not a failure.
func (a *Activities) DiscoverDocuments(ctx context.Context, companyID string) ([]model.Document, error) {
	company, err := a.Store.GetCompany(ctx, companyID)
	if err != nil {
		return nil, asActivityError(err)
	}

	found, err := a.Discoverer.Discover(ctx, *company)
	if err != nil {
		if kind, terminal := terminalDiscoveryKind(err); terminal {
			zap.L().Warn("worker: discovery degraded to empty result",
				zap.String("company_id", companyID),
				zap.String("kind", kind),
				zap.Error(err))
			return []model.Document{}, nil
		}
		return nil, asActivityError(eris.Wrapf(err, "worker: discover documents for %s", companyID))
	}

	docs := make([]model.Document, 0, len(found))
	for i, doc := range found {
		activity.RecordHeartbeat(ctx, i)
		stored, err := a.Store.UpsertDocument(ctx, doc)
		if err != nil {
			return nil, asActivityError(err)
		}
		docs = append(docs, *stored)
	}
	return docs, nil
}
