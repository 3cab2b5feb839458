package worker

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/finstat/internal/extract"
	"github.com/sells-group/finstat/internal/fetch"
	"github.com/sells-group/finstat/internal/model"
	"github.com/sells-group/finstat/internal/resilience"
)

// ProcessDocumentsRequest carries the discovered documents to download and
// extract.
type ProcessDocumentsRequest struct {
	Documents []model.Document `json:"documents"`
}

// ProcessDocuments downloads and extracts every document concurrently,
// best-effort: a document that fails to download or extract is logged and
// skipped, never failing the batch. Returns the number of documents fully
// processed.
func (a *Activities) ProcessDocuments(ctx context.Context, req ProcessDocumentsRequest) (int, error) {
	concurrency := a.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	var processed atomic.Int64
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, doc := range req.Documents {
		doc := doc
		g.Go(func() error {
			if err := a.processDocument(gctx, doc); err != nil {
				zap.L().Warn("worker: document processing failed",
					zap.String("document_id", doc.ID),
					zap.String("url", doc.URL),
					zap.Error(err))
			} else {
				processed.Add(1)
			}
			activity.RecordHeartbeat(ctx, done.Add(1))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(processed.Load()), asActivityError(err)
	}
	return int(processed.Load()), nil
}

// processDocument downloads one document and replaces its extractions for
// every statement type that yields line items.
func (a *Activities) processDocument(ctx context.Context, doc model.Document) error {
	localPath := doc.FilePath
	if localPath == "" {
		if err := os.MkdirAll(a.DownloadDir, 0o755); err != nil {
			return eris.Wrap(err, "worker: create download dir")
		}
		localPath = filepath.Join(a.DownloadDir, doc.ID+path.Ext(doc.URL))
		if _, err := fetch.SaveTo(ctx, a.Fetcher, doc.URL, localPath); err != nil {
			return eris.Wrapf(err, "worker: download %s", doc.URL)
		}
	}

	for _, st := range model.AllStatementTypes {
		items, err := a.extractStatement(ctx, localPath, st)
		if err != nil {
			if resilience.Classify(err) == resilience.KindValidation {
				zap.L().Warn("worker: skipping invalid extraction",
					zap.String("document_id", doc.ID),
					zap.String("statement_type", string(st)),
					zap.Error(err))
				continue
			}
			return err
		}
		if len(items) == 0 {
			continue
		}

		if _, err := a.Store.ReplaceExtraction(ctx, model.RawExtraction{
			ID:            uuid.NewString(),
			DocumentID:    doc.ID,
			CompanyID:     doc.CompanyID,
			StatementType: st,
			FiscalYear:    doc.FiscalYear,
			LineItems:     items,
		}); err != nil {
			return err
		}
	}
	return nil
}

// extractStatement picks the extraction strategy by file type: worksheets are
// parsed directly, everything else goes through the LLM extractor.
func (a *Activities) extractStatement(ctx context.Context, localPath string, st model.StatementType) ([]model.RawLineItem, error) {
	if strings.EqualFold(filepath.Ext(localPath), ".xlsx") {
		items, err := extract.ExtractXLSX(localPath, extract.XLSXOptions{SheetName: sheetNameFor(st)})
		if errors.Is(err, extract.ErrSheetNotFound) {
			return nil, nil
		}
		return items, err
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, eris.Wrapf(err, "worker: read %s", localPath)
	}
	return a.Extractor.Extract(ctx, string(data), st)
}

// sheetNameFor maps a statement type to the worksheet name convention used in
// report workbooks.
func sheetNameFor(st model.StatementType) string {
	switch st {
	case model.StatementIncome:
		return "Income Statement"
	case model.StatementBalance:
		return "Balance Sheet"
	case model.StatementCashFlow:
		return "Cash Flow"
	default:
		return ""
	}
}
