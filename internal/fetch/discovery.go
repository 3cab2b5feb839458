package fetch

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/finstat/internal/model"
)

// IndexDiscoverer finds source documents for a company by querying a filings
// index endpoint. The index serves one JSON document per company listing its
// published reports.
type IndexDiscoverer struct {
	fetcher Fetcher
	baseURL string
}

// NewIndexDiscoverer creates an IndexDiscoverer rooted at baseURL.
func NewIndexDiscoverer(fetcher Fetcher, baseURL string) *IndexDiscoverer {
	return &IndexDiscoverer{fetcher: fetcher, baseURL: strings.TrimRight(baseURL, "/")}
}

// indexEntry is one filing in the index response.
type indexEntry struct {
	URL          string `json:"url"`
	FiscalYear   int    `json:"fiscal_year"`
	DocumentType string `json:"document_type"`
}

// Discover fetches the company's filings index and returns document records.
// Entries without a URL or fiscal year are skipped with a warning.
func (d *IndexDiscoverer) Discover(ctx context.Context, company model.Company) ([]model.Document, error) {
	key := company.Ticker
	if key == "" {
		key = company.ID
	}
	indexURL := d.baseURL + "/companies/" + key + "/filings.json"

	rc, err := d.fetcher.Fetch(ctx, indexURL)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: read filings index %s", indexURL)
	}

	var entries []indexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrapf(err, "fetch: decode filings index %s", indexURL)
	}

	var docs []model.Document
	for i, e := range entries {
		if e.URL == "" || e.FiscalYear == 0 {
			zap.L().Warn("fetch: skipping malformed filings index entry",
				zap.String("company_id", company.ID), zap.Int("index", i))
			continue
		}
		docs = append(docs, model.Document{
			CompanyID:    company.ID,
			URL:          e.URL,
			FiscalYear:   e.FiscalYear,
			DocumentType: e.DocumentType,
		})
	}
	return docs, nil
}
