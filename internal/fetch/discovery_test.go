package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/finstat/internal/model"
)

func TestIndexDiscoverer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/companies/ACME/filings.json", r.URL.Path)
		io.WriteString(w, `[
			{"url": "https://example.com/ar-2024.pdf", "fiscal_year": 2024, "document_type": "annual_report"},
			{"url": "", "fiscal_year": 2023},
			{"url": "https://example.com/ar-2022.pdf", "fiscal_year": 2022, "document_type": "annual_report"}
		]`)
	}))
	defer srv.Close()

	d := NewIndexDiscoverer(fastFetcher(), srv.URL)
	docs, err := d.Discover(context.Background(), model.Company{ID: "c1", Ticker: "ACME"})
	require.NoError(t, err)

	// The entry without a URL is skipped.
	require.Len(t, docs, 2)
	assert.Equal(t, "c1", docs[0].CompanyID)
	assert.Equal(t, 2024, docs[0].FiscalYear)
	assert.Equal(t, "https://example.com/ar-2022.pdf", docs[1].URL)
}

func TestIndexDiscoverer_FallsBackToCompanyID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/companies/c1/filings.json", r.URL.Path)
		io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	d := NewIndexDiscoverer(fastFetcher(), srv.URL)
	docs, err := d.Discover(context.Background(), model.Company{ID: "c1"})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIndexDiscoverer_BadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"not": "an array"}`)
	}))
	defer srv.Close()

	d := NewIndexDiscoverer(fastFetcher(), srv.URL)
	_, err := d.Discover(context.Background(), model.Company{ID: "c1"})
	assert.Error(t, err)
}
