package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/finstat/internal/model"
	"github.com/sells-group/finstat/internal/resilience"
)

func fp(v float64) *float64 { return &v }

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedCompany(t *testing.T, st *SQLiteStore) *model.Company {
	t.Helper()
	company, err := st.CreateCompany(context.Background(), model.Company{Name: "Acme Corp", Ticker: "ACME"})
	require.NoError(t, err)
	return company
}

func seedDocument(t *testing.T, st *SQLiteStore, companyID string, year int) *model.Document {
	t.Helper()
	doc, err := st.UpsertDocument(context.Background(), model.Document{
		CompanyID:    companyID,
		URL:          fmt.Sprintf("https://example.com/reports/ar-%d.pdf", year),
		FiscalYear:   year,
		DocumentType: "annual_report",
	})
	require.NoError(t, err)
	return doc
}

// --- Companies ---

func TestSQLite_Company_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created := seedCompany(t, st)
	require.NotEmpty(t, created.ID)

	got, err := st.GetCompany(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", got.Name)
	assert.Equal(t, "ACME", got.Ticker)
}

func TestSQLite_Company_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetCompany(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, resilience.IsNotFound(err))
}

// --- Documents ---

func TestSQLite_Document_UpsertDeduplicatesByURL(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	company := seedCompany(t, st)

	first, err := st.UpsertDocument(ctx, model.Document{
		CompanyID: company.ID, URL: "https://example.com/ar-2024.pdf", FiscalYear: 2024,
	})
	require.NoError(t, err)

	second, err := st.UpsertDocument(ctx, model.Document{
		CompanyID: company.ID, URL: "https://example.com/ar-2024.pdf", FiscalYear: 2024,
		FilePath: "/tmp/ar-2024.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	docs, err := st.ListDocuments(ctx, company.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "/tmp/ar-2024.pdf", docs[0].FilePath)
}

func TestSQLite_Document_ListOrderedByYearDesc(t *testing.T) {
	st := newTestSQLiteStore(t)
	company := seedCompany(t, st)
	seedDocument(t, st, company.ID, 2022)
	seedDocument(t, st, company.ID, 2024)
	seedDocument(t, st, company.ID, 2023)

	docs, err := st.ListDocuments(context.Background(), company.ID)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, []int{2024, 2023, 2022}, []int{docs[0].FiscalYear, docs[1].FiscalYear, docs[2].FiscalYear})
}

// --- Raw extractions ---

func TestSQLite_Extraction_ReplaceAndFetch(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	company := seedCompany(t, st)
	doc := seedDocument(t, st, company.ID, 2024)

	_, err := st.ReplaceExtraction(ctx, model.RawExtraction{
		DocumentID:    doc.ID,
		CompanyID:     company.ID,
		StatementType: model.StatementIncome,
		LineItems: []model.RawLineItem{
			{ItemName: "Revenue", ValuesByYear: map[string]*float64{"2024": fp(48400)}},
		},
	})
	require.NoError(t, err)

	exts, err := st.FetchExtractions(ctx, company.ID, model.StatementIncome)
	require.NoError(t, err)
	require.Len(t, exts, 1)
	assert.Equal(t, 2024, exts[0].FiscalYear)
	require.Len(t, exts[0].LineItems, 1)
	assert.Equal(t, 48400.0, *exts[0].LineItems[0].ValuesByYear["2024"])
}

func TestSQLite_Extraction_ReplaceIsWholesale(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	company := seedCompany(t, st)
	doc := seedDocument(t, st, company.ID, 2024)

	for _, names := range [][]string{{"Revenue", "COGS"}, {"Revenue"}} {
		items := make([]model.RawLineItem, len(names))
		for i, n := range names {
			items[i] = model.RawLineItem{ItemName: n}
		}
		_, err := st.ReplaceExtraction(ctx, model.RawExtraction{
			DocumentID:    doc.ID,
			CompanyID:     company.ID,
			StatementType: model.StatementIncome,
			LineItems:     items,
		})
		require.NoError(t, err)
	}

	exts, err := st.FetchExtractions(ctx, company.ID, model.StatementIncome)
	require.NoError(t, err)
	require.Len(t, exts, 1)
	assert.Len(t, exts[0].LineItems, 1)
}

func TestSQLite_Extraction_FetchEmpty(t *testing.T) {
	st := newTestSQLiteStore(t)
	company := seedCompany(t, st)

	exts, err := st.FetchExtractions(context.Background(), company.ID, model.StatementCashFlow)
	require.NoError(t, err)
	assert.Empty(t, exts)
}

// --- Compiled statements ---

func TestSQLite_Statement_UpsertIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	company := seedCompany(t, st)

	stmt := &model.CompiledStatement{
		CompanyID:     company.ID,
		StatementType: model.StatementIncome,
		Years:         []string{"2024"},
		LineItems: []model.CompiledLineItem{
			{Name: "revenue", Values: map[string]*float64{"2024": fp(48400)}},
		},
	}
	first, err := st.UpsertStatement(ctx, stmt)
	require.NoError(t, err)

	stmt2 := &model.CompiledStatement{
		CompanyID:     company.ID,
		StatementType: model.StatementIncome,
		Years:         []string{"2024", "2023"},
		LineItems: []model.CompiledLineItem{
			{Name: "revenue", Values: map[string]*float64{"2024": fp(48400), "2023": fp(45850)}},
		},
	}
	_, err = st.UpsertStatement(ctx, stmt2)
	require.NoError(t, err)

	got, err := st.GetStatement(ctx, company.ID, model.StatementIncome)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, []string{"2024", "2023"}, got.Years)
}

func TestSQLite_Statement_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)
	company := seedCompany(t, st)

	_, err := st.GetStatement(context.Background(), company.ID, model.StatementBalance)
	require.Error(t, err)
	assert.True(t, resilience.IsNotFound(err))
}

// --- Leases ---

func TestSQLite_Lease_ExclusiveWhileLive(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ok, err := st.AcquireLease(ctx, "c1", "run-a", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.AcquireLease(ctx, "c1", "run-b", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	// Same holder can re-acquire (extend).
	ok, err = st.AcquireLease(ctx, "c1", "run-a", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLite_Lease_ExpiredIsTakenOver(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ok, err := st.AcquireLease(ctx, "c1", "run-a", -time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = st.AcquireLease(ctx, "c1", "run-b", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLite_Lease_ReleaseThenReacquire(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ok, err := st.AcquireLease(ctx, "c1", "run-a", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, st.ReleaseLease(ctx, "c1", "run-a"))

	ok, err = st.AcquireLease(ctx, "c1", "run-b", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}
