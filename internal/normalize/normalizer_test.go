package normalize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/finstat/internal/model"
)

func ext(id string, year int, names ...string) model.RawExtraction {
	items := make([]model.RawLineItem, len(names))
	for i, n := range names {
		items[i] = model.RawLineItem{ItemName: n}
	}
	return model.RawExtraction{
		ID:         id,
		DocumentID: "doc-" + id,
		FiscalYear: year,
		LineItems:  items,
	}
}

func TestNormalize_SynonymsMerge(t *testing.T) {
	n := New(Options{})

	groups := n.Normalize([]model.RawExtraction{
		ext("e1", 2024, "Revenue"),
		ext("e2", 2023, "Total Revenue"),
		ext("e3", 2022, "Net Sales"),
	})

	require.Len(t, groups, 1)
	g, ok := groups["revenue"]
	require.True(t, ok, "expected canonical group %q, got %v", "revenue", groups)
	assert.Len(t, g.Variations, 3)
	assert.Equal(t, model.ConfidenceHigh, g.Confidence)
}

func TestNormalize_FuzzyMatchAboveThreshold(t *testing.T) {
	n := New(Options{})

	groups := n.Normalize([]model.RawExtraction{
		ext("e1", 2024, "Deferred income taxes"),
		ext("e2", 2023, "Deferred income taxes "), // trailing space variant
	})

	require.Len(t, groups, 1)
}

func TestNormalize_BelowThresholdCreatesNewGroup(t *testing.T) {
	n := New(Options{})

	groups := n.Normalize([]model.RawExtraction{
		ext("e1", 2024, "Goodwill"),
		ext("e2", 2023, "Intangible assets"),
	})

	assert.Len(t, groups, 2)
}

func TestNormalize_ManualMappingWinsOverSynonyms(t *testing.T) {
	n := New(Options{Manual: map[string]string{"Net Sales": "product revenue"}})

	groups := n.Normalize([]model.RawExtraction{
		ext("e1", 2024, "Net Sales"),
	})

	require.Len(t, groups, 1)
	_, ok := groups["product revenue"]
	assert.True(t, ok)
}

// The canonical name of a group is chosen by visit order, so repeated runs
// over the same input must produce identical groupings.
func TestNormalize_DeterministicAcrossRuns(t *testing.T) {
	input := []model.RawExtraction{
		ext("e1", 2022, "Total Revenue", "Cost of Sales", "Gross Profit"),
		ext("e2", 2023, "Revenue", "Cost of Revenue", "Gross profit"),
		ext("e3", 2024, "Revenue", "COGS", "Gross Profit "),
	}

	n := New(Options{})
	first := n.Normalize(input)

	for i := 0; i < 20; i++ {
		again := New(Options{}).Normalize(input)
		require.Equal(t, first, again, "run %d diverged", i)
	}
}

// Normalizing a set of already-canonical names, each appearing once, yields a
// 1:1 identity mapping.
func TestNormalize_IdempotentOnCanonicalNames(t *testing.T) {
	n := New(Options{})

	groups := n.Normalize([]model.RawExtraction{
		ext("e1", 2024, "revenue", "total assets", "net income"),
	})

	require.Len(t, groups, 3)
	for name, g := range groups {
		require.Len(t, g.Variations, 1)
		assert.Equal(t, name, g.Variations[0].OriginalName)
	}
}

func TestNormalize_ProcessingOrderNewestYearFirst(t *testing.T) {
	n := New(Options{})

	// The 2024 wording is visited first, so it becomes the group's canonical
	// name even though the 2022 extraction appears first in the slice.
	groups := n.Normalize([]model.RawExtraction{
		ext("e1", 2022, "Amortisation of intangibles"),
		ext("e2", 2024, "Amortization of intangibles"),
	})

	require.Len(t, groups, 1)
	_, ok := groups["Amortization of intangibles"]
	assert.True(t, ok, "got %v", groups)
}

func TestNormalize_BlankNamesSkipped(t *testing.T) {
	n := New(Options{})

	groups := n.Normalize([]model.RawExtraction{
		ext("e1", 2024, "Revenue", "  ", ""),
	})

	require.Len(t, groups, 1)
}

func TestNormalize_ConfidenceGrades(t *testing.T) {
	n := New(Options{})

	groups := n.Normalize([]model.RawExtraction{
		ext("e1", 2024, "Revenue"),
		ext("e2", 2023, "Total Revenue"),           // synonym of revenue: high
		ext("e3", 2022, "Reevenue", "Revenue (a)"), // fuzzy variants drag it down
	})

	g, ok := groups["revenue"]
	require.True(t, ok, "got %v", groups)
	assert.Equal(t, model.ConfidenceMedium, g.Confidence)
}

func TestLoadManualMappings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Turnover: revenue\nStock: inventory\n"), 0o644))

	m, err := LoadManualMappings(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Turnover": "revenue", "Stock": "inventory"}, m)
}

func TestLoadManualMappings_MissingFile(t *testing.T) {
	_, err := LoadManualMappings(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 100.0, Similarity("Revenue", "revenue"), 0.01)
	assert.Greater(t, Similarity("Total Revenue", "Total Revenues"), 85.0)
	assert.Less(t, Similarity("Goodwill", "Inventory"), 50.0)
}
