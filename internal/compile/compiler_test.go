package compile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/finstat/internal/model"
	"github.com/sells-group/finstat/internal/normalize"
	"github.com/sells-group/finstat/internal/restate"
)

func fp(v float64) *float64 { return &v }

func TestCompile_EmptyInput(t *testing.T) {
	stmt := Compile(Input{
		CompanyID:     "c1",
		StatementType: model.StatementIncome,
	})

	require.NotNil(t, stmt)
	assert.True(t, stmt.Empty())
	assert.Empty(t, stmt.Years)
	assert.Empty(t, stmt.LineItems)
	assert.Equal(t, "c1", stmt.CompanyID)
}

func TestCompile_YearsDescendingAndNulls(t *testing.T) {
	groups := map[string]model.CanonicalGroup{
		"revenue": {CanonicalName: "revenue"},
	}
	values := model.ValueMap{
		"2022": {"revenue": {Value: 100, SourceFiscalYear: 2022}},
		"2024": {"revenue": {Value: 130, SourceFiscalYear: 2024}},
		"2023": {},
	}

	stmt := Compile(Input{
		Groups:        groups,
		Values:        values,
		CompanyID:     "c1",
		StatementType: model.StatementIncome,
	})

	assert.Equal(t, []string{"2024", "2023", "2022"}, stmt.Years)
	require.Len(t, stmt.LineItems, 1)
	row := stmt.LineItems[0]
	assert.Equal(t, 130.0, *row.Values["2024"])
	assert.Nil(t, row.Values["2023"])
	assert.Equal(t, 100.0, *row.Values["2022"])
}

func TestCompile_RowOrderByLevelThenKeywordRank(t *testing.T) {
	groups := map[string]model.CanonicalGroup{
		"net income":      {CanonicalName: "net income"},
		"revenue":         {CanonicalName: "revenue"},
		"cost of revenue": {CanonicalName: "cost of revenue"},
		"gross profit":    {CanonicalName: "gross profit"},
	}
	values := model.ValueMap{"2024": {
		"net income":      {Value: 10, SourceFiscalYear: 2024},
		"revenue":         {Value: 100, SourceFiscalYear: 2024},
		"cost of revenue": {Value: 60, SourceFiscalYear: 2024},
		"gross profit":    {Value: 40, SourceFiscalYear: 2024},
	}}

	stmt := Compile(Input{
		Groups:        groups,
		Values:        values,
		CompanyID:     "c1",
		StatementType: model.StatementIncome,
	})

	var names []string
	for _, li := range stmt.LineItems {
		names = append(names, li.Name)
	}
	assert.Equal(t, []string{"revenue", "cost of revenue", "gross profit", "net income"}, names)
}

func TestCompile_LevelFromFirstVariation(t *testing.T) {
	extractions := []model.RawExtraction{{
		ID: "e1",
		LineItems: []model.RawLineItem{
			{ItemName: "Cost of services", IndentationLevel: 1, IsTotal: false},
		},
	}}
	groups := map[string]model.CanonicalGroup{
		"cost of services": {
			CanonicalName: "cost of services",
			Variations:    []model.Variation{{OriginalName: "Cost of services", ExtractionID: "e1"}},
		},
	}
	values := model.ValueMap{"2024": {
		"cost of services": {Value: 5, SourceFiscalYear: 2024},
	}}

	stmt := Compile(Input{
		Groups:        groups,
		Values:        values,
		Extractions:   extractions,
		CompanyID:     "c1",
		StatementType: model.StatementIncome,
	})

	require.Len(t, stmt.LineItems, 1)
	assert.Equal(t, 1, stmt.LineItems[0].Level)
}

func TestCompile_BalanceSheetWarning(t *testing.T) {
	groups := map[string]model.CanonicalGroup{
		"total assets":      {CanonicalName: "total assets"},
		"total liabilities": {CanonicalName: "total liabilities"},
		"total equity":      {CanonicalName: "total equity"},
	}
	values := model.ValueMap{"2024": {
		"total assets":      {Value: 1000, SourceFiscalYear: 2024},
		"total liabilities": {Value: 400, SourceFiscalYear: 2024},
		"total equity":      {Value: 500, SourceFiscalYear: 2024}, // off by 100
	}}

	stmt := Compile(Input{
		Groups:        groups,
		Values:        values,
		CompanyID:     "c1",
		StatementType: model.StatementBalance,
	})

	require.Len(t, stmt.Warnings, 1)
	assert.Contains(t, stmt.Warnings[0], "do not balance")
}

func TestCompile_MetadataCounts(t *testing.T) {
	groups := map[string]model.CanonicalGroup{"revenue": {CanonicalName: "revenue"}}
	values := model.ValueMap{
		"2023": {"revenue": {Value: 1, SourceFiscalYear: 2023}},
		"2024": {"revenue": {Value: 2, SourceFiscalYear: 2024}},
	}

	stmt := Compile(Input{Groups: groups, Values: values, CompanyID: "c1", StatementType: model.StatementIncome})

	assert.Equal(t, 1, stmt.Metadata.LineItemCount)
	assert.Equal(t, 2, stmt.Metadata.YearCount)
}

// Full pipeline over the three-report revenue scenario: normalization merges
// the wordings, the 2024 report's restated 2023 value wins, and the compiled
// statement carries one row across all three years.
func TestCompile_RevenueRestatementScenario(t *testing.T) {
	extractions := []model.RawExtraction{
		{
			ID: "e2022", DocumentID: "d2022", FiscalYear: 2022,
			LineItems: []model.RawLineItem{
				{ItemName: "Total Revenue", ValuesByYear: map[string]*float64{"2022": fp(44390)}},
			},
		},
		{
			ID: "e2023", DocumentID: "d2023", FiscalYear: 2023,
			LineItems: []model.RawLineItem{
				{ItemName: "Revenue", ValuesByYear: map[string]*float64{"2023": fp(45800)}},
			},
		},
		{
			ID: "e2024", DocumentID: "d2024", FiscalYear: 2024,
			LineItems: []model.RawLineItem{
				{ItemName: "Revenue", ValuesByYear: map[string]*float64{"2023": fp(45850), "2024": fp(48400)}},
			},
		},
	}

	groups := normalize.New(normalize.Options{}).Normalize(extractions)
	require.Len(t, groups, 1)
	group, ok := groups["revenue"]
	require.True(t, ok, "expected canonical group revenue, got %v", groups)
	assert.Len(t, group.Variations, 3)

	values := restate.Resolve(extractions)
	values = RemapValues(groups, values)

	pv2023 := values["2023"]["revenue"]
	assert.Equal(t, 45850.0, pv2023.Value)
	assert.Equal(t, 2024, pv2023.SourceFiscalYear)
	assert.True(t, pv2023.Restated)

	pv2024 := values["2024"]["revenue"]
	assert.Equal(t, 48400.0, pv2024.Value)
	assert.False(t, pv2024.Restated)

	stmt := Compile(Input{
		Groups:        groups,
		Values:        values,
		Extractions:   extractions,
		CompanyID:     "c1",
		StatementType: model.StatementIncome,
	})

	assert.Equal(t, []string{"2024", "2023", "2022"}, stmt.Years)
	require.Len(t, stmt.LineItems, 1)
	row := stmt.LineItems[0]
	assert.Equal(t, 48400.0, *row.Values["2024"])
	assert.Equal(t, 45850.0, *row.Values["2023"])
	assert.Equal(t, 44390.0, *row.Values["2022"])
	assert.True(t, row.Restated["2023"])
	assert.False(t, row.Restated["2024"])
}
