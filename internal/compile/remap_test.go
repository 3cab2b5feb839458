package compile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/finstat/internal/model"
)

func TestRemapValues_UsesSourceExtractionMapping(t *testing.T) {
	// Both extractions report the wording "Other income" but the normalizer
	// resolved them into different groups. The remap must follow the mapping
	// of the extraction that supplied each value, not an arbitrary first match.
	groups := map[string]model.CanonicalGroup{
		"other operating income": {
			CanonicalName: "other operating income",
			Variations: []model.Variation{
				{OriginalName: "Other income", ExtractionID: "e1", FiscalYear: 2024},
			},
		},
		"other non-operating income": {
			CanonicalName: "other non-operating income",
			Variations: []model.Variation{
				{OriginalName: "Other income", ExtractionID: "e2", FiscalYear: 2023},
			},
		},
	}
	values := model.ValueMap{
		"2024": {"Other income": {Value: 10, SourceFiscalYear: 2024, SourceExtractionID: "e1"}},
		"2023": {"Other income": {Value: 20, SourceFiscalYear: 2023, SourceExtractionID: "e2"}},
	}

	out := RemapValues(groups, values)

	require.Contains(t, out["2024"], "other operating income")
	assert.Equal(t, 10.0, out["2024"]["other operating income"].Value)
	require.Contains(t, out["2023"], "other non-operating income")
	assert.Equal(t, 20.0, out["2023"]["other non-operating income"].Value)
}

func TestRemapValues_CollapsingNamesKeepLatestSource(t *testing.T) {
	groups := map[string]model.CanonicalGroup{
		"revenue": {
			CanonicalName: "revenue",
			Variations: []model.Variation{
				{OriginalName: "Revenue", ExtractionID: "e2", FiscalYear: 2024},
				{OriginalName: "Total Revenue", ExtractionID: "e1", FiscalYear: 2022},
			},
		},
	}
	values := model.ValueMap{
		"2022": {
			"Total Revenue": {Value: 44390, SourceFiscalYear: 2022, SourceExtractionID: "e1"},
			"Revenue":       {Value: 44400, SourceFiscalYear: 2024, SourceExtractionID: "e2"},
		},
	}

	out := RemapValues(groups, values)

	require.Len(t, out["2022"], 1)
	assert.Equal(t, 44400.0, out["2022"]["revenue"].Value)
}

func TestRemapValues_UnmappedNamePassesThrough(t *testing.T) {
	values := model.ValueMap{
		"2024": {"Mystery row": {Value: 7, SourceFiscalYear: 2024, SourceExtractionID: "e1"}},
	}

	out := RemapValues(map[string]model.CanonicalGroup{}, values)

	assert.Equal(t, 7.0, out["2024"]["Mystery row"].Value)
}
