// Package restate picks the single most authoritative value for each
// (year, line item) cell across all source extractions. A later report that
// re-reports an earlier year's value supersedes the originally reported one.
package restate

import (
	"sort"
	"strconv"

	"github.com/sells-group/finstat/internal/model"
)

// Resolve walks the extractions in descending fiscal-year order and records,
// for every (year, item name) cell with a non-null value, the value reported
// by the highest-fiscal-year extraction. Keys are the raw item names; the
// compilation stage remaps them to canonical names afterwards.
//
// Because the sweep is ordered, the first extraction to report a cell already
// carries the maximum fiscal year, making the whole pass O(total line items);
// the strictly-greater replacement below is a guard, not the common path.
func Resolve(extractions []model.RawExtraction) model.ValueMap {
	sorted := make([]model.RawExtraction, len(extractions))
	copy(sorted, extractions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].FiscalYear != sorted[j].FiscalYear {
			return sorted[i].FiscalYear > sorted[j].FiscalYear
		}
		return sorted[i].ID < sorted[j].ID
	})

	out := make(model.ValueMap)
	for _, ext := range sorted {
		for _, li := range ext.LineItems {
			for year, val := range li.ValuesByYear {
				if val == nil {
					continue
				}
				byItem, ok := out[year]
				if !ok {
					byItem = make(map[string]model.PrioritizedValue)
					out[year] = byItem
				}
				if existing, ok := byItem[li.ItemName]; ok && ext.FiscalYear <= existing.SourceFiscalYear {
					continue
				}
				byItem[li.ItemName] = model.PrioritizedValue{
					Value:              *val,
					SourceFiscalYear:   ext.FiscalYear,
					Restated:           isRestated(year, ext.FiscalYear),
					SourceDocumentID:   ext.DocumentID,
					SourceExtractionID: ext.ID,
				}
			}
		}
	}
	return out
}

// isRestated reports whether a value for the given year string came from a
// report published for a strictly later fiscal year. A report's own fiscal
// year is never restated, and non-numeric year labels never are.
func isRestated(year string, sourceFiscalYear int) bool {
	n, err := strconv.Atoi(year)
	if err != nil {
		return false
	}
	return sourceFiscalYear > n
}
