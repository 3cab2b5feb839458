package model

// Confidence grades how certain the normalizer is that a canonical group's
// variations all refer to the same financial concept.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Variation records one raw item name resolved into a canonical group.
type Variation struct {
	OriginalName string `json:"original_name"`
	ExtractionID string `json:"extraction_id"`
	DocumentID   string `json:"document_id"`
	FiscalYear   int    `json:"fiscal_year"`
}

// CanonicalGroup is the normalizer's output for one canonical line-item name.
// Every raw item name observed across the input extractions appears in
// exactly one group's variations.
type CanonicalGroup struct {
	CanonicalName string      `json:"canonical_name"`
	Variations    []Variation `json:"variations"`
	Confidence    Confidence  `json:"confidence"`
}

// DistinctNames returns the distinct original names across the variations,
// in first-seen order.
func (g *CanonicalGroup) DistinctNames() []string {
	seen := make(map[string]bool, len(g.Variations))
	var names []string
	for _, v := range g.Variations {
		if !seen[v.OriginalName] {
			seen[v.OriginalName] = true
			names = append(names, v.OriginalName)
		}
	}
	return names
}

// PrioritizedValue is the resolver's winner for one (year, item name) cell.
// SourceFiscalYear is the maximum fiscal year among all extractions that
// reported a non-null value for the cell.
type PrioritizedValue struct {
	Value              float64 `json:"value"`
	SourceFiscalYear   int     `json:"source_fiscal_year"`
	Restated           bool    `json:"restated"`
	SourceDocumentID   string  `json:"source_document_id"`
	SourceExtractionID string  `json:"source_extraction_id"`
}

// ValueMap is the resolver output: year → item name → winning value.
type ValueMap map[string]map[string]PrioritizedValue
