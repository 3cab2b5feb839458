// Package normalize resolves the many raw line-item labels reported across a
// company's filings into a smaller set of canonical names.
package normalize

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/finstat/internal/model"
)

// DefaultThreshold is the minimum 0-100 similarity score for the fuzzy pass
// to merge a raw name into an existing canonical group.
const DefaultThreshold = 85.0

// Options configures a Normalizer.
type Options struct {
	// Threshold overrides DefaultThreshold when > 0.
	Threshold float64

	// Manual maps exact original strings to canonical names. Checked before
	// the synonym dictionary and the fuzzy pass.
	Manual map[string]string
}

// Normalizer groups raw line-item names into canonical groups. Resolution is
// three-tiered: operator manual mapping, built-in synonym dictionary, then
// fuzzy similarity against groups already established in the same run.
type Normalizer struct {
	threshold float64
	manual    map[string]string
}

// New creates a Normalizer.
func New(opts Options) *Normalizer {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Normalizer{threshold: threshold, manual: opts.Manual}
}

// workItem is one raw name with its provenance, in processing order.
type workItem struct {
	name         string
	extractionID string
	documentID   string
	fiscalYear   int
}

// Normalize resolves every raw item name across the extractions into exactly
// one canonical group. Processing order is fixed at (fiscal year desc,
// extraction ID asc, item index asc) so repeated runs over the same input
// produce the same grouping: which variation becomes a group's canonical
// name depends on visit order, and map iteration order must not leak in.
func (n *Normalizer) Normalize(extractions []model.RawExtraction) map[string]model.CanonicalGroup {
	items := orderedItems(extractions)

	groups := make(map[string]*model.CanonicalGroup)
	var created []string // canonical names in creation order, for tie-breaks

	assign := func(canonical string, it workItem) {
		g, ok := groups[canonical]
		if !ok {
			g = &model.CanonicalGroup{CanonicalName: canonical}
			groups[canonical] = g
			created = append(created, canonical)
		}
		g.Variations = append(g.Variations, model.Variation{
			OriginalName: it.name,
			ExtractionID: it.extractionID,
			DocumentID:   it.documentID,
			FiscalYear:   it.fiscalYear,
		})
	}

	for _, it := range items {
		// Tier 1: operator manual mapping, exact original string.
		if canonical, ok := n.manual[it.name]; ok {
			assign(canonical, it)
			continue
		}

		// Tier 2: built-in synonym dictionary. A hit on an already-known
		// group assigns directly; otherwise the resolved term becomes the
		// working name for the fuzzy pass.
		working := it.name
		if canonical, ok := LookupSynonym(it.name); ok {
			if _, exists := groups[canonical]; exists {
				assign(canonical, it)
				continue
			}
			working = canonical
		}

		// Tier 3: fuzzy match against established groups. Strictly-greater
		// comparison over creation order keeps the earliest group on ties.
		best := ""
		bestScore := 0.0
		for _, canonical := range created {
			if score := Similarity(working, canonical); score > bestScore {
				best = canonical
				bestScore = score
			}
		}
		if best != "" && bestScore >= n.threshold {
			assign(best, it)
			continue
		}

		// Tier 4: brand-new group.
		assign(working, it)
	}

	out := make(map[string]model.CanonicalGroup, len(groups))
	for name, g := range groups {
		g.Confidence = deriveConfidence(g)
		out[name] = *g
	}
	return out
}

// orderedItems flattens the extractions into the documented deterministic
// processing order, skipping items with blank names.
func orderedItems(extractions []model.RawExtraction) []workItem {
	sorted := make([]model.RawExtraction, len(extractions))
	copy(sorted, extractions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].FiscalYear != sorted[j].FiscalYear {
			return sorted[i].FiscalYear > sorted[j].FiscalYear
		}
		return sorted[i].ID < sorted[j].ID
	})

	var items []workItem
	for _, ext := range sorted {
		for _, li := range ext.LineItems {
			if strings.TrimSpace(li.ItemName) == "" {
				zap.L().Warn("normalize: skipping line item with blank name",
					zap.String("extraction_id", ext.ID),
					zap.Int("fiscal_year", ext.FiscalYear),
				)
				continue
			}
			items = append(items, workItem{
				name:         li.ItemName,
				extractionID: ext.ID,
				documentID:   ext.DocumentID,
				fiscalYear:   ext.FiscalYear,
			})
		}
	}
	return items
}

// deriveConfidence grades a group after all assignments: a single distinct
// name, or all names recognized synonyms of the canonical term, is high;
// 2-3 distinct names medium; anything broader low.
func deriveConfidence(g *model.CanonicalGroup) model.Confidence {
	distinct := g.DistinctNames()
	if len(distinct) == 1 {
		return model.ConfidenceHigh
	}

	allSynonyms := true
	for _, name := range distinct {
		if !IsSynonymOf(name, g.CanonicalName) {
			allSynonyms = false
			break
		}
	}
	if allSynonyms {
		return model.ConfidenceHigh
	}

	if len(distinct) <= 3 {
		return model.ConfidenceMedium
	}
	return model.ConfidenceLow
}

// LoadManualMappings reads an operator-supplied YAML file mapping original
// line-item strings to canonical names.
func LoadManualMappings(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "normalize: read manual mappings")
	}
	var m map[string]string
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "normalize: parse manual mappings")
	}
	return m, nil
}
