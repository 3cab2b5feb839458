package compile

import (
	"sort"

	"github.com/sells-group/finstat/internal/model"
)

// nameMaps indexes the normalizer output as original name → canonical name,
// both per extraction and globally (first assignment wins, in variation
// order) as a fallback.
type nameMaps struct {
	byExtraction map[string]map[string]string
	global       map[string]string
}

func buildNameMaps(groups map[string]model.CanonicalGroup) nameMaps {
	m := nameMaps{
		byExtraction: make(map[string]map[string]string),
		global:       make(map[string]string),
	}

	// Iterate groups in sorted order so the global fallback is deterministic.
	canonicals := make([]string, 0, len(groups))
	for name := range groups {
		canonicals = append(canonicals, name)
	}
	sort.Strings(canonicals)

	for _, canonical := range canonicals {
		for _, v := range groups[canonical].Variations {
			byName, ok := m.byExtraction[v.ExtractionID]
			if !ok {
				byName = make(map[string]string)
				m.byExtraction[v.ExtractionID] = byName
			}
			if _, ok := byName[v.OriginalName]; !ok {
				byName[v.OriginalName] = canonical
			}
			if _, ok := m.global[v.OriginalName]; !ok {
				m.global[v.OriginalName] = canonical
			}
		}
	}
	return m
}

// resolve maps an original name to its canonical name using the mapping of
// the specific extraction that supplied the value. Two extractions can
// legitimately resolve the same wording to different groups, so an arbitrary
// first-match lookup would misattribute values; the source-extraction lookup
// avoids that. The global map only covers names the source extraction never
// reported, which the normalizer's coverage invariant makes unreachable in
// practice.
func (m nameMaps) resolve(originalName, extractionID string) (string, bool) {
	if byName, ok := m.byExtraction[extractionID]; ok {
		if canonical, ok := byName[originalName]; ok {
			return canonical, true
		}
	}
	canonical, ok := m.global[originalName]
	return canonical, ok
}

// RemapValues rewrites the resolver output's raw item-name keys to canonical
// names. When two raw names collapse into the same canonical cell, the value
// with the greater source fiscal year wins; on equal fiscal years the
// lexicographically smaller raw name wins, keeping the result independent of
// map iteration order.
func RemapValues(groups map[string]model.CanonicalGroup, values model.ValueMap) model.ValueMap {
	maps := buildNameMaps(groups)

	out := make(model.ValueMap, len(values))
	for year, byItem := range values {
		names := make([]string, 0, len(byItem))
		for name := range byItem {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			pv := byItem[name]
			canonical, ok := maps.resolve(name, pv.SourceExtractionID)
			if !ok {
				canonical = name
			}

			byCanonical, ok := out[year]
			if !ok {
				byCanonical = make(map[string]model.PrioritizedValue)
				out[year] = byCanonical
			}
			if existing, ok := byCanonical[canonical]; ok && existing.SourceFiscalYear >= pv.SourceFiscalYear {
				continue
			}
			byCanonical[canonical] = pv
		}
	}
	return out
}
