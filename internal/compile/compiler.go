// Package compile merges normalized names and prioritized values into an
// ordered multi-year statement ready for storage.
package compile

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/finstat/internal/model"
)

// Input carries everything the compiler needs for one statement. Values must
// already be remapped to canonical names (see RemapValues); Extractions are
// consulted only for row metadata (indentation, totals) and are not mutated.
type Input struct {
	Groups        map[string]model.CanonicalGroup
	Values        model.ValueMap
	Extractions   []model.RawExtraction
	CompanyID     string
	StatementType model.StatementType
	Currency      string
	Unit          string
}

// rankKeywords orders rows the way a report reads. First matching keyword
// wins, so more specific terms are listed before terms they contain ("cost"
// before "revenue" so "cost of revenue" ranks as a cost row); unmatched names
// sink to the bottom of their indentation level.
var rankKeywords = []struct {
	keyword string
	rank    int
}{
	{"cost", 2},
	{"revenue", 1}, {"sales", 1},
	{"gross", 3},
	{"operating", 4},
	{"net", 6},
	{"income", 5}, {"profit", 5},
	{"assets", 1},
	{"liabilities", 2},
	{"equity", 3},
}

const unrankedPriority = 999

// priorityRank returns the fixed keyword rank for a canonical name.
func priorityRank(name string) int {
	lower := strings.ToLower(name)
	for _, kw := range rankKeywords {
		if strings.Contains(lower, kw.keyword) {
			return kw.rank
		}
	}
	return unrankedPriority
}

// itemMeta is per-(extraction, item name) display metadata from the source.
type itemMeta struct {
	level   int
	isTotal bool
}

func indexItemMeta(extractions []model.RawExtraction) map[string]map[string]itemMeta {
	idx := make(map[string]map[string]itemMeta, len(extractions))
	for _, ext := range extractions {
		byName := make(map[string]itemMeta, len(ext.LineItems))
		for _, li := range ext.LineItems {
			if _, ok := byName[li.ItemName]; !ok {
				byName[li.ItemName] = itemMeta{level: li.IndentationLevel, isTotal: li.IsTotal}
			}
		}
		idx[ext.ID] = byName
	}
	return idx
}

// Compile builds the compiled statement. An input with no numeric year keys
// yields an empty statement, not an error.
func Compile(in Input) *model.CompiledStatement {
	now := time.Now().UTC()
	stmt := &model.CompiledStatement{
		CompanyID:     in.CompanyID,
		StatementType: in.StatementType,
		Currency:      in.Currency,
		Unit:          in.Unit,
		CompiledAt:    now,
		UpdatedAt:     now,
	}

	years := numericYears(in.Values)
	if len(years) == 0 {
		return stmt
	}
	stmt.Years = years

	meta := indexItemMeta(in.Extractions)

	canonicals := make([]string, 0, len(in.Groups))
	for name := range in.Groups {
		canonicals = append(canonicals, name)
	}
	sort.Strings(canonicals)

	for _, canonical := range canonicals {
		group := in.Groups[canonical]
		row := model.CompiledLineItem{
			Name:   canonical,
			Values: make(map[string]*float64, len(years)),
		}

		// Level and total flag come from the group's first variation; a
		// best-effort proxy, not a hierarchy reconstruction.
		if len(group.Variations) > 0 {
			first := group.Variations[0]
			if byName, ok := meta[first.ExtractionID]; ok {
				if m, ok := byName[first.OriginalName]; ok {
					row.Level = m.level
					row.IsTotal = m.isTotal
				}
			}
		}

		for _, year := range years {
			pv, ok := in.Values[year][canonical]
			if !ok {
				row.Values[year] = nil
				continue
			}
			v := pv.Value
			row.Values[year] = &v
			if pv.Restated {
				if row.Restated == nil {
					row.Restated = make(map[string]bool)
				}
				row.Restated[year] = true
			}
		}
		stmt.LineItems = append(stmt.LineItems, row)
	}

	sort.SliceStable(stmt.LineItems, func(i, j int) bool {
		a, b := stmt.LineItems[i], stmt.LineItems[j]
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		ra, rb := priorityRank(a.Name), priorityRank(b.Name)
		if ra != rb {
			return ra < rb
		}
		return a.Name < b.Name
	})

	stmt.Metadata = model.StatementMetadata{
		LineItemCount: len(stmt.LineItems),
		YearCount:     len(stmt.Years),
	}
	stmt.Warnings = sanityWarnings(stmt)
	return stmt
}

// numericYears returns the numeric-parseable year keys, sorted descending.
func numericYears(values model.ValueMap) []string {
	var years []string
	for year := range values {
		if _, err := strconv.Atoi(year); err == nil {
			years = append(years, year)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(years)))
	return years
}

// sanityWarnings runs advisory checks on the compiled statement. Warnings
// never fail a compilation; they surface likely extraction problems.
func sanityWarnings(stmt *model.CompiledStatement) []string {
	if stmt.StatementType != model.StatementBalance || len(stmt.Years) == 0 {
		return nil
	}

	rows := make(map[string]model.CompiledLineItem, len(stmt.LineItems))
	for _, li := range stmt.LineItems {
		rows[li.Name] = li
	}

	var warnings []string
	for _, year := range stmt.Years {
		assets := rowValue(rows, "total assets", year)
		liabilities := rowValue(rows, "total liabilities", year)
		equity := rowValue(rows, "total equity", year)
		if assets == nil || liabilities == nil || equity == nil {
			continue
		}
		diff := math.Abs(*assets - (*liabilities + *equity))
		tolerance := math.Abs(*assets) * 0.005
		if diff > tolerance {
			warnings = append(warnings, fmt.Sprintf(
				"%s: assets (%.2f) do not balance against liabilities + equity (%.2f)",
				year, *assets, *liabilities+*equity))
		}
	}
	return warnings
}

func rowValue(rows map[string]model.CompiledLineItem, name, year string) *float64 {
	li, ok := rows[name]
	if !ok {
		return nil
	}
	return li.Values[year]
}
