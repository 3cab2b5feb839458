// Package extract turns downloaded report artifacts into raw line items.
package extract

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/finstat/internal/model"
)

// XLSXOptions configures worksheet extraction.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	Currency   string
	Unit       string
}

// ExtractXLSX parses a statement worksheet into raw line items. Expected
// layout: header row with the item-name column followed by one column per
// year, then one row per line item. Rows that cannot be interpreted are
// skipped with a warning, never failing the extraction.
func ExtractXLSX(path string, opts XLSXOptions) ([]model.RawLineItem, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: open xlsx %s", path)
	}

	sheet, err := pickSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) < 2 {
		return nil, nil
	}

	header := rowToStrings(sheet.Rows[0])
	years := make(map[int]string) // column index → year string
	for col := 1; col < len(header); col++ {
		label := strings.TrimSpace(header[col])
		if _, err := strconv.Atoi(label); err == nil {
			years[col] = label
		}
	}
	if len(years) == 0 {
		return nil, eris.Errorf("extract: no year columns in %s", path)
	}

	var items []model.RawLineItem
	for i, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		if len(cells) == 0 || strings.TrimSpace(cells[0]) == "" {
			continue
		}

		raw := cells[0]
		name := strings.TrimSpace(raw)
		values := make(map[string]*float64, len(years))
		for col, year := range years {
			if col >= len(cells) {
				values[year] = nil
				continue
			}
			v, ok := parseAmount(cells[col])
			if !ok {
				if strings.TrimSpace(cells[col]) != "" {
					zap.L().Warn("extract: unparseable cell",
						zap.String("item", name),
						zap.String("year", year),
						zap.Int("row", i+1),
					)
				}
				values[year] = nil
				continue
			}
			values[year] = &v
		}

		lower := strings.ToLower(name)
		items = append(items, model.RawLineItem{
			ItemName:         name,
			ValuesByYear:     values,
			Currency:         opts.Currency,
			Unit:             opts.Unit,
			IndentationLevel: indentLevel(raw),
			IsSubtotal:       strings.Contains(lower, "subtotal"),
			IsTotal:          strings.HasPrefix(lower, "total ") || strings.HasPrefix(lower, "net "),
		})
	}
	return items, nil
}

// ErrSheetNotFound reports a workbook without the requested sheet. Callers
// treat it as "statement not present", not a failure.
var ErrSheetNotFound = eris.New("extract: sheet not found")

func pickSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		for _, s := range f.Sheets {
			if s.Name == opts.SheetName {
				return s, nil
			}
		}
		return nil, eris.Wrapf(ErrSheetNotFound, "extract: sheet %q", opts.SheetName)
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("extract: sheet index %d out of range", opts.SheetIndex)
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

// indentLevel counts leading whitespace in the raw name, two spaces (or one
// tab) per level, matching how statement worksheets indent sub-items.
func indentLevel(raw string) int {
	spaces := 0
	for _, r := range raw {
		switch r {
		case ' ':
			spaces++
		case '\t':
			spaces += 2
		default:
			return spaces / 2
		}
	}
	return 0
}

// parseAmount parses a worksheet amount: commas stripped, parentheses as
// negatives, blanks and dashes as absent.
func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" || s == "–" || s == "—" {
		return 0, false
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer(",", "", "$", "", "€", "", "£", "").Replace(s)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}
