package normalize

import (
	"strings"

	"github.com/agext/levenshtein"
	"golang.org/x/text/cases"
)

var simParams = levenshtein.NewParams()

// fold lowercases a name for case-insensitive comparison using Unicode case
// folding. A fresh Caser per call: Caser values are stateful and not safe
// for concurrent use.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Similarity returns a 0-100 ratio score between two line-item names,
// case-insensitive. 100 means the folded strings are identical.
func Similarity(a, b string) float64 {
	return levenshtein.Similarity(fold(a), fold(b), simParams) * 100
}
