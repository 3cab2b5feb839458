package normalize

// synonymTable maps canonical line-item terms to the alternate wordings seen
// across filings. Matching is case-insensitive and exact (no fuzzing): the
// fuzzy pass in the normalizer handles everything this table misses.
var synonymTable = map[string][]string{
	// Income statement
	"revenue": {
		"total revenue", "total revenues", "revenues", "net revenue",
		"net revenues", "net sales", "sales", "total sales",
		"total net sales", "turnover",
	},
	"cost of revenue": {
		"cost of sales", "cost of goods sold", "cogs",
		"cost of products sold", "cost of services",
	},
	"gross profit": {"gross margin", "gross income"},
	"operating expenses": {
		"total operating expenses", "operating costs",
		"operating costs and expenses",
	},
	"selling, general and administrative expenses": {
		"sg&a", "sg&a expenses", "selling general and administrative",
		"selling, general and administrative",
	},
	"research and development expenses": {
		"r&d", "research and development", "research & development",
	},
	"operating income": {
		"operating profit", "income from operations",
		"operating income (loss)",
	},
	"interest expense": {"interest expense, net", "net interest expense"},
	"income before taxes": {
		"pre-tax income", "income before income taxes",
		"earnings before income taxes", "profit before tax",
	},
	"income tax expense": {"provision for income taxes", "income taxes"},
	"net income": {
		"net profit", "net earnings", "profit for the year",
		"net income (loss)", "profit attributable to shareholders",
	},
	"earnings per share": {"eps", "basic earnings per share"},

	// Balance sheet
	"cash and cash equivalents": {"cash and equivalents", "cash & cash equivalents"},
	"accounts receivable":       {"trade receivables", "receivables", "trade and other receivables"},
	"inventory":                 {"inventories"},
	"current assets":            {"total current assets"},
	"property, plant and equipment": {
		"pp&e", "property plant and equipment",
		"property, plant and equipment, net", "fixed assets",
	},
	"total assets":        {"assets"},
	"accounts payable":    {"trade payables", "trade and other payables"},
	"current liabilities": {"total current liabilities"},
	"long-term debt":      {"long term debt", "long-term borrowings", "non-current borrowings"},
	"total liabilities":   {"liabilities"},
	"total equity": {
		"total stockholders' equity", "total shareholders' equity",
		"stockholders equity", "shareholders' equity", "stockholders' equity",
	},

	// Cash flow
	"net cash provided by operating activities": {
		"cash from operations", "net cash from operating activities",
		"operating cash flow", "cash flows from operating activities",
	},
	"net cash used in investing activities": {
		"cash from investing", "net cash from investing activities",
		"cash flows from investing activities",
	},
	"net cash provided by financing activities": {
		"cash from financing", "net cash from financing activities",
		"cash flows from financing activities",
	},
	"capital expenditures": {
		"capex", "purchases of property and equipment",
		"payments to acquire property, plant and equipment",
	},
	"depreciation and amortization": {"d&a", "depreciation & amortization"},
}

// synonymIndex maps every folded canonical term and synonym to its canonical
// term, built once at init.
var synonymIndex = buildSynonymIndex()

func buildSynonymIndex() map[string]string {
	idx := make(map[string]string, len(synonymTable)*4)
	for canonical, syns := range synonymTable {
		idx[fold(canonical)] = canonical
		for _, s := range syns {
			idx[fold(s)] = canonical
		}
	}
	return idx
}

// LookupSynonym resolves a raw name to its canonical term via the built-in
// dictionary. The second return is false when the name is unknown.
func LookupSynonym(name string) (string, bool) {
	canonical, ok := synonymIndex[fold(name)]
	return canonical, ok
}

// IsSynonymOf reports whether name is the canonical term itself or one of
// its recognized synonyms.
func IsSynonymOf(name, canonical string) bool {
	resolved, ok := synonymIndex[fold(name)]
	return ok && resolved == canonical
}
