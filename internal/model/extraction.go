package model

import "time"

// StatementType identifies one of the three compiled statement kinds.
type StatementType string

const (
	StatementIncome   StatementType = "income_statement"
	StatementBalance  StatementType = "balance_sheet"
	StatementCashFlow StatementType = "cash_flow"
)

// AllStatementTypes lists the statement types compiled for every company,
// in the order the orchestration processes them.
var AllStatementTypes = []StatementType{StatementIncome, StatementBalance, StatementCashFlow}

// ParseStatementType validates a statement type string.
func ParseStatementType(s string) (StatementType, bool) {
	switch StatementType(s) {
	case StatementIncome, StatementBalance, StatementCashFlow:
		return StatementType(s), true
	default:
		return "", false
	}
}

// Company is a company whose filings are compiled.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Ticker    string    `json:"ticker,omitempty"`
	Website   string    `json:"website,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Document is a discovered source report (annual report, filing) for a company.
type Document struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"company_id"`
	URL          string    `json:"url"`
	FiscalYear   int       `json:"fiscal_year"`
	DocumentType string    `json:"document_type"`
	FilePath     string    `json:"file_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// RawLineItem is a single line item as reported in a source document.
// ValuesByYear maps a year string to the reported value; a nil value means
// the cell was present but empty.
type RawLineItem struct {
	ItemName         string              `json:"item_name"`
	ValuesByYear     map[string]*float64 `json:"values_by_year"`
	Currency         string              `json:"currency,omitempty"`
	Unit             string              `json:"unit,omitempty"`
	IndentationLevel int                 `json:"indentation_level"`
	IsSubtotal       bool                `json:"is_subtotal"`
	IsTotal          bool                `json:"is_total"`
}

// RawExtraction holds all line items extracted from one document for one
// statement type. It is owned by the document and immutable once created;
// re-extraction replaces the line items wholesale.
type RawExtraction struct {
	ID            string        `json:"id"`
	DocumentID    string        `json:"document_id"`
	CompanyID     string        `json:"company_id"`
	StatementType StatementType `json:"statement_type"`
	FiscalYear    int           `json:"fiscal_year"`
	LineItems     []RawLineItem `json:"line_items"`
	CreatedAt     time.Time     `json:"created_at"`
}
