package model

import "time"

// CompiledLineItem is one row of a compiled statement. Values and Restated
// are keyed by year string; a missing year key means no value was reported.
type CompiledLineItem struct {
	Name     string              `json:"name"`
	Level    int                 `json:"level"`
	IsTotal  bool                `json:"is_total"`
	Values   map[string]*float64 `json:"values"`
	Restated map[string]bool     `json:"restated,omitempty"`
}

// StatementMetadata carries summary counts for a compiled statement.
type StatementMetadata struct {
	LineItemCount int `json:"line_item_count"`
	YearCount     int `json:"year_count"`
}

// CompiledStatement is the canonical multi-year statement for one company and
// statement type. Exactly one row exists per (CompanyID, StatementType);
// recompilation upserts in place.
type CompiledStatement struct {
	ID            string             `json:"id"`
	CompanyID     string             `json:"company_id"`
	StatementType StatementType      `json:"statement_type"`
	Years         []string           `json:"years"` // descending
	LineItems     []CompiledLineItem `json:"line_items"`
	Currency      string             `json:"currency,omitempty"`
	Unit          string             `json:"unit,omitempty"`
	Metadata      StatementMetadata  `json:"metadata"`
	Warnings      []string           `json:"warnings,omitempty"`
	CompiledAt    time.Time          `json:"compiled_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Empty reports whether the statement has no years and no line items.
func (s *CompiledStatement) Empty() bool {
	return len(s.Years) == 0 && len(s.LineItems) == 0
}
