package model

// TaskState is the coarse state of an asynchronous orchestration task.
type TaskState string

const (
	TaskPending    TaskState = "PENDING"
	TaskInProgress TaskState = "IN_PROGRESS"
	TaskSuccess    TaskState = "SUCCESS"
	TaskFailure    TaskState = "FAILURE"
)

// Progress reports where an in-flight task currently is.
type Progress struct {
	Step    string         `json:"step"`
	Percent int            `json:"percent"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// TaskStatus is the pollable status surface for an orchestration task.
// Result is populated on SUCCESS, Error on FAILURE, Progress while running.
type TaskStatus struct {
	TaskID   string               `json:"task_id"`
	State    TaskState            `json:"state"`
	Progress *Progress            `json:"progress,omitempty"`
	Result   *OrchestrationResult `json:"result,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// StatementOutcome is the per-statement-type outcome of an orchestration run.
type StatementOutcome struct {
	StatementType StatementType `json:"statement_type"`
	Success       bool          `json:"success"`
	NoData        bool          `json:"no_data,omitempty"`
	LineItems     int           `json:"line_items,omitempty"`
	Years         int           `json:"years,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// OrchestrationResult summarizes a company orchestration run: documents
// discovered and processed, plus one outcome per statement type. A run with
// some failed statement types is a partial success, not a failure.
type OrchestrationResult struct {
	CompanyID          string             `json:"company_id"`
	DocumentsFound     int                `json:"documents_found"`
	DocumentsProcessed int                `json:"documents_processed"`
	Outcomes           []StatementOutcome `json:"outcomes"`
}

// Failed reports whether every statement type failed to compile.
func (r *OrchestrationResult) Failed() bool {
	if len(r.Outcomes) == 0 {
		return false
	}
	for _, o := range r.Outcomes {
		if o.Success {
			return false
		}
	}
	return true
}
