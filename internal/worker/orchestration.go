package worker

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/finstat/internal/model"
)

// ProgressQuery is the query name for in-flight progress.
const ProgressQuery = "progress"

// OrchestrationRequest starts a company-level compilation run.
type OrchestrationRequest struct {
	CompanyID    string `json:"company_id"`
	LeaseTTLSecs int    `json:"lease_ttl_secs,omitempty"`
	MaxAttempts  int    `json:"max_attempts,omitempty"`
}

func activityOptions(req OrchestrationRequest, heartbeat time.Duration) workflow.ActivityOptions {
	attempts := int32(3)
	if req.MaxAttempts > 0 {
		attempts = int32(req.MaxAttempts)
	}
	return workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		HeartbeatTimeout:    heartbeat,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        attempts,
			NonRetryableErrorTypes: nonRetryableErrorTypes(),
		},
	}
}

// CompanyOrchestrationWorkflow compiles all three statement types for one
// company: verify the company, take the per-company lease, discover and
// process documents, then compile each statement type sequentially. Statement
// types are isolated from each other; the run fails only when the company is
// missing, the lease is held elsewhere, or every statement type fails.
//
// Progress is exposed through the "progress" query.
func CompanyOrchestrationWorkflow(ctx workflow.Context, req OrchestrationRequest) (*model.OrchestrationResult, error) {
	logger := workflow.GetLogger(ctx)

	progress := model.Progress{Step: "verifying", Percent: 0}
	if err := workflow.SetQueryHandler(ctx, ProgressQuery, func() (model.Progress, error) {
		return progress, nil
	}); err != nil {
		return nil, err
	}

	var a *Activities
	ctx = workflow.WithActivityOptions(ctx, activityOptions(req, time.Minute))

	var company model.Company
	if err := workflow.ExecuteActivity(ctx, a.VerifyCompany, req.CompanyID).Get(ctx, &company); err != nil {
		return nil, err
	}

	progress = model.Progress{Step: "acquiring_lease", Percent: 5}
	lease := LeaseRequest{
		CompanyID: req.CompanyID,
		Holder:    workflow.GetInfo(ctx).WorkflowExecution.ID,
		TTLSecs:   req.LeaseTTLSecs,
	}
	var acquired bool
	if err := workflow.ExecuteActivity(ctx, a.AcquireLease, lease).Get(ctx, &acquired); err != nil {
		return nil, err
	}
	if !acquired {
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("another orchestration run holds the lease for company %s", req.CompanyID),
			"lease_held", nil)
	}
	defer func() {
		cleanupCtx, cancel := workflow.NewDisconnectedContext(ctx)
		defer cancel()
		cleanupCtx = workflow.WithActivityOptions(cleanupCtx, activityOptions(req, time.Minute))
		_ = workflow.ExecuteActivity(cleanupCtx, a.ReleaseLease, lease).Get(cleanupCtx, nil)
	}()

	progress = model.Progress{Step: "discovering", Percent: 5}
	var docs []model.Document
	if err := workflow.ExecuteActivity(ctx, a.DiscoverDocuments, req.CompanyID).Get(ctx, &docs); err != nil {
		return nil, err
	}

	result := &model.OrchestrationResult{
		CompanyID:      req.CompanyID,
		DocumentsFound: len(docs),
	}
	progress = model.Progress{
		Step:    "processing_documents",
		Percent: 10,
		Meta:    map[string]any{"documents_found": len(docs)},
	}

	if len(docs) > 0 {
		var processed int
		err := workflow.ExecuteActivity(ctx, a.ProcessDocuments,
			ProcessDocumentsRequest{Documents: docs}).Get(ctx, &processed)
		if err != nil {
			return nil, err
		}
		result.DocumentsProcessed = processed
	}

	// One compilation per statement type, sequential but isolated: a failed
	// type records its error and the run moves on.
	percents := map[model.StatementType]int{
		model.StatementIncome:   40,
		model.StatementBalance:  60,
		model.StatementCashFlow: 85,
	}
	for _, st := range model.AllStatementTypes {
		progress = model.Progress{
			Step:    "compiling:" + string(st),
			Percent: percents[st],
		}

		var outcome model.StatementOutcome
		err := workflow.ExecuteActivity(ctx, a.CompileStatement,
			CompileRequest{CompanyID: req.CompanyID, StatementType: st}).Get(ctx, &outcome)
		if err != nil {
			logger.Error("statement compilation failed",
				"company_id", req.CompanyID, "statement_type", st, "error", err)
			outcome = model.StatementOutcome{StatementType: st, Error: err.Error()}
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	progress = model.Progress{Step: "done", Percent: 100}

	if result.Failed() {
		return result, temporal.NewApplicationError(
			fmt.Sprintf("all statement types failed for company %s", req.CompanyID),
			"all_types_failed")
	}
	return result, nil
}

// CompileStatementWorkflow compiles a single statement type outside a full
// company run, for targeted recompilation.
func CompileStatementWorkflow(ctx workflow.Context, req CompileRequest) (*model.StatementOutcome, error) {
	progress := model.Progress{Step: "compiling:" + string(req.StatementType), Percent: 0}
	if err := workflow.SetQueryHandler(ctx, ProgressQuery, func() (model.Progress, error) {
		return progress, nil
	}); err != nil {
		return nil, err
	}

	var a *Activities
	ctx = workflow.WithActivityOptions(ctx, activityOptions(OrchestrationRequest{}, time.Minute))

	var outcome model.StatementOutcome
	if err := workflow.ExecuteActivity(ctx, a.CompileStatement, req).Get(ctx, &outcome); err != nil {
		return nil, err
	}
	progress = model.Progress{Step: "done", Percent: 100}
	return &outcome, nil
}
