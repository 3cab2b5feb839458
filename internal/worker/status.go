package worker

import (
	"context"

	"github.com/rotisserie/eris"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/sells-group/finstat/internal/model"
)

// StartOrchestration triggers a company orchestration run and returns the
// task identifier immediately. The workflow ID is derived from the company ID
// so a duplicate trigger while a run is in flight is rejected by the server.
func StartOrchestration(ctx context.Context, c client.Client, taskQueue string, req OrchestrationRequest) (string, error) {
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "orchestrate-" + req.CompanyID,
		TaskQueue: taskQueue,
	}, CompanyOrchestrationWorkflow, req)
	if err != nil {
		return "", eris.Wrapf(err, "worker: start orchestration for %s", req.CompanyID)
	}
	return run.GetID(), nil
}

// TaskStatus maps a workflow execution onto the pollable status surface:
// PENDING/IN_PROGRESS while running (with the progress query result when
// available), SUCCESS with the result, or FAILURE with a human-readable
// error.
func TaskStatus(ctx context.Context, c client.Client, taskID string) (*model.TaskStatus, error) {
	desc, err := c.DescribeWorkflowExecution(ctx, taskID, "")
	if err != nil {
		return nil, eris.Wrapf(err, "worker: describe task %s", taskID)
	}

	status := &model.TaskStatus{TaskID: taskID}
	switch desc.WorkflowExecutionInfo.Status {
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING:
		status.State = model.TaskInProgress
		status.Progress = queryProgress(ctx, c, taskID)

	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		status.State = model.TaskSuccess
		var result model.OrchestrationResult
		if err := c.GetWorkflow(ctx, taskID, "").Get(ctx, &result); err != nil {
			return nil, eris.Wrapf(err, "worker: fetch result of task %s", taskID)
		}
		status.Result = &result

	case enumspb.WORKFLOW_EXECUTION_STATUS_FAILED,
		enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED,
		enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED,
		enumspb.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		status.State = model.TaskFailure
		if err := c.GetWorkflow(ctx, taskID, "").Get(ctx, nil); err != nil {
			status.Error = err.Error()
		}

	default:
		status.State = model.TaskPending
	}
	return status, nil
}

// queryProgress asks the running workflow for its progress. Best-effort: a
// query that lands between worker restarts just yields no progress detail.
func queryProgress(ctx context.Context, c client.Client, taskID string) *model.Progress {
	val, err := c.QueryWorkflow(ctx, taskID, "", ProgressQuery)
	if err != nil {
		zap.L().Debug("worker: progress query failed", zap.String("task_id", taskID), zap.Error(err))
		return nil
	}
	var p model.Progress
	if err := val.Get(&p); err != nil {
		return nil
	}
	return &p
}
