package worker

import (
	"go.temporal.io/sdk/worker"
)

// DefaultTaskQueue is the task queue compilation work runs on.
const DefaultTaskQueue = "finstat-compile"

// Register wires the workflows and activities onto a Temporal worker.
func Register(w worker.Worker, acts *Activities) {
	w.RegisterWorkflow(CompanyOrchestrationWorkflow)
	w.RegisterWorkflow(CompileStatementWorkflow)
	w.RegisterActivity(acts)
}
