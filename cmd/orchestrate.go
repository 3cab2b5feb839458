package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/finstat/internal/worker"
)

var orchestrateCompanyID string

var orchestrateCmd = &cobra.Command{
	Use:   "orchestrate",
	Short: "Trigger an asynchronous company compilation run",
	Long:  "Starts a company orchestration task on the queue and returns its task ID immediately. Poll with `finstat status`.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		c, err := initTemporal()
		if err != nil {
			return err
		}
		defer c.Close()

		taskID, err := worker.StartOrchestration(ctx, c, cfg.Temporal.TaskQueue, worker.OrchestrationRequest{
			CompanyID:    orchestrateCompanyID,
			LeaseTTLSecs: cfg.Worker.LeaseTTLSecs,
			MaxAttempts:  cfg.Worker.MaxAttempts,
		})
		if err != nil {
			return err
		}

		zap.L().Info("orchestration started",
			zap.String("company_id", orchestrateCompanyID),
			zap.String("task_id", taskID),
		)
		fmt.Println(taskID)
		return nil
	},
}

func init() {
	orchestrateCmd.Flags().StringVar(&orchestrateCompanyID, "company", "", "company ID (required)")
	_ = orchestrateCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(orchestrateCmd)
}
