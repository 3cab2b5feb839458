package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	sdkworker "go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/sells-group/finstat/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a compilation worker against the task queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := initTemporal()
		if err != nil {
			return err
		}
		defer c.Close()

		taskQueue := cfg.Temporal.TaskQueue
		if taskQueue == "" {
			taskQueue = worker.DefaultTaskQueue
		}

		w := sdkworker.New(c, taskQueue, sdkworker.Options{})
		worker.Register(w, env.Activities)

		zap.L().Info("worker starting",
			zap.String("task_queue", taskQueue),
			zap.String("namespace", cfg.Temporal.Namespace),
		)
		if err := w.Run(sdkworker.InterruptCh()); err != nil {
			return eris.Wrap(err, "run worker")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
