package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/finstat/internal/worker"
)

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show the status of an orchestration task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		c, err := initTemporal()
		if err != nil {
			return err
		}
		defer c.Close()

		status, err := worker.TaskStatus(ctx, c, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
