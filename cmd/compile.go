package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/finstat/internal/model"
	"github.com/sells-group/finstat/internal/worker"
)

var (
	compileCompanyID string
	compileType      string
	compileJSON      bool
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile statements for a company directly, without the task queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		types := model.AllStatementTypes
		if compileType != "" {
			st, ok := model.ParseStatementType(compileType)
			if !ok {
				return eris.Errorf("unknown statement type: %s", compileType)
			}
			types = []model.StatementType{st}
		}

		var outcomes []model.StatementOutcome
		for _, st := range types {
			outcome, err := env.Activities.CompileStatement(ctx, worker.CompileRequest{
				CompanyID:     compileCompanyID,
				StatementType: st,
			})
			if err != nil {
				zap.L().Error("compilation failed",
					zap.String("company_id", compileCompanyID),
					zap.String("statement_type", string(st)),
					zap.Error(err),
				)
				outcomes = append(outcomes, model.StatementOutcome{
					StatementType: st,
					Error:         err.Error(),
				})
				continue
			}
			outcomes = append(outcomes, *outcome)

			zap.L().Info("statement compiled",
				zap.String("company_id", compileCompanyID),
				zap.String("statement_type", string(st)),
				zap.Bool("no_data", outcome.NoData),
				zap.Int("line_items", outcome.LineItems),
				zap.Int("years", outcome.Years),
			)
		}

		if compileJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(outcomes)
		}
		return nil
	},
}

func init() {
	compileCmd.Flags().StringVar(&compileCompanyID, "company", "", "company ID (required)")
	compileCmd.Flags().StringVar(&compileType, "type", "", "statement type (default all three)")
	compileCmd.Flags().BoolVar(&compileJSON, "json", false, "print outcomes as JSON")
	_ = compileCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(compileCmd)
}
