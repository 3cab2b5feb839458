package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/finstat/internal/model"
)

var (
	companyName    string
	companyTicker  string
	companyWebsite string
)

var companyCmd = &cobra.Command{
	Use:   "company",
	Short: "Manage companies",
}

var companyAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a company for compilation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		company, err := st.CreateCompany(ctx, model.Company{
			Name:    companyName,
			Ticker:  companyTicker,
			Website: companyWebsite,
		})
		if err != nil {
			return err
		}

		zap.L().Info("company created",
			zap.String("id", company.ID),
			zap.String("name", company.Name),
		)
		fmt.Println(company.ID)
		return nil
	},
}

func init() {
	companyAddCmd.Flags().StringVar(&companyName, "name", "", "company name (required)")
	companyAddCmd.Flags().StringVar(&companyTicker, "ticker", "", "stock ticker")
	companyAddCmd.Flags().StringVar(&companyWebsite, "website", "", "company website")
	_ = companyAddCmd.MarkFlagRequired("name")
	companyCmd.AddCommand(companyAddCmd)
	rootCmd.AddCommand(companyCmd)
}
