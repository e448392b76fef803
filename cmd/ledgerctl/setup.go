package main

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/migration"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				if a.cfg.Database.Driver == config.DriverSQLite {
					fmt.Fprintln(cmd.OutOrStdout(), "sqlite schema is migrated on open")
					return nil
				}
				sqlDB, err := a.db.DB.DB()
				if err != nil {
					return fmt.Errorf("failed to get underlying sql.DB: %w", err)
				}
				m, err := migration.New(sqlDB, nil, a.log.Named("migrate"))
				if err != nil {
					return err
				}
				// closing the migrator would close the shared connection pool
				if err := m.Up(); err != nil {
					return err
				}
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				a.log.Info("Schema up to date", zap.Uint("version", version), zap.Bool("dirty", dirty))
				fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
				return nil
			})
		},
	}
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	var (
		period string
		start  string
		end    string
		rules  bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the default chart of accounts, sync rules and an optional period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			startDate, err := parseDate(start)
			if err != nil {
				return err
			}
			endDate, err := parseDate(end)
			if err != nil {
				return err
			}
			if period != "" && (startDate == nil || endDate == nil) {
				return fmt.Errorf("--period needs --start and --end")
			}

			return opts.run(cmd, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				accounts, err := a.ledger.Accounts.SeedDefaultChart(ctx)
				if err != nil {
					return fmt.Errorf("failed to seed chart of accounts: %w", err)
				}
				fmt.Fprintf(out, "accounts created: %d\n", accounts)

				if rules {
					n, err := a.rules.SeedDefaultRules(ctx)
					if err != nil {
						return fmt.Errorf("failed to seed sync rules: %w", err)
					}
					fmt.Fprintf(out, "sync rules created: %d\n", n)
				}

				if period != "" {
					p, err := a.ledger.Accounts.CreatePeriod(ctx, period, *startDate, *endDate)
					if err != nil {
						return fmt.Errorf("failed to create period: %w", err)
					}
					fmt.Fprintf(out, "period %s open from %s to %s\n",
						p.Name, p.StartDate.Format(dateLayout), p.EndDate.Format(dateLayout))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&period, "period", "", "name of an accounting period to open, e.g. FY2024")
	cmd.Flags().StringVar(&start, "start", "", "period start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "period end date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&rules, "rules", true, "seed the default payment sync rules")

	return cmd
}
