package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/spf13/cobra"
)

func newBalanceCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Read and maintain account balances",
	}
	cmd.AddCommand(
		newBalanceShowCommand(opts),
		newBalanceRefreshCommand(opts),
		newBalanceRefreshStaleCommand(opts),
		newTrialBalanceCommand(opts),
	)
	return cmd
}

func printBalance(cmd *cobra.Command, acc *ledger.Account, b *ledger.AccountBalance) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s  debit %s  credit %s  balance %s\n",
		acc.Code, acc.Name,
		b.TotalDebit.StringFixed(2), b.TotalCredit.StringFixed(2), b.Balance.StringFixed(2))
}

func newBalanceShowCommand(opts *rootOptions) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "show <account-code>",
		Short: "Show the balance of an account and its descendants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate(asOf)
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				acc, err := a.ledger.Accounts.GetByCode(ctx, args[0])
				if err != nil {
					return err
				}
				b, err := a.ledger.Balances.Balance(ctx, acc.ID, date)
				if err != nil {
					return err
				}
				printBalance(cmd, acc, b)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "balance as of this date (YYYY-MM-DD), default all time")
	return cmd
}

func newBalanceRefreshCommand(opts *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "refresh <account-code>",
		Short: "Recompute the cached balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				acc, err := a.ledger.Accounts.GetByCode(ctx, args[0])
				if err != nil {
					return err
				}
				b, err := a.ledger.Balances.Refresh(ctx, acc.ID, force)
				if err != nil {
					return err
				}
				printBalance(cmd, acc, b)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "recompute even when the cache is fresh")
	return cmd
}

func newBalanceRefreshStaleCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "refresh-stale",
		Short: "Recompute every balance cache flagged for refresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				n, err := a.ledger.Balances.RefreshStale(ctx, limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "accounts refreshed: %d\n", n)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum accounts to refresh (0 refreshes all)")
	return cmd
}

func newTrialBalanceCommand(opts *rootOptions) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "trial",
		Short: "Print the trial balance over posted entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, err := parseDate(asOf)
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				tb, err := a.ledger.Balances.TrialBalance(ctx, date)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
				fmt.Fprintln(w, "CODE\tNAME\tDEBIT\tCREDIT\t")
				for _, line := range tb.Lines {
					code, name := line.AccountID.String(), ""
					if acc, err := a.ledger.Accounts.GetAccount(ctx, line.AccountID); err == nil {
						code, name = acc.Code, acc.Name
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", code, name, line.Debit.StringFixed(2), line.Credit.StringFixed(2))
				}
				fmt.Fprintf(w, "\tTOTAL\t%s\t%s\t\n", tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2))
				if err := w.Flush(); err != nil {
					return err
				}
				if !tb.IsBalanced() {
					return fmt.Errorf("trial balance does not balance: debit %s, credit %s",
						tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "include entries dated on or before this date (YYYY-MM-DD)")
	return cmd
}

func newLoanCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loan",
		Short: "Loan maintenance",
	}

	var asOf string
	markOverdue := &cobra.Command{
		Use:   "mark-overdue",
		Short: "Flag unpaid installments due before a date as overdue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, err := parseDate(asOf)
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				ref := timeNow()
				if date != nil {
					ref = *date
				}
				n, err := a.loans.MarkOverdue(ctx, ref)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "installments marked overdue: %d\n", n)
				return nil
			})
		},
	}
	markOverdue.Flags().StringVar(&asOf, "as-of", "", "reference date (YYYY-MM-DD), default today")

	cmd.AddCommand(markOverdue)
	return cmd
}
