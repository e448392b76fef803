package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/erp/ledger/internal/domain/paymentsync"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newSyncCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Inspect and retry payment sync operations",
	}
	cmd.AddCommand(
		newSyncShowCommand(opts),
		newSyncRetryCommand(opts),
		newSyncRetryFailedCommand(opts),
	)
	return cmd
}

func parseID(value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", value, err)
	}
	return id, nil
}

func printOperation(cmd *cobra.Command, op *paymentsync.SyncOperation) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "operation %s\n", op.ID)
	fmt.Fprintf(out, "  type:     %s %s %s\n", op.Type, op.PaymentKind, op.PaymentID)
	fmt.Fprintf(out, "  status:   %s\n", op.Status)
	fmt.Fprintf(out, "  retries:  %d/%d\n", op.RetryCount, op.MaxRetries)
	if op.ErrorMessage != "" {
		fmt.Fprintf(out, "  error:    %s\n", op.ErrorMessage)
	}
}

func newSyncShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <operation-id>",
		Short: "Show a sync operation and its audit log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				op, err := a.audit.GetOperation(ctx, id)
				if err != nil {
					return err
				}
				logs, err := a.audit.LogsFor(ctx, id)
				if err != nil {
					return err
				}
				printOperation(cmd, op)

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ACTION\tTARGET\tSUCCESS\tMESSAGE")
				for _, l := range logs {
					fmt.Fprintf(w, "%s\t%s %s\t%t\t%s\n", l.Action, l.TargetModel, l.TargetID, l.Success, l.Message)
				}
				return w.Flush()
			})
		},
	}
}

func newSyncRetryCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <operation-id>",
		Short: "Retry one failed sync operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				op, err := a.sync.Retry(ctx, id)
				if err != nil {
					return err
				}
				printOperation(cmd, op)
				return nil
			})
		},
	}
}

func newSyncRetryFailedCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "retry-failed",
		Short: "Retry failed sync operations that still have retry budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				summary, err := a.sync.RetryFailed(ctx, limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "attempted %d, completed %d, failed %d\n",
					summary.Attempted, summary.Completed, summary.Failed)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum operations to retry (0 retries all)")
	return cmd
}

func newErrorsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "List and resolve recorded sync errors",
	}
	cmd.AddCommand(newErrorsListCommand(opts), newErrorsResolveCommand(opts))
	return cmd
}

func newErrorsListCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List unresolved sync errors, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				errs, err := a.audit.UnresolvedErrors(ctx, shared.Filter{
					Page:     1,
					PageSize: limit,
					OrderBy:  "created_at",
					OrderDir: "desc",
				})
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tOPERATION\tKIND\tCODE\tMESSAGE")
				for _, e := range errs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.OperationID, e.Kind, e.Code, e.Message)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum errors to list (0 lists all)")
	return cmd
}

func newErrorsResolveCommand(opts *rootOptions) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "resolve <error-id>",
		Short: "Mark a sync error as resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				e, err := a.audit.MarkResolved(ctx, id, opts.user, notes)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "error %s resolved by %s\n", e.ID, e.ResolvedBy)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "resolution notes (required)")
	_ = cmd.MarkFlagRequired("notes")
	return cmd
}
