package main

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/spf13/cobra"
)

const dateLayout = ledger.DateLayout

// timeNow is the clock used for "today" defaults
var timeNow = time.Now

// rootOptions are the persistent flags shared by every subcommand
type rootOptions struct {
	configDir string
	logLevel  string
	user      string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the double-entry ledger and payment sync",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configDir, "config", "", "directory holding config.toml (default: . then /etc/ledger)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")
	rootCmd.PersistentFlags().StringVar(&opts.user, "user", "ledgerctl", "user recorded on journal entries and resolutions")

	rootCmd.AddCommand(
		newMigrateCommand(opts),
		newSeedCommand(opts),
		newSyncCommand(opts),
		newErrorsCommand(opts),
		newBalanceCommand(opts),
		newLoanCommand(opts),
		newMaintainCommand(opts),
	)

	return rootCmd
}

// run opens the application, tags the context with the command and user,
// and closes everything once fn returns
func (o *rootOptions) run(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, o)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, log := logger.WithCommand(ctx, a.log, cmd.CommandPath())
	ctx, _ = logger.WithUser(ctx, log, o.user)
	return fn(ctx, a)
}

// parseDate parses an optional YYYY-MM-DD flag; empty yields nil
func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD: %w", value, err)
	}
	return &t, nil
}
