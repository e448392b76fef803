// Package testutil wires the ledger against an in-memory SQLite database
// for application tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ledger/internal/application/accounting"
	loanapp "github.com/erp/ledger/internal/application/loan"
	syncapp "github.com/erp/ledger/internal/application/paymentsync"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/cache"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Env holds a fully wired ledger backed by a private database
type Env struct {
	DB     *gorm.DB
	Scope  *persistence.GormTransactionScope
	Bus    *event.InMemoryEventBus
	Hot    *cache.InMemoryBalanceCache
	Ledger *accounting.Ledger
	Rules  *syncapp.RuleService
	Audit  *syncapp.AuditService
	Sync   *syncapp.Orchestrator
	Loans  *loanapp.Service
	Period *ledger.AccountingPeriod
	Logger *zap.Logger
}

// Option customizes NewEnv
type Option func(*envOptions)

type envOptions struct {
	authorizer accounting.Authorizer
	maxRetries int
	skipSeed   bool
}

// WithAuthorizer installs an authorizer on the journal service
func WithAuthorizer(a accounting.Authorizer) Option {
	return func(o *envOptions) { o.authorizer = a }
}

// WithMaxRetries sets the retry budget of new sync operations
func WithMaxRetries(n int) Option {
	return func(o *envOptions) { o.maxRetries = n }
}

// WithoutSeed leaves the chart and period registry empty
func WithoutSeed() Option {
	return func(o *envOptions) { o.skipSeed = true }
}

// NewEnv creates a migrated in-memory database, wires every service on it
// and, unless WithoutSeed is given, seeds the default chart and an open
// FY2024 period.
func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()
	db, err := persistence.NewSQLiteDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.AutoMigrate())
	return NewEnvOn(t, db, opts...)
}

// NewEnvOn wires every service on an already migrated database and seeds it
// like NewEnv. The caller owns db.
func NewEnvOn(t *testing.T, db *persistence.Database, opts ...Option) *Env {
	t.Helper()
	o := envOptions{maxRetries: 3}
	for _, opt := range opts {
		opt(&o)
	}

	logger := zap.NewNop()
	scope := persistence.NewGormTransactionScope(db.DB)
	bus := event.NewInMemoryEventBus(logger)
	hot := cache.NewInMemoryBalanceCache()
	l := accounting.NewLedger(scope, bus, hot, o.authorizer, logger)
	rules := syncapp.NewRuleService(scope, logger)
	audit := syncapp.NewAuditService(scope, logger)

	env := &Env{
		DB:     db.DB,
		Scope:  scope,
		Bus:    bus,
		Hot:    hot,
		Ledger: l,
		Rules:  rules,
		Audit:  audit,
		Sync:   syncapp.NewOrchestrator(scope, rules, l.Journals, l.Balances, audit, syncapp.Config{MaxRetries: o.maxRetries}, logger),
		Loans:  loanapp.NewService(scope, l.Journals, logger),
		Logger: logger,
	}
	if o.skipSeed {
		return env
	}

	ctx := context.Background()
	_, err := l.Accounts.SeedDefaultChart(ctx)
	require.NoError(t, err)
	env.Period, err = l.Accounts.CreatePeriod(ctx, "FY2024", Day(2024, 1, 1), Day(2024, 12, 31))
	require.NoError(t, err)
	return env
}

// Account loads an account by code
func (e *Env) Account(t *testing.T, code string) *ledger.Account {
	t.Helper()
	acc, err := e.Ledger.Accounts.GetByCode(context.Background(), code)
	require.NoError(t, err)
	return acc
}

// Balance returns the open-ended balance of the account with code. Like
// Account it opens its own transaction, so call it outside Scope.Execute.
func (e *Env) Balance(t *testing.T, code string) decimal.Decimal {
	t.Helper()
	b, err := e.Ledger.Balances.Balance(context.Background(), e.Account(t, code).ID, nil)
	require.NoError(t, err)
	return b.Balance
}

// Post creates and posts a two-line entry debiting debit and crediting credit
func (e *Env) Post(t *testing.T, debit, credit string, amount string, date time.Time) *ledger.JournalEntry {
	t.Helper()
	entry, err := e.Ledger.Journals.CreateSimple(context.Background(), accounting.SimpleInput{
		DebitCode:   debit,
		CreditCode:  credit,
		Amount:      Dec(amount),
		Date:        date,
		Description: "test entry",
		Type:        ledger.EntryTypeManual,
		Post:        true,
		User:        "tester",
	})
	require.NoError(t, err)
	return entry
}

// Day returns midnight UTC of the calendar day
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Dec parses a decimal literal, panicking on malformed input
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
