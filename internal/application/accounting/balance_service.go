package accounting

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BalanceHotCache is a fast tier in front of the balance cache table.
// Entries are advisory: a miss or an error falls back to the table.
type BalanceHotCache interface {
	Get(ctx context.Context, accountID uuid.UUID, asOf time.Time) (*ledger.AccountBalance, bool, error)
	Set(ctx context.Context, balance *ledger.AccountBalance) error
	// Delete drops every cached as-of date of the account
	Delete(ctx context.Context, accountID uuid.UUID) error
}

// BalanceService derives account balances from posted lines and caches them
type BalanceService struct {
	scope  TransactionScope
	hot    BalanceHotCache
	logger *zap.Logger
}

// NewBalanceService creates a new BalanceService. hot may be nil.
func NewBalanceService(scope TransactionScope, hot BalanceHotCache, logger *zap.Logger) *BalanceService {
	return &BalanceService{scope: scope, hot: hot, logger: logger}
}

// Balance returns the balance of the account and its descendants up to and
// including asOf (every posted line when nil), signed to the account nature
func (s *BalanceService) Balance(ctx context.Context, accountID uuid.UUID, asOf *time.Time) (*ledger.AccountBalance, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "balance", "get",
		telemetry.WithAttribute(telemetry.SpanAttrAccountID, accountID.String()))
	defer span.End()

	key := ledger.AsOfKey(asOf)
	if cached := s.hotGet(ctx, accountID, key); cached != nil {
		telemetry.SetAttributes(span, "cache", "hot")
		return cached, nil
	}

	var result *ledger.AccountBalance
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		cached, err := repos.Balances().Find(ctx, accountID, key)
		if err != nil {
			return fmt.Errorf("failed to read cached balance: %w", err)
		}
		if cached.IsFresh() {
			result = cached
			return nil
		}
		result, err = s.recompute(ctx, repos, accountID, key)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.hotSet(ctx, result)
	telemetry.SetAttributes(span, telemetry.SpanAttrAmount, result.Balance.StringFixed(2))
	telemetry.SetOK(span)
	return result, nil
}

// Refresh recomputes every cached row of the account. Without force only
// rows flagged needs_refresh are recomputed. The open-ended row is always
// present afterwards and is returned.
func (s *BalanceService) Refresh(ctx context.Context, accountID uuid.UUID, force bool) (*ledger.AccountBalance, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "balance", "refresh",
		telemetry.WithAttribute(telemetry.SpanAttrAccountID, accountID.String()),
		telemetry.WithAttribute("force", force))
	defer span.End()

	var open *ledger.AccountBalance
	refreshed := 0
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		rows, err := repos.Balances().FindByAccount(ctx, accountID)
		if err != nil {
			return fmt.Errorf("failed to list cached balances: %w", err)
		}
		for i := range rows {
			row := &rows[i]
			if !force && row.IsFresh() {
				if row.AsOf.Equal(ledger.OpenEndedAsOf) {
					open = row
				}
				continue
			}
			fresh, err := s.recompute(ctx, repos, accountID, row.AsOf)
			if err != nil {
				return err
			}
			refreshed++
			if fresh.AsOf.Equal(ledger.OpenEndedAsOf) {
				open = fresh
			}
		}
		if open == nil {
			if open, err = s.recompute(ctx, repos, accountID, ledger.OpenEndedAsOf); err != nil {
				return err
			}
			refreshed++
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.hotDelete(ctx, accountID)
	s.logger.Info("account balance refreshed",
		zap.String("account_id", accountID.String()),
		zap.Bool("force", force),
		zap.Int("rows", refreshed),
		zap.String("balance", open.Balance.StringFixed(2)),
	)
	telemetry.SetOK(span)
	return open, nil
}

// RefreshStale recomputes the flagged rows of up to limit accounts and
// returns how many accounts were refreshed. An account that fails to
// refresh is logged and skipped.
func (s *BalanceService) RefreshStale(ctx context.Context, limit int) (int, error) {
	var ids []uuid.UUID
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		ids, err = repos.Balances().FindStaleAccountIDs(ctx, limit)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list stale balances: %w", err)
	}

	refreshed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		if _, err := s.Refresh(ctx, id, false); err != nil {
			s.logger.Warn("stale balance refresh failed",
				zap.String("account_id", id.String()),
				zap.Error(err),
			)
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

func (s *BalanceService) recompute(ctx context.Context, repos Repositories, accountID uuid.UUID, asOf time.Time) (*ledger.AccountBalance, error) {
	acc, err := repos.Accounts().FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	descendants, err := repos.Accounts().FindDescendantIDs(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list descendant accounts: %w", err)
	}
	totals, err := repos.Journals().SumPostedLines(ctx, append([]uuid.UUID{accountID}, descendants...), asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to sum posted lines: %w", err)
	}

	debit, credit := decimal.Zero, decimal.Zero
	for _, t := range totals {
		debit = debit.Add(t.Debit)
		credit = credit.Add(t.Credit)
	}
	balance := &ledger.AccountBalance{
		AccountID:   accountID,
		AsOf:        asOf,
		Balance:     acc.SignedBalance(debit.Sub(credit)).Round(2),
		TotalDebit:  debit.Round(2),
		TotalCredit: credit.Round(2),
		ComputedAt:  time.Now(),
	}
	if err := repos.Balances().Upsert(ctx, balance); err != nil {
		return nil, fmt.Errorf("failed to store balance: %w", err)
	}
	return balance, nil
}

// Invalidate flags every cached balance of the accounts and their
// ancestors as needing refresh. Failures are logged and never returned.
// It returns the number of cached rows flagged.
func (s *BalanceService) Invalidate(ctx context.Context, accountIDs []uuid.UUID) int64 {
	if len(accountIDs) == 0 {
		return 0
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "balance", "invalidate",
		telemetry.WithAttribute("accounts", len(accountIDs)))
	defer span.End()

	var affected []uuid.UUID
	var flagged int64
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		if affected, err = withAncestors(ctx, repos, accountIDs); err != nil {
			return err
		}
		flagged, err = repos.Balances().MarkNeedsRefresh(ctx, affected)
		return err
	})
	if err != nil {
		s.logger.Warn("failed to invalidate account balances",
			zap.Int("accounts", len(accountIDs)),
			zap.Error(err),
		)
		telemetry.RecordError(span, err)
		// drop the hot tier anyway so stale reads fall through to the table
		affected = accountIDs
	}

	for _, id := range affected {
		s.hotDelete(ctx, id)
	}
	if s.hot != nil && s.scope.InTransaction(ctx) {
		// readers outside the transaction may refill the hot tier from
		// pre-commit lines until it commits
		evict := append([]uuid.UUID(nil), affected...)
		s.scope.AfterCommit(ctx, func(ctx context.Context) {
			for _, id := range evict {
				s.hotDelete(ctx, id)
			}
		})
	}
	s.logger.Debug("account balances invalidated",
		zap.Int("accounts", len(affected)),
		zap.Int64("rows", flagged),
	)
	return flagged
}

// withAncestors returns ids followed by every ancestor, without duplicates
func withAncestors(ctx context.Context, repos Repositories, ids []uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool, len(ids)*3)
	out := make([]uuid.UUID, 0, len(ids)*3)
	for _, id := range ids {
		for current := &id; current != nil; {
			if seen[*current] {
				break
			}
			seen[*current] = true
			out = append(out, *current)
			acc, err := repos.Accounts().FindByID(ctx, *current)
			if err != nil {
				return nil, fmt.Errorf("failed to load account %s: %w", *current, err)
			}
			current = acc.ParentID
		}
	}
	return out, nil
}

// TrialBalance sums every posted line up to asOf
func (s *BalanceService) TrialBalance(ctx context.Context, asOf *time.Time) (*ledger.TrialBalance, error) {
	key := ledger.AsOfKey(asOf)
	tb := &ledger.TrialBalance{AsOf: key, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		totals, err := repos.Journals().SumPostedLines(ctx, nil, key)
		if err != nil {
			return fmt.Errorf("failed to sum posted lines: %w", err)
		}
		tb.Lines = totals
		for _, t := range totals {
			tb.TotalDebit = tb.TotalDebit.Add(t.Debit)
			tb.TotalCredit = tb.TotalCredit.Add(t.Credit)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !tb.IsBalanced() {
		s.logger.Error("trial balance does not balance",
			zap.String("debit", tb.TotalDebit.StringFixed(2)),
			zap.String("credit", tb.TotalCredit.StringFixed(2)),
		)
	}
	return tb, nil
}

// hotGet reads the hot tier, treating errors as misses
func (s *BalanceService) hotGet(ctx context.Context, accountID uuid.UUID, asOf time.Time) *ledger.AccountBalance {
	if s.hot == nil {
		return nil
	}
	cached, ok, err := s.hot.Get(ctx, accountID, asOf)
	if err != nil {
		s.logger.Warn("balance hot cache read failed", zap.String("account_id", accountID.String()), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	return cached
}

// hotSet fills the hot tier with committed values only
func (s *BalanceService) hotSet(ctx context.Context, balance *ledger.AccountBalance) {
	if s.hot == nil || s.scope.InTransaction(ctx) {
		return
	}
	if err := s.hot.Set(ctx, balance); err != nil {
		s.logger.Warn("balance hot cache write failed", zap.String("account_id", balance.AccountID.String()), zap.Error(err))
	}
}

func (s *BalanceService) hotDelete(ctx context.Context, accountID uuid.UUID) {
	if s.hot == nil {
		return
	}
	if err := s.hot.Delete(ctx, accountID); err != nil {
		s.logger.Warn("balance hot cache delete failed", zap.String("account_id", accountID.String()), zap.Error(err))
	}
}
