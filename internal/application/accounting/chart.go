package accounting

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// chartEntry is one row of the default chart. Parent "" marks a root.
type chartEntry struct {
	Code     string
	Name     string
	Parent   string
	Category ledger.AccountCategory
	Flags    ledger.AccountFlags
}

// defaultChart lists parents before children
var defaultChart = []chartEntry{
	{Code: "1000", Name: "Assets", Category: ledger.CategoryAsset},
	{Code: "1100", Name: "Current assets", Parent: "1000"},
	{Code: "1101", Name: "Cash on hand", Parent: "1100"},
	{Code: ledger.CodeMainCash, Name: "Main cash", Parent: "1101", Flags: ledger.AccountFlags{Cash: true}},
	{Code: "1102", Name: "Banks", Parent: "1100"},
	{Code: ledger.CodePrimaryBank, Name: "Primary bank", Parent: "1102", Flags: ledger.AccountFlags{Bank: true, Reconcilable: true}},
	{Code: ledger.CodeAccountsReceivable, Name: "Accounts receivable", Parent: "1100", Flags: ledger.AccountFlags{Reconcilable: true}},

	{Code: "2000", Name: "Liabilities", Category: ledger.CategoryLiability},
	{Code: "2100", Name: "Current liabilities", Parent: "2000"},
	{Code: ledger.CodeAccountsPayable, Name: "Accounts payable", Parent: "2100", Flags: ledger.AccountFlags{Reconcilable: true}},
	{Code: "2200", Name: "Long-term liabilities", Parent: "2000"},
	{Code: ledger.CodeLongTermLoans, Name: "Long-term loans", Parent: "2200"},

	{Code: "3000", Name: "Equity", Category: ledger.CategoryEquity},
	{Code: "3100", Name: "Capital", Parent: "3000"},

	{Code: "4000", Name: "Revenue", Category: ledger.CategoryRevenue},
	{Code: "4100", Name: "Sales revenue", Parent: "4000"},

	{Code: "5000", Name: "Expenses", Category: ledger.CategoryExpense},
	{Code: "5200", Name: "Personnel expenses", Parent: "5000"},
	{Code: ledger.CodeSalaries, Name: "Salaries", Parent: "5200"},
	{Code: ledger.CodeLoanInterestExpense, Name: "Loan interest expense", Parent: "5000"},
}

// SeedDefaultChart creates the default chart of accounts. Existing codes
// are left untouched, so seeding twice is a no-op. Every seeded account is
// marked as a system account.
func (s *AccountService) SeedDefaultChart(ctx context.Context) (int, error) {
	created := 0
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		byCode := make(map[string]*ledger.Account, len(defaultChart))
		for _, e := range defaultChart {
			existing, err := repos.Accounts().FindByCode(ctx, e.Code)
			if err == nil {
				byCode[e.Code] = existing
				continue
			}
			if !errors.Is(err, shared.ErrNotFound) {
				return fmt.Errorf("failed to look up account %s: %w", e.Code, err)
			}

			flags := e.Flags
			flags.System = true
			var acc *ledger.Account
			if e.Parent == "" {
				accountType, err := ledger.NewAccountType("", "", e.Category, "")
				if err != nil {
					return err
				}
				acc, err = ledger.NewRootAccount(e.Code, e.Name, accountType, flags)
				if err != nil {
					return err
				}
			} else {
				parent, ok := byCode[e.Parent]
				if !ok {
					return fmt.Errorf("default chart parent %s of %s is missing", e.Parent, e.Code)
				}
				acc, err = ledger.NewChildAccount(parent, e.Code, e.Name, nil, flags)
				if err != nil {
					return err
				}
				if parent.IsLeaf {
					parent.BecomeParent()
					if err := repos.Accounts().Save(ctx, parent); err != nil {
						return fmt.Errorf("failed to update account %s: %w", parent.Code, err)
					}
				}
			}
			if err := repos.Accounts().Save(ctx, acc); err != nil {
				return fmt.Errorf("failed to save account %s: %w", acc.Code, err)
			}
			byCode[e.Code] = acc
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("default chart of accounts seeded", zap.Int("created", created))
	return created, nil
}
