package accounting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/application/validate"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateAccountInput holds the values of a new chart entry.
// Root accounts need a category; children inherit their parent's type
// unless Category names the same category with a different type code.
type CreateAccountInput struct {
	Code        string     `json:"code" validate:"required,numeric,min=4,max=8"`
	Name        string     `json:"name" validate:"required,max=200"`
	ParentID    *uuid.UUID `json:"parent_id"`
	TypeCode    string     `json:"type_code" validate:"max=50"`
	TypeName    string     `json:"type_name" validate:"max=100"`
	Category    string     `json:"category" validate:"omitempty,oneof=asset liability equity revenue expense"`
	Nature      string     `json:"nature" validate:"omitempty,oneof=debit credit"`
	Flags       ledger.AccountFlags
	Description string `json:"description" validate:"max=500"`
}

// UpdateAccountInput holds the editable attributes of an account
type UpdateAccountInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=500"`
	Flags       ledger.AccountFlags
}

// AccountService manages the chart of accounts and the period registry
type AccountService struct {
	scope  TransactionScope
	logger *zap.Logger
}

// NewAccountService creates a new AccountService
func NewAccountService(scope TransactionScope, logger *zap.Logger) *AccountService {
	return &AccountService{scope: scope, logger: logger}
}

// CreateAccount adds an account to the chart. Attaching a child to a leaf
// turns the parent into a non-leaf in the same transaction, which is
// refused when posted lines already reference the parent.
func (s *AccountService) CreateAccount(ctx context.Context, input CreateAccountInput) (*ledger.Account, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "account", "create",
		telemetry.WithAttribute(telemetry.SpanAttrAccountCode, input.Code))
	defer span.End()

	if err := validate.Struct(input); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var created *ledger.Account
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		if existing, err := repos.Accounts().FindByCode(ctx, input.Code); err == nil && existing != nil {
			return shared.NewValidationError("DUPLICATE_ACCOUNT_CODE", fmt.Sprintf("Account code %s already exists", input.Code))
		} else if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("failed to check account code: %w", err)
		}

		if input.ParentID == nil {
			accountType, err := ledger.NewAccountType(input.TypeCode, input.TypeName,
				ledger.AccountCategory(input.Category), ledger.AccountNature(input.Nature))
			if err != nil {
				return err
			}
			acc, err := ledger.NewRootAccount(input.Code, input.Name, accountType, input.Flags)
			if err != nil {
				return err
			}
			acc.Description = input.Description
			created = acc
			return repos.Accounts().Save(ctx, acc)
		}

		parent, err := repos.Accounts().FindByID(ctx, *input.ParentID)
		if err != nil {
			return fmt.Errorf("failed to load parent account: %w", err)
		}
		var override *ledger.AccountType
		if input.Category != "" || input.TypeCode != "" {
			category := ledger.AccountCategory(input.Category)
			if category == "" {
				category = parent.Type.Category
			}
			t, err := ledger.NewAccountType(input.TypeCode, input.TypeName, category, ledger.AccountNature(input.Nature))
			if err != nil {
				return err
			}
			override = &t
		}
		acc, err := ledger.NewChildAccount(parent, input.Code, input.Name, override, input.Flags)
		if err != nil {
			return err
		}
		acc.Description = input.Description

		if parent.IsLeaf {
			lines, err := repos.Journals().CountPostedLines(ctx, []uuid.UUID{parent.ID})
			if err != nil {
				return fmt.Errorf("failed to count parent lines: %w", err)
			}
			if lines > 0 {
				return shared.NewStateError(ledger.CodeLinesExist,
					fmt.Sprintf("Account %s has %d posted lines and cannot become a parent", parent.Code, lines))
			}
			parent.BecomeParent()
			if err := repos.Accounts().Save(ctx, parent); err != nil {
				return fmt.Errorf("failed to update parent account: %w", err)
			}
		}
		created = acc
		return repos.Accounts().Save(ctx, acc)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("account created",
		zap.String("account_id", created.ID.String()),
		zap.String("code", created.Code),
		zap.Int("level", created.Level),
	)
	telemetry.SetOK(span)
	return created, nil
}

// GetAccount loads an account by ID
func (s *AccountService) GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	var acc *ledger.Account
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		acc, err = repos.Accounts().FindByID(ctx, id)
		return err
	})
	return acc, err
}

// GetByCode resolves an account by its code
func (s *AccountService) GetByCode(ctx context.Context, code string) (*ledger.Account, error) {
	var acc *ledger.Account
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		acc, err = repos.Accounts().FindByCode(ctx, code)
		return err
	})
	return acc, err
}

// UpdateAccount changes name, description and flags
func (s *AccountService) UpdateAccount(ctx context.Context, id uuid.UUID, input UpdateAccountInput) (*ledger.Account, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	var acc *ledger.Account
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		if acc, err = repos.Accounts().FindByID(ctx, id); err != nil {
			return err
		}
		if err := acc.Update(input.Name, input.Description, input.Flags); err != nil {
			return err
		}
		return repos.Accounts().Save(ctx, acc)
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// ListChildren lists the direct children of an account
func (s *AccountService) ListChildren(ctx context.Context, id uuid.UUID) ([]ledger.Account, error) {
	var children []ledger.Account
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		children, err = repos.Accounts().FindChildren(ctx, id)
		return err
	})
	return children, err
}

// ListRoots lists the top-level accounts
func (s *AccountService) ListRoots(ctx context.Context) ([]ledger.Account, error) {
	var roots []ledger.Account
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		roots, err = repos.Accounts().FindRoots(ctx)
		return err
	})
	return roots, err
}

// SetActive marks an account active or inactive
func (s *AccountService) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		acc, err := repos.Accounts().FindByID(ctx, id)
		if err != nil {
			return err
		}
		acc.SetActive(active)
		return repos.Accounts().Save(ctx, acc)
	})
	if err != nil {
		return err
	}
	s.logger.Info("account activity changed",
		zap.String("account_id", id.String()),
		zap.Bool("active", active),
	)
	return nil
}

// DeleteAccount removes an account that is not a system account, has no
// children and is referenced by no journal line
func (s *AccountService) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "account", "delete",
		telemetry.WithAttribute(telemetry.SpanAttrAccountID, id.String()))
	defer span.End()

	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		acc, err := repos.Accounts().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if acc.IsSystem() {
			return ledger.ErrReferenced(acc.Code, "system account")
		}
		children, err := repos.Accounts().CountChildren(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to count children: %w", err)
		}
		if children > 0 {
			return ledger.ErrReferenced(acc.Code, fmt.Sprintf("%d child accounts", children))
		}
		lines, err := repos.Journals().CountLines(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to count journal lines: %w", err)
		}
		if lines > 0 {
			return ledger.ErrReferenced(acc.Code, fmt.Sprintf("%d journal lines", lines))
		}
		if err := repos.Accounts().Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete account: %w", err)
		}

		if acc.ParentID == nil {
			return nil
		}
		siblings, err := repos.Accounts().CountChildren(ctx, *acc.ParentID)
		if err != nil {
			return fmt.Errorf("failed to count siblings: %w", err)
		}
		if siblings > 0 {
			return nil
		}
		parent, err := repos.Accounts().FindByID(ctx, *acc.ParentID)
		if err != nil {
			return err
		}
		parent.BecomeLeaf()
		return repos.Accounts().Save(ctx, parent)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	s.logger.Info("account deleted", zap.String("account_id", id.String()))
	telemetry.SetOK(span)
	return nil
}

// CreatePeriod registers an open period. Periods may not overlap.
func (s *AccountService) CreatePeriod(ctx context.Context, name string, start, end time.Time) (*ledger.AccountingPeriod, error) {
	period, err := ledger.NewAccountingPeriod(name, start, end)
	if err != nil {
		return nil, err
	}
	err = s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		overlapping, err := repos.Periods().FindOverlapping(ctx, period.StartDate, period.EndDate)
		if err != nil {
			return fmt.Errorf("failed to check overlapping periods: %w", err)
		}
		if len(overlapping) > 0 {
			return shared.NewStateError(ledger.CodePeriodOverlap,
				fmt.Sprintf("Period %s overlaps existing period %s", name, overlapping[0].Name))
		}
		return repos.Periods().Save(ctx, period)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("accounting period created",
		zap.String("period_id", period.ID.String()),
		zap.String("name", period.Name),
		zap.Time("start_date", period.StartDate),
		zap.Time("end_date", period.EndDate),
	)
	return period, nil
}

// ClosePeriod moves an open period to closed
func (s *AccountService) ClosePeriod(ctx context.Context, id uuid.UUID) (*ledger.AccountingPeriod, error) {
	return s.transitionPeriod(ctx, id, "close", (*ledger.AccountingPeriod).Close)
}

// LockPeriod freezes a period permanently
func (s *AccountService) LockPeriod(ctx context.Context, id uuid.UUID) (*ledger.AccountingPeriod, error) {
	return s.transitionPeriod(ctx, id, "lock", (*ledger.AccountingPeriod).Lock)
}

// ReopenPeriod moves a closed period back to open
func (s *AccountService) ReopenPeriod(ctx context.Context, id uuid.UUID) (*ledger.AccountingPeriod, error) {
	return s.transitionPeriod(ctx, id, "reopen", (*ledger.AccountingPeriod).Reopen)
}

func (s *AccountService) transitionPeriod(ctx context.Context, id uuid.UUID, action string, fn func(*ledger.AccountingPeriod) error) (*ledger.AccountingPeriod, error) {
	var period *ledger.AccountingPeriod
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		if period, err = repos.Periods().FindByID(ctx, id); err != nil {
			return err
		}
		if err := fn(period); err != nil {
			return err
		}
		return repos.Periods().Save(ctx, period)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("accounting period "+action,
		zap.String("period_id", period.ID.String()),
		zap.String("status", string(period.Status)),
	)
	return period, nil
}

// FindPeriod returns the unique period containing date
func (s *AccountService) FindPeriod(ctx context.Context, date time.Time) (*ledger.AccountingPeriod, error) {
	var period *ledger.AccountingPeriod
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		period, err = findPeriod(ctx, repos, date)
		return err
	})
	return period, err
}

// findPeriod resolves the period for date within an open transaction
func findPeriod(ctx context.Context, repos Repositories, date time.Time) (*ledger.AccountingPeriod, error) {
	periods, err := repos.Periods().FindContaining(ctx, ledger.DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("failed to find period: %w", err)
	}
	if len(periods) != 1 {
		return nil, ledger.ErrNoPeriod(date)
	}
	return &periods[0], nil
}
