// Package loan books loans and their repayments into the general ledger.
package loan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/application/accounting"
	"github.com/erp/ledger/internal/application/validate"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/loan"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateLoanInput holds the values of a new loan. Account codes default to
// the long-term loans, primary bank and loan interest accounts.
type CreateLoanInput struct {
	Lender         string          `json:"lender" validate:"required,max=200"`
	Principal      decimal.Decimal `json:"principal"`
	AnnualRate     decimal.Decimal `json:"annual_rate"`
	DurationMonths int             `json:"duration_months" validate:"required,min=1,max=600"`
	Frequency      string          `json:"frequency" validate:"omitempty,oneof=monthly quarterly semi_annual annual"`
	StartDate      time.Time       `json:"start_date" validate:"required"`
	LiabilityCode  string          `json:"liability_code" validate:"omitempty,numeric,min=4,max=8"`
	BankCode       string          `json:"bank_code" validate:"omitempty,numeric,min=4,max=8"`
	InterestCode   string          `json:"interest_code" validate:"omitempty,numeric,min=4,max=8"`
	Description    string          `json:"description" validate:"max=500"`
}

// RecordPaymentInput holds one repayment. PaymentCode is the account the
// money leaves from and defaults to the loan's bank account.
type RecordPaymentInput struct {
	Date        time.Time       `json:"date" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentCode string          `json:"payment_code" validate:"omitempty,numeric,min=4,max=8"`
}

// Service manages loans
type Service struct {
	scope    accounting.TransactionScope
	journals *accounting.JournalService
	logger   *zap.Logger
}

// NewService creates a new loan Service
func NewService(scope accounting.TransactionScope, journals *accounting.JournalService, logger *zap.Logger) *Service {
	return &Service{scope: scope, journals: journals, logger: logger}
}

// InitReference is the journal reference of the entry booking a loan
func InitReference(loanID uuid.UUID) ledger.Reference {
	return ledger.Reference{Type: loan.ReferenceTypeLoanInit, ID: fmt.Sprintf("LOAN-INIT-%s", loanID)}
}

// PaymentReference is the journal reference of the entry booking a repayment
func PaymentReference(paymentID uuid.UUID) ledger.Reference {
	return ledger.Reference{Type: loan.ReferenceTypeLoanPayment, ID: fmt.Sprintf("LOAN-PAY-%s", paymentID)}
}

// CreateLoan stores a loan with its schedule and posts the entry moving the
// principal into the bank account
func (s *Service) CreateLoan(ctx context.Context, input CreateLoanInput, user string) (*loan.Loan, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "loan", "create",
		telemetry.WithAttribute(telemetry.SpanAttrUser, user),
		telemetry.WithAttribute(telemetry.SpanAttrAmount, input.Principal.StringFixed(2)))
	defer span.End()

	if err := validate.Struct(input); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	frequency := loan.Frequency(input.Frequency)
	if frequency == "" {
		frequency = loan.FrequencyMonthly
	}

	var l *loan.Loan
	err := s.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
		accounts, err := s.resolveAccounts(ctx, repos, input)
		if err != nil {
			return err
		}
		if l, err = loan.NewLoan(input.Lender, input.Principal, input.AnnualRate, input.DurationMonths, frequency, input.StartDate, accounts); err != nil {
			return err
		}
		l.Description = input.Description

		year := l.StartDate.Year()
		seq, err := repos.Sequences().Next(ctx, loan.SequenceKey(year))
		if err != nil {
			return fmt.Errorf("failed to allocate loan number: %w", err)
		}
		l.AssignNumber(loan.FormatLoanNumber(year, seq))

		description := fmt.Sprintf("Loan %s from %s", l.LoanNumber, l.Lender)
		entry, err := s.journals.CreateMultiLine(ctx, accounting.DraftInput{
			Date:        l.StartDate,
			Type:        ledger.EntryTypeAutomatic,
			Description: description,
			Reference:   InitReference(l.ID),
			Lines: []ledger.LineInput{
				ledger.DebitLine(accounts.BankID, l.Principal, description),
				ledger.CreditLine(accounts.LiabilityID, l.Principal, description),
			},
		}, user)
		if err != nil {
			return err
		}
		l.LinkInitialEntry(entry.ID)

		if err := repos.Loans().Save(ctx, l); err != nil {
			return fmt.Errorf("failed to save loan: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("loan created",
		zap.String("loan_id", l.ID.String()),
		zap.String("loan_number", l.LoanNumber),
		zap.String("lender", l.Lender),
		zap.String("principal", l.Principal.StringFixed(2)),
		zap.String("annual_rate", l.AnnualRate.String()),
		zap.Int("installments", len(l.Payments)),
		zap.String("total_interest", l.TotalInterest.StringFixed(2)),
	)
	telemetry.SetAttributes(span, telemetry.SpanAttrLoanID, l.ID.String())
	telemetry.SetOK(span)
	return l, nil
}

func (s *Service) resolveAccounts(ctx context.Context, repos accounting.Repositories, input CreateLoanInput) (loan.Accounts, error) {
	liability, err := repos.Accounts().FindByCode(ctx, codeOr(input.LiabilityCode, ledger.CodeLongTermLoans))
	if err != nil {
		return loan.Accounts{}, fmt.Errorf("failed to resolve liability account: %w", err)
	}
	bank, err := repos.Accounts().FindByCode(ctx, codeOr(input.BankCode, ledger.CodePrimaryBank))
	if err != nil {
		return loan.Accounts{}, fmt.Errorf("failed to resolve bank account: %w", err)
	}
	accounts := loan.Accounts{LiabilityID: liability.ID, BankID: bank.ID}

	if input.InterestCode != "" || input.AnnualRate.IsPositive() {
		interest, err := repos.Accounts().FindByCode(ctx, codeOr(input.InterestCode, ledger.CodeLoanInterestExpense))
		switch {
		case err == nil:
			accounts.InterestExpenseID = &interest.ID
		case errors.Is(err, shared.ErrNotFound):
			// NewLoan reports the missing interest account
		default:
			return loan.Accounts{}, fmt.Errorf("failed to resolve interest account: %w", err)
		}
	}
	return accounts, nil
}

// RecordPayment splits a repayment into interest and principal, posts the
// entry and settles the next installment
func (s *Service) RecordPayment(ctx context.Context, loanID uuid.UUID, input RecordPaymentInput, user string) (*loan.Payment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "loan", "record_payment",
		telemetry.WithAttribute(telemetry.SpanAttrLoanID, loanID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrAmount, input.Amount.StringFixed(2)))
	defer span.End()

	if err := validate.Struct(input); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var (
		l    *loan.Loan
		paid loan.Payment
	)
	err := s.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
		var err error
		if l, err = repos.Loans().FindByID(ctx, loanID); err != nil {
			return err
		}
		principal, interest, err := l.Split(input.Amount)
		if err != nil {
			return err
		}

		paymentAccountID := l.Accounts.BankID
		if input.PaymentCode != "" {
			acc, err := repos.Accounts().FindByCode(ctx, input.PaymentCode)
			if err != nil {
				return fmt.Errorf("failed to resolve payment account: %w", err)
			}
			paymentAccountID = acc.ID
		}

		total := principal.Add(interest)
		description := fmt.Sprintf("Loan %s repayment", l.LoanNumber)
		var lines []ledger.LineInput
		if principal.IsPositive() {
			lines = append(lines, ledger.DebitLine(l.Accounts.LiabilityID, principal, description))
		}
		if interest.IsPositive() {
			if l.Accounts.InterestExpenseID == nil {
				return shared.NewValidationError(loan.CodeMissingInterestAccount, "Loan has no interest expense account")
			}
			lines = append(lines, ledger.DebitLine(*l.Accounts.InterestExpenseID, interest, description))
		}
		lines = append(lines, ledger.CreditLine(paymentAccountID, total, description))

		entry, err := s.journals.CreateMultiLine(ctx, accounting.DraftInput{
			Date:        input.Date,
			Type:        ledger.EntryTypeAutomatic,
			Description: description,
			Reference:   PaymentReference(l.NextPaymentID()),
			Lines:       lines,
		}, user)
		if err != nil {
			return err
		}

		paid = *l.ApplyPayment(input.Date, principal, interest, paymentAccountID, entry.ID)
		if err := repos.Loans().Save(ctx, l); err != nil {
			return fmt.Errorf("failed to save loan: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("loan payment recorded",
		zap.String("loan_id", l.ID.String()),
		zap.String("loan_number", l.LoanNumber),
		zap.Int("payment_number", paid.PaymentNumber),
		zap.String("principal", paid.Principal.StringFixed(2)),
		zap.String("interest", paid.Interest.StringFixed(2)),
		zap.String("remaining", l.RemainingBalance().StringFixed(2)),
		zap.String("status", string(l.Status)),
	)
	telemetry.SetOK(span)
	return &paid, nil
}

// MarkOverdue flags every scheduled installment due before asOf and
// returns how many changed
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	changed := 0
	err := s.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
		loans, err := repos.Loans().FindWithOpenPaymentsBefore(ctx, asOf)
		if err != nil {
			return fmt.Errorf("failed to list loans with open payments: %w", err)
		}
		for i := range loans {
			n := loans[i].MarkOverdue(asOf)
			if n == 0 {
				continue
			}
			if err := repos.Loans().Save(ctx, &loans[i]); err != nil {
				return fmt.Errorf("failed to save loan %s: %w", loans[i].LoanNumber, err)
			}
			changed += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("overdue loan payments marked",
		zap.String("as_of", asOf.Format(ledger.DateLayout)),
		zap.Int("payments", changed),
	)
	return changed, nil
}

// CancelLoan cancels a loan without settled installments and reverses its
// initial entry
func (s *Service) CancelLoan(ctx context.Context, loanID uuid.UUID, user, reason string) (*loan.Loan, error) {
	var l *loan.Loan
	err := s.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
		var err error
		if l, err = repos.Loans().FindByID(ctx, loanID); err != nil {
			return err
		}
		if err := l.Cancel(); err != nil {
			return err
		}
		if l.InitialEntryID != nil {
			if _, err := s.journals.Cancel(ctx, *l.InitialEntryID, user, reason); err != nil {
				return err
			}
		}
		return repos.Loans().Save(ctx, l)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("loan cancelled",
		zap.String("loan_id", l.ID.String()),
		zap.String("loan_number", l.LoanNumber),
		zap.String("reason", reason),
	)
	return l, nil
}

// GetLoan loads a loan with its payments
func (s *Service) GetLoan(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	var l *loan.Loan
	err := s.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
		var err error
		l, err = repos.Loans().FindByID(ctx, id)
		return err
	})
	return l, err
}

// ListLoans lists loans matching the filter
func (s *Service) ListLoans(ctx context.Context, filter loan.Filter) ([]loan.Loan, error) {
	var loans []loan.Loan
	err := s.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
		var err error
		loans, err = repos.Loans().FindAll(ctx, filter)
		return err
	})
	return loans, err
}

func codeOr(code, def string) string {
	if code != "" {
		return code
	}
	return def
}
