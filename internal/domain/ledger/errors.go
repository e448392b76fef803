package ledger

import (
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
)

// Error codes raised by the ledger
const (
	CodeUnbalancedEntry = "UNBALANCED_ENTRY"
	CodeNonLeafAccount  = "NON_LEAF_ACCOUNT"
	CodeInactiveAccount = "INACTIVE_ACCOUNT"
	CodeInvalidLine     = "INVALID_LINE"
	CodeAlreadyPosted   = "ALREADY_POSTED"
	CodeClosedPeriod    = "CLOSED_PERIOD"
	CodeNoPeriod        = "NO_PERIOD"
	CodeReferenced      = "REFERENCED"
	CodeLinesExist      = "LINES_EXIST"
	CodePeriodOverlap   = "PERIOD_OVERLAP"
)

// ErrNoPeriod builds the error returned when no period contains a date
func ErrNoPeriod(date time.Time) error {
	return shared.NewStateError(CodeNoPeriod, fmt.Sprintf("No accounting period contains %s", date.Format(DateLayout)))
}

// ErrClosedPeriod builds the error returned when posting into a non-open period
func ErrClosedPeriod(p *AccountingPeriod) error {
	return shared.NewStateError(CodeClosedPeriod, fmt.Sprintf("Accounting period %s is %s", p.Name, p.Status))
}

// ErrReferenced builds the error returned when an account cannot be removed
func ErrReferenced(code, why string) error {
	return shared.NewStateError(CodeReferenced, fmt.Sprintf("Account %s cannot be deleted: %s", code, why))
}
