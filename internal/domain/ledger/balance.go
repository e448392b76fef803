package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OpenEndedAsOf keys the cached balance requested without an as-of date
var OpenEndedAsOf = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// AsOfKey normalizes an optional as-of date to the cache key day
func AsOfKey(asOf *time.Time) time.Time {
	if asOf == nil || asOf.IsZero() {
		return OpenEndedAsOf
	}
	return DateOf(*asOf)
}

// AccountBalance is a cached balance of an account and its descendants
type AccountBalance struct {
	AccountID    uuid.UUID       `json:"account_id"`
	AsOf         time.Time       `json:"as_of"`
	Balance      decimal.Decimal `json:"balance"`
	TotalDebit   decimal.Decimal `json:"total_debit"`
	TotalCredit  decimal.Decimal `json:"total_credit"`
	NeedsRefresh bool            `json:"needs_refresh"`
	ComputedAt   time.Time       `json:"computed_at"`
}

// IsFresh reports whether the cached value may be served
func (b *AccountBalance) IsFresh() bool {
	return b != nil && !b.NeedsRefresh
}

// LineTotals are the raw sums of posted lines for one account
type LineTotals struct {
	AccountID uuid.UUID
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Net returns debit minus credit
func (t LineTotals) Net() decimal.Decimal {
	return t.Debit.Sub(t.Credit)
}

// TrialBalance summarizes all posted lines up to a date
type TrialBalance struct {
	AsOf        time.Time       `json:"as_of"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Lines       []LineTotals    `json:"lines"`
}

// IsBalanced reports whether debits equal credits
func (tb *TrialBalance) IsBalanced() bool {
	return tb.TotalDebit.Round(2).Equal(tb.TotalCredit.Round(2))
}
