package loan

import (
	"time"

	"github.com/shopspring/decimal"
)

var twelveHundred = decimal.NewFromInt(1200)

// PeriodicRate converts an annual percentage rate to the rate per installment
func PeriodicRate(annualRate decimal.Decimal, f Frequency) decimal.Decimal {
	return annualRate.Div(twelveHundred).Mul(decimal.NewFromInt(int64(f.MonthsPerPeriod())))
}

// Installment is one row of an amortization schedule
type Installment struct {
	Number        int
	ScheduledDate time.Time
	Principal     decimal.Decimal
	Interest      decimal.Decimal
	Remaining     decimal.Decimal
}

// Amount returns principal plus interest
func (i Installment) Amount() decimal.Decimal {
	return i.Principal.Add(i.Interest)
}

// FixedPayment is the annuity installment P*r*(1+r)^n / ((1+r)^n - 1),
// rounded to cents. A zero rate yields P/n.
func FixedPayment(principal, rate decimal.Decimal, n int) decimal.Decimal {
	if n < 1 {
		n = 1
	}
	if rate.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(n))).Round(2)
	}
	growth := decimal.NewFromInt(1).Add(rate).Pow(decimal.NewFromInt(int64(n)))
	return principal.Mul(rate).Mul(growth).Div(growth.Sub(decimal.NewFromInt(1))).Round(2)
}

// BuildSchedule computes the amortization schedule. The last installment
// takes whatever principal remains so the principals sum to principal exactly.
func BuildSchedule(principal, annualRate decimal.Decimal, durationMonths int, f Frequency, start time.Time) []Installment {
	n := f.Installments(durationMonths)
	rate := PeriodicRate(annualRate, f)
	payment := FixedPayment(principal, rate, n)

	schedule := make([]Installment, 0, n)
	remaining := principal
	for i := 1; i <= n; i++ {
		interest := remaining.Mul(rate).Round(2)
		principalPart := payment.Sub(interest)
		if i == n || principalPart.GreaterThan(remaining) {
			principalPart = remaining
		}
		if principalPart.IsNegative() {
			principalPart = decimal.Zero
		}
		remaining = remaining.Sub(principalPart)
		schedule = append(schedule, Installment{
			Number:        i,
			ScheduledDate: start.Add(time.Duration(i) * f.Step()),
			Principal:     principalPart,
			Interest:      interest,
			Remaining:     remaining,
		})
		if remaining.IsZero() {
			break
		}
	}
	return schedule
}
