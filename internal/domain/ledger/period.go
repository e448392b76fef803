package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
)

// DateLayout is the calendar-day format used in messages and references
const DateLayout = "2006-01-02"

// DateOf truncates t to midnight UTC of its calendar day
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PeriodStatus represents the posting state of an accounting period
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "open"
	PeriodStatusClosed PeriodStatus = "closed"
	PeriodStatusLocked PeriodStatus = "locked"
)

// IsValid checks if the status is a valid PeriodStatus
func (s PeriodStatus) IsValid() bool {
	switch s {
	case PeriodStatusOpen, PeriodStatusClosed, PeriodStatusLocked:
		return true
	}
	return false
}

// String returns the string representation of PeriodStatus
func (s PeriodStatus) String() string {
	return string(s)
}

// AccountingPeriod is a contiguous date range entries are classified into
type AccountingPeriod struct {
	shared.BaseAggregateRoot
	Name      string       `json:"name"`
	StartDate time.Time    `json:"start_date"`
	EndDate   time.Time    `json:"end_date"`
	Status    PeriodStatus `json:"status"`
}

// NewAccountingPeriod creates an open period covering [start, end]
func NewAccountingPeriod(name string, start, end time.Time) (*AccountingPeriod, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewValidationError("INVALID_PERIOD_NAME", "Period name cannot be empty")
	}
	if start.IsZero() || end.IsZero() {
		return nil, shared.NewValidationError("INVALID_PERIOD_RANGE", "Period start and end dates are required")
	}
	start, end = DateOf(start), DateOf(end)
	if end.Before(start) {
		return nil, shared.NewValidationError("INVALID_PERIOD_RANGE", "Period end date must not precede its start date")
	}
	return &AccountingPeriod{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		StartDate:         start,
		EndDate:           end,
		Status:            PeriodStatusOpen,
	}, nil
}

// Contains reports whether d falls inside the period, bounds included
func (p *AccountingPeriod) Contains(d time.Time) bool {
	d = DateOf(d)
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}

// Overlaps reports whether two periods share at least one day
func (p *AccountingPeriod) Overlaps(other *AccountingPeriod) bool {
	return !p.EndDate.Before(other.StartDate) && !other.EndDate.Before(p.StartDate)
}

// IsOpen reports whether entries may be posted into the period
func (p *AccountingPeriod) IsOpen() bool {
	return p.Status == PeriodStatusOpen
}

// Close moves an open period to closed
func (p *AccountingPeriod) Close() error {
	if p.Status != PeriodStatusOpen {
		return shared.NewStateError("INVALID_STATE", fmt.Sprintf("Cannot close period in %s status", p.Status))
	}
	p.Status = PeriodStatusClosed
	p.Touch()
	p.IncrementVersion()
	return nil
}

// Lock freezes the period permanently
func (p *AccountingPeriod) Lock() error {
	if p.Status == PeriodStatusLocked {
		return shared.NewStateError("INVALID_STATE", "Period is already locked")
	}
	p.Status = PeriodStatusLocked
	p.Touch()
	p.IncrementVersion()
	return nil
}

// Reopen moves a closed period back to open. Locked periods stay locked.
func (p *AccountingPeriod) Reopen() error {
	if p.Status != PeriodStatusClosed {
		return shared.NewStateError("INVALID_STATE", fmt.Sprintf("Cannot reopen period in %s status", p.Status))
	}
	p.Status = PeriodStatusOpen
	p.Touch()
	p.IncrementVersion()
	return nil
}
