package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReferenceTypeJournalEntry tags reversal entries pointing at their source
const ReferenceTypeJournalEntry = "journal_entry"

// EntryType classifies how a journal entry originated
type EntryType string

const (
	EntryTypeManual     EntryType = "manual"
	EntryTypeAutomatic  EntryType = "automatic"
	EntryTypeAdjustment EntryType = "adjustment"
	EntryTypeClosing    EntryType = "closing"
	EntryTypeOpening    EntryType = "opening"
)

// IsValid checks if the type is a valid EntryType
func (t EntryType) IsValid() bool {
	switch t {
	case EntryTypeManual, EntryTypeAutomatic, EntryTypeAdjustment, EntryTypeClosing, EntryTypeOpening:
		return true
	}
	return false
}

// String returns the string representation of EntryType
func (t EntryType) String() string {
	return string(t)
}

// NumberPrefix returns the prefix used when numbering entries of this type
func (t EntryType) NumberPrefix() string {
	switch t {
	case EntryTypeAutomatic:
		return "AJ"
	case EntryTypeAdjustment:
		return "ADJ"
	case EntryTypeClosing:
		return "CLS"
	case EntryTypeOpening:
		return "OPN"
	default:
		return "JV"
	}
}

// EntryStatus represents the lifecycle state of a journal entry
type EntryStatus string

const (
	EntryStatusDraft     EntryStatus = "draft"
	EntryStatusPosted    EntryStatus = "posted"
	EntryStatusCancelled EntryStatus = "cancelled"
)

// IsValid checks if the status is a valid EntryStatus
func (s EntryStatus) IsValid() bool {
	switch s {
	case EntryStatusDraft, EntryStatusPosted, EntryStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of EntryStatus
func (s EntryStatus) String() string {
	return string(s)
}

// Reference links an entry to the domain object that produced it
type Reference struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// String returns the "type:id" form of the reference
func (r Reference) String() string {
	return r.Type + ":" + r.ID
}

// IsZero reports whether the reference is unset
func (r Reference) IsZero() bool {
	return r.Type == "" && r.ID == ""
}

// ParseReference parses the "type:id" form. A value without a colon is
// treated as an id with an empty type.
func ParseReference(s string) Reference {
	if i := strings.Index(s, ":"); i >= 0 {
		return Reference{Type: s[:i], ID: s[i+1:]}
	}
	return Reference{ID: s}
}

// JournalLine is a single debit or credit of an entry
type JournalLine struct {
	ID          uuid.UUID       `json:"id"`
	EntryID     uuid.UUID       `json:"entry_id"`
	LineNo      int             `json:"line_no"`
	AccountID   uuid.UUID       `json:"account_id"`
	AccountCode string          `json:"account_code"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
	CostCenter  string          `json:"cost_center,omitempty"`
	Project     string          `json:"project,omitempty"`
}

// LineInput carries the caller-provided values for a journal line
type LineInput struct {
	AccountID   uuid.UUID
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
	CostCenter  string
	Project     string
}

// DebitLine is shorthand for a debit line
func DebitLine(accountID uuid.UUID, amount decimal.Decimal, description string) LineInput {
	return LineInput{AccountID: accountID, Debit: amount, Credit: decimal.Zero, Description: description}
}

// CreditLine is shorthand for a credit line
func CreditLine(accountID uuid.UUID, amount decimal.Decimal, description string) LineInput {
	return LineInput{AccountID: accountID, Debit: decimal.Zero, Credit: amount, Description: description}
}

// Validate checks that exactly one side of the line is positive
func (l LineInput) Validate() error {
	if l.AccountID == uuid.Nil {
		return shared.NewValidationError(CodeInvalidLine, "Journal line requires an account")
	}
	if l.Debit.IsNegative() || l.Credit.IsNegative() {
		return shared.NewValidationError(CodeInvalidLine, "Journal line amounts cannot be negative")
	}
	if l.Debit.IsPositive() == l.Credit.IsPositive() {
		return shared.NewValidationError(CodeInvalidLine, "Journal line must have exactly one of debit or credit")
	}
	return nil
}

// JournalEntry is the aggregate root of the journal engine
type JournalEntry struct {
	shared.BaseAggregateRoot
	Number       string        `json:"number"`
	Date         time.Time     `json:"date"`
	Type         EntryType     `json:"type"`
	Status       EntryStatus   `json:"status"`
	Description  string        `json:"description"`
	Reference    Reference     `json:"reference"`
	PeriodID     uuid.UUID     `json:"period_id"`
	Lines        []JournalLine `json:"lines"`
	PostedAt     *time.Time    `json:"posted_at"`
	PostedBy     string        `json:"posted_by"`
	CancelledAt  *time.Time    `json:"cancelled_at"`
	CancelledBy  string        `json:"cancelled_by"`
	CancelReason string        `json:"cancel_reason"`
	ReversalOf   *uuid.UUID    `json:"reversal_of"`
	ReversedBy   *uuid.UUID    `json:"reversed_by"`
}

// NewJournalEntry creates a draft entry. Account existence and leaf checks
// are performed by the caller, which has access to the catalog.
func NewJournalEntry(date time.Time, entryType EntryType, description string, lines []LineInput, ref Reference) (*JournalEntry, error) {
	if date.IsZero() {
		return nil, shared.NewValidationError("INVALID_ENTRY_DATE", "Entry date is required")
	}
	if !entryType.IsValid() {
		return nil, shared.NewValidationError("INVALID_ENTRY_TYPE", fmt.Sprintf("Unknown entry type %q", entryType))
	}
	if len(lines) < 2 {
		return nil, shared.NewValidationError(CodeInvalidLine, "Journal entry requires at least two lines")
	}

	je := &JournalEntry{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Date:              DateOf(date),
		Type:              entryType,
		Status:            EntryStatusDraft,
		Description:       description,
		Reference:         ref,
		Lines:             make([]JournalLine, 0, len(lines)),
	}
	for i, in := range lines {
		if err := in.Validate(); err != nil {
			return nil, err
		}
		je.Lines = append(je.Lines, JournalLine{
			ID:          uuid.New(),
			EntryID:     je.ID,
			LineNo:      i + 1,
			AccountID:   in.AccountID,
			AccountCode: in.AccountCode,
			Debit:       in.Debit.Round(2),
			Credit:      in.Credit.Round(2),
			Description: in.Description,
			CostCenter:  in.CostCenter,
			Project:     in.Project,
		})
	}
	if err := je.ValidateBalance(); err != nil {
		return nil, err
	}
	return je, nil
}

// TotalDebit sums the debit side
func (je *JournalEntry) TotalDebit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range je.Lines {
		total = total.Add(l.Debit)
	}
	return total
}

// TotalCredit sums the credit side
func (je *JournalEntry) TotalCredit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range je.Lines {
		total = total.Add(l.Credit)
	}
	return total
}

// ValidateBalance checks that both sides agree to two decimal places
func (je *JournalEntry) ValidateBalance() error {
	debit, credit := je.TotalDebit().Round(2), je.TotalCredit().Round(2)
	if !debit.Equal(credit) {
		return shared.NewValidationError(CodeUnbalancedEntry,
			fmt.Sprintf("Entry is unbalanced: debit %s, credit %s", debit.StringFixed(2), credit.StringFixed(2)))
	}
	return nil
}

// AccountIDs returns the distinct accounts touched by the entry in line order
func (je *JournalEntry) AccountIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(je.Lines))
	ids := make([]uuid.UUID, 0, len(je.Lines))
	for _, l := range je.Lines {
		if !seen[l.AccountID] {
			seen[l.AccountID] = true
			ids = append(ids, l.AccountID)
		}
	}
	return ids
}

// AssignNumber sets the entry number once
func (je *JournalEntry) AssignNumber(number string) {
	if je.Number == "" {
		je.Number = number
	}
}

// FormatEntryNumber renders {PREFIX}-{YYYY}-{NNNNNN}
func FormatEntryNumber(entryType EntryType, year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%06d", entryType.NumberPrefix(), year, seq)
}

// SequenceKey returns the numbering sequence key for entries of this type and year
func SequenceKey(entryType EntryType, year int) string {
	return fmt.Sprintf("journal:%s:%04d", entryType, year)
}

// AssignPeriod classifies the entry into period. The period must be open.
func (je *JournalEntry) AssignPeriod(p *AccountingPeriod) error {
	if !p.Contains(je.Date) {
		return ErrNoPeriod(je.Date)
	}
	if !p.IsOpen() {
		return ErrClosedPeriod(p)
	}
	je.PeriodID = p.ID
	return nil
}

// Post transitions the entry from draft to posted
func (je *JournalEntry) Post(user string, period *AccountingPeriod) error {
	if je.Status == EntryStatusPosted {
		return shared.NewStateError(CodeAlreadyPosted, fmt.Sprintf("Journal entry %s is already posted", je.Number))
	}
	if je.Status != EntryStatusDraft {
		return shared.NewStateError("INVALID_STATE", fmt.Sprintf("Cannot post journal entry in %s status", je.Status))
	}
	if err := je.ValidateBalance(); err != nil {
		return err
	}
	if err := je.AssignPeriod(period); err != nil {
		return err
	}

	now := time.Now()
	je.Status = EntryStatusPosted
	je.PostedAt = &now
	je.PostedBy = user
	je.Touch()
	je.IncrementVersion()

	je.AddDomainEvent(NewJournalEntryPostedEvent(je))
	return nil
}

// Reverse cancels a posted entry and returns the posted reversing entry.
// Lines of the original are left untouched.
func (je *JournalEntry) Reverse(user, reason string, period *AccountingPeriod) (*JournalEntry, error) {
	if je.Status != EntryStatusPosted {
		return nil, shared.NewStateError("INVALID_STATE", fmt.Sprintf("Cannot cancel journal entry in %s status", je.Status))
	}

	lines := make([]LineInput, 0, len(je.Lines))
	for _, l := range je.Lines {
		lines = append(lines, LineInput{
			AccountID:   l.AccountID,
			AccountCode: l.AccountCode,
			Debit:       l.Credit,
			Credit:      l.Debit,
			Description: l.Description,
			CostCenter:  l.CostCenter,
			Project:     l.Project,
		})
	}
	description := fmt.Sprintf("Reversal of %s", je.Number)
	if reason != "" {
		description += ": " + reason
	}
	reversal, err := NewJournalEntry(je.Date, EntryTypeAdjustment, description, lines,
		Reference{Type: ReferenceTypeJournalEntry, ID: je.ID.String()})
	if err != nil {
		return nil, err
	}
	originalID := je.ID
	reversal.ReversalOf = &originalID
	if err := reversal.Post(user, period); err != nil {
		return nil, err
	}

	now := time.Now()
	reversalID := reversal.ID
	je.Status = EntryStatusCancelled
	je.CancelledAt = &now
	je.CancelledBy = user
	je.CancelReason = reason
	je.ReversedBy = &reversalID
	je.Touch()
	je.IncrementVersion()

	je.AddDomainEvent(NewJournalEntryCancelledEvent(je, reversal))
	return reversal, nil
}

// Clone returns a deep copy of the entry without pending events
func (je *JournalEntry) Clone() *JournalEntry {
	c := *je
	c.ClearDomainEvents()
	c.Lines = append([]JournalLine(nil), je.Lines...)
	return &c
}

// Rebind moves an automatic entry to another reference. Sync updates use it
// when the source document number changes.
func (je *JournalEntry) Rebind(ref Reference, description string) error {
	if je.Type != EntryTypeAutomatic {
		return shared.NewStateError("INVALID_STATE", fmt.Sprintf("Only automatic entries can be rebound, %s is %s", je.Number, je.Type))
	}
	if ref.IsZero() {
		return shared.NewValidationError("INVALID_REFERENCE", "Reference is required")
	}
	je.Reference = ref
	if description != "" {
		je.Description = description
	}
	je.Touch()
	return nil
}

// Rewrite replaces the date and lines of an automatic entry in place. Sync
// updates use it to keep the mirrored entry bound to its reference. The
// returned accounts cover both the old and the new lines.
func (je *JournalEntry) Rewrite(date time.Time, lines []LineInput, period *AccountingPeriod) ([]uuid.UUID, error) {
	if je.Type != EntryTypeAutomatic {
		return nil, shared.NewStateError("INVALID_STATE", fmt.Sprintf("Only automatic entries can be rewritten, %s is %s", je.Number, je.Type))
	}
	if je.Status == EntryStatusCancelled {
		return nil, shared.NewStateError("INVALID_STATE", fmt.Sprintf("Cannot rewrite cancelled journal entry %s", je.Number))
	}
	draft, err := NewJournalEntry(date, je.Type, je.Description, lines, je.Reference)
	if err != nil {
		return nil, err
	}
	draft.ID = je.ID
	if err := draft.AssignPeriod(period); err != nil {
		return nil, err
	}

	touched := je.AccountIDs()
	seen := make(map[uuid.UUID]bool, len(touched))
	for _, id := range touched {
		seen[id] = true
	}
	for i := range draft.Lines {
		draft.Lines[i].EntryID = je.ID
		if !seen[draft.Lines[i].AccountID] {
			seen[draft.Lines[i].AccountID] = true
			touched = append(touched, draft.Lines[i].AccountID)
		}
	}

	je.Date = draft.Date
	je.PeriodID = draft.PeriodID
	je.Lines = draft.Lines
	je.Touch()
	je.IncrementVersion()

	je.AddDomainEvent(NewJournalEntryRewrittenEvent(je, touched))
	return touched, nil
}
