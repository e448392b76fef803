package accounting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DraftInput holds the values of a new journal entry. Each line names its
// account by ID or, when the ID is nil, by code.
type DraftInput struct {
	Date        time.Time
	Type        ledger.EntryType
	Description string
	Lines       []ledger.LineInput
	Reference   ledger.Reference
}

// SimpleInput describes a two-line entry moving Amount from Credit to Debit.
// Accounts are given by code.
type SimpleInput struct {
	DebitCode   string
	CreditCode  string
	Amount      decimal.Decimal
	Date        time.Time
	Description string
	Type        ledger.EntryType
	Reference   ledger.Reference
	Post        bool
	User        string
}

// JournalService creates, posts and reverses journal entries
type JournalService struct {
	scope      TransactionScope
	publisher  shared.EventPublisher
	authorizer Authorizer
	logger     *zap.Logger
}

// NewJournalService creates a new JournalService. A nil authorizer allows everything.
func NewJournalService(scope TransactionScope, publisher shared.EventPublisher, authorizer Authorizer, logger *zap.Logger) *JournalService {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if authorizer == nil {
		authorizer = AllowAll{}
	}
	return &JournalService{scope: scope, publisher: publisher, authorizer: authorizer, logger: logger}
}

// CreateDraft validates and stores a draft entry with its number assigned
func (s *JournalService) CreateDraft(ctx context.Context, input DraftInput) (*ledger.JournalEntry, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal", "create_draft")
	defer span.End()

	var entry *ledger.JournalEntry
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		entry, err = s.createDraft(ctx, repos, input)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrEntryNumber, entry.Number)
	telemetry.SetOK(span)
	return entry, nil
}

func (s *JournalService) createDraft(ctx context.Context, repos Repositories, input DraftInput) (*ledger.JournalEntry, error) {
	if input.Type == "" {
		input.Type = ledger.EntryTypeManual
	}
	lines, err := resolveLines(ctx, repos, input.Lines)
	if err != nil {
		return nil, err
	}
	entry, err := ledger.NewJournalEntry(input.Date, input.Type, input.Description, lines, input.Reference)
	if err != nil {
		return nil, err
	}
	period, err := findPeriod(ctx, repos, entry.Date)
	if err != nil {
		return nil, err
	}
	if err := entry.AssignPeriod(period); err != nil {
		return nil, err
	}
	if err := assignNumber(ctx, repos, entry); err != nil {
		return nil, err
	}
	if err := repos.Journals().Save(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to save journal entry: %w", err)
	}
	return entry, nil
}

// resolveLines fills account IDs and codes and checks every account can
// receive lines
func resolveLines(ctx context.Context, repos Repositories, in []ledger.LineInput) ([]ledger.LineInput, error) {
	out := make([]ledger.LineInput, len(in))
	ids := make([]uuid.UUID, 0, len(in))
	for i, l := range in {
		if l.AccountID == uuid.Nil {
			if l.AccountCode == "" {
				return nil, shared.NewValidationError(ledger.CodeInvalidLine, fmt.Sprintf("Line %d has no account", i+1))
			}
			acc, err := repos.Accounts().FindByCode(ctx, l.AccountCode)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return nil, shared.NewValidationError(ledger.CodeInvalidLine, fmt.Sprintf("Line %d references unknown account %s", i+1, l.AccountCode))
				}
				return nil, fmt.Errorf("failed to resolve account %s: %w", l.AccountCode, err)
			}
			l.AccountID = acc.ID
		}
		out[i] = l
		ids = append(ids, l.AccountID)
	}

	accounts, err := repos.Accounts().FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load line accounts: %w", err)
	}
	for i := range out {
		acc, ok := accounts[out[i].AccountID]
		if !ok {
			return nil, shared.NewValidationError(ledger.CodeInvalidLine, fmt.Sprintf("Line %d references unknown account %s", i+1, out[i].AccountID))
		}
		if err := acc.CanReceiveLines(); err != nil {
			return nil, err
		}
		out[i].AccountCode = acc.Code
	}
	return out, nil
}

func assignNumber(ctx context.Context, repos Repositories, entry *ledger.JournalEntry) error {
	if entry.Number != "" {
		return nil
	}
	year := entry.Date.Year()
	seq, err := repos.Sequences().Next(ctx, ledger.SequenceKey(entry.Type, year))
	if err != nil {
		return fmt.Errorf("failed to allocate entry number: %w", err)
	}
	entry.AssignNumber(ledger.FormatEntryNumber(entry.Type, year, seq))
	return nil
}

// Post moves a draft entry to posted
func (s *JournalService) Post(ctx context.Context, entryID uuid.UUID, user string) (*ledger.JournalEntry, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal", "post",
		telemetry.WithAttribute(telemetry.SpanAttrEntryID, entryID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrUser, user))
	defer span.End()

	var entry *ledger.JournalEntry
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		if entry, err = repos.Journals().FindByID(ctx, entryID); err != nil {
			return err
		}
		return s.post(ctx, repos, entry, user)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("journal entry posted",
		zap.String("entry_id", entry.ID.String()),
		zap.String("number", entry.Number),
		zap.String("amount", entry.TotalDebit().StringFixed(2)),
		zap.String("user", user),
	)
	telemetry.SetOK(span)
	return entry, nil
}

func (s *JournalService) post(ctx context.Context, repos Repositories, entry *ledger.JournalEntry, user string) error {
	if entry.Status != ledger.EntryStatusDraft {
		// status errors come before any period lookup
		return entry.Post(user, nil)
	}
	if err := s.authorizer.CanPost(ctx, user, entry); err != nil {
		return err
	}
	// re-check accounts, they may have been deactivated since drafting
	if _, err := resolveLines(ctx, repos, linesOf(entry)); err != nil {
		return err
	}
	period, err := findPeriod(ctx, repos, entry.Date)
	if err != nil {
		return err
	}
	if err := entry.Post(user, period); err != nil {
		return err
	}
	if err := repos.Journals().Save(ctx, entry); err != nil {
		return fmt.Errorf("failed to save journal entry: %w", err)
	}
	return s.publish(ctx, entry)
}

// Cancel reverses a posted entry. The original keeps its lines and
// becomes cancelled; the returned reversal is posted.
func (s *JournalService) Cancel(ctx context.Context, entryID uuid.UUID, user, reason string) (*ledger.JournalEntry, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal", "cancel",
		telemetry.WithAttribute(telemetry.SpanAttrEntryID, entryID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrUser, user))
	defer span.End()

	var original, reversal *ledger.JournalEntry
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		if original, err = repos.Journals().FindByID(ctx, entryID); err != nil {
			return err
		}
		if err := s.authorizer.CanCancel(ctx, user, original); err != nil {
			return err
		}
		period, err := findPeriod(ctx, repos, original.Date)
		if err != nil {
			return err
		}
		if reversal, err = original.Reverse(user, reason, period); err != nil {
			return err
		}
		if err := assignNumber(ctx, repos, reversal); err != nil {
			return err
		}
		if err := repos.Journals().Save(ctx, reversal); err != nil {
			return fmt.Errorf("failed to save reversal entry: %w", err)
		}
		if err := repos.Journals().Save(ctx, original); err != nil {
			return fmt.Errorf("failed to save cancelled entry: %w", err)
		}
		if err := s.publish(ctx, reversal); err != nil {
			return err
		}
		return s.publish(ctx, original)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("journal entry cancelled",
		zap.String("entry_id", original.ID.String()),
		zap.String("number", original.Number),
		zap.String("reversal_id", reversal.ID.String()),
		zap.String("reversal_number", reversal.Number),
		zap.String("reason", reason),
	)
	telemetry.SetOK(span)
	return reversal, nil
}

// CreateSimple creates a two-line entry, posting it when input.Post is set
func (s *JournalService) CreateSimple(ctx context.Context, input SimpleInput) (*ledger.JournalEntry, error) {
	if !input.Amount.IsPositive() {
		return nil, shared.NewValidationError(ledger.CodeInvalidLine, "Amount must be positive")
	}
	if input.Type == "" {
		input.Type = ledger.EntryTypeAutomatic
	}
	draft := DraftInput{
		Date:        input.Date,
		Type:        input.Type,
		Description: input.Description,
		Reference:   input.Reference,
		Lines: []ledger.LineInput{
			{AccountCode: input.DebitCode, Debit: input.Amount, Credit: decimal.Zero, Description: input.Description},
			{AccountCode: input.CreditCode, Debit: decimal.Zero, Credit: input.Amount, Description: input.Description},
		},
	}
	if input.Post {
		return s.CreateMultiLine(ctx, draft, input.User)
	}
	return s.CreateDraft(ctx, draft)
}

// CreateMultiLine creates and posts an entry in one transaction
func (s *JournalService) CreateMultiLine(ctx context.Context, input DraftInput, user string) (*ledger.JournalEntry, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal", "create_posted",
		telemetry.WithAttribute(telemetry.SpanAttrUser, user))
	defer span.End()

	var entry *ledger.JournalEntry
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		if entry, err = s.createDraft(ctx, repos, input); err != nil {
			return err
		}
		return s.post(ctx, repos, entry, user)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("journal entry created and posted",
		zap.String("entry_id", entry.ID.String()),
		zap.String("number", entry.Number),
		zap.String("reference", entry.Reference.String()),
		zap.String("amount", entry.TotalDebit().StringFixed(2)),
	)
	telemetry.SetAttributes(span, telemetry.SpanAttrEntryNumber, entry.Number)
	telemetry.SetOK(span)
	return entry, nil
}

// DeleteDraft removes an entry that was never posted
func (s *JournalService) DeleteDraft(ctx context.Context, entryID uuid.UUID) error {
	return s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		entry, err := repos.Journals().FindByID(ctx, entryID)
		if err != nil {
			return err
		}
		if entry.Status != ledger.EntryStatusDraft {
			return shared.NewStateError("INVALID_STATE", fmt.Sprintf("Cannot delete journal entry in %s status", entry.Status))
		}
		return repos.Journals().Delete(ctx, entryID)
	})
}

// DeleteByID physically removes an entry of any status. Only sync
// rollback inverses use it; everything else cancels instead.
func (s *JournalService) DeleteByID(ctx context.Context, entryID uuid.UUID) (*ledger.JournalEntry, error) {
	var entry *ledger.JournalEntry
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		if entry, err = repos.Journals().FindByID(ctx, entryID); err != nil {
			return err
		}
		if err := repos.Journals().Delete(ctx, entryID); err != nil {
			return fmt.Errorf("failed to delete journal entry: %w", err)
		}
		entry.AddDomainEvent(ledger.NewJournalEntryDeletedEvent(entry))
		return s.publish(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("journal entry deleted",
		zap.String("entry_id", entry.ID.String()),
		zap.String("number", entry.Number),
		zap.String("status", string(entry.Status)),
	)
	return entry, nil
}

// RewriteInput is the new content of an automatic entry. A zero Reference
// keeps the entry's current reference and description.
type RewriteInput struct {
	Date        time.Time
	Lines       []ledger.LineInput
	Reference   ledger.Reference
	Description string
}

// ReplaceLines rewrites the date and lines of an automatic entry in place
func (s *JournalService) ReplaceLines(ctx context.Context, entryID uuid.UUID, input RewriteInput) (*ledger.JournalEntry, error) {
	var entry *ledger.JournalEntry
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		if entry, err = repos.Journals().FindByID(ctx, entryID); err != nil {
			return err
		}
		resolved, err := resolveLines(ctx, repos, input.Lines)
		if err != nil {
			return err
		}
		period, err := findPeriod(ctx, repos, input.Date)
		if err != nil {
			return err
		}
		if !input.Reference.IsZero() && input.Reference != entry.Reference {
			if err := entry.Rebind(input.Reference, input.Description); err != nil {
				return err
			}
		}
		if _, err := entry.Rewrite(input.Date, resolved, period); err != nil {
			return err
		}
		if err := repos.Journals().Save(ctx, entry); err != nil {
			return fmt.Errorf("failed to save journal entry: %w", err)
		}
		return s.publish(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// RestoreEntry writes back an entry captured earlier, recreating it when it
// was deleted. Sync rollback inverses use it.
func (s *JournalService) RestoreEntry(ctx context.Context, captured *ledger.JournalEntry) error {
	restored := captured.Clone()
	return s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		touched := restored.AccountIDs()
		if current, err := repos.Journals().FindByID(ctx, restored.ID); err == nil {
			touched = append(touched, current.AccountIDs()...)
		} else if !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		if err := repos.Journals().Save(ctx, restored); err != nil {
			return fmt.Errorf("failed to restore journal entry: %w", err)
		}
		restored.AddDomainEvent(ledger.NewJournalEntryRewrittenEvent(restored, touched))
		return s.publish(ctx, restored)
	})
}

// FindByReference lists the entries carrying ref
func (s *JournalService) FindByReference(ctx context.Context, ref ledger.Reference) ([]ledger.JournalEntry, error) {
	var entries []ledger.JournalEntry
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		entries, err = repos.Journals().FindByReference(ctx, ref)
		return err
	})
	return entries, err
}

// GetEntry loads an entry with its lines
func (s *JournalService) GetEntry(ctx context.Context, id uuid.UUID) (*ledger.JournalEntry, error) {
	var entry *ledger.JournalEntry
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		entry, err = repos.Journals().FindByID(ctx, id)
		return err
	})
	return entry, err
}

// ListEntries lists entries matching the filter
func (s *JournalService) ListEntries(ctx context.Context, filter ledger.JournalEntryFilter) ([]ledger.JournalEntry, error) {
	var entries []ledger.JournalEntry
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		entries, err = repos.Journals().FindAll(ctx, filter)
		return err
	})
	return entries, err
}

// publish hands the pending events of entry to the bus within the
// current transaction
func (s *JournalService) publish(ctx context.Context, entry *ledger.JournalEntry) error {
	events := entry.PullDomainEvents()
	if len(events) == 0 {
		return nil
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		return fmt.Errorf("failed to publish journal events: %w", err)
	}
	return nil
}

func linesOf(entry *ledger.JournalEntry) []ledger.LineInput {
	lines := make([]ledger.LineInput, 0, len(entry.Lines))
	for _, l := range entry.Lines {
		lines = append(lines, ledger.LineInput{
			AccountID:   l.AccountID,
			AccountCode: l.AccountCode,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Description: l.Description,
			CostCenter:  l.CostCenter,
			Project:     l.Project,
		})
	}
	return lines
}
