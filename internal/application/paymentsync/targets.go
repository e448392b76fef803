package paymentsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/application/accounting"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/payment"
	"github.com/erp/ledger/internal/domain/paymentsync"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Sync log actions
const (
	actionCreate     = "create"
	actionUpdate     = "update"
	actionDelete     = "delete"
	actionExists     = "exists"
	actionAbsent     = "absent"
	actionSkip       = "skip"
	actionLink       = "link_payment"
	actionInvalidate = "invalidate"
)

// JournalReference is the reference carried by the journal entry mirroring p
func JournalReference(p *payment.Payment) ledger.Reference {
	id := p.LedgerReference()
	if id == "" {
		id = p.SyncReference
	}
	if id == "" {
		id = p.ID.String()
	}
	return ledger.Reference{Type: string(p.Kind), ID: id}
}

// journalAccounts returns the debit and credit account codes for p. Money
// received moves from receivable to cash; money paid from cash to payable.
func journalAccounts(kind payment.Kind, rule *paymentsync.SyncRule) (debit, credit string) {
	cash := rule.AccountCode(paymentsync.RoleCash, ledger.CodeMainCash)
	switch kind {
	case payment.KindPurchasePayment, payment.KindSupplierPayment:
		return rule.AccountCode(paymentsync.RolePayable, ledger.CodeAccountsPayable), cash
	default:
		return cash, rule.AccountCode(paymentsync.RoleReceivable, ledger.CodeAccountsReceivable)
	}
}

func mirrorKindOf(source payment.Kind) payment.Kind {
	if source == payment.KindPurchasePayment {
		return payment.KindSupplierPayment
	}
	return payment.KindCustomerPayment
}

// syncLedger mirrors a sale or purchase payment into the customer or
// supplier ledger, keyed by its deterministic reference
func (o *Orchestrator) syncLedger(ctx context.Context, repos accounting.Repositories, exec *execution, target paymentsync.Target, source payment.Kind) error {
	started := time.Now()
	p := exec.payment
	if p.Kind != source {
		exec.log(actionSkip, target, "", nil, map[string]string{"reason": fmt.Sprintf("%s does not mirror %s", target, p.Kind)}, nil, started)
		return nil
	}

	refs := []string{p.LedgerReference()}
	if exec.prior != nil && exec.op.Type != paymentsync.OperationCreate {
		if priorRef := exec.prior.LedgerReference(); priorRef != refs[0] {
			refs = append(refs, priorRef)
		}
	}
	var existing *payment.Payment
	for _, ref := range refs {
		row, err := repos.Payments().FindBySyncReference(ctx, mirrorKindOf(source), ref)
		if err != nil {
			err = fmt.Errorf("failed to look up ledger row %s: %w", ref, err)
			exec.log(actionCreate, target, ref, ref, nil, err, started)
			return err
		}
		if row != nil {
			existing = row
			break
		}
	}

	switch exec.op.Type {
	case paymentsync.OperationUpdate:
		if existing != nil {
			return o.updateMirror(ctx, repos, exec, target, existing, started)
		}
		return o.createMirror(ctx, repos, exec, target, nil, started)
	case paymentsync.OperationDelete:
		return o.deleteMirror(ctx, repos, exec, target, existing, started)
	default:
		return o.createMirror(ctx, repos, exec, target, existing, started)
	}
}

func (o *Orchestrator) createMirror(ctx context.Context, repos accounting.Repositories, exec *execution, target paymentsync.Target, existing *payment.Payment, started time.Time) error {
	if existing != nil {
		// an earlier attempt already created it
		exec.log(actionExists, target, existing.ID.String(), existing.SyncReference, nil, nil, started)
		return nil
	}
	mirror, err := payment.NewLedgerMirror(exec.payment)
	if err != nil {
		exec.log(actionCreate, target, "", exec.payment.Snapshot(), nil, err, started)
		return err
	}
	if err := repos.Payments().Save(ctx, mirror); err != nil {
		err = fmt.Errorf("failed to save ledger row: %w", err)
		exec.log(actionCreate, target, mirror.ID.String(), mirror.Snapshot(), nil, err, started)
		return err
	}

	mirrorID := mirror.ID
	exec.stack.Push(paymentsync.InverseAction{
		Target:   target,
		Action:   actionCreate,
		TargetID: mirrorID.String(),
		Captured: mirror.Snapshot(),
		Undo: func(ctx context.Context) error {
			return o.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
				return repos.Payments().Delete(ctx, mirrorID)
			})
		},
	})
	exec.log(actionCreate, target, mirrorID.String(), exec.payment.Snapshot(), mirror.Snapshot(), nil, started)
	return nil
}

func (o *Orchestrator) updateMirror(ctx context.Context, repos accounting.Repositories, exec *execution, target paymentsync.Target, existing *payment.Payment, started time.Time) error {
	prior := existing.ApplyMirrored(exec.payment.Mirrored())
	priorKey := existing.Rekey(payment.MirrorKeyOf(exec.payment))
	if err := repos.Payments().Save(ctx, existing); err != nil {
		err = fmt.Errorf("failed to update ledger row: %w", err)
		exec.log(actionUpdate, target, existing.ID.String(), exec.payment.Mirrored(), nil, err, started)
		return err
	}

	mirrorID := existing.ID
	exec.stack.Push(paymentsync.InverseAction{
		Target:   target,
		Action:   actionUpdate,
		TargetID: mirrorID.String(),
		Captured: prior,
		Undo: func(ctx context.Context) error {
			return o.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
				row, err := repos.Payments().FindByID(ctx, mirrorID)
				if err != nil {
					return err
				}
				row.ApplyMirrored(prior)
				row.Rekey(priorKey)
				return repos.Payments().Save(ctx, row)
			})
		},
	})
	exec.log(actionUpdate, target, mirrorID.String(), exec.payment.Mirrored(),
		map[string]any{"prior": prior, "prior_sync_reference": priorKey.SyncReference}, nil, started)
	return nil
}

func (o *Orchestrator) deleteMirror(ctx context.Context, repos accounting.Repositories, exec *execution, target paymentsync.Target, existing *payment.Payment, started time.Time) error {
	if existing == nil {
		exec.log(actionAbsent, target, "", exec.payment.LedgerReference(), nil, nil, started)
		return nil
	}
	captured := existing.Snapshot()
	if err := repos.Payments().Delete(ctx, existing.ID); err != nil {
		err = fmt.Errorf("failed to delete ledger row: %w", err)
		exec.log(actionDelete, target, existing.ID.String(), captured, nil, err, started)
		return err
	}

	exec.stack.Push(paymentsync.InverseAction{
		Target:   target,
		Action:   actionDelete,
		TargetID: captured.ID.String(),
		Captured: captured,
		Undo: func(ctx context.Context) error {
			return o.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
				return repos.Payments().Save(ctx, captured.Restore())
			})
		},
	})
	exec.log(actionDelete, target, captured.ID.String(), captured, nil, nil, started)
	return nil
}

// syncJournal keeps exactly one live automatic entry per payment reference
func (o *Orchestrator) syncJournal(ctx context.Context, repos accounting.Repositories, exec *execution, rule *paymentsync.SyncRule) error {
	started := time.Now()
	p := exec.payment
	ref := JournalReference(p)
	debit, credit := journalAccounts(p.Kind, rule)
	input := map[string]string{
		"reference": ref.String(),
		"debit":     debit,
		"credit":    credit,
		"amount":    p.Amount.StringFixed(2),
	}

	refs := []ledger.Reference{ref}
	if exec.prior != nil && exec.op.Type != paymentsync.OperationCreate {
		if priorRef := JournalReference(exec.prior); priorRef != ref {
			refs = append(refs, priorRef)
		}
	}
	var live *ledger.JournalEntry
	for _, r := range refs {
		entries, err := repos.Journals().FindByReference(ctx, r)
		if err != nil {
			err = fmt.Errorf("failed to look up journal entry %s: %w", r, err)
			exec.log(actionCreate, paymentsync.TargetJournal, r.String(), input, nil, err, started)
			return err
		}
		if live = liveEntry(entries); live != nil {
			break
		}
	}

	switch exec.op.Type {
	case paymentsync.OperationUpdate:
		if live != nil {
			return o.rewriteEntry(ctx, exec, live, ref, debit, credit, input, started)
		}
	case paymentsync.OperationDelete:
		return o.deleteEntry(ctx, exec, live, input, started)
	default:
		if live != nil {
			exec.log(actionExists, paymentsync.TargetJournal, live.ID.String(), input, map[string]string{"number": live.Number}, nil, started)
			return nil
		}
	}
	return o.createEntry(ctx, repos, exec, ref, debit, credit, input, started)
}

func (o *Orchestrator) createEntry(ctx context.Context, repos accounting.Repositories, exec *execution, ref ledger.Reference, debit, credit string, input map[string]string, started time.Time) error {
	p := exec.payment
	entry, err := o.journals.CreateSimple(ctx, accounting.SimpleInput{
		DebitCode:   debit,
		CreditCode:  credit,
		Amount:      p.Amount,
		Date:        p.Date,
		Description: entryDescription(p, ref),
		Type:        ledger.EntryTypeAutomatic,
		Reference:   ref,
		Post:        true,
		User:        exec.op.User,
	})
	if err != nil {
		exec.log(actionCreate, paymentsync.TargetJournal, ref.String(), input, nil, err, started)
		return err
	}

	entryID := entry.ID
	exec.stack.Push(paymentsync.InverseAction{
		Target:   paymentsync.TargetJournal,
		Action:   actionCreate,
		TargetID: entryID.String(),
		Captured: map[string]string{"number": entry.Number},
		Undo: func(ctx context.Context) error {
			_, err := o.journals.DeleteByID(ctx, entryID)
			return err
		},
	})
	exec.touch(entry.AccountIDs()...)
	exec.log(actionCreate, paymentsync.TargetJournal, entryID.String(), input, map[string]string{"number": entry.Number}, nil, started)

	return o.linkPayment(ctx, repos, exec, &entryID)
}

func entryDescription(p *payment.Payment, ref ledger.Reference) string {
	return fmt.Sprintf("%s %s", p.Kind, ref.ID)
}

func (o *Orchestrator) rewriteEntry(ctx context.Context, exec *execution, live *ledger.JournalEntry, ref ledger.Reference, debit, credit string, input map[string]string, started time.Time) error {
	p := exec.payment
	captured := live.Clone()
	description := live.Description
	if ref != live.Reference {
		description = entryDescription(p, ref)
	}
	lines := []ledger.LineInput{
		{AccountCode: debit, Debit: p.Amount, Credit: decimal.Zero, Description: description},
		{AccountCode: credit, Debit: decimal.Zero, Credit: p.Amount, Description: description},
	}
	updated, err := o.journals.ReplaceLines(ctx, live.ID, accounting.RewriteInput{
		Date:        p.Date,
		Lines:       lines,
		Reference:   ref,
		Description: description,
	})
	if err != nil {
		exec.log(actionUpdate, paymentsync.TargetJournal, live.ID.String(), input, nil, err, started)
		return err
	}

	exec.stack.Push(paymentsync.InverseAction{
		Target:   paymentsync.TargetJournal,
		Action:   actionUpdate,
		TargetID: captured.ID.String(),
		Captured: map[string]string{"number": captured.Number, "amount": captured.TotalDebit().StringFixed(2), "reference": captured.Reference.String()},
		Undo: func(ctx context.Context) error {
			return o.journals.RestoreEntry(ctx, captured)
		},
	})
	exec.touch(captured.AccountIDs()...)
	exec.touch(updated.AccountIDs()...)
	exec.log(actionUpdate, paymentsync.TargetJournal, updated.ID.String(), input,
		map[string]string{"number": updated.Number, "prior_amount": captured.TotalDebit().StringFixed(2)}, nil, started)
	return nil
}

func (o *Orchestrator) deleteEntry(ctx context.Context, exec *execution, live *ledger.JournalEntry, input map[string]string, started time.Time) error {
	if live == nil {
		exec.log(actionAbsent, paymentsync.TargetJournal, "", input, nil, nil, started)
		return nil
	}
	captured := live.Clone()
	if _, err := o.journals.DeleteByID(ctx, live.ID); err != nil {
		exec.log(actionDelete, paymentsync.TargetJournal, live.ID.String(), input, nil, err, started)
		return err
	}

	exec.stack.Push(paymentsync.InverseAction{
		Target:   paymentsync.TargetJournal,
		Action:   actionDelete,
		TargetID: captured.ID.String(),
		Captured: map[string]string{"number": captured.Number},
		Undo: func(ctx context.Context) error {
			return o.journals.RestoreEntry(ctx, captured)
		},
	})
	exec.touch(captured.AccountIDs()...)
	exec.log(actionDelete, paymentsync.TargetJournal, captured.ID.String(), input, map[string]string{"number": captured.Number}, nil, started)
	return nil
}

// linkPayment records the generated entry on the source payment when the
// host stores it in the payment repository
func (o *Orchestrator) linkPayment(ctx context.Context, repos accounting.Repositories, exec *execution, entryID *uuid.UUID) error {
	started := time.Now()
	src, err := repos.Payments().FindByID(ctx, exec.payment.ID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		err = fmt.Errorf("failed to load source payment: %w", err)
		exec.log(actionLink, paymentsync.TargetJournal, exec.payment.ID.String(), nil, nil, err, started)
		return err
	}
	prior := src.JournalEntryID
	src.LinkJournalEntry(entryID)
	if err := repos.Payments().Save(ctx, src); err != nil {
		err = fmt.Errorf("failed to link source payment: %w", err)
		exec.log(actionLink, paymentsync.TargetJournal, src.ID.String(), nil, nil, err, started)
		return err
	}

	srcID := src.ID
	exec.stack.Push(paymentsync.InverseAction{
		Target:   paymentsync.TargetJournal,
		Action:   actionLink,
		TargetID: srcID.String(),
		Captured: prior,
		Undo: func(ctx context.Context) error {
			return o.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
				row, err := repos.Payments().FindByID(ctx, srcID)
				if err != nil {
					return err
				}
				row.LinkJournalEntry(prior)
				return repos.Payments().Save(ctx, row)
			})
		},
	})
	exec.log(actionLink, paymentsync.TargetJournal, srcID.String(), nil, map[string]string{"journal_entry_id": entryID.String()}, nil, started)
	return nil
}

// syncBalanceCache flags the balances of the rule's accounts. Accounts that
// cannot be resolved are logged and skipped.
func (o *Orchestrator) syncBalanceCache(ctx context.Context, repos accounting.Repositories, exec *execution, rule *paymentsync.SyncRule) error {
	started := time.Now()
	debit, credit := journalAccounts(exec.payment.Kind, rule)
	codes := []string{debit, credit}

	ids := make([]uuid.UUID, 0, len(codes))
	for _, code := range codes {
		acc, err := repos.Accounts().FindByCode(ctx, code)
		if err != nil {
			o.logger.Warn("balance cache target could not resolve account",
				zap.String("operation_id", exec.op.ID.String()),
				zap.String("account_code", code),
				zap.Error(err),
			)
			continue
		}
		ids = append(ids, acc.ID)
	}
	rows := o.balances.Invalidate(ctx, ids)
	exec.touch(ids...)
	exec.log(actionInvalidate, paymentsync.TargetBalanceCache, "", codes, map[string]int64{"rows": rows}, nil, started)
	return nil
}

// liveEntry returns the first entry of entries that is not cancelled
func liveEntry(entries []ledger.JournalEntry) *ledger.JournalEntry {
	for i := range entries {
		if entries[i].Status != ledger.EntryStatusCancelled {
			return &entries[i]
		}
	}
	return nil
}
