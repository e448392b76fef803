package payment

import (
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind discriminates the payment variants
type Kind string

const (
	KindSalePayment     Kind = "sale_payment"
	KindPurchasePayment Kind = "purchase_payment"
	KindCustomerPayment Kind = "customer_payment"
	KindSupplierPayment Kind = "supplier_payment"
)

// IsValid checks if the kind is a valid Kind
func (k Kind) IsValid() bool {
	switch k {
	case KindSalePayment, KindPurchasePayment, KindCustomerPayment, KindSupplierPayment:
		return true
	}
	return false
}

// String returns the string representation of Kind
func (k Kind) String() string {
	return string(k)
}

// IsDocumentPayment reports whether the payment settles a sale or purchase
func (k Kind) IsDocumentPayment() bool {
	return k == KindSalePayment || k == KindPurchasePayment
}

// Method represents the method of payment
type Method string

const (
	MethodCash         Method = "cash"
	MethodBankTransfer Method = "bank_transfer"
	MethodCheck        Method = "check"
	MethodCard         Method = "card"
	MethodOther        Method = "other"
)

// IsValid checks if the payment method is valid
func (m Method) IsValid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodCheck, MethodCard, MethodOther:
		return true
	}
	return false
}

// String returns the string representation of Method
func (m Method) String() string {
	return string(m)
}

// Payment is a single payment record of any variant
type Payment struct {
	shared.BaseAggregateRoot
	Kind           Kind            `json:"kind"`
	Amount         decimal.Decimal `json:"amount"`
	Date           time.Time       `json:"date"`
	Method         Method          `json:"method"`
	Reference      string          `json:"reference"`
	Notes          string          `json:"notes"`
	DocumentID     *uuid.UUID      `json:"document_id"`
	DocumentNumber string          `json:"document_number"`
	CounterpartyID *uuid.UUID      `json:"counterparty_id"`
	SyncReference  string          `json:"sync_reference"`
	JournalEntryID *uuid.UUID      `json:"journal_entry_id"`
}

// NewPayment creates a payment of the given kind
func NewPayment(kind Kind, amount decimal.Decimal, date time.Time, method Method) (*Payment, error) {
	if !kind.IsValid() {
		return nil, shared.NewValidationError("INVALID_PAYMENT_KIND", fmt.Sprintf("Unknown payment kind %q", kind))
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Amount must be positive")
	}
	if date.IsZero() {
		return nil, shared.NewValidationError("INVALID_PAYMENT_DATE", "Payment date is required")
	}
	if !method.IsValid() {
		return nil, shared.NewValidationError("INVALID_PAYMENT_METHOD", "Payment method is not valid")
	}
	return &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Kind:              kind,
		Amount:            amount.Round(2),
		Date:              truncateDay(date),
		Method:            method,
	}, nil
}

// ForDocument links the payment to its source sale or purchase
func (p *Payment) ForDocument(documentID uuid.UUID, documentNumber string, counterpartyID *uuid.UUID) *Payment {
	p.DocumentID = &documentID
	p.DocumentNumber = documentNumber
	p.CounterpartyID = counterpartyID
	return p
}

// LinkJournalEntry records the journal entry generated for the payment
func (p *Payment) LinkJournalEntry(entryID *uuid.UUID) {
	p.JournalEntryID = entryID
	p.Touch()
}

// Attributes exposes the fields rule conditions can match against.
// Unset optional fields are absent from the map.
func (p *Payment) Attributes() map[string]string {
	attrs := map[string]string{
		"kind":   string(p.Kind),
		"method": string(p.Method),
		"amount": p.Amount.StringFixed(2),
	}
	if p.Reference != "" {
		attrs["reference"] = p.Reference
	}
	if p.DocumentNumber != "" {
		attrs["document_number"] = p.DocumentNumber
	}
	if p.CounterpartyID != nil {
		attrs["counterparty_id"] = p.CounterpartyID.String()
	}
	return attrs
}

// LedgerReference returns the deterministic reference of the mirror row in
// the customer or supplier ledger. Non-document payments have none.
func (p *Payment) LedgerReference() string {
	switch p.Kind {
	case KindSalePayment:
		return SaleReference(p.DocumentNumber, p.ID)
	case KindPurchasePayment:
		return PurchaseReference(p.DocumentNumber, p.ID)
	}
	return ""
}

// SaleReference renders SALE-{sale_number}-PAY-{payment_id}
func SaleReference(saleNumber string, paymentID uuid.UUID) string {
	return fmt.Sprintf("SALE-%s-PAY-%s", saleNumber, paymentID)
}

// PurchaseReference renders PURCHASE-{purchase_number}-PAY-{payment_id}
func PurchaseReference(purchaseNumber string, paymentID uuid.UUID) string {
	return fmt.Sprintf("PURCHASE-%s-PAY-%s", purchaseNumber, paymentID)
}

// NewLedgerMirror builds the customer or supplier ledger row mirroring a
// sale or purchase payment
func NewLedgerMirror(src *Payment) (*Payment, error) {
	var kind Kind
	switch src.Kind {
	case KindSalePayment:
		kind = KindCustomerPayment
	case KindPurchasePayment:
		kind = KindSupplierPayment
	default:
		return nil, shared.NewValidationError("INVALID_PAYMENT_KIND", fmt.Sprintf("%s payments have no ledger mirror", src.Kind))
	}
	mirror, err := NewPayment(kind, src.Amount, src.Date, src.Method)
	if err != nil {
		return nil, err
	}
	mirror.Notes = src.Notes
	mirror.Reference = src.Reference
	mirror.DocumentID = src.DocumentID
	mirror.DocumentNumber = src.DocumentNumber
	mirror.CounterpartyID = src.CounterpartyID
	mirror.SyncReference = src.LedgerReference()
	return mirror, nil
}

// MirroredFields are the values copied from a source payment into its mirror
type MirroredFields struct {
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	Method    Method          `json:"method"`
	Reference string          `json:"reference"`
	Notes     string          `json:"notes"`
}

// Mirrored returns the current mirrored values
func (p *Payment) Mirrored() MirroredFields {
	return MirroredFields{Amount: p.Amount, Date: p.Date, Method: p.Method, Reference: p.Reference, Notes: p.Notes}
}

// ApplyMirrored overwrites the mirrored values and returns the prior ones
func (p *Payment) ApplyMirrored(f MirroredFields) MirroredFields {
	prior := p.Mirrored()
	p.Amount = f.Amount
	p.Date = truncateDay(f.Date)
	p.Method = f.Method
	p.Reference = f.Reference
	p.Notes = f.Notes
	p.Touch()
	p.IncrementVersion()
	return prior
}

// MirrorKey binds a mirror row to its source document
type MirrorKey struct {
	DocumentID     *uuid.UUID `json:"document_id,omitempty"`
	DocumentNumber string     `json:"document_number"`
	CounterpartyID *uuid.UUID `json:"counterparty_id,omitempty"`
	SyncReference  string     `json:"sync_reference"`
}

// MirrorKeyOf returns the key a mirror of src carries
func MirrorKeyOf(src *Payment) MirrorKey {
	return MirrorKey{
		DocumentID:     src.DocumentID,
		DocumentNumber: src.DocumentNumber,
		CounterpartyID: src.CounterpartyID,
		SyncReference:  src.LedgerReference(),
	}
}

// Key returns the key the row currently carries
func (p *Payment) Key() MirrorKey {
	return MirrorKey{
		DocumentID:     p.DocumentID,
		DocumentNumber: p.DocumentNumber,
		CounterpartyID: p.CounterpartyID,
		SyncReference:  p.SyncReference,
	}
}

// Rekey moves the row to k and returns the prior key
func (p *Payment) Rekey(k MirrorKey) MirrorKey {
	prior := p.Key()
	p.DocumentID = k.DocumentID
	p.DocumentNumber = k.DocumentNumber
	p.CounterpartyID = k.CounterpartyID
	p.SyncReference = k.SyncReference
	p.Touch()
	return prior
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
