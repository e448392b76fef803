package paymentsync

import (
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/payment"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// DefaultMaxRetries bounds how many times a failed operation may be retried
const DefaultMaxRetries = 3

// OperationType is the payment change being synchronized
type OperationType string

const (
	OperationCreate OperationType = "create"
	OperationUpdate OperationType = "update"
	OperationDelete OperationType = "delete"
)

// IsValid checks if the type is a valid OperationType
func (t OperationType) IsValid() bool {
	switch t {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// String returns the string representation of OperationType
func (t OperationType) String() string {
	return string(t)
}

// Trigger returns the rule trigger fired by this operation type
func (t OperationType) Trigger() Trigger {
	switch t {
	case OperationUpdate:
		return TriggerOnUpdate
	case OperationDelete:
		return TriggerOnDelete
	default:
		return TriggerOnCreate
	}
}

// OperationStatus represents the lifecycle state of a sync operation
type OperationStatus string

const (
	StatusPending    OperationStatus = "pending"
	StatusProcessing OperationStatus = "processing"
	StatusCompleted  OperationStatus = "completed"
	StatusFailed     OperationStatus = "failed"
	StatusRolledBack OperationStatus = "rolled_back"
	StatusRetry      OperationStatus = "retry"
)

// IsValid checks if the status is a valid OperationStatus
func (s OperationStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusRolledBack, StatusRetry:
		return true
	}
	return false
}

// String returns the string representation of OperationStatus
func (s OperationStatus) String() string {
	return string(s)
}

// IsTerminal returns true once the operation has settled
func (s OperationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusRolledBack
}

// IsSuccess returns true only for completed operations
func (s OperationStatus) IsSuccess() bool {
	return s == StatusCompleted
}

// SyncOperation is one attempt to mirror a payment change into its targets
type SyncOperation struct {
	shared.BaseAggregateRoot
	Type         OperationType     `json:"type"`
	PaymentKind  payment.Kind      `json:"payment_kind"`
	PaymentID    uuid.UUID         `json:"payment_id"`
	Snapshot     payment.Snapshot  `json:"snapshot"`
	Prior        *payment.Snapshot `json:"prior,omitempty"`
	User         string            `json:"user"`
	Force        bool              `json:"force"`
	Status       OperationStatus   `json:"status"`
	Targets      []Target          `json:"targets"`
	RetryCount   int               `json:"retry_count"`
	MaxRetries   int               `json:"max_retries"`
	StartedAt    *time.Time        `json:"started_at"`
	CompletedAt  *time.Time        `json:"completed_at"`
	ErrorMessage string            `json:"error_message"`
	ErrorDetails string            `json:"error_details"`
}

// NewSyncOperation records a pending operation for the payment snapshot
func NewSyncOperation(opType OperationType, p *payment.Payment, prior *payment.Payment, user string, force bool, maxRetries int) (*SyncOperation, error) {
	if !opType.IsValid() {
		return nil, shared.NewValidationError("INVALID_OPERATION_TYPE", fmt.Sprintf("Unknown operation type %q", opType))
	}
	if p == nil {
		return nil, shared.NewValidationError("INVALID_PAYMENT", "Payment is required")
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	op := &SyncOperation{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Type:              opType,
		PaymentKind:       p.Kind,
		PaymentID:         p.ID,
		Snapshot:          p.Snapshot(),
		User:              user,
		Force:             force,
		Status:            StatusPending,
		Targets:           []Target{},
		MaxRetries:        maxRetries,
	}
	if prior != nil {
		snap := prior.Snapshot()
		op.Prior = &snap
	}
	return op, nil
}

// Payment rebuilds the payment exactly as it was submitted
func (op *SyncOperation) Payment() *payment.Payment {
	return op.Snapshot.Restore()
}

// Start moves the operation to processing
func (op *SyncOperation) Start(targets []Target) error {
	if op.Status != StatusPending && op.Status != StatusRetry {
		return shared.NewStateError("INVALID_STATE", fmt.Sprintf("Cannot start sync operation in %s status", op.Status))
	}
	now := time.Now()
	op.Status = StatusProcessing
	op.StartedAt = &now
	op.CompletedAt = nil
	op.ErrorMessage = ""
	op.ErrorDetails = ""
	op.Targets = targets
	op.Touch()
	return nil
}

// Complete marks the operation completed
func (op *SyncOperation) Complete() {
	now := time.Now()
	op.Status = StatusCompleted
	op.CompletedAt = &now
	op.Touch()
}

// Fail settles the operation after a target failure. rolledBack tells
// whether every inverse action succeeded.
func (op *SyncOperation) Fail(cause error, details string, rolledBack bool) {
	now := time.Now()
	if rolledBack {
		op.Status = StatusRolledBack
	} else {
		op.Status = StatusFailed
	}
	if cause != nil {
		op.ErrorMessage = cause.Error()
	}
	op.ErrorDetails = details
	op.CompletedAt = &now
	op.Touch()
}

// CanRetry reports whether another attempt is allowed
func (op *SyncOperation) CanRetry() bool {
	return op.RetryCount < op.MaxRetries && (op.Status == StatusFailed || op.Status == StatusRetry)
}

// BeginRetry counts a retry attempt and moves the operation to retry
func (op *SyncOperation) BeginRetry() error {
	if !op.CanRetry() {
		return shared.NewStateError("INVALID_STATE",
			fmt.Sprintf("Sync operation %s cannot be retried (status %s, retries %d/%d)", op.ID, op.Status, op.RetryCount, op.MaxRetries))
	}
	op.RetryCount++
	op.Status = StatusRetry
	op.Touch()
	return nil
}
