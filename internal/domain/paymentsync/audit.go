package paymentsync

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// ErrorKind classifies a sync failure
type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindDatabase   ErrorKind = "database"
	ErrorKindNetwork    ErrorKind = "network"
	ErrorKindPermission ErrorKind = "permission"
	ErrorKindBusiness   ErrorKind = "business"
	ErrorKindSystem     ErrorKind = "system"
)

// IsValid checks if the kind is a valid ErrorKind
func (k ErrorKind) IsValid() bool {
	switch k {
	case ErrorKindValidation, ErrorKindDatabase, ErrorKindNetwork, ErrorKindPermission, ErrorKindBusiness, ErrorKindSystem:
		return true
	}
	return false
}

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	return string(k)
}

// SyncLog records one step of a sync operation
type SyncLog struct {
	ID          uuid.UUID       `json:"id"`
	OperationID uuid.UUID       `json:"operation_id"`
	Action      string          `json:"action"`
	TargetModel string          `json:"target_model"`
	TargetID    string          `json:"target_id"`
	Input       json.RawMessage `json:"input"`
	Result      json.RawMessage `json:"result"`
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	Duration    time.Duration   `json:"duration"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewSyncLog creates a log row. Payloads that fail to encode are stored as null.
func NewSyncLog(opID uuid.UUID, action, targetModel, targetID string, input, result any, success bool, duration time.Duration) SyncLog {
	return SyncLog{
		ID:          uuid.New(),
		OperationID: opID,
		Action:      action,
		TargetModel: targetModel,
		TargetID:    targetID,
		Input:       encodePayload(input),
		Result:      encodePayload(result),
		Success:     success,
		Duration:    duration,
		CreatedAt:   time.Now(),
	}
}

func encodePayload(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

// SyncError records a failure of a sync operation
type SyncError struct {
	ID              uuid.UUID  `json:"id"`
	OperationID     uuid.UUID  `json:"operation_id"`
	Kind            ErrorKind  `json:"kind"`
	Code            string     `json:"code"`
	Message         string     `json:"message"`
	Stack           string     `json:"stack"`
	Resolved        bool       `json:"resolved"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	ResolvedBy      string     `json:"resolved_by"`
	ResolutionNotes string     `json:"resolution_notes"`
	CreatedAt       time.Time  `json:"created_at"`
}

// NewSyncError classifies err and records it against the operation
func NewSyncError(opID uuid.UUID, err error, stack string) SyncError {
	se := SyncError{
		ID:          uuid.New(),
		OperationID: opID,
		Kind:        Classify(err),
		Stack:       stack,
		CreatedAt:   time.Now(),
	}
	if err != nil {
		se.Message = err.Error()
	}
	if de, ok := shared.AsDomainError(err); ok {
		se.Code = de.Code
	}
	return se
}

// MarkResolved flags the error as handled. The operation it belongs to is
// left untouched.
func (e *SyncError) MarkResolved(user, notes string) error {
	if e.Resolved {
		return shared.NewStateError("INVALID_STATE", fmt.Sprintf("Sync error %s is already resolved", e.ID))
	}
	now := time.Now()
	e.Resolved = true
	e.ResolvedAt = &now
	e.ResolvedBy = user
	e.ResolutionNotes = notes
	return nil
}
