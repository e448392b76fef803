package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/payment"
	"github.com/erp/ledger/internal/domain/paymentsync"
	"github.com/google/uuid"
)

// SyncRuleModel is the persistence model for sync rules.
type SyncRuleModel struct {
	AggregateModel
	Name           string              `gorm:"type:varchar(100);not null;uniqueIndex"`
	Description    string              `gorm:"type:text"`
	SourceModel    payment.Kind        `gorm:"type:varchar(30);not null;index:idx_sync_rules_source_trigger,priority:1"`
	Trigger        paymentsync.Trigger `gorm:"column:trigger_event;type:varchar(20);not null;index:idx_sync_rules_source_trigger,priority:2"`
	CustomerLedger bool                `gorm:"not null"`
	SupplierLedger bool                `gorm:"not null"`
	Journal        bool                `gorm:"not null"`
	BalanceCache   bool                `gorm:"not null"`
	Conditions     string              `gorm:"type:jsonb"`
	Mapping        string              `gorm:"type:jsonb"`
	Priority       int                 `gorm:"not null"`
	IsActive       bool                `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (SyncRuleModel) TableName() string {
	return "sync_rules"
}

// ToDomain converts the persistence model to a domain SyncRule.
func (m *SyncRuleModel) ToDomain() *paymentsync.SyncRule {
	return &paymentsync.SyncRule{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Name:              m.Name,
		Description:       m.Description,
		SourceModel:       m.SourceModel,
		Trigger:           m.Trigger,
		Targets: paymentsync.TargetFlags{
			CustomerLedger: m.CustomerLedger,
			SupplierLedger: m.SupplierLedger,
			Journal:        m.Journal,
			BalanceCache:   m.BalanceCache,
		},
		Conditions: stringMap(m.Conditions),
		Mapping:    stringMap(m.Mapping),
		Priority:   m.Priority,
		IsActive:   m.IsActive,
	}
}

// FromDomain populates the persistence model from a domain SyncRule.
func (m *SyncRuleModel) FromDomain(r *paymentsync.SyncRule) {
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.Name = r.Name
	m.Description = r.Description
	m.SourceModel = r.SourceModel
	m.Trigger = r.Trigger
	m.CustomerLedger = r.Targets.CustomerLedger
	m.SupplierLedger = r.Targets.SupplierLedger
	m.Journal = r.Targets.Journal
	m.BalanceCache = r.Targets.BalanceCache
	m.Conditions = jsonText(r.Conditions)
	m.Mapping = jsonText(r.Mapping)
	m.Priority = r.Priority
	m.IsActive = r.IsActive
}

// SyncOperationModel is the persistence model for sync operations.
type SyncOperationModel struct {
	AggregateModel
	Type         paymentsync.OperationType   `gorm:"type:varchar(20);not null"`
	PaymentKind  payment.Kind                `gorm:"type:varchar(30);not null"`
	PaymentID    uuid.UUID                   `gorm:"type:uuid;not null;index"`
	Snapshot     string                      `gorm:"type:jsonb;not null"`
	Prior        *string                     `gorm:"type:jsonb"`
	UserName     string                      `gorm:"column:user_name;type:varchar(100)"`
	Force        bool                        `gorm:"not null"`
	Status       paymentsync.OperationStatus `gorm:"type:varchar(20);not null;index"`
	Targets      string                      `gorm:"type:varchar(200)"`
	RetryCount   int                         `gorm:"not null"`
	MaxRetries   int                         `gorm:"not null"`
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage string `gorm:"type:text"`
	ErrorDetails string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (SyncOperationModel) TableName() string {
	return "sync_operations"
}

// ToDomain converts the persistence model to a domain SyncOperation.
func (m *SyncOperationModel) ToDomain() (*paymentsync.SyncOperation, error) {
	snapshot, err := payment.UnmarshalSnapshot([]byte(m.Snapshot))
	if err != nil {
		return nil, err
	}
	op := &paymentsync.SyncOperation{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Type:              m.Type,
		PaymentKind:       m.PaymentKind,
		PaymentID:         m.PaymentID,
		Snapshot:          snapshot,
		User:              m.UserName,
		Force:             m.Force,
		Status:            m.Status,
		Targets:           []paymentsync.Target{},
		RetryCount:        m.RetryCount,
		MaxRetries:        m.MaxRetries,
		StartedAt:         m.StartedAt,
		CompletedAt:       m.CompletedAt,
		ErrorMessage:      m.ErrorMessage,
		ErrorDetails:      m.ErrorDetails,
	}
	if m.Prior != nil {
		prior, err := payment.UnmarshalSnapshot([]byte(*m.Prior))
		if err != nil {
			return nil, err
		}
		op.Prior = &prior
	}
	if m.Targets != "" {
		for _, t := range strings.Split(m.Targets, ",") {
			op.Targets = append(op.Targets, paymentsync.Target(t))
		}
	}
	return op, nil
}

// FromDomain populates the persistence model from a domain SyncOperation.
func (m *SyncOperationModel) FromDomain(op *paymentsync.SyncOperation) error {
	snapshot, err := op.Snapshot.Marshal()
	if err != nil {
		return err
	}
	m.FromDomainAggregateRoot(op.BaseAggregateRoot)
	m.Type = op.Type
	m.PaymentKind = op.PaymentKind
	m.PaymentID = op.PaymentID
	m.Snapshot = string(snapshot)
	m.Prior = nil
	if op.Prior != nil {
		prior, err := op.Prior.Marshal()
		if err != nil {
			return err
		}
		s := string(prior)
		m.Prior = &s
	}
	m.UserName = op.User
	m.Force = op.Force
	m.Status = op.Status
	targets := make([]string, len(op.Targets))
	for i, t := range op.Targets {
		targets[i] = string(t)
	}
	m.Targets = strings.Join(targets, ",")
	m.RetryCount = op.RetryCount
	m.MaxRetries = op.MaxRetries
	m.StartedAt = op.StartedAt
	m.CompletedAt = op.CompletedAt
	m.ErrorMessage = op.ErrorMessage
	m.ErrorDetails = op.ErrorDetails
	return nil
}

// SyncLogModel is the persistence model for sync log rows.
type SyncLogModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	OperationID uuid.UUID `gorm:"type:uuid;not null;index"`
	Action      string    `gorm:"type:varchar(50);not null"`
	TargetModel string    `gorm:"type:varchar(50);not null"`
	TargetID    string    `gorm:"type:varchar(200)"`
	Input       *string   `gorm:"type:jsonb"`
	Result      *string   `gorm:"type:jsonb"`
	Success     bool      `gorm:"not null"`
	Message     string    `gorm:"type:text"`
	DurationMs  int64     `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "sync_logs"
}

// ToDomain converts the persistence model to a domain SyncLog.
func (m *SyncLogModel) ToDomain() paymentsync.SyncLog {
	return paymentsync.SyncLog{
		ID:          m.ID,
		OperationID: m.OperationID,
		Action:      m.Action,
		TargetModel: m.TargetModel,
		TargetID:    m.TargetID,
		Input:       rawJSON(m.Input),
		Result:      rawJSON(m.Result),
		Success:     m.Success,
		Message:     m.Message,
		Duration:    time.Duration(m.DurationMs) * time.Millisecond,
		CreatedAt:   m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain SyncLog.
func (m *SyncLogModel) FromDomain(l paymentsync.SyncLog) {
	m.ID = l.ID
	m.OperationID = l.OperationID
	m.Action = l.Action
	m.TargetModel = l.TargetModel
	m.TargetID = l.TargetID
	m.Input = textJSON(l.Input)
	m.Result = textJSON(l.Result)
	m.Success = l.Success
	m.Message = l.Message
	m.DurationMs = l.Duration.Milliseconds()
	m.CreatedAt = l.CreatedAt
}

// SyncErrorModel is the persistence model for sync errors.
type SyncErrorModel struct {
	ID              uuid.UUID             `gorm:"type:uuid;primary_key"`
	OperationID     uuid.UUID             `gorm:"type:uuid;not null;index"`
	Kind            paymentsync.ErrorKind `gorm:"type:varchar(20);not null"`
	Code            string                `gorm:"type:varchar(50)"`
	Message         string                `gorm:"type:text"`
	Stack           string                `gorm:"type:text"`
	Resolved        bool                  `gorm:"not null;index"`
	ResolvedAt      *time.Time
	ResolvedBy      string    `gorm:"type:varchar(100)"`
	ResolutionNotes string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncErrorModel) TableName() string {
	return "sync_errors"
}

// ToDomain converts the persistence model to a domain SyncError.
func (m *SyncErrorModel) ToDomain() *paymentsync.SyncError {
	return &paymentsync.SyncError{
		ID:              m.ID,
		OperationID:     m.OperationID,
		Kind:            m.Kind,
		Code:            m.Code,
		Message:         m.Message,
		Stack:           m.Stack,
		Resolved:        m.Resolved,
		ResolvedAt:      m.ResolvedAt,
		ResolvedBy:      m.ResolvedBy,
		ResolutionNotes: m.ResolutionNotes,
		CreatedAt:       m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain SyncError.
func (m *SyncErrorModel) FromDomain(e *paymentsync.SyncError) {
	m.ID = e.ID
	m.OperationID = e.OperationID
	m.Kind = e.Kind
	m.Code = e.Code
	m.Message = e.Message
	m.Stack = e.Stack
	m.Resolved = e.Resolved
	m.ResolvedAt = e.ResolvedAt
	m.ResolvedBy = e.ResolvedBy
	m.ResolutionNotes = e.ResolutionNotes
	m.CreatedAt = e.CreatedAt
}

// jsonText encodes a string map; nil maps are stored as an empty object
func jsonText(v map[string]string) string {
	if v == nil {
		return "{}"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func stringMap(s string) map[string]string {
	out := map[string]string{}
	if s == "" {
		return out
	}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func textJSON(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	return &s
}

func rawJSON(s *string) json.RawMessage {
	if s == nil {
		return nil
	}
	return json.RawMessage(*s)
}
