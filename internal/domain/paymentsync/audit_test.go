package paymentsync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"validation", shared.NewValidationError("UNBALANCED_ENTRY", "x"), ErrorKindValidation},
		{"wrapped validation", fmt.Errorf("journal target: %w", shared.NewValidationError("INACTIVE_ACCOUNT", "x")), ErrorKindValidation},
		{"state", shared.NewStateError("CLOSED_PERIOD", "x"), ErrorKindBusiness},
		{"permission", shared.ErrForbidden, ErrorKindPermission},
		{"database", shared.Errorf(shared.KindDatabase, "INTEGRITY_VIOLATION", "dup"), ErrorKindDatabase},
		{"deadline", fmt.Errorf("save: %w", context.DeadlineExceeded), ErrorKindNetwork},
		{"plain", errors.New("boom"), ErrorKindSystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, Classify(tt.err))
		})
	}
}

func TestNewSyncError(t *testing.T) {
	opID := uuid.New()
	se := NewSyncError(opID, fmt.Errorf("wrap: %w", shared.NewValidationError("INACTIVE_ACCOUNT", "Account 11030 is inactive")), "stack")
	assert.Equal(t, opID, se.OperationID)
	assert.Equal(t, ErrorKindValidation, se.Kind)
	assert.Equal(t, "INACTIVE_ACCOUNT", se.Code)
	assert.Contains(t, se.Message, "11030")

	require.NoError(t, se.MarkResolved("ops", "account reactivated"))
	assert.True(t, se.Resolved)
	assert.Equal(t, "ops", se.ResolvedBy)
	assert.NotNil(t, se.ResolvedAt)
	assert.Error(t, se.MarkResolved("ops", "again"))
}

func TestNewSyncLog_EncodesPayloads(t *testing.T) {
	log := NewSyncLog(uuid.New(), "create", "journal_entry", "id", map[string]string{"a": "b"}, nil, true, 0)
	assert.JSONEq(t, `{"a":"b"}`, string(log.Input))
	assert.Nil(t, log.Result)
}
