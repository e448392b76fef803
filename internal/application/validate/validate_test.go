package validate

import (
	"testing"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Code     string `json:"code" validate:"required,numeric,min=4,max=8"`
	Name     string `json:"name" validate:"required,max=10"`
	Duration int    `json:"duration" validate:"gte=1"`
	Kind     string `validate:"omitempty,oneof=a b"`
}

func TestStruct(t *testing.T) {
	t.Run("valid input", func(t *testing.T) {
		assert.NoError(t, Struct(sample{Code: "11011", Name: "Cash", Duration: 1}))
	})

	t.Run("reports every field by json name", func(t *testing.T) {
		err := Struct(sample{Code: "1a", Duration: 0, Kind: "c"})
		require.Error(t, err)

		de, ok := shared.AsDomainError(err)
		require.True(t, ok)
		assert.Equal(t, CodeInvalidInput, de.Code)
		assert.Equal(t, shared.KindValidation, de.Kind)
		assert.Contains(t, de.Message, "code: Must be numeric")
		assert.Contains(t, de.Message, "name: This field is required")
		assert.Contains(t, de.Message, "duration: Must be greater than or equal to 1")
		assert.Contains(t, de.Message, "Kind: Must be one of: a b")
	})
}
