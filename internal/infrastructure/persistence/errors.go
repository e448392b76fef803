package persistence

import (
	"errors"
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
	"gorm.io/gorm"
)

// Database error codes
const (
	CodeIntegrityViolation = "INTEGRITY_VIOLATION"
	CodeDatabaseError      = "DATABASE_ERROR"
)

// notFound maps gorm.ErrRecordNotFound to shared.ErrNotFound
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return dbError(err)
}

// dbError tags store failures as database-kind domain errors. The driver
// error stays in the chain. It relies on gorm.Config.TranslateError.
func dbError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := shared.AsDomainError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey),
		errors.Is(err, gorm.ErrForeignKeyViolated),
		errors.Is(err, gorm.ErrCheckConstraintViolated):
		return fmt.Errorf("%w: %w", shared.Errorf(shared.KindDatabase, CodeIntegrityViolation, "integrity constraint violated"), err)
	}
	return fmt.Errorf("%w: %w", shared.Errorf(shared.KindDatabase, CodeDatabaseError, "database operation failed"), err)
}
