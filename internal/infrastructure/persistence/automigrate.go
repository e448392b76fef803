package persistence

import (
	"fmt"

	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// Models lists every persistence model in dependency order
func Models() []any {
	return []any{
		&models.AccountModel{},
		&models.AccountingPeriodModel{},
		&models.JournalEntryModel{},
		&models.JournalLineModel{},
		&models.AccountBalanceModel{},
		&models.SequenceModel{},
		&models.PaymentModel{},
		&models.SyncRuleModel{},
		&models.SyncOperationModel{},
		&models.SyncLogModel{},
		&models.SyncErrorModel{},
		&models.LoanModel{},
		&models.LoanPaymentModel{},
	}
}

// AutoMigrate creates or updates the ledger tables from the models
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto-migrate ledger schema: %w", err)
	}
	return nil
}
