package persistence

import (
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
	"gorm.io/gorm"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// CommonSortFields contains fields common to most entities
var CommonSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// JournalEntrySortFields contains allowed sort fields for journal entries
var JournalEntrySortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"number":     true,
	"date":       true,
	"status":     true,
	"type":       true,
	"posted_at":  true,
}

// SyncOperationSortFields contains allowed sort fields for sync operations
var SyncOperationSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"status":       true,
	"type":         true,
	"payment_kind": true,
	"retry_count":  true,
	"started_at":   true,
	"completed_at": true,
}

// SyncErrorSortFields contains allowed sort fields for sync errors
var SyncErrorSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"kind":       true,
	"code":       true,
}

// LoanSortFields contains allowed sort fields for loans
var LoanSortFields = map[string]bool{
	"id":              true,
	"created_at":      true,
	"updated_at":      true,
	"loan_number":     true,
	"lender":          true,
	"principal":       true,
	"start_date":      true,
	"end_date":        true,
	"status":          true,
	"duration_months": true,
}

// applyFilter adds ordering and pagination to a query
func applyFilter(query *gorm.DB, filter shared.Filter, allowed map[string]bool, defaultField string) *gorm.DB {
	field := ValidateSortField(filter.OrderBy, allowed, defaultField)
	query = query.Order(field + " " + ValidateSortOrder(filter.OrderDir))
	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize).Offset(filter.Offset())
	}
	return query
}
