package accounting

import (
	"context"

	"github.com/erp/ledger/internal/domain/ledger"
)

// Authorizer decides whether a user may change the state of an entry.
// Implementations return an error of kind permission to refuse.
type Authorizer interface {
	CanPost(ctx context.Context, user string, entry *ledger.JournalEntry) error
	CanCancel(ctx context.Context, user string, entry *ledger.JournalEntry) error
}

// AllowAll is the default Authorizer; user identity is stored for audit only
type AllowAll struct{}

// CanPost implements Authorizer
func (AllowAll) CanPost(context.Context, string, *ledger.JournalEntry) error { return nil }

// CanCancel implements Authorizer
func (AllowAll) CanCancel(context.Context, string, *ledger.JournalEntry) error { return nil }

var _ Authorizer = AllowAll{}
