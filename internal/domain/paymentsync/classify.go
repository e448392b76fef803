package paymentsync

import (
	"context"
	"errors"
	"net"

	"github.com/erp/ledger/internal/domain/shared"
)

// Classify maps an error raised during a sync to its audit kind
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorKindSystem
	}
	if de, ok := shared.AsDomainError(err); ok {
		switch de.Kind {
		case shared.KindValidation:
			return ErrorKindValidation
		case shared.KindDatabase:
			return ErrorKindDatabase
		case shared.KindPermission:
			return ErrorKindPermission
		case shared.KindState, shared.KindBusiness:
			return ErrorKindBusiness
		}
		return ErrorKindSystem
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindNetwork
	}
	return ErrorKindSystem
}
