package scheduler

import (
	"context"
	"time"
)

// StaleRefresher recomputes balance caches flagged needs_refresh
type StaleRefresher interface {
	RefreshStale(ctx context.Context, limit int) (int, error)
}

// OverdueMarker flags unpaid installments due before a date
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, asOf time.Time) (int, error)
}

// RetryFunc retries up to limit failed sync operations and returns how
// many completed
type RetryFunc func(ctx context.Context, limit int) (int, error)

// RetryFailedSyncs returns the task behind JobRetryFailedSyncs
func RetryFailedSyncs(retry RetryFunc) Task {
	return func(ctx context.Context, job *Job) (int, error) {
		return retry(ctx, job.BatchSize)
	}
}

// RefreshStaleBalances returns the task behind JobRefreshStaleBalances
func RefreshStaleBalances(r StaleRefresher) Task {
	return func(ctx context.Context, job *Job) (int, error) {
		return r.RefreshStale(ctx, job.BatchSize)
	}
}

// MarkOverdueLoans returns the task behind JobMarkOverdueLoans. The job's
// AsOf is the reference date; a zero AsOf means today.
func MarkOverdueLoans(m OverdueMarker) Task {
	return func(ctx context.Context, job *Job) (int, error) {
		asOf := job.AsOf
		if asOf.IsZero() {
			asOf = time.Now()
		}
		return m.MarkOverdue(ctx, asOf)
	}
}
