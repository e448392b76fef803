package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrInvalidJobKind is returned for unknown maintenance tasks
	ErrInvalidJobKind = errors.New("invalid job kind")

	// ErrTaskNotConfigured is returned when a job's task has no backing service
	ErrTaskNotConfigured = errors.New("maintenance task not configured")

	// ErrLockHeld is returned when another instance holds the maintenance lock
	ErrLockHeld = errors.New("maintenance lock held by another instance")
)
