package jobs

import (
	"errors"
	"fmt"

	"github.com/kiranshivaraju/vidlens/pkg/models"
)

var (
	ErrSchedulerClosed = errors.New("scheduler is shut down")
	ErrNotCancellable  = errors.New("job cannot be cancelled")
)

// ValidationError rejects a request before any job row exists. Message is
// safe to show to the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func notCancellable(status models.JobStatus) error {
	return fmt.Errorf("%w: cannot cancel job with status %s", ErrNotCancellable, status)
}
