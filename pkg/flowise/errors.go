package flowise

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuestion is returned before any request is made.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrTransport wraps connection, DNS and body read failures.
	ErrTransport = errors.New("flowise transport failure")

	// ErrTimeout is returned when the prediction does not settle in time.
	ErrTimeout = errors.New("flowise request timed out")

	// ErrFrameTooLarge means a stream line exceeded the frame size limit.
	ErrFrameTooLarge = errors.New("flowise stream frame too large")

	// ErrEmptyResponse means the call succeeded but carried no usable text.
	ErrEmptyResponse = errors.New("flowise returned an empty response")
)

// StatusError reports a non-2xx HTTP status. The body is never inspected.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("flowise returned HTTP %s", e.Status)
	}
	return fmt.Sprintf("flowise returned HTTP %d", e.Code)
}

// IsCanceled reports whether err is a cancellation rather than a failure.
// Cancellations are not shown to the user.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// classify maps an error observed while ctx was live into the package taxonomy.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		if errors.Is(context.Cause(ctx), ErrTimeout) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return fmt.Errorf("flowise prediction: %w", context.Canceled)
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
