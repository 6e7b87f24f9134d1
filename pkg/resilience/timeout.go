package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout runs fn under a deadline; timeout <= 0 means none. fn runs on
// its own goroutine and its result is dropped once the deadline passes.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	deadlineCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- fn(deadlineCtx) }()

	select {
	case err := <-result:
		return err
	case <-deadlineCtx.Done():
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s cancelled: %w", name, err)
	}
	return fmt.Errorf("%s exceeded %v: %w", name, timeout, context.DeadlineExceeded)
}
