package process

import (
	"context"
	"fmt"
	"time"
)

// RunWithTimeout races a unit of work against a timer. If the timer fires
// first the wait is abandoned and ErrTimeout is returned; the work itself
// keeps running. Callers that spawn a process inside work are responsible
// for terminating it on timeout.
func RunWithTimeout[T any](ctx context.Context, timeout time.Duration, work func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}

	ch := make(chan outcome, 1)
	go func() {
		value, err := work(ctx)
		ch <- outcome{value: value, err: err}
	}()

	var zero T
	select {
	case out := <-ch:
		return out.value, out.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-time.After(timeout):
		return zero, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}
