package providers

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"triggerd/internal/actions"
	apperrors "triggerd/internal/common/errors"
)

// DefaultRefreshTimeout bounds a catalogue refresh.
const DefaultRefreshTimeout = 5 * time.Second

// Refresher serialises catalogue reloads of one provider.
type Refresher struct {
	registry   *actions.Provider
	timeout    time.Duration
	inProgress atomic.Bool
}

// NewRefresher creates a refresher; a non-positive timeout uses the default.
func NewRefresher(registry *actions.Provider, timeout time.Duration) *Refresher {
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	return &Refresher{registry: registry, timeout: timeout}
}

// InProgress reports whether a refresh is running.
func (r *Refresher) InProgress() bool {
	return r.inProgress.Load()
}

// Refresh reloads the catalogue. A concurrent call fails with
// RefreshInProgressError; exceeding the timeout fails with
// RefreshTimeoutError.
func (r *Refresher) Refresh(ctx context.Context) (int, error) {
	id := r.registry.ID()
	if !r.inProgress.CompareAndSwap(false, true) {
		return 0, apperrors.RefreshInProgressError(id)
	}
	defer r.inProgress.Store(false)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		count int
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		n, err := r.registry.LoadActions(ctx)
		done <- outcome{n, err}
	}()

	select {
	case out := <-done:
		if errors.Is(out.err, context.DeadlineExceeded) {
			return 0, apperrors.RefreshTimeoutError(id, out.err)
		}
		return out.count, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, apperrors.RefreshTimeoutError(id, ctx.Err())
		}
		return 0, ctx.Err()
	}
}
