// Package asyncutil implements the AsyncRunner abstraction named in the
// consensus core's concurrency design: schedule-immediate, schedule-with-
// delay, and schedule-periodic, each returning an awaitable, cancellable
// task. Built on golang.org/x/sync/errgroup and context cancellation rather
// than a bespoke executor, matching the wider stack's declared dependency on
// golang.org/x/sync and its universal ctx.Done()-select goroutine idiom.
package asyncutil

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task is a handle to scheduled work. Wait blocks until the task completes or
// is cancelled; Cancel requests cooperative cancellation.
type Task struct {
	cancel context.CancelFunc
	group  *errgroup.Group
}

// Wait blocks until the task's function returns, returning its error (or
// context.Canceled if Cancel was called first).
func (t *Task) Wait() error {
	return t.group.Wait()
}

// Cancel requests cooperative cancellation. The scheduled function observes
// this at its next suspension point via ctx.Done().
func (t *Task) Cancel() {
	t.cancel()
}

// Runner schedules work against a parent context. All tasks it produces are
// cancelled when the parent context is cancelled.
type Runner struct {
	ctx context.Context
}

// NewRunner constructs a Runner bound to ctx.
func NewRunner(ctx context.Context) *Runner {
	return &Runner{ctx: ctx}
}

// ScheduleImmediate runs fn in a new goroutine right away.
func (r *Runner) ScheduleImmediate(fn func(ctx context.Context) error) *Task {
	ctx, cancel := context.WithCancel(r.ctx)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return fn(ctx) })
	return &Task{cancel: cancel, group: g}
}

// ScheduleWithDelay runs fn once, after delay has elapsed, unless cancelled
// first.
func (r *Runner) ScheduleWithDelay(delay time.Duration, fn func(ctx context.Context) error) *Task {
	ctx, cancel := context.WithCancel(r.ctx)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-time.After(delay):
			return fn(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	return &Task{cancel: cancel, group: g}
}

// SchedulePeriodic runs fn every period until cancelled. The first non-nil
// error fn returns ends the loop and is what Wait returns. A panic inside fn
// is not recovered.
func (r *Runner) SchedulePeriodic(period time.Duration, fn func(ctx context.Context) error) *Task {
	ctx, cancel := context.WithCancel(r.ctx)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := fn(ctx); err != nil {
					return err
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
	return &Task{cancel: cancel, group: g}
}
