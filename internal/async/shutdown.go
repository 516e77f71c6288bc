package async

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kas/internal/kaserr"
)

// ShutdownOptions controls the drain performed by Shutdown.
type ShutdownOptions struct {
	// Grace bounds each waiting phase. After the first phase expires the
	// runtime context is cancelled and tasks get another Grace to return.
	// Grace <= 0 waits without bound.
	Grace time.Duration
	// Cancel cancels the runtime context before waiting. It is set when
	// the main path already failed and pending work is no longer useful.
	Cancel bool
}

// Shutdown drains the runtime. It runs once; later calls return nil, as does
// a call on a nil runtime or on a runtime that never scheduled a task.
//
// Every pending task is awaited. Failures of tasks whose result nobody
// observed through Task.Wait are then reported, except for the failures
// expected from cooperative cancellation: user kinds and context.Canceled.
// Tasks that ignore cancellation are reported as an InternalError.
func (r *Runtime) Shutdown(opts ShutdownOptions) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	tasks := append([]*Task(nil), r.tasks...)
	r.mu.Unlock()
	defer r.cancel()

	if len(tasks) == 0 {
		return nil
	}
	if opts.Cancel {
		r.log.Debugf("cancelling %d pending task(s)", r.Pending())
		r.cancel()
	}

	var errs []error
	if !await(tasks, opts.Grace) {
		r.log.Warnf("%d task(s) still pending after %s, cancelling", r.Pending(), opts.Grace)
		r.cancel()
		if !await(tasks, opts.Grace) {
			errs = append(errs, &kaserr.InternalError{
				Err: fmt.Errorf("%d task(s) did not finish after cancellation: %s",
					r.Pending(), strings.Join(unfinished(tasks), ", ")),
			})
		}
	}

	for _, t := range tasks {
		if !finished(t) || t.observed.Load() || t.err == nil {
			continue
		}
		if expectedFailure(t.err) {
			r.log.Debugf("dropping failure of task %s: %v", t.name, t.err)
			continue
		}
		errs = append(errs, fmt.Errorf("task %s: %w", t.name, t.err))
	}
	return errors.Join(errs...)
}

// expectedFailure reports whether err is the kind of failure a task
// produces when it is cancelled.
func expectedFailure(err error) bool {
	return kaserr.IsUserError(err) || errors.Is(err, context.Canceled)
}

// await waits for all tasks, or until grace expires. It reports whether all
// tasks finished.
func await(tasks []*Task, grace time.Duration) bool {
	var timeout <-chan time.Time
	if grace > 0 {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		timeout = timer.C
	}
	for _, t := range tasks {
		select {
		case <-t.done:
		case <-timeout:
			return false
		}
	}
	return true
}

func finished(t *Task) bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func unfinished(tasks []*Task) []string {
	var names []string
	for _, t := range tasks {
		if !finished(t) {
			names = append(names, t.name)
		}
	}
	return names
}
