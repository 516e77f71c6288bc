// Package async is the process-wide runtime for background work scheduled
// by plugins, and the shutdown phase that drains it before kas exits.
//
// Plugins schedule tasks with Runtime.Go and may await them with Task.Wait.
// Tasks still pending when the main path has produced its outcome are
// awaited by Runtime.Shutdown, so background work such as in-flight
// downloads is never silently abandoned.
package async

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"kas/internal/kaserr"
)

// ErrClosed is returned by Go after Shutdown has started.
var ErrClosed = errors.New("async runtime is shut down")

// TaskFunc is the body of a task. It must return once ctx is cancelled.
type TaskFunc func(ctx context.Context) error

// Task is a unit of work scheduled on a Runtime.
type Task struct {
	name     string
	done     chan struct{}
	err      error
	observed atomic.Bool
}

// Name returns the name the task was scheduled with.
func (t *Task) Name() string { return t.name }

// Done is closed once the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finished or ctx is done, and returns the task's
// error. A result obtained through Wait belongs to the caller; Shutdown does
// not report it again.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		t.observed.Store(true)
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Runtime schedules tasks on goroutines managed by an errgroup.
type Runtime struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	log    logrus.FieldLogger

	mu     sync.Mutex
	tasks  []*Task
	closed bool

	pending atomic.Int64
}

// New creates a runtime deriving its context from parent. limit bounds the
// number of tasks running at once; limit <= 0 means unbounded. When the
// bound is reached Go blocks until a running task finishes.
func New(parent context.Context, limit int, log logrus.FieldLogger) *Runtime {
	ctx, cancel := context.WithCancel(parent)
	g := new(errgroup.Group)
	if limit > 0 {
		g.SetLimit(limit)
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Runtime{ctx: ctx, cancel: cancel, group: g, log: log}
}

// Context returns the runtime's context. It is cancelled during Shutdown.
func (r *Runtime) Context() context.Context { return r.ctx }

// Go schedules fn as a new task named name.
func (r *Runtime) Go(name string, fn TaskFunc) (*Task, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, fmt.Errorf("scheduling %s: %w", name, ErrClosed)
	}
	t := &Task{name: name, done: make(chan struct{})}
	r.tasks = append(r.tasks, t)
	r.pending.Add(1)
	r.mu.Unlock()

	r.log.Debugf("scheduling task %s", name)
	r.group.Go(func() error {
		defer close(t.done)
		defer r.pending.Add(-1)
		t.err = runTask(r.ctx, name, fn)
		return nil
	})
	return t, nil
}

// runTask runs fn and converts a panic into an InternalError.
func runTask(ctx context.Context, name string, fn TaskFunc) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &kaserr.InternalError{
				Err:   fmt.Errorf("task %s panicked: %v", name, p),
				Stack: debug.Stack(),
			}
		}
	}()
	return fn(ctx)
}

// Active reports whether any task was ever scheduled and the runtime is not
// shut down yet.
func (r *Runtime) Active() bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed && len(r.tasks) > 0
}

// Pending returns the number of tasks that have not finished.
func (r *Runtime) Pending() int {
	if r == nil {
		return 0
	}
	return int(r.pending.Load())
}
