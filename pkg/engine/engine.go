// Package engine runs tasks connected by explicit predecessor edges.
//
// A task starts only after every task it depends on has finished. Tasks
// without a path between them may run concurrently, bounded by the
// engine's worker count. Dependencies must be submitted before their
// dependents, so every graph the engine accepts is acyclic.
//
// Example:
//
//	e := engine.New(ctx, 8)
//	_ = e.Submit("mkgroup /a", createA)
//	_ = e.Submit("link /a/b", createB, "mkgroup /a")
//	err := e.Wait()
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/marmos91/dittolink/internal/logger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultWorkers is the worker count used when New is given zero.
const DefaultWorkers = 8

var (
	// ErrUnknownDependency is returned by Submit for a dependency that was
	// never submitted.
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrDuplicateTask is returned by Submit for an id already in use.
	ErrDuplicateTask = errors.New("duplicate task id")

	// ErrDependencyFailed is the result of a task that did not run because
	// a dependency failed.
	ErrDependencyFailed = errors.New("dependency failed")

	// ErrClosed is returned by Submit after Wait was called.
	ErrClosed = errors.New("engine is closed")
)

// Func is the work of one task. A returned error marks the task failed:
// its dependents are skipped and Wait reports the first failure.
type Func func(ctx context.Context) error

type task struct {
	id   string
	done chan struct{}
	err  error
}

// Engine schedules tasks over a bounded worker pool.
//
// Thread safety:
// Submit may be called concurrently, but not after Wait.
type Engine struct {
	ctx   context.Context
	group *errgroup.Group
	sem   *semaphore.Weighted

	mu     sync.Mutex
	tasks  map[string]*task
	closed bool
}

// New creates an engine running at most workers tasks at once
// (0 = DefaultWorkers). Cancelling ctx stops tasks that have not started.
func New(ctx context.Context, workers int) *Engine {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Engine{
		ctx:   ctx,
		group: &errgroup.Group{},
		sem:   semaphore.NewWeighted(int64(workers)),
		tasks: make(map[string]*task),
	}
}

// Submit schedules fn to run once every task in deps has finished.
//
// Returns ErrDuplicateTask if id is already used and ErrUnknownDependency
// if a dependency has not been submitted; the task is not scheduled then.
func (e *Engine) Submit(id string, fn Func, deps ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if _, exists := e.tasks[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, id)
	}

	preds := make([]*task, 0, len(deps))
	for _, dep := range deps {
		p, ok := e.tasks[dep]
		if !ok {
			return fmt.Errorf("task %s: %w: %s", id, ErrUnknownDependency, dep)
		}
		preds = append(preds, p)
	}

	t := &task{id: id, done: make(chan struct{})}
	e.tasks[id] = t

	e.group.Go(func() error {
		defer close(t.done)
		t.err = e.run(t, fn, preds)
		return t.err
	})
	return nil
}

// run waits for preds, then runs fn on a worker slot.
func (e *Engine) run(t *task, fn Func, preds []*task) error {
	for _, p := range preds {
		select {
		case <-p.done:
		case <-e.ctx.Done():
			return e.ctx.Err()
		}
		if p.err != nil {
			logger.Debug("engine: skipping %s: dependency %s failed", t.id, p.id)
			return fmt.Errorf("task %s: %w: %s", t.id, ErrDependencyFailed, p.id)
		}
	}

	if err := e.sem.Acquire(e.ctx, 1); err != nil {
		return err
	}
	defer e.sem.Release(1)

	if err := fn(e.ctx); err != nil {
		return fmt.Errorf("task %s: %w", t.id, err)
	}
	return nil
}

// Wait blocks until every submitted task has finished and returns the first
// task failure, if any. No task may be submitted afterwards.
func (e *Engine) Wait() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	return e.group.Wait()
}

// Result returns the outcome of a finished task. done is false if id is
// unknown or the task has not finished yet.
func (e *Engine) Result(id string) (done bool, err error) {
	e.mu.Lock()
	t, exists := e.tasks[id]
	e.mu.Unlock()

	if !exists {
		return false, nil
	}
	select {
	case <-t.done:
		return true, t.err
	default:
		return false, nil
	}
}
