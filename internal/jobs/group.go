// Package jobs runs bounded groups of independent tasks.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of work in a group.
type Task[T any] func(ctx context.Context) (T, error)

// Outcome is the positional result of one task.
type Outcome[T any] struct {
	Value T
	Err   error
}

// TaskError identifies which task of a group failed.
type TaskError struct {
	Index int
	Err   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %d: %v", e.Index, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// RunAll runs every task with at most maxConcurrency in flight and waits
// for all of them. A failing task does not cancel its siblings. Outcomes
// are returned in task order; the error joins every task failure and is
// nil only when all tasks succeeded. maxConcurrency <= 0 means unbounded.
func RunAll[T any](ctx context.Context, tasks []Task[T], maxConcurrency int) ([]Outcome[T], error) {
	outcomes := make([]Outcome[T], len(tasks))
	if len(tasks) == 0 {
		return outcomes, nil
	}

	// Plain errgroup, not WithContext: one failure must not cancel the rest.
	var g errgroup.Group
	if maxConcurrency > 0 {
		g.SetLimit(maxConcurrency)
	}

	for i, task := range tasks {
		g.Go(func() error {
			outcomes[i] = runTask(ctx, task)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for i, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, &TaskError{Index: i, Err: o.Err})
		}
	}
	return outcomes, errors.Join(errs...)
}

func runTask[T any](ctx context.Context, task Task[T]) (out Outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome[T]{Err: fmt.Errorf("task panicked: %v\n%s", r, debug.Stack())}
		}
	}()
	if err := ctx.Err(); err != nil {
		return Outcome[T]{Err: err}
	}
	v, err := task(ctx)
	return Outcome[T]{Value: v, Err: err}
}
