package starlark

import (
	"context"
	"runtime"
	"sync"

	"go.starlark.net/starlark"
	"golang.org/x/sync/errgroup"
)

// threads recycles interpreter threads between row evaluations.
var threads = sync.Pool{
	New: func() any {
		return &starlark.Thread{Print: func(*starlark.Thread, string) {}}
	},
}

func getThread(name string) *starlark.Thread {
	t := threads.Get().(*starlark.Thread)
	t.Name = name
	return t
}

func putThread(t *starlark.Thread) {
	t.Name = ""
	threads.Put(t)
}

// ParallelExecutor evaluates tasks concurrently over shared frozen globals.
type ParallelExecutor struct {
	globals starlark.StringDict
	limit   int
}

// NewParallelExecutor creates an executor running at most maxConcurrency
// evaluations at once. Zero or less means GOMAXPROCS.
func NewParallelExecutor(maxConcurrency int, globals starlark.StringDict) *ParallelExecutor {
	if maxConcurrency <= 0 {
		maxConcurrency = runtime.GOMAXPROCS(0)
	}
	return &ParallelExecutor{globals: globals, limit: maxConcurrency}
}

// Execute runs every task and returns the results in task order. Evaluation
// errors are reported per result; only cancellation of ctx stops the batch.
func (e *ParallelExecutor) Execute(ctx context.Context, tasks []EvalTask) ([]EvalResult, error) {
	results := make([]EvalResult, len(tasks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)

	for i, task := range tasks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			thread := getThread(task.Name)
			defer putThread(thread)

			value, err := evalWith(thread, task.Name, task.Expr, e.globals, task.Locals)
			results[i] = EvalResult{Name: task.Name, Value: value, Error: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// EvalTask is one expression evaluation with its row locals.
type EvalTask struct {
	Name   string // reported in errors
	Expr   string
	Locals starlark.StringDict
}

// EvalResult is the outcome of one EvalTask.
type EvalResult struct {
	Name  string
	Value starlark.Value
	Error error
}
