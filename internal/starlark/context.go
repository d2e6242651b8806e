package starlark

import (
	"context"
	"fmt"

	"go.starlark.net/starlark"
)

// Evaluator evaluates one expression against many rows.
type Evaluator struct {
	expr        string
	filename    string
	predeclared starlark.StringDict
	concurrency int
	executor    *ParallelExecutor
}

// EvaluatorOption is a functional option for configuring an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithFilename sets the name reported in evaluation errors.
func WithFilename(name string) EvaluatorOption {
	return func(e *Evaluator) {
		e.filename = name
	}
}

// WithConcurrency bounds the number of rows evaluated at once.
func WithConcurrency(n int) EvaluatorOption {
	return func(e *Evaluator) {
		e.concurrency = n
	}
}

// WithGlobals adds frozen values to the predeclared globals. Columns with
// the same names are then only reachable through row[...].
func WithGlobals(globals starlark.StringDict) EvaluatorOption {
	return func(e *Evaluator) {
		if len(globals) == 0 {
			return
		}
		merged := make(starlark.StringDict, len(e.predeclared)+len(globals))
		for k, v := range e.predeclared {
			merged[k] = v
		}
		for k, v := range globals {
			merged[k] = v
		}
		merged.Freeze()
		e.predeclared = merged
	}
}

// NewEvaluator parses expr and returns an Evaluator for it.
// Syntax errors are reported here rather than once per row.
func NewEvaluator(expr string, opts ...EvaluatorOption) (*Evaluator, error) {
	e := &Evaluator{
		expr:        expr,
		filename:    "expression",
		predeclared: Predeclared(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.executor = NewParallelExecutor(e.concurrency, e.predeclared)

	if _, err := FileOptions.ParseExpr(e.filename, expr, 0); err != nil {
		return nil, &EvalError{File: e.filename, Expr: expr, Message: err.Error()}
	}
	return e, nil
}

// Expr returns the source expression.
func (e *Evaluator) Expr() string {
	return e.expr
}

// Eval evaluates the expression with locals layered over the predeclared globals.
func (e *Evaluator) Eval(locals starlark.StringDict) (starlark.Value, error) {
	thread := getThread(e.filename)
	defer putThread(thread)

	result, err := evalWith(thread, e.filename, e.expr, e.predeclared, locals)
	if err != nil {
		return nil, &EvalError{File: e.filename, Expr: e.expr, Message: err.Error()}
	}
	return result, nil
}

// EvalRows evaluates the expression once per row and returns the results in
// row order. The first failing row is reported with its 1-based row number.
func (e *Evaluator) EvalRows(ctx context.Context, columns []string, rows [][]string) ([]starlark.Value, error) {
	tasks := make([]EvalTask, len(rows))
	for i, cells := range rows {
		tasks[i] = EvalTask{
			Name:   e.filename,
			Expr:   e.expr,
			Locals: rowLocals(columns, cells, e.predeclared),
		}
	}

	results, err := e.executor.Execute(ctx, tasks)
	if err != nil {
		return nil, err
	}
	values := make([]starlark.Value, len(results))
	for i, r := range results {
		if r.Error != nil {
			return nil, &EvalError{File: e.filename, Row: i + 1, Expr: e.expr, Message: r.Error.Error()}
		}
		values[i] = r.Value
	}
	return values, nil
}

func evalWith(thread *starlark.Thread, filename, expr string, globals, locals starlark.StringDict) (starlark.Value, error) {
	env := globals
	if len(locals) > 0 {
		env = make(starlark.StringDict, len(globals)+len(locals))
		for k, v := range globals {
			env[k] = v
		}
		for k, v := range locals {
			env[k] = v
		}
	}
	return starlark.EvalOptions(FileOptions, thread, filename, expr, env)
}

// EvalError represents an error during Starlark expression evaluation.
type EvalError struct {
	File    string
	Row     int
	Expr    string
	Message string
}

func (e *EvalError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("%s: row %d: error evaluating %q: %s", e.File, e.Row, e.Expr, e.Message)
	}
	return fmt.Sprintf("%s: error evaluating %q: %s", e.File, e.Expr, e.Message)
}
