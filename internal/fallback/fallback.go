// Package fallback runs ordered source strategies until one succeeds.
//
// Every collector field-group is resolved through Resolve, so the policy for
// trying sources, bounding them in time, and recording why they failed is the
// same everywhere.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnsupported marks a source that does not exist on this platform.
	ErrUnsupported = errors.New("not supported on this platform")

	// ErrNoData marks a source that ran but produced nothing usable.
	ErrNoData = errors.New("no data")

	errPanic = errors.New("strategy panicked")
)

// Strategy is one named way of obtaining a value.
type Strategy[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// New is shorthand for building a Strategy.
func New[T any](name string, run func(ctx context.Context) (T, error)) Strategy[T] {
	return Strategy[T]{Name: name, Run: run}
}

// Failure records why a single strategy did not produce a value.
type Failure struct {
	Strategy string
	Err      error
}

// Reason returns the short, human-readable failure reason.
func (f Failure) Reason() string { return Reason(f.Err) }

// Result is the outcome of Resolve. When OK is false, Value is the zero value
// and Failures holds one entry per strategy attempted.
type Result[T any] struct {
	Value    T
	OK       bool
	Used     string
	Failures []Failure
}

// Reason joins the distinct failure reasons in attempt order.
func (r Result[T]) Reason() string {
	if r.OK {
		return ""
	}
	seen := make(map[string]bool, len(r.Failures))
	var reasons []string
	for _, f := range r.Failures {
		reason := f.Reason()
		if seen[reason] {
			continue
		}
		seen[reason] = true
		reasons = append(reasons, reason)
	}
	if len(reasons) == 0 {
		return Reason(ErrUnsupported)
	}
	return strings.Join(reasons, "; ")
}

// Resolve tries each strategy in order and returns the first success. Each
// attempt gets its own timeout; a strategy that overruns it is abandoned and
// counted as failed. A timeout <= 0 disables the per-strategy budget.
// Resolve never panics and never returns an error: total failure is a
// Result with OK == false.
func Resolve[T any](ctx context.Context, timeout time.Duration, strategies ...Strategy[T]) Result[T] {
	var res Result[T]
	if len(strategies) == 0 {
		res.Failures = []Failure{{Err: ErrUnsupported}}
		return res
	}

	for _, s := range strategies {
		v, err := attempt(ctx, timeout, s)
		if err == nil {
			res.Value = v
			res.OK = true
			res.Used = s.Name
			return res
		}
		res.Failures = append(res.Failures, Failure{Strategy: s.Name, Err: err})
	}
	return res
}

type outcome[T any] struct {
	v   T
	err error
}

func attempt[T any](ctx context.Context, timeout time.Duration, s Strategy[T]) (T, error) {
	var zero T
	if s.Run == nil {
		return zero, ErrUnsupported
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	var (
		sctx   context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		sctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		sctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	// Buffered so an abandoned strategy can still deliver and exit.
	done := make(chan outcome[T], 1)
	go func() {
		var o outcome[T]
		defer func() {
			if p := recover(); p != nil {
				o = outcome[T]{err: fmt.Errorf("%w: %v", errPanic, p)}
			}
			done <- o
		}()
		o.v, o.err = s.Run(sctx)
	}()

	select {
	case o := <-done:
		return o.v, o.err
	case <-sctx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("%s after %s: %w", s.Name, timeout, context.DeadlineExceeded)
	}
}
