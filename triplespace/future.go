package triplespace

import (
	"context"
)

// Result reports the identifiers of the entities touched by an operation.
type Result struct {
	URIs []string
}

// Future is the deferred result of an operation started with Go.
type Future struct {
	done chan struct{}
	res  Result
	err  error
}

// Go runs fn in a new goroutine.
func Go(fn func() (Result, error)) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.res, f.err = fn()
	}()
	return f
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the operation completes or ctx is done. Cancelling ctx
// does not stop the operation itself.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// OnComplete calls fn with the result once available, from another goroutine.
func (f *Future) OnComplete(fn func(Result, error)) {
	go func() {
		<-f.done
		fn(f.res, f.err)
	}()
}

// Step is one stage of a Sequence.
type Step func(ctx context.Context) error

// Sequence runs steps in order, stopping at the first error.
func Sequence(ctx context.Context, steps ...Step) error {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}
