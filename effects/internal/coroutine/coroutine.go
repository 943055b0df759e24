// Package coroutine implements a one-shot, goroutine-backed coroutine.
//
// The body runs on its own goroutine but never concurrently with its driver:
// control is handed back and forth over unbuffered channels, so exactly one of
// them is running at any time.
package coroutine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

var (
	// ErrCancelled is the terminal failure of a coroutine that was cancelled while suspended.
	ErrCancelled = errors.New("coroutine cancelled")

	// ErrFinished is returned when resuming a coroutine that already terminated.
	ErrFinished = errors.New("coroutine finished")

	// ErrPanic marks a coroutine whose body panicked.
	ErrPanic = errors.New("panic in coroutine body")
)

// PanicError carries the recovered value and stack of a panicking body.
type PanicError struct {
	Value any
	Stack []byte
}

func (pe *PanicError) Error() string {
	return fmt.Sprintf("%v: %v", ErrPanic, pe.Value)
}

func (pe *PanicError) Unwrap() []error {
	if err, ok := pe.Value.(error); ok {
		return []error{ErrPanic, err}
	}
	return []error{ErrPanic}
}

// Resume is the input delivered to a suspended body: a value, or a failure to inject.
type Resume[In any] struct {
	Value In
	Err   error
}

// Step is what a driver observes after resuming: either a yielded value or termination.
type Step[Out any] struct {
	Yielded Out
	Done    bool
	Value   any
	Err     error
}

// Body is the coroutine's computation. Calling yield suspends it until the next Resume.
type Body[Out, In any] func(yield func(Out) (In, error)) (any, error)

type cancelled struct{}

// Coroutine drives a Body one step at a time.
//
// A Coroutine must be resumed from a single goroutine.
type Coroutine[Out, In any] struct {
	body     Body[Out, In]
	started  bool
	finished bool

	steps   chan Step[Out]
	resumes chan Resume[In]

	cancelCh   chan struct{}
	cancelOnce sync.Once
	exited     chan struct{}
}

// New returns a coroutine that has not started yet. The first Resume starts it;
// the value of that first Resume is ignored.
func New[Out, In any](body Body[Out, In]) *Coroutine[Out, In] {
	return &Coroutine[Out, In]{
		body:     body,
		steps:    make(chan Step[Out]),
		resumes:  make(chan Resume[In]),
		cancelCh: make(chan struct{}),
		exited:   make(chan struct{}),
	}
}

// Resume runs the body until its next yield or its termination.
//
// It returns an error only when the coroutine cannot be stepped: it already
// finished, it was cancelled, or ctx ended. The body is never handed control
// once ctx is done.
func (c *Coroutine[Out, In]) Resume(ctx context.Context, in Resume[In]) (Step[Out], error) {
	if c.finished {
		return Step[Out]{}, ErrFinished
	}
	if err := ctx.Err(); err != nil {
		return Step[Out]{}, err
	}
	select {
	case <-c.cancelCh:
		return Step[Out]{}, ErrCancelled
	default:
	}

	if !c.started {
		c.started = true
		go c.run()
	} else {
		select {
		case c.resumes <- in:
		case <-ctx.Done():
			return Step[Out]{}, ctx.Err()
		}
	}

	select {
	case st := <-c.steps:
		if st.Done {
			c.finished = true
		}
		return st, nil
	case <-ctx.Done():
		return Step[Out]{}, ctx.Err()
	}
}

// Cancel unwinds a suspended body: its pending yield panics with an internal
// signal that run recovers. Deferred calls inside the body still execute.
func (c *Coroutine[Out, In]) Cancel() {
	c.cancelOnce.Do(func() {
		close(c.cancelCh)
	})
}

func (c *Coroutine[Out, In]) run() {
	defer close(c.exited)

	st := c.call()

	select {
	case c.steps <- st:
	case <-c.cancelCh:
	}
}

func (c *Coroutine[Out, In]) call() (st Step[Out]) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(cancelled); ok {
				st = Step[Out]{Done: true, Err: ErrCancelled}
				return
			}
			st = Step[Out]{Done: true, Err: &PanicError{Value: r, Stack: debug.Stack()}}
		}
	}()

	v, err := c.body(c.yield)
	return Step[Out]{Done: true, Value: v, Err: err}
}

func (c *Coroutine[Out, In]) yield(out Out) (In, error) {
	select {
	case <-c.exited:
		panic(fmt.Errorf("%w: yield called after termination", ErrFinished))
	default:
	}

	select {
	case c.steps <- Step[Out]{Yielded: out}:
	case <-c.cancelCh:
		panic(cancelled{})
	}

	select {
	case r := <-c.resumes:
		return r.Value, r.Err
	case <-c.cancelCh:
		panic(cancelled{})
	}
}
