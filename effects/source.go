package effects

import (
	"context"

	"github.com/on-the-ground/sourcebus/effects/internal/coroutine"
)

// Source is a suspendable unit of program logic.
//
// A source expresses every side effect by yielding it through co and
// eventually returns its Result. A failure injected by the interpreter is the
// error returned from co.Yield; returning it (or any other error) fails the run.
type Source func(co *Co, args ...any) (any, error)

// CommandFunc handles a command.
//
// Returning a <-chan Result makes the result deferred: the interpreter waits
// for it before resuming the invoking source.
type CommandFunc func(ctx context.Context, args ...any) (any, error)

// Result is the outcome of an effect, a command or a whole run.
type Result struct {
	Value any
	Err   error
}

func ResultFrom(v any, err error) Result {
	return Result{Value: v, Err: err}
}

// Handler wraps an event handler source. Its pointer identity keys subscriptions.
type Handler struct {
	source Source
}

func NewHandler(src Source) *Handler {
	return &Handler{source: src}
}

func (h *Handler) Source() Source {
	if h == nil {
		return nil
	}
	return h.source
}

// Subscription is the token returned when subscribing a handler to an event.
type Subscription struct {
	Event string
	ID    string
}

// Task is a handle to a forked coroutine. Forks are detached unless joined with Wait.
type Task interface {
	ID() string
	Done() <-chan struct{}
	Wait(ctx context.Context) (any, error)
}

// Co is the handle a running source uses to suspend on effects.
type Co struct {
	ctx   context.Context
	yield func(Effect) (any, error)
}

// Yield suspends the source until the interpreter has performed eff.
func (co *Co) Yield(eff Effect) (any, error) {
	return co.yield(eff)
}

// Context is the context of the interpreter loop driving this source.
func (co *Co) Context() context.Context {
	return co.ctx
}

// Step is one observation of a Thread: a yielded effect, or termination with a Result.
type Step struct {
	Effect Effect
	Done   bool
	Result Result
}

// Thread is a started source that is advanced one effect at a time.
//
// A Thread must be stepped from a single goroutine.
type Thread struct {
	co *coroutine.Coroutine[Effect, any]
}

// Start prepares src(args...) for stepping. Nothing runs until the first Step.
func Start(ctx context.Context, src Source, args ...any) *Thread {
	return &Thread{
		co: coroutine.New(func(yield func(Effect) (any, error)) (any, error) {
			return src(&Co{ctx: ctx, yield: yield}, args...)
		}),
	}
}

// Step resumes the source with in and runs it to its next yield or termination.
// The first Step ignores in.
func (t *Thread) Step(ctx context.Context, in Result) (Step, error) {
	st, err := t.co.Resume(ctx, coroutine.Resume[any]{Value: in.Value, Err: in.Err})
	if err != nil {
		return Step{}, err
	}
	if st.Done {
		return Step{Done: true, Result: Result{Value: st.Value, Err: st.Err}}, nil
	}
	return Step{Effect: st.Yielded}, nil
}

// Cancel unwinds the source if it is suspended. It is a no-op once the source finished.
func (t *Thread) Cancel() {
	t.co.Cancel()
}
