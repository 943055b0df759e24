// Package supervisor owns the goroutines of forked coroutines.
//
// A fork is detached from whoever started it: its result is only observable
// through its Task handle, and its failure is reported to the supervisor,
// never to the forking source.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/on-the-ground/sourcebus/effects"
	"github.com/rickb777/date/v2/timespan"
	"go.uber.org/multierr"
)

var (
	// ErrClosed is the result of a task spawned after Close.
	ErrClosed = errors.New("supervisor closed")

	// ErrTaskPanic marks a task function that panicked outside of any source.
	ErrTaskPanic = errors.New("panic in forked task")
)

// Failure describes a forked task that ended with an error.
type Failure struct {
	TaskID string
	Origin string
	Err    error
	Span   timespan.TimeSpan
}

func (f Failure) Error() string {
	return fmt.Sprintf("%v: %s (task %s): %v", effects.ErrForkFailed, f.Origin, f.TaskID, f.Err)
}

func (f Failure) Unwrap() []error {
	return []error{effects.ErrForkFailed, f.Err}
}

var _ effects.Task = (*Task)(nil)

// Task is the handle of one forked goroutine.
type Task struct {
	id     string
	origin string
	done   chan struct{}
	result effects.Result
}

func (t *Task) ID() string     { return t.id }
func (t *Task) Origin() string { return t.origin }

func (t *Task) Done() <-chan struct{} { return t.done }

// Wait joins the task.
func (t *Task) Wait(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		return t.result.Value, t.result.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *Task) finish(res effects.Result) {
	t.result = res
	close(t.done)
}

// Supervisor tracks forked tasks, cancels them on Close and reports their failures.
//
// Failures are delivered to the report function by a single worker goroutine,
// in the order they happened. A failing task never waits for report, so report
// may call Wait; it must not call Close.
type Supervisor struct {
	wg       sync.WaitGroup
	mu       sync.Mutex
	children map[string]context.CancelFunc
	failures []error
	closed   bool

	backlog    []Failure
	notify     chan struct{}
	workerDone chan struct{}
}

// New starts the report worker. bufferSize is the initial capacity of the failure backlog.
func New(bufferSize int, report func(Failure)) *Supervisor {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if report == nil {
		report = func(Failure) {}
	}

	s := &Supervisor{
		children:   make(map[string]context.CancelFunc),
		backlog:    make([]Failure, 0, bufferSize),
		notify:     make(chan struct{}, 1),
		workerDone: make(chan struct{}),
	}

	ready := make(chan struct{})
	go func() {
		defer close(s.workerDone)
		close(ready)
		for range s.notify {
			s.drain(report)
		}
		s.drain(report)
	}()
	<-ready

	return s
}

// Spawn runs fn on its own goroutine and returns once that goroutine started.
//
// The task's context keeps parent's values but not its cancellation:
// only Close cancels a fork.
func (s *Supervisor) Spawn(parent context.Context, origin string, fn func(context.Context) (any, error)) *Task {
	task := &Task{
		id:     uuid.NewString(),
		origin: origin,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		task.finish(effects.ResultFrom(nil, ErrClosed))
		return task
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	s.children[task.id] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	ready := make(chan struct{})
	go func() {
		defer s.wg.Done()
		close(ready)

		start := time.Now()
		res := call(ctx, fn)
		cancel()

		s.mu.Lock()
		delete(s.children, task.id)
		shuttingDown := s.closed
		s.mu.Unlock()

		if res.Err != nil && !(shuttingDown && errors.Is(res.Err, context.Canceled)) {
			s.fail(Failure{
				TaskID: task.id,
				Origin: origin,
				Err:    res.Err,
				Span:   timespan.BetweenTimes(start, time.Now()),
			})
		}
		task.finish(res)
	}()
	<-ready

	return task
}

// Active reports how many tasks are still running.
func (s *Supervisor) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.children)
}

// Wait blocks until every running task finished, then returns the failures
// collected since the previous Wait, combined.
//
// When ctx ends first, the goroutine watching the tasks stays until they finish.
func (s *Supervisor) Wait(ctx context.Context) error {
	waitCh := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	failures := s.failures
	s.failures = nil
	s.mu.Unlock()

	return multierr.Combine(failures...)
}

// Close cancels every running task, waits for them and drains the failure queue.
func (s *Supervisor) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancels := make([]context.CancelFunc, 0, len(s.children))
	for _, cancel := range s.children {
		cancels = append(cancels, cancel)
	}
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	s.wg.Wait()
	close(s.notify)
	<-s.workerDone
}

func (s *Supervisor) fail(f Failure) {
	s.mu.Lock()
	s.failures = append(s.failures, f)
	s.backlog = append(s.backlog, f)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Supervisor) drain(report func(Failure)) {
	for {
		s.mu.Lock()
		batch := s.backlog
		s.backlog = nil
		s.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, f := range batch {
			report(f)
		}
	}
}

func call(ctx context.Context, fn func(context.Context) (any, error)) (res effects.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = effects.ResultFrom(nil, fmt.Errorf("%w: %v", ErrTaskPanic, r))
		}
	}()
	return effects.ResultFrom(fn(ctx))
}
