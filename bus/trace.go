package bus

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/on-the-ground/sourcebus/effects"
)

// Emission is one event emitted by a traced source.
type Emission struct {
	Event string
	Args  []any
	At    time.Time
}

// Trace records the events a traced source emits. It is safe for concurrent use.
type Trace struct {
	mu   sync.Mutex
	last map[string]Emission
	log  []Emission
}

func NewTrace() *Trace {
	return &Trace{last: make(map[string]Emission)}
}

// Record appends an emission. A later emission of the same event shadows the earlier one in Lookup.
func (t *Trace) Record(event string, args []any) {
	e := Emission{Event: event, Args: slices.Clone(args), At: time.Now()}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[event] = e
	t.log = append(t.log, e)
}

// Lookup returns the last emission of event.
func (t *Trace) Lookup(event string) (Emission, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.last[event]
	return e, ok
}

// Args returns the arguments of the last emission of event, or nil.
func (t *Trace) Args(event string) []any {
	e, _ := t.Lookup(event)
	return e.Args
}

func (t *Trace) Emitted(event string) bool {
	_, ok := t.Lookup(event)
	return ok
}

// Events maps every emitted event to its last arguments.
func (t *Trace) Events() map[string][]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string][]any, len(t.last))
	for name, e := range t.last {
		out[name] = e.Args
	}
	return out
}

// Emissions returns every emission in order.
func (t *Trace) Emissions() []Emission {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.log)
}

func (t *Trace) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.log)
}

// TraceResult is the outcome of a traced run.
type TraceResult struct {
	Value  any
	Err    error
	Events *Trace
}

// TraceRun runs src like Run while recording the events it emits.
// Handlers are still dispatched; events emitted by them or by forks are not recorded.
func (b *Bus) TraceRun(ctx context.Context, src effects.Source, args ...any) <-chan TraceResult {
	return b.TraceRunWith(ctx, NewTrace(), src, args...)
}

// TraceRunWith is TraceRun recording into tr, which may be shared between runs.
func (b *Bus) TraceRunWith(ctx context.Context, tr *Trace, src effects.Source, args ...any) <-chan TraceResult {
	if tr == nil {
		tr = NewTrace()
	}
	resultCh := make(chan TraceResult, 1)
	go func() {
		defer close(resultCh)
		v, err := b.drive(ctx, "trace", src, args, tr)
		resultCh <- TraceResult{Value: v, Err: err, Events: tr}
	}()
	return resultCh
}
