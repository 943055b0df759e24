package bus

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/on-the-ground/sourcebus/effects"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/on-the-ground/sourcebus/bus"

var errDeferredClosed = errors.New("deferred result channel closed")

// Run drives src(args...) to completion on its own goroutine.
// The channel receives exactly one Result and is then closed.
func (b *Bus) Run(ctx context.Context, src effects.Source, args ...any) <-chan effects.Result {
	resultCh := make(chan effects.Result, 1)
	go func() {
		defer close(resultCh)
		resultCh <- effects.ResultFrom(b.drive(ctx, "run", src, args, nil))
	}()
	return resultCh
}

// Exec drives src(args...) to completion and returns its result.
func (b *Bus) Exec(ctx context.Context, src effects.Source, args ...any) (any, error) {
	return b.drive(ctx, "run", src, args, nil)
}

// G binds src to the bus so it can be handed to callback based code.
// Every call starts a fresh run; runs are cancelled when the bus is closed.
func (b *Bus) G(src effects.Source) func(args ...any) <-chan effects.Result {
	return func(args ...any) <-chan effects.Result {
		return b.Run(b.ctx, src, args...)
	}
}

// Init emits EventInit with args and waits until it is dispatched.
func (b *Bus) Init(ctx context.Context, args ...any) error {
	if b.events.Count(EventInit) == 0 {
		return ErrMissingInit
	}
	_, err := b.Exec(ctx, func(co *effects.Co, _ ...any) (any, error) {
		return co.Yield(effects.Emit(EventInit, args...))
	})
	return err
}

// drive is the interpreter loop. Exactly one of the loop and the source runs at a time.
func (b *Bus) drive(ctx context.Context, op string, src effects.Source, args []any, tr *Trace) (res any, err error) {
	ctx, span := b.tracer.Start(ctx, "sourcebus."+op, trace.WithAttributes(
		attribute.String("sourcebus.bus_id", b.id),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if src == nil {
		return nil, fmt.Errorf("%w: nil source", effects.ErrInvalidOperation)
	}

	th := effects.Start(ctx, src, args...)
	defer th.Cancel()

	var in effects.Result
	for {
		st, err := th.Step(ctx, in)
		if err != nil {
			return nil, err
		}
		if st.Done {
			return st.Result.Value, st.Result.Err
		}

		if err := effects.Validate(st.Effect); err != nil {
			b.logger.Error("rejected malformed effect", zap.String("busId", b.id), zap.Error(err))
			return nil, err
		}
		span.AddEvent(string(st.Effect.Kind()), trace.WithAttributes(
			attribute.String("sourcebus.name", nameOf(st.Effect)),
		))
		if emit, ok := st.Effect.(effects.EmitEvent); ok && tr != nil {
			tr.Record(emit.Event, emit.Args)
		}

		in = b.interpret(ctx, st.Effect)
	}
}

// interpret performs one well formed effect and returns what resumes the source.
func (b *Bus) interpret(ctx context.Context, eff effects.Effect) effects.Result {
	switch e := eff.(type) {
	case effects.RegisterHandler:
		id, added := b.events.Subscribe(e.Event, e.Handler)
		if added {
			b.logger.Debug("subscribed handler", zap.String("busId", b.id), zap.String("event", e.Event), zap.String("subscription", id))
		}
		return effects.ResultFrom(effects.Subscription{Event: e.Event, ID: id}, nil)

	case effects.RemoveHandler:
		return effects.ResultFrom(b.Unsubscribe(e.Subscription), nil)

	case effects.EmitEvent:
		return b.emit(ctx, e.Event, e.Args)

	case effects.RegisterCommand:
		if !b.commands.Register(e.Name, e.Fn) {
			return effects.ResultFrom(nil, fmt.Errorf("%w: %q", effects.ErrDuplicateCommand, e.Name))
		}
		b.logger.Debug("registered command", zap.String("busId", b.id), zap.String("command", e.Name))
		return effects.ResultFrom(nil, nil)

	case effects.InvokeCommand:
		return b.invoke(ctx, e.Name, e.Args)

	case effects.ForkSource:
		return effects.ResultFrom(b.fork(ctx, "register", e.Source, e.Args), nil)

	case effects.RegisterSource:
		b.sources.Replace(e.Name, e.Source)
		b.logger.Debug("registered source", zap.String("busId", b.id), zap.String("source", e.Name))
		return effects.ResultFrom(nil, nil)

	case effects.ForkNamedSource:
		src, ok := b.sources.Lookup(e.Name)
		if !ok {
			return effects.ResultFrom(nil, fmt.Errorf("%w for [SOURCE: %s]", effects.ErrUnknownSource, e.Name))
		}
		return effects.ResultFrom(b.fork(ctx, "source:"+e.Name, src, e.Args), nil)
	}
	panic("exhaustive match")
}

func (b *Bus) emit(ctx context.Context, event string, args []any) effects.Result {
	if b.cfg.EchoEmits && event != EventEmitted {
		b.fanOut(ctx, EventEmitted, append([]any{event}, args...))
	}

	n := b.fanOut(ctx, event, args)
	if n == 0 && b.cfg.StrictEvents {
		return effects.ResultFrom(nil, fmt.Errorf("%w: %q", effects.ErrUnhandledEvent, event))
	}
	return effects.ResultFrom(n, nil)
}

// fanOut forks one coroutine per handler subscribed when the event is dispatched.
func (b *Bus) fanOut(ctx context.Context, event string, args []any) int {
	handlers := b.events.Handlers(event)
	for _, h := range handlers {
		b.fork(ctx, "event:"+event, h.Source(), slices.Clone(args))
	}
	return len(handlers)
}

func (b *Bus) fork(ctx context.Context, origin string, src effects.Source, args []any) effects.Task {
	task := b.sv.Spawn(ctx, origin, func(ctx context.Context) (any, error) {
		return b.drive(ctx, "fork", src, args, nil)
	})
	b.logger.Debug("forked source", zap.String("busId", b.id), zap.String("taskId", task.ID()), zap.String("origin", task.Origin()))
	return task
}

func (b *Bus) invoke(ctx context.Context, name string, args []any) effects.Result {
	fn, ok := b.commands.Lookup(name)
	if !ok {
		return effects.ResultFrom(nil, fmt.Errorf("%w for [COMMAND: %s]", effects.ErrUnknownCommand, name))
	}

	v, err := callCommand(ctx, fn, args)
	if err == nil {
		switch deferred := v.(type) {
		case <-chan effects.Result:
			v, err = await(ctx, deferred)
		case chan effects.Result:
			v, err = await(ctx, deferred)
		}
	}
	if err != nil {
		return effects.ResultFrom(nil, fmt.Errorf("%w: %s: %w", effects.ErrCommandFailed, name, err))
	}
	return effects.ResultFrom(v, nil)
}

func callCommand(ctx context.Context, fn effects.CommandFunc, args []any) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("%w: %v", effects.ErrCommandPanic, r)
		}
	}()
	return fn(ctx, args...)
}

func await(ctx context.Context, resultCh <-chan effects.Result) (any, error) {
	select {
	case res, ok := <-resultCh:
		if !ok {
			return nil, errDeferredClosed
		}
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func nameOf(eff effects.Effect) string {
	switch e := eff.(type) {
	case effects.RegisterHandler:
		return e.Event
	case effects.RemoveHandler:
		return e.Subscription.Event
	case effects.EmitEvent:
		return e.Event
	case effects.RegisterCommand:
		return e.Name
	case effects.InvokeCommand:
		return e.Name
	case effects.RegisterSource:
		return e.Name
	case effects.ForkNamedSource:
		return e.Name
	}
	return ""
}
