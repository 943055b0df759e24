package bus

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/on-the-ground/sourcebus/bus/internal/registry"
	"github.com/on-the-ground/sourcebus/bus/internal/supervisor"
	"github.com/on-the-ground/sourcebus/config"
	"github.com/on-the-ground/sourcebus/effects"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const (
	// EventInit is emitted by Init.
	EventInit = "init"

	// EventEmitted receives (name, args...) for every emission when echoing is enabled.
	EventEmitted = "sourcebus.event-emitted"

	// CommandClearCommands empties the command registry, built-in commands excepted.
	CommandClearCommands = "sourcebus.clear-commands"

	// CommandClearHandlers empties the event registry.
	CommandClearHandlers = "sourcebus.clear-handlers"
)

// ErrMissingInit is returned by Init when nothing subscribed to EventInit.
var ErrMissingInit = errors.New("missing init handler")

// ForkFailure describes a forked coroutine that failed.
type ForkFailure = supervisor.Failure

// Bus owns a command registry, an event registry, a registry of named sources
// and the coroutines started through it. Sources running on one bus
// communicate only through it.
type Bus struct {
	id     string
	cfg    config.Config
	logger *zap.Logger
	tracer trace.Tracer

	commands *registry.Commands[effects.CommandFunc]
	events   *registry.Events[*effects.Handler]
	sources  *registry.Commands[effects.Source]
	sv       *supervisor.Supervisor

	ctx    context.Context
	cancel context.CancelFunc
}

type options struct {
	cfg           config.Config
	logger        *zap.Logger
	tp            trace.TracerProvider
	onForkFailure func(ForkFailure)
}

type Option func(*options)

func WithConfig(cfg config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tp = tp
		}
	}
}

// WithForkFailureHook is called, from a single goroutine and in order, for every failed fork.
func WithForkFailureHook(fn func(ForkFailure)) Option {
	return func(o *options) { o.onForkFailure = fn }
}

// New returns a bus with empty registries, apart from the built-in commands.
// Close must be called to release its forks.
func New(opts ...Option) *Bus {
	o := options{
		cfg:    config.Default(),
		logger: zap.NewNop(),
		tp:     noop.NewTracerProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	cfg := o.cfg.Normalize()

	b := &Bus{
		id:       uuid.NewString(),
		cfg:      cfg,
		logger:   o.logger,
		tracer:   o.tp.Tracer(instrumentationName),
		commands: registry.NewCommands[effects.CommandFunc](cfg.Shards),
		events:   registry.NewEvents[*effects.Handler](cfg.Shards),
		sources:  registry.NewCommands[effects.Source](cfg.Shards),
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.sv = supervisor.New(cfg.FailureBuffer, b.reportForkFailure(o.onForkFailure))
	b.installBuiltins()

	b.logger.Debug("created bus",
		zap.String("busId", b.id),
		zap.Int("shards", cfg.Shards),
		zap.Bool("strictEvents", cfg.StrictEvents),
		zap.Bool("echoEmits", cfg.EchoEmits),
	)
	return b
}

func (b *Bus) ID() string { return b.id }

func (b *Bus) Config() config.Config { return b.cfg }

// Wait blocks until every forked coroutine finished and returns their failures
// since the previous Wait, combined.
func (b *Bus) Wait(ctx context.Context) error {
	return b.sv.Wait(ctx)
}

// Close cancels every forked coroutine and waits for them to return.
// Callbacks made with G fail once the bus is closed.
func (b *Bus) Close() {
	b.cancel()
	b.sv.Close()
	if err := b.logger.Sync(); err != nil {
		b.logger.Debug("failed to sync logger", zap.Error(err))
	}
	b.logger.Debug("closed bus", zap.String("busId", b.id))
}

// ClearCommands removes every registered command. Built-in commands stay
// available throughout and are restored if they were mocked.
func (b *Bus) ClearCommands() {
	b.commands.Clear(CommandClearCommands, CommandClearHandlers)
	b.installBuiltins()
	b.logger.Debug("cleared commands", zap.String("busId", b.id))
}

// ClearHandlers removes every event subscription.
func (b *Bus) ClearHandlers() {
	b.events.Clear()
	b.logger.Debug("cleared handlers", zap.String("busId", b.id))
}

// Reset clears every registry, named sources included.
func (b *Bus) Reset() {
	b.ClearCommands()
	b.ClearHandlers()
	b.sources.Clear()
}

// Mock installs fn as the handler of the named command, replacing any registration.
func (b *Bus) Mock(name string, fn effects.CommandFunc) {
	b.commands.Replace(name, fn)
	b.logger.Debug("mocked command", zap.String("busId", b.id), zap.String("command", name))
}

// Unregister removes the named command so the name can be registered again.
func (b *Bus) Unregister(name string) bool {
	removed := b.commands.Remove(name)
	if removed {
		b.logger.Debug("unregistered command", zap.String("busId", b.id), zap.String("command", name))
	}
	return removed
}

// Unsubscribe cancels a subscription from outside of any source.
func (b *Bus) Unsubscribe(sub effects.Subscription) bool {
	return b.events.Unsubscribe(sub.Event, sub.ID)
}

// Commands lists the registered command names, sorted.
func (b *Bus) Commands() []string {
	return b.commands.Names()
}

// Subscribers counts the handlers subscribed to event.
func (b *Bus) Subscribers(event string) int {
	return b.events.Count(event)
}

// Sources lists the names registered with effects.NewSource, sorted.
func (b *Bus) Sources() []string {
	return b.sources.Names()
}

// Forks counts the forked coroutines still running.
func (b *Bus) Forks() int {
	return b.sv.Active()
}

func (b *Bus) installBuiltins() {
	b.commands.Replace(CommandClearCommands, func(context.Context, ...any) (any, error) {
		b.ClearCommands()
		return nil, nil
	})
	b.commands.Replace(CommandClearHandlers, func(context.Context, ...any) (any, error) {
		b.ClearHandlers()
		return nil, nil
	})
}

func (b *Bus) reportForkFailure(hook func(ForkFailure)) func(ForkFailure) {
	return func(f ForkFailure) {
		b.logger.Error("forked source failed",
			zap.String("busId", b.id),
			zap.String("taskId", f.TaskID),
			zap.String("origin", f.Origin),
			zap.Duration("ran", f.Span.Duration()),
			zap.Error(f.Err),
		)
		if hook != nil {
			hook(f)
		}
	}
}
