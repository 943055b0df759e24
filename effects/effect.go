package effects

import "fmt"

// Kind tags an Effect with the operation it requests.
type Kind string

const (
	KindRegisterHandler Kind = "register-handler"
	KindRemoveHandler   Kind = "remove-handler"
	KindEmitEvent       Kind = "emit-event"
	KindRegisterCommand Kind = "register-command"
	KindInvokeCommand   Kind = "invoke-command"
	KindForkSource      Kind = "fork-source"
	KindRegisterSource  Kind = "register-source"
	KindForkNamedSource Kind = "fork-named-source"
)

// Effect is an inert request for the interpreter to perform work.
//
// Effect is a sealed interface: only the variants declared in this package
// implement it, and the interpreter dispatches on their concrete type.
type Effect interface {
	Kind() Kind
	sealedEffect()
}

// RegisterHandler subscribes Handler to Event. Resumes with a Subscription.
type RegisterHandler struct {
	Event   string
	Handler *Handler
}

func (RegisterHandler) Kind() Kind    { return KindRegisterHandler }
func (RegisterHandler) sealedEffect() {}

// RemoveHandler cancels a Subscription. Resumes with whether it was still active.
type RemoveHandler struct {
	Subscription Subscription
}

func (RemoveHandler) Kind() Kind    { return KindRemoveHandler }
func (RemoveHandler) sealedEffect() {}

// EmitEvent fans Args out to every handler of Event. Resumes with the number of handlers notified.
type EmitEvent struct {
	Event string
	Args  []any
}

func (EmitEvent) Kind() Kind    { return KindEmitEvent }
func (EmitEvent) sealedEffect() {}

// RegisterCommand installs Fn as the only handler of command Name.
type RegisterCommand struct {
	Name string
	Fn   CommandFunc
}

func (RegisterCommand) Kind() Kind    { return KindRegisterCommand }
func (RegisterCommand) sealedEffect() {}

// InvokeCommand calls command Name with Args. Resumes with the command's result.
type InvokeCommand struct {
	Name string
	Args []any
}

func (InvokeCommand) Kind() Kind    { return KindInvokeCommand }
func (InvokeCommand) sealedEffect() {}

// ForkSource starts Source(Args...) as an independent coroutine. Resumes with its Task.
type ForkSource struct {
	Source Source
	Args   []any
}

func (ForkSource) Kind() Kind    { return KindForkSource }
func (ForkSource) sealedEffect() {}

// RegisterSource stores Source under Name, replacing any earlier source of that name.
type RegisterSource struct {
	Name   string
	Source Source
}

func (RegisterSource) Kind() Kind    { return KindRegisterSource }
func (RegisterSource) sealedEffect() {}

// ForkNamedSource forks the source registered under Name. Resumes with its Task.
type ForkNamedSource struct {
	Name string
	Args []any
}

func (ForkNamedSource) Kind() Kind    { return KindForkNamedSource }
func (ForkNamedSource) sealedEffect() {}

// OnEvent subscribes h to the named event.
// Subscribing the same handler to the same event again yields the existing subscription.
func OnEvent(name string, h *Handler) Effect {
	return RegisterHandler{Event: name, Handler: h}
}

// Subscribe is shorthand for OnEvent(name, NewHandler(src)).
func Subscribe(name string, src Source) Effect {
	return OnEvent(name, NewHandler(src))
}

// OffEvent cancels a subscription obtained from OnEvent.
func OffEvent(sub Subscription) Effect {
	return RemoveHandler{Subscription: sub}
}

// Emit publishes an event. Whether a handler exists is only checked when it is interpreted.
func Emit(name string, args ...any) Effect {
	return EmitEvent{Event: name, Args: args}
}

// OnCommand registers fn as the handler of the named command.
func OnCommand(name string, fn CommandFunc) Effect {
	return RegisterCommand{Name: name, Fn: fn}
}

// Command invokes the named command.
func Command(name string, args ...any) Effect {
	return InvokeCommand{Name: name, Args: args}
}

// Register starts src(args...) as an independent coroutine that the caller does not await.
func Register(src Source, args ...any) Effect {
	return ForkSource{Source: src, Args: args}
}

// NewSource makes src startable by name with RunSource.
func NewSource(name string, src Source) Effect {
	return RegisterSource{Name: name, Source: src}
}

// RunSource forks the source registered under name, like Register does for a Source value.
func RunSource(name string, args ...any) Effect {
	return ForkNamedSource{Name: name, Args: args}
}

// Validate reports whether eff is well formed enough to be interpreted.
// Names are not validated.
func Validate(eff Effect) error {
	switch e := eff.(type) {
	case nil:
		return fmt.Errorf("%w: nil effect", ErrInvalidOperation)
	case RegisterHandler:
		if e.Handler == nil || e.Handler.source == nil {
			return fmt.Errorf("%w: %s %q without handler", ErrInvalidOperation, e.Kind(), e.Event)
		}
	case RemoveHandler:
		if e.Subscription.ID == "" {
			return fmt.Errorf("%w: %s without subscription", ErrInvalidOperation, e.Kind())
		}
	case EmitEvent, InvokeCommand, ForkNamedSource:
	case RegisterCommand:
		if e.Fn == nil {
			return fmt.Errorf("%w: %s %q without function", ErrInvalidOperation, e.Kind(), e.Name)
		}
	case ForkSource:
		if e.Source == nil {
			return fmt.Errorf("%w: %s without source", ErrInvalidOperation, e.Kind())
		}
	case RegisterSource:
		if e.Source == nil {
			return fmt.Errorf("%w: %s %q without source", ErrInvalidOperation, e.Kind(), e.Name)
		}
	default:
		return fmt.Errorf("%w: unsupported effect %T", ErrInvalidOperation, eff)
	}
	return nil
}
