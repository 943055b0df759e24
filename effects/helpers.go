package effects

import (
	"github.com/on-the-ground/sourcebus/shared/helper"
)

// Invoke yields Command(name, args...) and asserts its result to T.
func Invoke[T any](co *Co, name string, args ...any) (T, error) {
	return helper.GetTypedValueOf[T](func() (any, error) {
		return co.Yield(Command(name, args...))
	})
}

// Listen yields OnEvent(name, h) and returns the resulting subscription.
func Listen(co *Co, name string, h *Handler) (Subscription, error) {
	return helper.GetTypedValueOf[Subscription](func() (any, error) {
		return co.Yield(OnEvent(name, h))
	})
}

// Fork yields Register(src, args...) and returns the handle of the forked coroutine.
func Fork(co *Co, src Source, args ...any) (Task, error) {
	return helper.GetTypedValueOf[Task](func() (any, error) {
		return co.Yield(Register(src, args...))
	})
}

// Arg reads the i-th argument of a source or command as a T.
func Arg[T any](args []any, i int) (T, error) {
	return helper.TypedAt[T](args, i)
}

// MustArg is the panic-on-failure variant of Arg.
func MustArg[T any](args []any, i int) T {
	v, err := Arg[T](args, i)
	if err != nil {
		panic(err)
	}
	return v
}
