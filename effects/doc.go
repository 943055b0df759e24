// Package effects is the effect algebra of sourcebus.
//
// A Source is ordinary Go code that never touches a registry, a goroutine or
// another source directly. Instead it yields inert effect values through its
// Co handle, and an interpreter (see package bus) performs them and resumes
// the source with the outcome:
//
//   - OnEvent / Subscribe / OffEvent: manage event subscriptions
//   - Emit: fan an event out to its subscribers
//   - OnCommand / Command: register and invoke point-to-point commands
//   - Register: start another source as an independent coroutine
//   - NewSource / RunSource: name a source and fork it by name
//
// Effects are plain data. Building one has no side effect, so tests can
// construct and inspect them without running anything.
//
// A failure injected by the interpreter is the error returned by Co.Yield,
// which the source may handle like any other error.
//
// Example:
//
//	func add(co *effects.Co, _ ...any) (any, error) {
//	    inc := func(_ context.Context, args ...any) (any, error) {
//	        return effects.MustArg[int](args, 0) + 1, nil
//	    }
//	    if _, err := co.Yield(effects.OnCommand("add", inc)); err != nil {
//	        return nil, err
//	    }
//	    return effects.Invoke[int](co, "add", 1)
//	}
package effects
