// Package bus interprets the effects yielded by sources.
//
// A Bus owns a command registry (one handler per name), an event registry
// (any number of handlers per name) and a supervisor for forked coroutines.
// Run and Exec drive a source to completion, performing each effect it yields
// and resuming it with the outcome; failures of an effect are injected as the
// error returned by Co.Yield. Every event handler and every Register'ed source
// runs as a detached fork whose failure is reported to the supervisor, not to
// whoever emitted or forked it.
//
// TraceRun behaves like Run but records the events the source emits, which is
// what tests assert on:
//
//	b := bus.New()
//	defer b.Close()
//
//	res := <-b.TraceRun(ctx, func(co *effects.Co, _ ...any) (any, error) {
//	    return co.Yield(effects.Emit("ping", 42))
//	})
//	res.Events.Args("ping") // [42]
package bus
