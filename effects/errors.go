package effects

import (
	"errors"

	"github.com/on-the-ground/sourcebus/effects/internal/coroutine"
)

var (
	// ErrInvalidOperation rejects a run whose source yielded a malformed effect.
	// It is never injected into the source.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrDuplicateCommand is injected when a command name is already registered.
	ErrDuplicateCommand = errors.New("not allowed more than one handler per command")

	// ErrUnknownCommand is injected when invoking a command nobody registered.
	ErrUnknownCommand = errors.New("command not registered")

	// ErrUnknownSource is injected when running a source name nobody registered.
	ErrUnknownSource = errors.New("source not registered")

	// ErrCommandFailed wraps the failure returned or raised by a command function.
	ErrCommandFailed = errors.New("command execution failed")

	// ErrCommandPanic marks a command function that panicked.
	ErrCommandPanic = errors.New("command panicked")

	// ErrUnhandledEvent is injected when emitting an event without subscribers on a strict bus.
	ErrUnhandledEvent = errors.New("event has no handlers")

	// ErrForkFailed marks the failure of a forked coroutine as seen by its supervisor.
	ErrForkFailed = errors.New("forked source failed")

	// ErrSourcePanic is the failure of a source that panicked.
	ErrSourcePanic = coroutine.ErrPanic

	// ErrCancelled is the failure of a source unwound before it finished.
	ErrCancelled = coroutine.ErrCancelled
)
