package supervisor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/on-the-ground/sourcebus/bus/internal/supervisor"
	"github.com/on-the-ground/sourcebus/effects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawn_ReturnsBeforeTaskCompletes(t *testing.T) {
	sv := supervisor.New(1, nil)
	defer sv.Close()

	release := make(chan struct{})
	task := sv.Spawn(context.Background(), "slow", func(ctx context.Context) (any, error) {
		<-release
		return "done", nil
	})

	select {
	case <-task.Done():
		t.Fatal("task should still be running")
	default:
	}
	assert.Equal(t, 1, sv.Active())

	close(release)
	v, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", v)
	assert.NotEmpty(t, task.ID())
	assert.Equal(t, "slow", task.Origin())
}

func TestSpawn_FailuresAreReportedAndCollected(t *testing.T) {
	var (
		mu       sync.Mutex
		reported []supervisor.Failure
	)
	sv := supervisor.New(4, func(f supervisor.Failure) {
		mu.Lock()
		reported = append(reported, f)
		mu.Unlock()
	})

	boom := errors.New("boom")
	sv.Spawn(context.Background(), "bad", func(ctx context.Context) (any, error) {
		return nil, boom
	})
	sv.Spawn(context.Background(), "good", func(ctx context.Context) (any, error) {
		return 1, nil
	})

	err := sv.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, effects.ErrForkFailed)
	assert.NoError(t, sv.Wait(context.Background()), "failures are handed out once")

	sv.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reported, 1)
	assert.Equal(t, "bad", reported[0].Origin)
	assert.ErrorIs(t, reported[0], boom)
	assert.GreaterOrEqual(t, reported[0].Span.Duration(), time.Duration(0))
}

func TestSpawn_PanicIsAFailure(t *testing.T) {
	sv := supervisor.New(1, nil)
	defer sv.Close()

	task := sv.Spawn(context.Background(), "panicky", func(ctx context.Context) (any, error) {
		panic("kaput")
	})

	_, err := task.Wait(context.Background())
	assert.ErrorIs(t, err, supervisor.ErrTaskPanic)
	assert.ErrorIs(t, sv.Wait(context.Background()), supervisor.ErrTaskPanic)
}

func TestSpawn_ParentCancellationDoesNotReachTask(t *testing.T) {
	sv := supervisor.New(1, nil)
	defer sv.Close()

	type key struct{}
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), key{}, "kept"))

	task := sv.Spawn(parent, "detached", func(ctx context.Context) (any, error) {
		time.Sleep(20 * time.Millisecond)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return ctx.Value(key{}), nil
	})
	cancel()

	v, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "kept", v)
}

func TestClose_CancelsRunningTasks(t *testing.T) {
	var reports int
	sv := supervisor.New(1, func(supervisor.Failure) { reports++ })

	task := sv.Spawn(context.Background(), "blocked", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	sv.Close()

	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task was not cancelled by Close")
	}
	assert.Zero(t, reports, "shutdown cancellation is not a failure")

	late := sv.Spawn(context.Background(), "late", func(ctx context.Context) (any, error) {
		return nil, nil
	})
	_, err := late.Wait(context.Background())
	assert.ErrorIs(t, err, supervisor.ErrClosed)

	sv.Close()
}

func TestWait_HonoursContext(t *testing.T) {
	sv := supervisor.New(1, nil)
	defer sv.Close()

	sv.Spawn(context.Background(), "blocked", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sv.Wait(ctx), context.DeadlineExceeded)
}

func TestSpawn_SlowReportDoesNotHoldTasks(t *testing.T) {
	var sv *supervisor.Supervisor
	reported := make(chan supervisor.Failure, 3)
	sv = supervisor.New(1, func(f supervisor.Failure) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = sv.Wait(ctx)
		reported <- f
	})
	defer sv.Close()

	boom := errors.New("boom")
	tasks := make([]*supervisor.Task, 0, 3)
	for i := 0; i < 3; i++ {
		tasks = append(tasks, sv.Spawn(context.Background(), "bad", func(ctx context.Context) (any, error) {
			return nil, boom
		}))
	}

	for _, task := range tasks {
		select {
		case <-task.Done():
		case <-time.After(time.Second):
			t.Fatal("failed task is held by the report hook")
		}
	}
	for i := 0; i < 3; i++ {
		select {
		case f := <-reported:
			assert.ErrorIs(t, f, boom)
		case <-time.After(2 * time.Second):
			t.Fatal("failure was not reported")
		}
	}
}
