package effects_test

import (
	"context"
	"testing"

	"github.com/on-the-ground/sourcebus/effects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(co *effects.Co, args ...any) (any, error) { return nil, nil }

func TestFactories_BuildInertDescriptors(t *testing.T) {
	h := effects.NewHandler(noop)
	inc := func(_ context.Context, args ...any) (any, error) { return nil, nil }

	cases := []struct {
		eff  effects.Effect
		kind effects.Kind
	}{
		{effects.OnEvent("tick", h), effects.KindRegisterHandler},
		{effects.OffEvent(effects.Subscription{Event: "tick", ID: "1"}), effects.KindRemoveHandler},
		{effects.Emit("tick", 1, "a"), effects.KindEmitEvent},
		{effects.OnCommand("inc", inc), effects.KindRegisterCommand},
		{effects.Command("inc", 1), effects.KindInvokeCommand},
		{effects.Register(noop, 1), effects.KindForkSource},
		{effects.NewSource("lookup", noop), effects.KindRegisterSource},
		{effects.RunSource("lookup", 1), effects.KindForkNamedSource},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, tc.eff.Kind())
		assert.NoError(t, effects.Validate(tc.eff), "kind %s", tc.kind)
	}

	emit := effects.Emit("ping", 42).(effects.EmitEvent)
	assert.Equal(t, "ping", emit.Event)
	assert.Equal(t, []any{42}, emit.Args)

	reg := effects.OnEvent("tick", h).(effects.RegisterHandler)
	assert.Same(t, h, reg.Handler)
}

func TestValidate_RejectsMalformedEffects(t *testing.T) {
	malformed := []effects.Effect{
		nil,
		effects.OnEvent("tick", nil),
		effects.OnEvent("tick", effects.NewHandler(nil)),
		effects.OffEvent(effects.Subscription{}),
		effects.OnCommand("inc", nil),
		effects.Register(nil),
		effects.NewSource("lookup", nil),
		&effects.EmitEvent{Event: "pointer"},
	}
	for _, eff := range malformed {
		assert.ErrorIs(t, effects.Validate(eff), effects.ErrInvalidOperation, "%#v", eff)
	}
}

func TestValidate_DoesNotCheckNames(t *testing.T) {
	assert.NoError(t, effects.Validate(effects.Emit("")))
	assert.NoError(t, effects.Validate(effects.Command("")))
	assert.NoError(t, effects.Validate(effects.RunSource("")))
}

func TestThread_StepsThroughEffects(t *testing.T) {
	ctx := context.Background()
	th := effects.Start(ctx, func(co *effects.Co, args ...any) (any, error) {
		n, err := effects.Invoke[int](co, "double", effects.MustArg[int](args, 0))
		if err != nil {
			return nil, err
		}
		return n + 1, nil
	}, 20)
	defer th.Cancel()

	st, err := th.Step(ctx, effects.Result{})
	require.NoError(t, err)
	require.False(t, st.Done)
	cmd, ok := st.Effect.(effects.InvokeCommand)
	require.True(t, ok)
	assert.Equal(t, "double", cmd.Name)
	assert.Equal(t, []any{20}, cmd.Args)

	st, err = th.Step(ctx, effects.ResultFrom(40, nil))
	require.NoError(t, err)
	require.True(t, st.Done)
	assert.Equal(t, 41, st.Result.Value)
	assert.NoError(t, st.Result.Err)
}

func TestThread_InjectedFailureReachesSource(t *testing.T) {
	ctx := context.Background()
	th := effects.Start(ctx, func(co *effects.Co, _ ...any) (any, error) {
		if _, err := co.Yield(effects.Command("missing")); err != nil {
			return "caught", nil
		}
		return "not caught", nil
	})
	defer th.Cancel()

	_, err := th.Step(ctx, effects.Result{})
	require.NoError(t, err)

	st, err := th.Step(ctx, effects.ResultFrom(nil, effects.ErrUnknownCommand))
	require.NoError(t, err)
	assert.Equal(t, "caught", st.Result.Value)
}

func TestThread_PanicIsSourcePanic(t *testing.T) {
	ctx := context.Background()
	th := effects.Start(ctx, func(co *effects.Co, _ ...any) (any, error) {
		panic("broken source")
	})

	st, err := th.Step(ctx, effects.Result{})
	require.NoError(t, err)
	assert.True(t, st.Done)
	assert.ErrorIs(t, st.Result.Err, effects.ErrSourcePanic)
}

func TestThread_CoExposesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	th := effects.Start(ctx, func(co *effects.Co, _ ...any) (any, error) {
		return co.Context().Value(key{}), nil
	})

	st, err := th.Step(ctx, effects.Result{})
	require.NoError(t, err)
	assert.Equal(t, "v", st.Result.Value)
}
