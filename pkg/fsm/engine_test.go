package fsm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/garyjia/statecraft/pkg/machine"
)

type shipContext struct {
	inOrbit    bool
	enginesOff bool
	commit     bool
	trace      []string
}

func (s *shipContext) record(step string) {
	s.trace = append(s.trace, step)
}

type BurnRequest struct {
	Power int
}

type FlightData struct {
	Checkpoints int
}

type PrepData struct {
	Checks int
}

func hatchDefinition(t *testing.T) *machine.Definition {
	t.Helper()
	def, err := machine.NewBuilder("hatch").
		Initial("Closed").
		States(machine.Leaf("Closed"), machine.Leaf("Open")).
		Event("open").Guards("in_orbit", "engines_off").Permit("Closed", "Open").
		Define()
	require.NoError(t, err)
	return def
}

func hatchHooks() *Hooks[shipContext] {
	return NewHooks[shipContext]().
		Guard("in_orbit", func(_ context.Context, c *shipContext, _ any) bool {
			c.record("in_orbit")
			return c.inOrbit
		}).
		Guard("engines_off", func(_ context.Context, c *shipContext, _ any) bool {
			c.record("engines_off")
			return c.enginesOff
		})
}

func TestFire_GuardFailureKeepsInstance(t *testing.T) {
	engine, err := NewEngine(hatchDefinition(t), hatchHooks())
	require.NoError(t, err)

	inst := engine.New(shipContext{inOrbit: false, enginesOff: true})
	got, err := engine.Fire(context.Background(), inst, "open", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGuardFailed)
	guard, ok := GuardName(err)
	assert.True(t, ok)
	assert.Equal(t, "in_orbit", guard)

	assert.Same(t, inst, got)
	assert.Equal(t, "Closed", got.State())
	assert.False(t, got.Spent())
	// the first failing guard short-circuits
	assert.Equal(t, []string{"in_orbit"}, got.Context().trace)
}

func TestFire_GuardsPass(t *testing.T) {
	engine := MustEngine(hatchDefinition(t), hatchHooks())

	inst := engine.New(shipContext{inOrbit: true, enginesOff: true})
	next, err := engine.Fire(context.Background(), inst, "open", nil)

	require.NoError(t, err)
	assert.Equal(t, "Open", next.State())
	assert.Equal(t, []string{"in_orbit", "engines_off"}, next.Context().trace)
	assert.True(t, inst.Spent())
}

func TestFire_GuardAndSemantics(t *testing.T) {
	tests := []struct {
		name       string
		inOrbit    bool
		enginesOff bool
		guard      string
	}{
		{"both pass", true, true, ""},
		{"first fails", false, true, "in_orbit"},
		{"second fails", true, false, "engines_off"},
		{"both fail", false, false, "in_orbit"},
	}

	engine := MustEngine(hatchDefinition(t), hatchHooks())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := engine.New(shipContext{inOrbit: tt.inOrbit, enginesOff: tt.enginesOff})
			got, err := engine.Fire(context.Background(), inst, "open", nil)
			if tt.guard == "" {
				require.NoError(t, err)
				assert.Equal(t, "Open", got.State())
				return
			}
			guard, ok := GuardName(err)
			require.True(t, ok)
			assert.Equal(t, tt.guard, guard)
			assert.Equal(t, "Closed", got.State())
		})
	}
}

func TestFire_UnlessGuard(t *testing.T) {
	def, err := machine.NewBuilder("hatch").
		Initial("Closed").
		States(machine.Leaf("Closed"), machine.Leaf("Open")).
		Event("open").Unless("locked").Permit("Closed", "Open").
		Define()
	require.NoError(t, err)

	locked := true
	engine := MustEngine(def, NewHooks[shipContext]().
		Guard("locked", func(context.Context, *shipContext, any) bool { return locked }))

	inst := engine.New(shipContext{})
	got, err := engine.Fire(context.Background(), inst, "open", nil)
	guard, ok := GuardName(err)
	require.True(t, ok)
	assert.Equal(t, "locked", guard)
	assert.Equal(t, "Closed", got.State())

	locked = false
	got, err = engine.Fire(context.Background(), got, "open", nil)
	require.NoError(t, err)
	assert.Equal(t, "Open", got.State())
}

func TestFire_InvalidTransition(t *testing.T) {
	engine := MustEngine(hatchDefinition(t), hatchHooks())

	inst := engine.New(shipContext{inOrbit: true, enginesOff: true})
	inst, err := engine.Fire(context.Background(), inst, "open", nil)
	require.NoError(t, err)

	got, err := engine.Fire(context.Background(), inst, "open", nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Same(t, inst, got)

	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, KindInvalidTransition, te.Kind)
	assert.Equal(t, "Open", te.State)
	assert.Equal(t, "open", te.Event)

	_, err = engine.Fire(context.Background(), inst, "explode", nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestFire_StaleInstance(t *testing.T) {
	engine := MustEngine(hatchDefinition(t), hatchHooks())

	inst := engine.New(shipContext{inOrbit: true, enginesOff: true})
	_, err := engine.Fire(context.Background(), inst, "open", nil)
	require.NoError(t, err)

	_, err = engine.Fire(context.Background(), inst, "open", nil)
	assert.ErrorIs(t, err, ErrStaleInstance)
}

func flightDefinition(t *testing.T) *machine.Definition {
	t.Helper()
	def, err := machine.NewBuilder("flight").
		Initial("Standby").
		States(
			machine.Leaf("Standby"),
			machine.Super("Flight",
				machine.Leaf("LaunchPrep").WithStorage("PrepData"),
				machine.Leaf("Launching"),
			).WithStorage("FlightData"),
			machine.Leaf("Orbit"),
		).
		Event("launch").Permit("Standby", "Flight").
		Event("recheck").Permit("LaunchPrep", "LaunchPrep").
		Event("ignite").Payload("BurnRequest").Guards("fuel_ready").Permit("LaunchPrep", "Launching").
		Event("abort").Permit("Flight", "Standby").
		Event("reach_orbit").Permit("Launching", "Orbit").
		Define()
	require.NoError(t, err)
	return def
}

func flightHooks() *Hooks[shipContext] {
	return NewHooks[shipContext]().
		Guard("fuel_ready", GuardFor(func(_ context.Context, _ *shipContext, req BurnRequest) bool {
			return req.Power <= 5
		})).
		Storage("Flight", StorageOf[FlightData]()).
		Storage("LaunchPrep", StorageOf[PrepData]())
}

func fire(t *testing.T, e *Engine[shipContext], inst *Instance[shipContext], event string, payload any) *Instance[shipContext] {
	t.Helper()
	next, err := e.Fire(context.Background(), inst, event, payload)
	require.NoError(t, err)
	return next
}

func TestTypedHookAdapters(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		want    int
	}{
		{"typed payload", BurnRequest{Power: 4}, 4},
		{"missing payload", nil, 0},
		{"mistyped payload", "full thrust", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			var c shipContext

			guard := GuardFor(func(_ context.Context, _ *shipContext, req BurnRequest) bool {
				return req.Power > 0
			})
			assert.Equal(t, tt.want > 0, guard(ctx, &c, tt.payload))

			seen := -1
			callback := CallbackFor(func(_ context.Context, c *shipContext, req BurnRequest) {
				c.record("callback")
				seen = req.Power
			})
			callback(ctx, &c, tt.payload)
			assert.Equal(t, tt.want, seen)
			assert.Equal(t, []string{"callback"}, c.trace)

			action := ActionFor(func(_ context.Context, _ *shipContext, req BurnRequest) bool {
				return req.Power == tt.want
			})
			assert.True(t, action(ctx, &c, tt.payload))
		})
	}
}

func TestFire_TypedActionAndCallback(t *testing.T) {
	def, err := machine.NewBuilder("burn").
		Initial("Idle").
		Action("throttle").
		States(machine.Leaf("Idle"), machine.Leaf("Burning")).
		Event("ignite").Payload("BurnRequest").After("log_burn").Permit("Idle", "Burning").
		Define()
	require.NoError(t, err)

	hooks := NewHooks[shipContext]().
		Action("throttle", ActionFor(func(_ context.Context, _ *shipContext, req BurnRequest) bool {
			return req.Power <= 5
		})).
		Callback("log_burn", CallbackFor(func(_ context.Context, c *shipContext, req BurnRequest) {
			c.record(fmt.Sprintf("burn %d", req.Power))
		}))
	engine := MustEngine(def, hooks)

	inst := engine.New(shipContext{})
	got, err := engine.Fire(context.Background(), inst, "ignite", BurnRequest{Power: 9})
	assert.ErrorIs(t, err, ErrActionFailed)
	assert.Same(t, inst, got)

	next := fire(t, engine, got, "ignite", BurnRequest{Power: 2})
	assert.Equal(t, "Burning", next.State())
	assert.Equal(t, []string{"burn 2"}, next.Context().trace)
}

func TestFire_PolymorphicSuperstateTransition(t *testing.T) {
	engine := MustEngine(flightDefinition(t), flightHooks())

	fromPrep := fire(t, engine, engine.New(shipContext{}), "launch", nil)
	require.Equal(t, "LaunchPrep", fromPrep.State())
	assert.Equal(t, "Standby", fire(t, engine, fromPrep, "abort", nil).State())

	fromLaunching := fire(t, engine, engine.New(shipContext{}), "launch", nil)
	fromLaunching = fire(t, engine, fromLaunching, "ignite", BurnRequest{Power: 3})
	require.Equal(t, "Launching", fromLaunching.State())
	assert.Equal(t, "Standby", fire(t, engine, fromLaunching, "abort", nil).State())
}

func TestFire_PayloadGuard(t *testing.T) {
	engine := MustEngine(flightDefinition(t), flightHooks())
	inst := fire(t, engine, engine.New(shipContext{}), "launch", nil)

	got, err := engine.Fire(context.Background(), inst, "ignite", BurnRequest{Power: 6})
	guard, ok := GuardName(err)
	require.True(t, ok)
	assert.Equal(t, "fuel_ready", guard)
	assert.Equal(t, "LaunchPrep", got.State())

	got, err = engine.Fire(context.Background(), got, "ignite", BurnRequest{Power: 3})
	require.NoError(t, err)
	assert.Equal(t, "Launching", got.State())
}

func TestFire_StorageLifecycle(t *testing.T) {
	engine := MustEngine(flightDefinition(t), flightHooks())

	inst := engine.New(shipContext{})
	assert.Empty(t, inst.StorageOwners())

	inst = fire(t, engine, inst, "launch", nil)
	assert.Equal(t, []string{"Flight", "LaunchPrep"}, inst.StorageOwners())

	flight, err := Data[FlightData](inst, "Flight")
	require.NoError(t, err)
	assert.Equal(t, 0, flight.Checkpoints)
	flight.Checkpoints = 3

	prep, err := Data[PrepData](inst, "LaunchPrep")
	require.NoError(t, err)
	prep.Checks = 2

	// a leaf self-transition resets the leaf storage
	inst = fire(t, engine, inst, "recheck", nil)
	prep, err = Data[PrepData](inst, "LaunchPrep")
	require.NoError(t, err)
	assert.Equal(t, 0, prep.Checks)

	// sibling move keeps the superstate storage
	inst = fire(t, engine, inst, "ignite", BurnRequest{Power: 1})
	assert.Equal(t, []string{"Flight"}, inst.StorageOwners())
	flight, err = Data[FlightData](inst, "Flight")
	require.NoError(t, err)
	assert.Equal(t, 3, flight.Checkpoints)

	_, err = Data[PrepData](inst, "LaunchPrep")
	assert.ErrorIs(t, err, ErrWrongState)

	// leaving the superstate releases it
	inst = fire(t, engine, inst, "abort", nil)
	assert.Empty(t, inst.StorageOwners())

	// entering again starts from defaults
	inst = fire(t, engine, inst, "launch", nil)
	flight, err = Data[FlightData](inst, "Flight")
	require.NoError(t, err)
	assert.Equal(t, 0, flight.Checkpoints)
}

func TestFire_StorageUnchangedOnGuardFailure(t *testing.T) {
	engine := MustEngine(flightDefinition(t), flightHooks())
	inst := fire(t, engine, engine.New(shipContext{}), "launch", nil)

	prep, err := Data[PrepData](inst, "LaunchPrep")
	require.NoError(t, err)
	prep.Checks = 7

	got, err := engine.Fire(context.Background(), inst, "ignite", BurnRequest{Power: 9})
	require.Error(t, err)

	after, err := Data[PrepData](got, "LaunchPrep")
	require.NoError(t, err)
	assert.Same(t, prep, after)
	assert.Equal(t, 7, after.Checks)
}

func armDefinition(t *testing.T) *machine.Definition {
	t.Helper()
	def, err := machine.NewBuilder("arming").
		Initial("Standby").
		Action("commit").
		States(machine.Leaf("Standby"), machine.Leaf("Armed").WithStorage("PrepData")).
		Event("arm").Permit("Standby", "Armed").
		Define()
	require.NoError(t, err)
	return def
}

func TestFire_ActionRollback(t *testing.T) {
	hooks := NewHooks[shipContext]().
		Action("commit", func(_ context.Context, c *shipContext, _ any) bool {
			c.record("commit")
			return c.commit
		}).
		Storage("Armed", StorageOf[PrepData]())
	engine := MustEngine(armDefinition(t), hooks)

	inst := engine.New(shipContext{commit: false})
	got, err := engine.Fire(context.Background(), inst, "arm", nil)

	assert.ErrorIs(t, err, ErrActionFailed)
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "commit", te.Action)
	assert.Same(t, inst, got)
	assert.Equal(t, "Standby", got.State())
	assert.Empty(t, got.StorageOwners())
	assert.False(t, got.Spent())
	// the action ran against the discarded instance
	assert.Empty(t, got.Context().trace)

	got.Context().commit = true
	next, err := engine.Fire(context.Background(), got, "arm", nil)
	require.NoError(t, err)
	assert.Equal(t, "Armed", next.State())
	assert.Equal(t, []string{"Armed"}, next.StorageOwners())
}

func orderingDefinition(t *testing.T) *machine.Definition {
	t.Helper()
	def, err := machine.NewBuilder("ordering").
		Initial("A").
		States(machine.Leaf("A"), machine.Leaf("B"), machine.Leaf("C")).
		Event("go").
		Around("W").Guards("G").Before("B_ev").After("A_ev").
		PermitIf("A", "B", machine.WithBefore("B_tr"), machine.WithAfter("A_tr")).
		Event("skip").Permit("A", "C").
		BeforeTransition("global_before", machine.OnEvents("go")).
		AfterTransition("global_after", machine.ToStates("B")).
		AroundTransition("global_around", machine.FromStates("A")).
		Define()
	require.NoError(t, err)
	return def
}

func recordingHooks(abortAt map[string]AroundStage) *Hooks[shipContext] {
	hooks := NewHooks[shipContext]().
		Guard("G", func(_ context.Context, c *shipContext, _ any) bool {
			c.record("G")
			return true
		})
	for _, name := range []string{"B_ev", "A_ev", "B_tr", "A_tr", "global_before", "global_after"} {
		name := name
		hooks.Callback(name, func(_ context.Context, c *shipContext, _ any) {
			c.record(name)
		})
	}
	for _, name := range []string{"W", "global_around"} {
		name := name
		hooks.Around(name, func(_ context.Context, c *shipContext, tc TransitionContext, stage AroundStage) AroundOutcome {
			c.record(name + "(" + stage.String() + ")")
			if s, ok := abortAt[name]; ok && s == stage {
				return AbortGuard(tc, name)
			}
			return Proceed()
		})
	}
	return hooks
}

func TestFire_CallbackOrdering(t *testing.T) {
	engine := MustEngine(orderingDefinition(t), recordingHooks(nil))

	next, err := engine.Fire(context.Background(), engine.New(shipContext{}), "go", nil)
	require.NoError(t, err)
	assert.Equal(t, "B", next.State())
	assert.Equal(t, []string{
		"global_around(Before)",
		"W(Before)",
		"G",
		"global_before",
		"B_ev",
		"B_tr",
		"A_tr",
		"A_ev",
		"global_after",
		"W(AfterSuccess)",
		"global_around(AfterSuccess)",
	}, next.Context().trace)
}

func TestFire_GlobalCallbackFilters(t *testing.T) {
	engine := MustEngine(orderingDefinition(t), recordingHooks(nil))

	next, err := engine.Fire(context.Background(), engine.New(shipContext{}), "skip", nil)
	require.NoError(t, err)
	assert.Equal(t, "C", next.State())
	// only the around callback filtered on the source state matches
	assert.Equal(t, []string{"global_around(Before)", "global_around(AfterSuccess)"}, next.Context().trace)
}

func TestFire_AroundAbortBefore(t *testing.T) {
	engine := MustEngine(orderingDefinition(t), recordingHooks(map[string]AroundStage{"W": AroundBefore}))

	inst := engine.New(shipContext{})
	got, err := engine.Fire(context.Background(), inst, "go", nil)

	guard, ok := GuardName(err)
	require.True(t, ok)
	assert.Equal(t, "W", guard)
	assert.Same(t, inst, got)
	assert.Equal(t, "A", got.State())
	assert.Equal(t, []string{"global_around(Before)", "W(Before)"}, got.Context().trace)
}

func TestFire_AroundAbortAfterSuccessRollsBack(t *testing.T) {
	engine := MustEngine(orderingDefinition(t), recordingHooks(map[string]AroundStage{"global_around": AroundAfterSuccess}),
		WithLogger(zap.NewNop()))

	inst := engine.New(shipContext{})
	got, err := engine.Fire(context.Background(), inst, "go", nil)

	var abortErr *AfterSuccessAbortError
	require.True(t, errors.As(err, &abortErr))
	assert.Equal(t, "A", abortErr.From)
	assert.Equal(t, "B", abortErr.To)
	assert.ErrorIs(t, err, ErrGuardFailed)

	assert.Same(t, inst, got)
	assert.Equal(t, "A", got.State())
	assert.False(t, got.Spent())
}

func TestAbortWith(t *testing.T) {
	tc := TransitionContext{Machine: "m", From: "A", To: "B", Event: "go"}

	out := AbortWith(tc, KindActionFailed, "quota_check")
	require.True(t, out.IsAbort())
	assert.ErrorIs(t, out.Err(), ErrActionFailed)

	var te *TransitionError
	require.True(t, errors.As(out.Err(), &te))
	assert.Equal(t, "quota_check", te.Action)
	assert.Equal(t, "A", te.State)

	assert.False(t, Proceed().IsAbort())
	assert.ErrorIs(t, Abort(nil).Err(), ErrInvalidTransition)
}

func TestCanAndPermittedEvents(t *testing.T) {
	engine := MustEngine(flightDefinition(t), flightHooks())
	inst := fire(t, engine, engine.New(shipContext{}), "launch", nil)

	assert.Equal(t, []string{"recheck", "ignite", "abort"}, engine.PermittedEvents(inst))
	assert.NoError(t, engine.Can(context.Background(), inst, "ignite", BurnRequest{Power: 2}))
	assert.ErrorIs(t, engine.Can(context.Background(), inst, "ignite", BurnRequest{Power: 8}), ErrGuardFailed)
	assert.ErrorIs(t, engine.Can(context.Background(), inst, "reach_orbit", nil), ErrInvalidTransition)
	assert.False(t, inst.Spent())
}

func TestNewEngine_UnboundHooks(t *testing.T) {
	_, err := NewEngine(flightDefinition(t), NewHooks[shipContext]())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnboundHook)

	var errs []string
	for _, e := range multierr.Errors(errors.Unwrap(err)) {
		errs = append(errs, e.Error())
	}
	assert.Equal(t, []string{
		`unbound hook: guard "fuel_ready"`,
		`unbound hook: storage "Flight"`,
		`unbound hook: storage "LaunchPrep"`,
	}, errs)
}

func TestNewEngine_RejectsNonPointerStorage(t *testing.T) {
	hooks := flightHooks().
		Storage("Flight", func() any { return FlightData{} }).
		Storage("LaunchPrep", func() any { return (*PrepData)(nil) })

	_, err := NewEngine(flightDefinition(t), hooks)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidStorage)
	assert.NotErrorIs(t, err, ErrUnboundHook)

	errs := multierr.Errors(errors.Unwrap(err))
	require.Len(t, errs, 2)
	assert.Equal(t, "invalid storage factory: storage of Flight is fsm.FlightData, want *FlightData", errs[0].Error())
	assert.Equal(t, "invalid storage factory: storage of LaunchPrep is *fsm.PrepData, want *PrepData", errs[1].Error())
}

func TestFire_ForeignInstance(t *testing.T) {
	def, err := machine.NewBuilder("airlock").
		Initial("Closed").
		States(machine.Leaf("Closed"), machine.Leaf("Open")).
		Event("open").Permit("Closed", "Open").
		Define()
	require.NoError(t, err)
	airlock := MustEngine(def, NewHooks[shipContext]())
	hatch := MustEngine(hatchDefinition(t), hatchHooks())
	ctx := context.Background()

	inst := hatch.New(shipContext{})
	got, err := airlock.Fire(ctx, inst, "open", nil)
	assert.ErrorIs(t, err, ErrForeignInstance)
	assert.Same(t, inst, got)
	assert.False(t, inst.Spent())

	assert.ErrorIs(t, airlock.Can(ctx, inst, "open", nil), ErrForeignInstance)
	_, err = airlock.Wrap(inst)
	assert.ErrorIs(t, err, ErrForeignInstance)

	// the instance still works with its own engine
	inst.Context().inOrbit = true
	inst.Context().enginesOff = true
	assert.Equal(t, "Open", fire(t, hatch, inst, "open", nil).State())
}

func TestRestore(t *testing.T) {
	engine := MustEngine(flightDefinition(t), flightHooks())

	inst, err := engine.Restore("Launching", shipContext{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Flight"}, inst.StorageOwners())

	_, err = engine.Restore("Flight", shipContext{})
	assert.ErrorIs(t, err, ErrWrongState)
}
