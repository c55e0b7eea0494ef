package spaceship_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/statecraft/internal/codegen/fixture/spaceship"
	"github.com/garyjia/statecraft/internal/loader"
	"github.com/garyjia/statecraft/pkg/fsm"
)

type crew struct {
	systemsOK bool
}

func shipHooks() *fsm.Hooks[crew] {
	return fsm.NewHooks[crew]().
		Guard("systems_ok", func(_ context.Context, c *crew, _ any) bool {
			return c.systemsOK
		}).
		Guard("fuel_ready", fsm.GuardFor(func(_ context.Context, _ *crew, req spaceship.BurnRequest) bool {
			return req.Power <= 5
		}))
}

func newShip(t *testing.T) *spaceship.Machine[crew] {
	t.Helper()
	m, err := spaceship.New(shipHooks())
	require.NoError(t, err)
	return m
}

func TestDefinitionMatchesSource(t *testing.T) {
	defs, err := loader.NewLoader(zap.NewNop()).LoadDefinitions("spaceship.yaml")
	require.NoError(t, err)
	require.Len(t, defs, 1)

	assert.Equal(t, defs[0].Model(), spaceship.Definition().Model())
	assert.False(t, spaceship.Async)
}

func TestStart(t *testing.T) {
	standby := newShip(t).Start(crew{systemsOK: true})

	assert.Equal(t, spaceship.StateStandby, standby.State())
	assert.True(t, standby.Context().systemsOK)
	assert.NoError(t, standby.CanLaunch(context.Background()))
}

func TestLaunch_GuardFailureKeepsReceiver(t *testing.T) {
	ctx := context.Background()
	standby := newShip(t).Start(crew{})

	prep, err := standby.Launch(ctx)
	assert.Nil(t, prep)
	assert.ErrorIs(t, err, fsm.ErrGuardFailed)
	guard, ok := fsm.GuardName(err)
	require.True(t, ok)
	assert.Equal(t, "systems_ok", guard)
	assert.ErrorIs(t, standby.CanLaunch(ctx), fsm.ErrGuardFailed)

	assert.Equal(t, spaceship.StateStandby, standby.State())
	standby.Context().systemsOK = true
	prep, err = standby.Launch(ctx)
	require.NoError(t, err)
	assert.Equal(t, spaceship.StateLaunchPrep, prep.State())
}

func TestLaunchAndIgnite_KeepsFlightData(t *testing.T) {
	ctx := context.Background()
	prep, err := newShip(t).Start(crew{systemsOK: true}).Launch(ctx)
	require.NoError(t, err)

	flight := prep.FlightData()
	flight.Checkpoints = 2
	prep.LaunchPrepData().ChecksRun = 1

	launching, err := prep.Ignite(ctx, spaceship.BurnRequest{Power: 9})
	assert.Nil(t, launching)
	guard, _ := fsm.GuardName(err)
	assert.Equal(t, "fuel_ready", guard)
	assert.Equal(t, 1, prep.LaunchPrepData().ChecksRun)

	require.NoError(t, prep.CanIgnite(ctx, spaceship.BurnRequest{Power: 3}))
	launching, err = prep.Ignite(ctx, spaceship.BurnRequest{Power: 3})
	require.NoError(t, err)
	assert.Equal(t, spaceship.StateLaunching, launching.State())
	assert.Same(t, flight, launching.FlightData())
	assert.Equal(t, 2, launching.FlightData().Checkpoints)

	orbit, err := launching.ReachOrbit(ctx)
	require.NoError(t, err)
	assert.Equal(t, spaceship.StateOrbit, orbit.State())
}

func TestFlightAbort(t *testing.T) {
	ctx := context.Background()
	m := newShip(t)

	prep, err := m.Start(crew{systemsOK: true}).Launch(ctx)
	require.NoError(t, err)
	standby, err := spaceship.FlightAbort[crew](ctx, prep)
	require.NoError(t, err)
	assert.Equal(t, spaceship.StateStandby, standby.State())

	prep, err = standby.Launch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, prep.FlightData().Checkpoints, "flight storage starts fresh")
	prep.FlightData().Checkpoints = 5

	launching, err := prep.Ignite(ctx, spaceship.BurnRequest{Power: 1})
	require.NoError(t, err)
	standby, err = spaceship.FlightAbort[crew](ctx, launching)
	require.NoError(t, err)
	assert.Equal(t, spaceship.StateStandby, standby.State())

	prep, err = standby.Launch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, prep.FlightData().Checkpoints)
}

func TestStaleInstance(t *testing.T) {
	ctx := context.Background()
	standby := newShip(t).Start(crew{systemsOK: true})

	prep, err := standby.Launch(ctx)
	require.NoError(t, err)

	_, err = standby.Launch(ctx)
	assert.ErrorIs(t, err, fsm.ErrStaleInstance)
	_, err = standby.IntoDynamic()
	assert.ErrorIs(t, err, fsm.ErrStaleInstance)

	_, err = prep.Abort(ctx)
	require.NoError(t, err)
	_, err = spaceship.FlightAbort[crew](ctx, prep)
	assert.ErrorIs(t, err, fsm.ErrStaleInstance)
}

func TestIntoDynamic(t *testing.T) {
	ctx := context.Background()
	standby := newShip(t).Start(crew{systemsOK: true})

	d, err := standby.IntoDynamic()
	require.NoError(t, err)
	_, err = standby.Launch(ctx)
	assert.ErrorIs(t, err, fsm.ErrStaleInstance)

	require.NoError(t, d.Handle(ctx, spaceship.LaunchEvent()))
	assert.Equal(t, spaceship.StateLaunchPrep, d.CurrentState())
	assert.ErrorIs(t, d.Handle(ctx, spaceship.IgniteEvent(spaceship.BurnRequest{Power: 7})), fsm.ErrGuardFailed)
	assert.ErrorIs(t, d.Handle(ctx, spaceship.ReachOrbitEvent()), fsm.ErrInvalidTransition)

	_, err = d.IntoOrbit()
	assert.ErrorIs(t, err, fsm.ErrWrongState)

	prep, err := d.IntoLaunchPrep()
	require.NoError(t, err)
	assert.Equal(t, spaceship.StateLaunchPrep, prep.State())
	assert.ErrorIs(t, d.Handle(ctx, spaceship.AbortEvent()), fsm.ErrStaleInstance)

	launching, err := prep.Ignite(ctx, spaceship.BurnRequest{Power: 2})
	require.NoError(t, err)
	assert.Equal(t, spaceship.StateLaunching, launching.State())
}

func TestNewDynamic(t *testing.T) {
	ctx := context.Background()
	d := newShip(t).NewDynamic(crew{systemsOK: true})

	for _, ev := range []fsm.Event{
		spaceship.LaunchEvent(),
		spaceship.IgniteEvent(spaceship.BurnRequest{Power: 4}),
		spaceship.ReachOrbitEvent(),
	} {
		require.NoError(t, d.Handle(ctx, ev))
	}

	orbit, err := d.IntoOrbit()
	require.NoError(t, err)
	assert.Equal(t, spaceship.StateOrbit, orbit.State())
}

func TestNew_StorageFactories(t *testing.T) {
	hooks := shipHooks().Storage(spaceship.StateFlight, func() any {
		return &spaceship.FlightData{Checkpoints: 10}
	})
	m, err := spaceship.New(hooks)
	require.NoError(t, err)

	prep, err := m.Start(crew{systemsOK: true}).Launch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, prep.FlightData().Checkpoints)
	assert.Equal(t, 0, prep.LaunchPrepData().ChecksRun)

	hooks = shipHooks().Storage(spaceship.StateFlight, func() any {
		return spaceship.FlightData{}
	})
	_, err = spaceship.New(hooks)
	assert.ErrorIs(t, err, fsm.ErrInvalidStorage)
}

func TestNew_UnboundGuard(t *testing.T) {
	_, err := spaceship.New(fsm.NewHooks[crew]())
	assert.ErrorIs(t, err, fsm.ErrUnboundHook)
}
