package machine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefine(t *testing.T) {
	def, err := Define(spaceshipModel())
	require.NoError(t, err)

	assert.Equal(t, "spaceship", def.Name())
	assert.Equal(t, "Standby", def.Initial())
	assert.Equal(t, "commit", def.Action())
	assert.False(t, def.Async())
	assert.Equal(t, []string{"Standby", "LaunchPrep", "Launching", "Orbit"}, def.States())
	assert.Equal(t, []string{"Flight"}, def.Superstates())
	assert.True(t, def.HasEvent("ignite"))
	assert.False(t, def.HasEvent("land"))

	ev, ok := def.Event("ignite")
	require.True(t, ok)
	assert.Equal(t, "BurnRequest", ev.Payload)
}

func TestDefine_InvalidModel(t *testing.T) {
	m := spaceshipModel()
	m.Initial = "Flight"

	def, err := Define(m)
	assert.Nil(t, def)
	assert.ErrorIs(t, err, ErrInvalidInitialState)

	assert.Panics(t, func() { MustDefine(m) })
}

func TestDefine_IsolatedFromModel(t *testing.T) {
	m := spaceshipModel()
	def, err := Define(m)
	require.NoError(t, err)

	m.Events[0].Name = "changed"
	assert.True(t, def.HasEvent("launch"))

	events := def.Events()
	events[0].Guards[0] = "changed"
	ev, _ := def.Event("launch")
	assert.Equal(t, NameList{"systems_ok"}, ev.Guards)
}

func TestDefinition_Storage(t *testing.T) {
	def := MustDefine(spaceshipModel())

	assert.Equal(t, []StorageSpec{
		{Owner: "Flight", Type: "FlightData", Superstate: true},
		{Owner: "LaunchPrep", Type: "PrepData"},
	}, def.StorageSpecs())

	spec, ok := def.Storage("LaunchPrep")
	require.True(t, ok)
	assert.Equal(t, "PrepData", spec.Type)

	_, ok = def.Storage("Standby")
	assert.False(t, ok)

	assert.Equal(t, []string{"LaunchPrep", "Flight"}, def.StorageOwners("LaunchPrep"))
	assert.Equal(t, []string{"Flight"}, def.StorageOwners("Launching"))
	assert.Empty(t, def.StorageOwners("Orbit"))
}

func TestDefinition_HookNames(t *testing.T) {
	def := MustDefine(spaceshipModel())

	names := def.HookNames()
	assert.Equal(t, []string{"systems_ok", "fuel_ready", "clamps_released"}, names.Guards)
	assert.Equal(t, []string{"log_ignite", "warn_crew", "notify_ground", "reset_counters", "audit"}, names.Callbacks)
	assert.Equal(t, []string{"trace"}, names.Around)
	assert.Equal(t, "commit", names.Action)
}

func TestDefinition_Info(t *testing.T) {
	def := MustDefine(nestedModel())

	info := def.Info()
	assert.Equal(t, "nested", info.Name)
	require.Len(t, info.Superstates, 2)
	assert.Equal(t, SuperstateInfo{
		Name:        "Moving",
		Parent:      "Operating",
		Descendants: []string{"Walking", "Running"},
		Initial:     "Running",
	}, info.Superstates[1])

	require.Len(t, info.Events, 2)
	assert.Equal(t, []string{"Walking", "Running", "Resting"}, info.Events[1].Transitions[0].Sources)
	assert.Equal(t, "Running", info.Events[0].Transitions[0].Target)

	data, err := json.Marshal(info)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"initial":"Idle"`)
}
