package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildGraph(t *testing.T, m *Model) *Graph {
	t.Helper()
	require.NoError(t, Validate(m))
	g, err := BuildGraph(m, NewHierarchy(m.States))
	require.NoError(t, err)
	return g
}

func TestBuildGraph_ResolvesSuperstateTarget(t *testing.T) {
	g := buildGraph(t, spaceshipModel())

	e, ok := g.Lookup("Standby", "launch")
	require.True(t, ok)
	assert.Equal(t, "LaunchPrep", e.Target)
	assert.Equal(t, "Standby", e.Origin)
	assert.False(t, e.Inherited())
}

func TestBuildGraph_MostSpecificWins(t *testing.T) {
	g := buildGraph(t, spaceshipModel())

	fromPrep, ok := g.Lookup("LaunchPrep", "hold")
	require.True(t, ok)
	assert.Equal(t, "Standby", fromPrep.Target)
	assert.Equal(t, "Flight", fromPrep.Origin)
	assert.True(t, fromPrep.Inherited())

	fromLaunching, ok := g.Lookup("Launching", "hold")
	require.True(t, ok)
	assert.Equal(t, "LaunchPrep", fromLaunching.Target)
	assert.Equal(t, "Launching", fromLaunching.Origin)
	assert.Equal(t, 1, fromLaunching.Transition)
}

func TestBuildGraph_MostSpecificWinsWhenDeclaredFirst(t *testing.T) {
	m := nestedModel()
	// the superstate transition is declared before the nested one
	g := buildGraph(t, m)

	walking, ok := g.Lookup("Walking", "stop")
	require.True(t, ok)
	assert.Equal(t, "Resting", walking.Target)
	assert.Equal(t, "Moving", walking.Origin)

	resting, ok := g.Lookup("Resting", "stop")
	require.True(t, ok)
	assert.Equal(t, "Idle", resting.Target)
	assert.Equal(t, "Operating", resting.Origin)
}

func TestBuildGraph_AtMostOneEdgePerLeafAndEvent(t *testing.T) {
	for _, m := range []*Model{spaceshipModel(), nestedModel()} {
		g := buildGraph(t, m)
		seen := make(map[[2]string]bool)
		for _, e := range g.Edges() {
			key := [2]string{e.Source, e.Event}
			assert.False(t, seen[key], "duplicate edge %v", key)
			seen[key] = true
		}
	}
}

func TestBuildGraph_CombinesHookLists(t *testing.T) {
	g := buildGraph(t, spaceshipModel())

	ignite, ok := g.Lookup("LaunchPrep", "ignite")
	require.True(t, ok)
	assert.Equal(t, []string{"fuel_ready", "clamps_released"}, ignite.Guards)
	assert.Equal(t, []string{"log_ignite"}, ignite.Before)
	assert.Equal(t, "BurnRequest", ignite.Payload)

	abort, ok := g.Lookup("Launching", "abort")
	require.True(t, ok)
	assert.Equal(t, []string{"warn_crew"}, abort.Before)
	// after callbacks are stored in execution order: transition-level first
	assert.Equal(t, []string{"reset_counters", "notify_ground"}, abort.After)
}

func TestBuildGraph_NoEdgeWithoutTransition(t *testing.T) {
	g := buildGraph(t, spaceshipModel())

	_, ok := g.Lookup("Orbit", "abort")
	assert.False(t, ok)
	_, ok = g.Lookup("Standby", "ignite")
	assert.False(t, ok)
	assert.Empty(t, g.From("Orbit"))
}

func TestBuildGraph_From(t *testing.T) {
	g := buildGraph(t, spaceshipModel())

	var events []string
	for _, e := range g.From("Launching") {
		events = append(events, e.Event)
	}
	assert.Equal(t, []string{"abort", "hold", "reach_orbit"}, events)
	assert.Equal(t, 7, g.Len())
}

func TestBuildGraph_Polymorphic(t *testing.T) {
	g := buildGraph(t, spaceshipModel())

	poly := g.Polymorphic()
	require.Len(t, poly, 1)
	assert.Equal(t, PolymorphicEdge{
		Superstate: "Flight",
		Event:      "abort",
		Target:     "Standby",
		Sources:    []string{"LaunchPrep", "Launching"},
	}, poly[0])
}

func TestBuildGraph_NestedPolymorphic(t *testing.T) {
	g := buildGraph(t, nestedModel())

	var supers []string
	for _, p := range g.Polymorphic() {
		supers = append(supers, p.Superstate+"."+p.Event)
	}
	assert.Equal(t, []string{"Moving.stop"}, supers)
}
