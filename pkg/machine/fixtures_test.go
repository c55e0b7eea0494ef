package machine

// spaceshipModel is a hierarchical machine used across the package tests:
//
//	Standby, Flight{LaunchPrep, Launching}, Orbit
func spaceshipModel() *Model {
	return NewBuilder("spaceship").
		Initial("Standby").
		Action("commit").
		States(
			Leaf("Standby"),
			Super("Flight",
				Leaf("LaunchPrep").WithStorage("PrepData"),
				Leaf("Launching"),
			).WithStorage("FlightData"),
			Leaf("Orbit"),
		).
		Event("launch").Guards("systems_ok").Permit("Standby", "Flight").
		Event("ignite").Payload("BurnRequest").Guards("fuel_ready").
		PermitIf("LaunchPrep", "Launching", WithGuards("clamps_released"), WithBefore("log_ignite")).
		Event("abort").Before("warn_crew").After("notify_ground").
		PermitIf("Flight", "Standby", WithAfter("reset_counters")).
		Event("hold").
		Permit("Flight", "Standby").
		Permit("Launching", "LaunchPrep").
		Event("reach_orbit").Permit("Launching", "Orbit").
		BeforeTransition("audit", FromStates("Flight")).
		AroundTransition("trace").
		Model()
}

// nestedModel has a superstate nested two levels deep
func nestedModel() *Model {
	return &Model{
		Name:    "nested",
		Initial: "Idle",
		States: []StateSpec{
			Leaf("Idle"),
			Super("Operating",
				Super("Moving",
					Leaf("Walking"),
					Leaf("Running"),
				).WithInitial("Running"),
				Leaf("Resting"),
			),
		},
		Events: []Event{
			{Name: "start", Transitions: []Transition{{From: NameList{"Idle"}, To: "Operating"}}},
			{Name: "stop", Transitions: []Transition{
				{From: NameList{"Operating"}, To: "Idle"},
				{From: NameList{"Moving"}, To: "Resting"},
			}},
		},
	}
}
