package spaceship

// FlightData is kept while the ship is anywhere inside Flight
type FlightData struct {
	Checkpoints int
}

// PrepData exists only during LaunchPrep
type PrepData struct {
	ChecksRun int
}

// BurnRequest is the payload of ignite
type BurnRequest struct {
	Power int
}
