package event

// Type identifies the type of generation event
type Type string

const (
	TypeRunStarted      Type = "generation.started"
	TypeArtifactWritten Type = "artifact.written"
	TypeArtifactSkipped Type = "artifact.skipped"
	TypeRunFinished     Type = "generation.finished"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRunStarted,
		TypeArtifactWritten,
		TypeArtifactSkipped,
		TypeRunFinished:
		return true
	}
	return false
}
