package port

import "github.com/garyjia/statecraft/pkg/machine"

// CodeGenerator renders Go source for a machine definition
type CodeGenerator interface {
	Generate(def *machine.Definition) ([]byte, error)
	FileName(def *machine.Definition) string
	PackageName(def *machine.Definition) string
	// Fingerprint changes whenever the generator options change the output
	Fingerprint() string
}
