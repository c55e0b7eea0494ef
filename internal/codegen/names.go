package codegen

import (
	"errors"
	"fmt"

	"github.com/garyjia/statecraft/pkg/utils"
)

var (
	// ErrNameCollision is returned when two generated identifiers are the same
	ErrNameCollision = errors.New("generated name collision")

	// ErrInvalidName is returned when a machine name cannot become a Go identifier
	ErrInvalidName = errors.New("invalid generated name")
)

var reservedPackages = map[string]bool{
	"context": true,
	"fsm":     true,
	"machine": true,
}

// scope tracks identifiers declared in one Go namespace
type scope struct {
	label string
	names map[string]string
}

func newScope(label string, builtins ...string) *scope {
	s := &scope{label: label, names: make(map[string]string)}
	for _, b := range builtins {
		s.names[b] = "built-in " + b
	}
	return s
}

// declare records ident, derived from origin, and fails on duplicates
func (s *scope) declare(ident, origin string) error {
	if !utils.IsIdentifier(ident) {
		return fmt.Errorf("%w: %q (from %s)", ErrInvalidName, ident, origin)
	}
	if prev, exists := s.names[ident]; exists {
		return fmt.Errorf("%w: %s declares %s for both %s and %s", ErrNameCollision, s.label, ident, prev, origin)
	}
	s.names[ident] = origin
	return nil
}

func typeName(name string) string {
	return utils.ToPascalCase(name)
}

func stateConst(name string) string {
	return "State" + typeName(name)
}

func eventConst(name string) string {
	return "Event" + typeName(name)
}

func eventMethod(name string) string {
	return typeName(name)
}

func eventConstructor(name string) string {
	return typeName(name) + "Event"
}

func storageAccessor(owner string) string {
	return typeName(owner) + "Data"
}

func superInterface(name string) string {
	return typeName(name) + "State"
}

func superMarker(name string) string {
	return "in" + typeName(name)
}

func polymorphicFunc(super, event string) string {
	return typeName(super) + typeName(event)
}
