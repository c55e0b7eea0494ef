package machine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a definition-time error
type ErrorKind string

const (
	KindMissingName                ErrorKind = "MissingName"
	KindInvalidInitialState        ErrorKind = "InvalidInitialState"
	KindDuplicateState             ErrorKind = "DuplicateState"
	KindEmptySuperstate            ErrorKind = "EmptySuperstate"
	KindInvalidSuperstateInitial   ErrorKind = "InvalidSuperstateInitial"
	KindDuplicateEvent             ErrorKind = "DuplicateEvent"
	KindEventWithoutTransition     ErrorKind = "EventWithoutTransition"
	KindTransitionMissingSource    ErrorKind = "TransitionMissingSource"
	KindTransitionMissingTarget    ErrorKind = "TransitionMissingTarget"
	KindUnresolvedSuperstateTarget ErrorKind = "UnresolvedSuperstateTarget"
	KindUnknownSourceOrTarget      ErrorKind = "UnknownSourceOrTarget"
	KindAmbiguousTransition        ErrorKind = "AmbiguousTransition"
	KindNamingConventionViolation  ErrorKind = "NamingConventionViolation"
	KindUnknownCallbackFilter      ErrorKind = "UnknownCallbackFilter"
)

var (
	// ErrMissingName is returned when a machine, state, event or callback has no name
	ErrMissingName = errors.New("missing name")

	// ErrInvalidInitialState is returned when the initial state is not a declared leaf
	ErrInvalidInitialState = errors.New("invalid initial state")

	// ErrDuplicateState is returned when a state name is declared twice
	ErrDuplicateState = errors.New("duplicate state")

	// ErrEmptySuperstate is returned when a superstate has no descendants
	ErrEmptySuperstate = errors.New("empty superstate")

	// ErrInvalidSuperstateInitial is returned when a superstate's initial child is not a descendant leaf
	ErrInvalidSuperstateInitial = errors.New("invalid superstate initial child")

	// ErrDuplicateEvent is returned when an event name is declared twice
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrEventWithoutTransition is returned when an event declares no transition
	ErrEventWithoutTransition = errors.New("event without transition")

	// ErrTransitionMissingSource is returned when a transition has no source state
	ErrTransitionMissingSource = errors.New("transition missing source")

	// ErrTransitionMissingTarget is returned when a transition has no target state
	ErrTransitionMissingTarget = errors.New("transition missing target")

	// ErrUnresolvedSuperstateTarget is returned when a superstate target has no initial child
	ErrUnresolvedSuperstateTarget = errors.New("unresolved superstate target")

	// ErrUnknownSourceOrTarget is returned when a transition references an undeclared state
	ErrUnknownSourceOrTarget = errors.New("unknown source or target state")

	// ErrAmbiguousTransition is returned when one event declares the same source twice
	ErrAmbiguousTransition = errors.New("ambiguous transition")

	// ErrNamingConventionViolation is returned when a name breaks the enforced convention
	ErrNamingConventionViolation = errors.New("naming convention violation")

	// ErrUnknownCallbackFilter is returned when a callback filter references an undeclared state or event
	ErrUnknownCallbackFilter = errors.New("unknown callback filter")
)

var kindSentinels = map[ErrorKind]error{
	KindMissingName:                ErrMissingName,
	KindInvalidInitialState:        ErrInvalidInitialState,
	KindDuplicateState:             ErrDuplicateState,
	KindEmptySuperstate:            ErrEmptySuperstate,
	KindInvalidSuperstateInitial:   ErrInvalidSuperstateInitial,
	KindDuplicateEvent:             ErrDuplicateEvent,
	KindEventWithoutTransition:     ErrEventWithoutTransition,
	KindTransitionMissingSource:    ErrTransitionMissingSource,
	KindTransitionMissingTarget:    ErrTransitionMissingTarget,
	KindUnresolvedSuperstateTarget: ErrUnresolvedSuperstateTarget,
	KindUnknownSourceOrTarget:      ErrUnknownSourceOrTarget,
	KindAmbiguousTransition:        ErrAmbiguousTransition,
	KindNamingConventionViolation:  ErrNamingConventionViolation,
	KindUnknownCallbackFilter:      ErrUnknownCallbackFilter,
}

// DefinitionError describes why a model cannot be turned into a Definition.
// Path locates the offending element, e.g. "events[1].transitions[0].from[2]".
type DefinitionError struct {
	Kind       ErrorKind
	Path       string
	Name       string
	Message    string
	Suggestion string
}

func (e *DefinitionError) Error() string {
	msg := e.Message
	if e.Name != "" {
		msg = fmt.Sprintf("%s: %q", msg, e.Name)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.Suggestion != "" {
		msg = fmt.Sprintf("%s (did you mean %q?)", msg, e.Suggestion)
	}
	return msg
}

// Unwrap returns the sentinel error for the kind
func (e *DefinitionError) Unwrap() error {
	return kindSentinels[e.Kind]
}

func newDefinitionError(kind ErrorKind, path, name, message string) *DefinitionError {
	return &DefinitionError{
		Kind:    kind,
		Path:    path,
		Name:    name,
		Message: message,
	}
}
