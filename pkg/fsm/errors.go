package fsm

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when no edge exists for the current state and event
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrGuardFailed is returned when a guard rejects or an unless guard accepts
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrActionFailed is returned when the action hook rejects a transition
	ErrActionFailed = errors.New("action failed")

	// ErrWrongState is returned when an operation requires a different current state
	ErrWrongState = errors.New("wrong state")

	// ErrStaleInstance is returned when an instance is used after it was transitioned
	ErrStaleInstance = errors.New("stale machine instance")

	// ErrUnboundHook is returned when a hook named by the definition has no implementation
	ErrUnboundHook = errors.New("unbound hook")

	// ErrUnknownEvent is returned when an event is not declared by the machine
	ErrUnknownEvent = errors.New("unknown event")

	// ErrForeignInstance is returned when an instance created by another machine is passed to an engine
	ErrForeignInstance = errors.New("instance belongs to another machine")

	// ErrInvalidStorage is returned when a storage factory does not produce a non-nil pointer
	ErrInvalidStorage = errors.New("invalid storage factory")
)

// ErrorKind classifies a transition-time error
type ErrorKind int

const (
	KindInvalidTransition ErrorKind = iota
	KindGuardFailed
	KindActionFailed
)

// String returns the string representation of the kind
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidTransition:
		return "InvalidTransition"
	case KindGuardFailed:
		return "GuardFailed"
	case KindActionFailed:
		return "ActionFailed"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindGuardFailed:
		return ErrGuardFailed
	case KindActionFailed:
		return ErrActionFailed
	}
	return ErrInvalidTransition
}

// TransitionError reports a rejected transition. The instance passed to Fire
// is returned unchanged alongside it.
type TransitionError struct {
	Kind    ErrorKind
	Machine string
	Event   string
	State   string
	Guard   string
	Action  string
	Err     error
}

func (e *TransitionError) Error() string {
	var msg string
	switch e.Kind {
	case KindGuardFailed:
		msg = fmt.Sprintf("%s: guard %s rejected event %s from state %s", ErrGuardFailed, e.Guard, e.Event, e.State)
	case KindActionFailed:
		msg = fmt.Sprintf("%s: action %s rejected event %s from state %s", ErrActionFailed, e.Action, e.Event, e.State)
	default:
		msg = fmt.Sprintf("%s: cannot fire event %s from state %s", ErrInvalidTransition, e.Event, e.State)
	}
	if e.Machine != "" {
		msg = e.Machine + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the sentinel for the kind and the underlying cause, if any
func (e *TransitionError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind.sentinel(), e.Err}
	}
	return []error{e.Kind.sentinel()}
}

// WrongStateError reports an operation attempted in the wrong state
type WrongStateError struct {
	Expected  string
	Actual    string
	Operation string
}

func (e *WrongStateError) Error() string {
	return fmt.Sprintf("%s: %s requires state %s, current state is %s", ErrWrongState, e.Operation, e.Expected, e.Actual)
}

// Unwrap returns ErrWrongState
func (e *WrongStateError) Unwrap() error {
	return ErrWrongState
}

// AfterSuccessAbortError reports an around callback aborting after the state
// change. The transition is rolled back and the original instance returned.
type AfterSuccessAbortError struct {
	Machine string
	Event   string
	From    string
	To      string
	Err     error
}

func (e *AfterSuccessAbortError) Error() string {
	return fmt.Sprintf("%s: event %s from %s to %s aborted after success and was rolled back: %v",
		e.Machine, e.Event, e.From, e.To, e.Err)
}

func (e *AfterSuccessAbortError) Unwrap() error {
	return e.Err
}

// UnboundHookError names a hook the definition references but Hooks does not provide
type UnboundHookError struct {
	Role string
	Name string
}

func (e *UnboundHookError) Error() string {
	return fmt.Sprintf("%s: %s %q", ErrUnboundHook, e.Role, e.Name)
}

// Unwrap returns ErrUnboundHook
func (e *UnboundHookError) Unwrap() error {
	return ErrUnboundHook
}

// GuardName returns the failing guard named by err, if any
func GuardName(err error) (string, bool) {
	var te *TransitionError
	if errors.As(err, &te) && te.Kind == KindGuardFailed {
		return te.Guard, true
	}
	return "", false
}
