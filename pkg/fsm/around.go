package fsm

// AroundStage identifies when an around callback is invoked
type AroundStage int

const (
	// AroundBefore runs before guards, outermost callback first
	AroundBefore AroundStage = iota
	// AroundAfterSuccess runs after the after callbacks, innermost callback first
	AroundAfterSuccess
)

// String returns the string representation of the stage
func (s AroundStage) String() string {
	if s == AroundAfterSuccess {
		return "AfterSuccess"
	}
	return "Before"
}

// TransitionContext describes the transition an around callback wraps
type TransitionContext struct {
	Machine string
	From    string
	To      string
	Event   string
}

// AroundOutcome tells the engine whether to continue a transition
type AroundOutcome struct {
	err error
}

// Proceed continues the transition
func Proceed() AroundOutcome {
	return AroundOutcome{}
}

// Abort stops the transition with err
func Abort(err error) AroundOutcome {
	if err == nil {
		err = ErrInvalidTransition
	}
	return AroundOutcome{err: err}
}

// IsAbort returns true if the outcome stops the transition
func (o AroundOutcome) IsAbort() bool {
	return o.err != nil
}

// Err returns the abort error, nil on Proceed
func (o AroundOutcome) Err() error {
	return o.err
}

// AbortGuard aborts as if the named guard had failed
func AbortGuard(tc TransitionContext, guard string) AroundOutcome {
	return AbortWith(tc, KindGuardFailed, guard)
}

// AbortWith aborts with a transition error of the given kind.
// name is the guard or action name the error reports.
func AbortWith(tc TransitionContext, kind ErrorKind, name string) AroundOutcome {
	err := &TransitionError{
		Kind:    kind,
		Machine: tc.Machine,
		Event:   tc.Event,
		State:   tc.From,
	}
	switch kind {
	case KindGuardFailed:
		err.Guard = name
	case KindActionFailed:
		err.Action = name
	}
	return Abort(err)
}
