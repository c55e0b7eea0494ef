package machine

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/garyjia/statecraft/pkg/utils"
)

// NamingConvention selects the identifier style enforced on event names
type NamingConvention string

const (
	NamingNone      NamingConvention = ""
	NamingSnakeCase NamingConvention = "snake_case"
)

// ParseNamingConvention converts a configuration value to a NamingConvention
func ParseNamingConvention(s string) (NamingConvention, error) {
	switch NamingConvention(s) {
	case NamingNone, "none":
		return NamingNone, nil
	case NamingSnakeCase:
		return NamingSnakeCase, nil
	}
	return NamingNone, fmt.Errorf("unknown naming convention: %s", s)
}

type validateOptions struct {
	naming NamingConvention
}

// ValidateOption configures validation
type ValidateOption func(*validateOptions)

// WithNamingConvention enforces a naming convention on event names
func WithNamingConvention(c NamingConvention) ValidateOption {
	return func(o *validateOptions) {
		o.naming = c
	}
}

// errStop aborts a fail-fast validation run
var errStop = errors.New("stop")

type validator struct {
	model    *Model
	h        *Hierarchy
	opts     validateOptions
	failFast bool
	errs     error
}

// Validate checks the model and returns the first violation found
func Validate(m *Model, opts ...ValidateOption) error {
	return newValidator(m, true, opts).run()
}

// ValidateAll checks the model and returns every violation combined with multierr.
// Use multierr.Errors to split the result.
func ValidateAll(m *Model, opts ...ValidateOption) error {
	return newValidator(m, false, opts).run()
}

func newValidator(m *Model, failFast bool, opts []ValidateOption) *validator {
	v := &validator{
		model:    m,
		h:        NewHierarchy(m.States),
		failFast: failFast,
	}
	for _, opt := range opts {
		opt(&v.opts)
	}
	return v
}

func (v *validator) report(err *DefinitionError) error {
	v.errs = multierr.Append(v.errs, err)
	if v.failFast {
		return errStop
	}
	return nil
}

func (v *validator) run() error {
	checks := []func() error{
		v.checkName,
		v.checkInitial,
		v.checkDuplicates,
		v.checkStructure,
		v.checkEvents,
		v.checkNaming,
		v.checkCallbacks,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			break
		}
	}
	return v.errs
}

func (v *validator) checkName() error {
	if v.model.Name == "" {
		return v.report(newDefinitionError(KindMissingName, "name", "", "machine name is required"))
	}
	return nil
}

func (v *validator) checkInitial() error {
	initial := v.model.Initial
	switch {
	case initial == "":
		return v.report(newDefinitionError(KindInvalidInitialState, "initial", "", "initial state is required"))
	case v.h.IsSuperstate(initial):
		return v.report(newDefinitionError(KindInvalidInitialState, "initial", initial, "initial must reference a leaf state"))
	case !v.h.IsLeaf(initial):
		return v.report(newDefinitionError(KindInvalidInitialState, "initial", initial, "initial must be a member of states"))
	}
	return nil
}

func (v *validator) checkDuplicates() error {
	seen := make(map[string]bool)
	for _, d := range v.h.Declarations() {
		if d.Name == "" {
			if err := v.report(newDefinitionError(KindMissingName, d.Path, "", "state name is required")); err != nil {
				return err
			}
			continue
		}
		if seen[d.Name] {
			if err := v.report(newDefinitionError(KindDuplicateState, d.Path, d.Name, "duplicate state")); err != nil {
				return err
			}
			continue
		}
		seen[d.Name] = true
	}
	return nil
}

func (v *validator) checkStructure() error {
	for _, d := range v.h.Declarations() {
		if !d.Superstate || d.Name == "" {
			continue
		}
		if len(v.h.Expand(d.Name)) == 0 {
			if err := v.report(newDefinitionError(KindEmptySuperstate, d.Path, d.Name, "superstate does not contain any leaf states")); err != nil {
				return err
			}
			continue
		}
		if explicit := v.h.ExplicitInitial(d.Name); explicit != "" && v.h.Initial(d.Name) == "" {
			err := newDefinitionError(KindInvalidSuperstateInitial, d.Path+".initial", explicit,
				fmt.Sprintf("initial child of superstate %q is not one of its descendants", d.Name))
			if err := v.report(err); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *validator) checkEvents() error {
	seen := make(map[string]bool)
	for i, ev := range v.model.Events {
		path := fmt.Sprintf("events[%d]", i)
		if ev.Name == "" {
			if err := v.report(newDefinitionError(KindMissingName, path, "", "event name is required")); err != nil {
				return err
			}
		} else if seen[ev.Name] {
			if err := v.report(newDefinitionError(KindDuplicateEvent, path, ev.Name, "duplicate event")); err != nil {
				return err
			}
		}
		seen[ev.Name] = true

		if len(ev.Transitions) == 0 {
			if err := v.report(newDefinitionError(KindEventWithoutTransition, path, ev.Name, "event must declare at least one transition")); err != nil {
				return err
			}
			continue
		}

		sources := make(map[string]string)
		for j, t := range ev.Transitions {
			if err := v.checkTransition(fmt.Sprintf("%s.transitions[%d]", path, j), t, sources); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *validator) checkTransition(path string, t Transition, sources map[string]string) error {
	if len(t.From) == 0 {
		if err := v.report(newDefinitionError(KindTransitionMissingSource, path+".from", "", "transition must declare at least one source state")); err != nil {
			return err
		}
	}

	switch {
	case t.To == "":
		if err := v.report(newDefinitionError(KindTransitionMissingTarget, path+".to", "", "transition must declare a target state")); err != nil {
			return err
		}
	case v.h.IsSuperstate(t.To):
		if _, ok := v.h.ResolveTarget(t.To); !ok {
			if err := v.report(newDefinitionError(KindUnresolvedSuperstateTarget, path+".to", t.To, "superstate target must declare an initial child")); err != nil {
				return err
			}
		}
	case !v.h.IsLeaf(t.To):
		if err := v.report(newDefinitionError(KindUnknownSourceOrTarget, path+".to", t.To, "target state not declared in states")); err != nil {
			return err
		}
	}

	for k, src := range t.From {
		srcPath := fmt.Sprintf("%s.from[%d]", path, k)
		if !v.h.Has(src) {
			if err := v.report(newDefinitionError(KindUnknownSourceOrTarget, srcPath, src, "source state not declared in states or superstates")); err != nil {
				return err
			}
			continue
		}
		if len(v.h.Expand(src)) == 0 {
			if err := v.report(newDefinitionError(KindUnknownSourceOrTarget, srcPath, src, "superstate does not resolve to any leaf states")); err != nil {
				return err
			}
			continue
		}
		if prev, dup := sources[src]; dup {
			err := newDefinitionError(KindAmbiguousTransition, srcPath, src,
				fmt.Sprintf("source already declared at %s for this event", prev))
			if err := v.report(err); err != nil {
				return err
			}
			continue
		}
		sources[src] = srcPath
	}
	return nil
}

func (v *validator) checkNaming() error {
	if v.opts.naming != NamingSnakeCase {
		return nil
	}
	for i, ev := range v.model.Events {
		if ev.Name == "" || utils.IsSnakeCase(ev.Name) {
			continue
		}
		err := newDefinitionError(KindNamingConventionViolation, fmt.Sprintf("events[%d]", i), ev.Name, "event names must be snake_case")
		err.Suggestion = utils.ToSnakeCase(ev.Name)
		if err := v.report(err); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) checkCallbacks() error {
	groups := []struct {
		stage string
		specs []CallbackSpec
	}{
		{"before", v.model.Callbacks.Before},
		{"after", v.model.Callbacks.After},
		{"around", v.model.Callbacks.Around},
	}
	events := make(map[string]bool, len(v.model.Events))
	for _, ev := range v.model.Events {
		events[ev.Name] = true
	}

	for _, g := range groups {
		for i, cb := range g.specs {
			path := fmt.Sprintf("callbacks.%s[%d]", g.stage, i)
			if cb.Name == "" {
				if err := v.report(newDefinitionError(KindMissingName, path, "", "callback name is required")); err != nil {
					return err
				}
			}
			for _, ref := range append(append(NameList(nil), cb.From...), cb.To...) {
				if !v.h.Has(ref) {
					if err := v.report(newDefinitionError(KindUnknownCallbackFilter, path, ref, "callback filter references an undeclared state")); err != nil {
						return err
					}
				}
			}
			for _, name := range cb.On {
				if !events[name] {
					if err := v.report(newDefinitionError(KindUnknownCallbackFilter, path+".on", name, "callback filter references an undeclared event")); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}
