// Package machine holds the declarative state machine model: states and
// superstates, events and their transitions, guard and callback names, and
// per-state storage. A Model is validated, resolved against its hierarchy and
// flattened into a transition Graph by Define, which yields the read-only
// Definition consumed by the runtime engine, the code generator and tooling.
package machine

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Model is the authored description of a state machine
type Model struct {
	Name      string      `json:"name" yaml:"name"`
	Initial   string      `json:"initial" yaml:"initial"`
	Async     bool        `json:"async,omitempty" yaml:"async,omitempty"`
	Dynamic   bool        `json:"dynamic,omitempty" yaml:"dynamic,omitempty"`
	Action    string      `json:"action,omitempty" yaml:"action,omitempty"`
	States    []StateSpec `json:"states" yaml:"states"`
	Events    []Event     `json:"events" yaml:"events"`
	Callbacks Callbacks   `json:"callbacks,omitempty" yaml:"callbacks,omitempty"`
}

// StateSpec declares a leaf state, or a superstate when it has children
type StateSpec struct {
	Name       string      `json:"name" yaml:"name"`
	Storage    string      `json:"storage,omitempty" yaml:"storage,omitempty"`
	Superstate bool        `json:"superstate,omitempty" yaml:"superstate,omitempty"`
	Initial    string      `json:"initial,omitempty" yaml:"initial,omitempty"`
	States     []StateSpec `json:"states,omitempty" yaml:"states,omitempty"`
}

// IsSuperstate returns true if the spec groups child states
func (s StateSpec) IsSuperstate() bool {
	return s.Superstate || len(s.States) > 0
}

// Event is a named trigger with one or more transitions
type Event struct {
	Name        string       `json:"name" yaml:"name"`
	Payload     string       `json:"payload,omitempty" yaml:"payload,omitempty"`
	Guards      NameList     `json:"guards,omitempty" yaml:"guards,omitempty"`
	Unless      NameList     `json:"unless,omitempty" yaml:"unless,omitempty"`
	Before      NameList     `json:"before,omitempty" yaml:"before,omitempty"`
	After       NameList     `json:"after,omitempty" yaml:"after,omitempty"`
	Around      NameList     `json:"around,omitempty" yaml:"around,omitempty"`
	Transitions []Transition `json:"transitions" yaml:"transitions"`
}

// Transition moves the machine from any of its sources to its target.
// Its guard and callback lists extend the owning event's lists.
type Transition struct {
	From   NameList `json:"from" yaml:"from"`
	To     string   `json:"to" yaml:"to"`
	Guards NameList `json:"guards,omitempty" yaml:"guards,omitempty"`
	Unless NameList `json:"unless,omitempty" yaml:"unless,omitempty"`
	Before NameList `json:"before,omitempty" yaml:"before,omitempty"`
	After  NameList `json:"after,omitempty" yaml:"after,omitempty"`
}

// Callbacks are machine-wide hooks applied to every matching transition
type Callbacks struct {
	Before []CallbackSpec `json:"before,omitempty" yaml:"before,omitempty"`
	After  []CallbackSpec `json:"after,omitempty" yaml:"after,omitempty"`
	Around []CallbackSpec `json:"around,omitempty" yaml:"around,omitempty"`
}

// IsEmpty returns true if no global callback is declared
func (c Callbacks) IsEmpty() bool {
	return len(c.Before) == 0 && len(c.After) == 0 && len(c.Around) == 0
}

// CallbackSpec names a global callback and the transitions it applies to.
// Empty filters match everything.
type CallbackSpec struct {
	Name string   `json:"name" yaml:"name"`
	From NameList `json:"from,omitempty" yaml:"from,omitempty"`
	To   NameList `json:"to,omitempty" yaml:"to,omitempty"`
	On   NameList `json:"on,omitempty" yaml:"on,omitempty"`
}

// StorageSpec attaches a typed payload to a state
type StorageSpec struct {
	Owner      string `json:"owner" yaml:"owner"`
	Type       string `json:"type" yaml:"type"`
	Superstate bool   `json:"superstate,omitempty" yaml:"superstate,omitempty"`
}

// NameList is a list of names that may also be written as a single name
type NameList []string

// UnmarshalYAML accepts either a scalar or a sequence
func (l *NameList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" {
			*l = nil
			return nil
		}
		*l = NameList{node.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	return fmt.Errorf("line %d: expected a name or a list of names", node.Line)
}

// UnmarshalJSON accepts either a string or an array of strings
func (l *NameList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*l = nil
			return nil
		}
		*l = NameList{single}
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("expected a name or a list of names: %w", err)
	}
	*l = items
	return nil
}

// Contains returns true if name is in the list
func (l NameList) Contains(name string) bool {
	for _, n := range l {
		if n == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the model
func (m *Model) Clone() *Model {
	if m == nil {
		return nil
	}
	out := &Model{
		Name:    m.Name,
		Initial: m.Initial,
		Async:   m.Async,
		Dynamic: m.Dynamic,
		Action:  m.Action,
		States:  cloneStates(m.States),
		Callbacks: Callbacks{
			Before: cloneCallbacks(m.Callbacks.Before),
			After:  cloneCallbacks(m.Callbacks.After),
			Around: cloneCallbacks(m.Callbacks.Around),
		},
	}
	if m.Events != nil {
		out.Events = make([]Event, len(m.Events))
		for i, ev := range m.Events {
			out.Events[i] = ev.clone()
		}
	}
	return out
}

func (e Event) clone() Event {
	out := e
	out.Guards = cloneNames(e.Guards)
	out.Unless = cloneNames(e.Unless)
	out.Before = cloneNames(e.Before)
	out.After = cloneNames(e.After)
	out.Around = cloneNames(e.Around)
	if e.Transitions != nil {
		out.Transitions = make([]Transition, len(e.Transitions))
		for i, t := range e.Transitions {
			out.Transitions[i] = Transition{
				From:   cloneNames(t.From),
				To:     t.To,
				Guards: cloneNames(t.Guards),
				Unless: cloneNames(t.Unless),
				Before: cloneNames(t.Before),
				After:  cloneNames(t.After),
			}
		}
	}
	return out
}

func cloneStates(states []StateSpec) []StateSpec {
	if states == nil {
		return nil
	}
	out := make([]StateSpec, len(states))
	for i, s := range states {
		out[i] = s
		out[i].States = cloneStates(s.States)
	}
	return out
}

func cloneCallbacks(specs []CallbackSpec) []CallbackSpec {
	if specs == nil {
		return nil
	}
	out := make([]CallbackSpec, len(specs))
	for i, s := range specs {
		out[i] = CallbackSpec{
			Name: s.Name,
			From: cloneNames(s.From),
			To:   cloneNames(s.To),
			On:   cloneNames(s.On),
		}
	}
	return out
}

func cloneNames(names NameList) NameList {
	if names == nil {
		return nil
	}
	return append(NameList(nil), names...)
}
