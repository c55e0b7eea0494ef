package machine

import "fmt"

// Definition is a validated, read-only machine.
// It never changes after Define returns it.
type Definition struct {
	model     *Model
	hierarchy *Hierarchy
	graph     *Graph
	storage   []StorageSpec
	events    map[string]int
}

// Define validates the model and resolves it into a Definition
func Define(m *Model, opts ...ValidateOption) (*Definition, error) {
	if m == nil {
		return nil, newDefinitionError(KindMissingName, "", "", "model is nil")
	}
	model := m.Clone()
	if err := Validate(model, opts...); err != nil {
		return nil, err
	}

	h := NewHierarchy(model.States)
	g, err := BuildGraph(model, h)
	if err != nil {
		return nil, fmt.Errorf("build graph for %s: %w", model.Name, err)
	}

	def := &Definition{
		model:     model,
		hierarchy: h,
		graph:     g,
		events:    make(map[string]int, len(model.Events)),
	}
	for i, ev := range model.Events {
		def.events[ev.Name] = i
	}
	collectStorage(model.States, &def.storage)
	return def, nil
}

// MustDefine is like Define but panics on error
func MustDefine(m *Model, opts ...ValidateOption) *Definition {
	def, err := Define(m, opts...)
	if err != nil {
		panic(fmt.Sprintf("machine: %v", err))
	}
	return def
}

func collectStorage(states []StateSpec, out *[]StorageSpec) {
	for _, s := range states {
		if s.Storage != "" {
			*out = append(*out, StorageSpec{
				Owner:      s.Name,
				Type:       s.Storage,
				Superstate: s.IsSuperstate(),
			})
		}
		collectStorage(s.States, out)
	}
}

// Name returns the machine name
func (d *Definition) Name() string { return d.model.Name }

// Initial returns the initial leaf state
func (d *Definition) Initial() string { return d.model.Initial }

// Async returns true if the machine was declared asynchronous
func (d *Definition) Async() bool { return d.model.Async }

// Dynamic returns true if a dynamic dispatch wrapper was requested
func (d *Definition) Dynamic() bool { return d.model.Dynamic }

// Action returns the name of the global action hook, if any
func (d *Definition) Action() string { return d.model.Action }

// States returns every leaf state in declaration order
func (d *Definition) States() []string { return d.hierarchy.Leaves() }

// Superstates returns every superstate in declaration order
func (d *Definition) Superstates() []string { return d.hierarchy.Superstates() }

// Hierarchy returns the resolved state hierarchy
func (d *Definition) Hierarchy() *Hierarchy { return d.hierarchy }

// Graph returns the transition graph
func (d *Definition) Graph() *Graph { return d.graph }

// Callbacks returns the global callbacks
func (d *Definition) Callbacks() Callbacks { return d.model.Clone().Callbacks }

// Model returns a copy of the underlying model
func (d *Definition) Model() *Model { return d.model.Clone() }

// Events returns every event in declaration order
func (d *Definition) Events() []Event {
	out := make([]Event, len(d.model.Events))
	for i, ev := range d.model.Events {
		out[i] = ev.clone()
	}
	return out
}

// Event returns the named event
func (d *Definition) Event(name string) (Event, bool) {
	idx, ok := d.events[name]
	if !ok {
		return Event{}, false
	}
	return d.model.Events[idx].clone(), true
}

// HasEvent returns true if the event is declared
func (d *Definition) HasEvent(name string) bool {
	_, ok := d.events[name]
	return ok
}

// Storage returns the storage spec owned by the given state
func (d *Definition) Storage(owner string) (StorageSpec, bool) {
	for _, s := range d.storage {
		if s.Owner == owner {
			return s, true
		}
	}
	return StorageSpec{}, false
}

// StorageSpecs returns every storage spec in declaration order
func (d *Definition) StorageSpecs() []StorageSpec {
	return append([]StorageSpec(nil), d.storage...)
}

// StorageOwners returns the states in leaf's chain that own storage, leaf first
func (d *Definition) StorageOwners(leaf string) []string {
	var owners []string
	for _, name := range d.hierarchy.Chain(leaf) {
		if _, ok := d.Storage(name); ok {
			owners = append(owners, name)
		}
	}
	return owners
}

// HookNames lists every guard, callback and action name referenced by the machine
type HookNames struct {
	Guards    []string `json:"guards,omitempty"`
	Callbacks []string `json:"callbacks,omitempty"`
	Around    []string `json:"around,omitempty"`
	Action    string   `json:"action,omitempty"`
}

// HookNames returns the deduplicated hook names in first-use order
func (d *Definition) HookNames() HookNames {
	var names HookNames
	for _, ev := range d.model.Events {
		names.Guards = appendNames(names.Guards, ev.Guards, ev.Unless)
		names.Callbacks = appendNames(names.Callbacks, ev.Before, ev.After)
		names.Around = appendNames(names.Around, ev.Around)
		for _, t := range ev.Transitions {
			names.Guards = appendNames(names.Guards, t.Guards, t.Unless)
			names.Callbacks = appendNames(names.Callbacks, t.Before, t.After)
		}
	}
	for _, cb := range d.model.Callbacks.Before {
		names.Callbacks = appendNames(names.Callbacks, NameList{cb.Name})
	}
	for _, cb := range d.model.Callbacks.After {
		names.Callbacks = appendNames(names.Callbacks, NameList{cb.Name})
	}
	for _, cb := range d.model.Callbacks.Around {
		names.Around = appendNames(names.Around, NameList{cb.Name})
	}
	names.Action = d.model.Action
	return names
}

func appendNames(dst []string, lists ...NameList) []string {
	for _, l := range lists {
		for _, n := range l {
			dst = appendUnique(dst, n)
		}
	}
	return dst
}

// Info is a plain-data view of the definition for tooling
type Info struct {
	Name        string            `json:"name"`
	Initial     string            `json:"initial"`
	Async       bool              `json:"async"`
	Dynamic     bool              `json:"dynamic"`
	Action      string            `json:"action,omitempty"`
	States      []string          `json:"states"`
	Superstates []SuperstateInfo  `json:"superstates,omitempty"`
	Events      []EventInfo       `json:"events"`
	Storage     []StorageSpec     `json:"storage,omitempty"`
	Edges       []Edge            `json:"edges"`
	Polymorphic []PolymorphicEdge `json:"polymorphic,omitempty"`
	Hooks       HookNames         `json:"hooks"`
}

// SuperstateInfo describes a superstate and its resolved descendants
type SuperstateInfo struct {
	Name        string   `json:"name"`
	Parent      string   `json:"parent,omitempty"`
	Descendants []string `json:"descendants"`
	Initial     string   `json:"initial"`
}

// EventInfo describes an event with its transitions resolved to leaves
type EventInfo struct {
	Name        string           `json:"name"`
	Payload     string           `json:"payload,omitempty"`
	Guards      []string         `json:"guards,omitempty"`
	Unless      []string         `json:"unless,omitempty"`
	Before      []string         `json:"before,omitempty"`
	After       []string         `json:"after,omitempty"`
	Around      []string         `json:"around,omitempty"`
	Transitions []TransitionInfo `json:"transitions"`
}

// TransitionInfo describes one declared transition
type TransitionInfo struct {
	Sources []string `json:"sources"`
	Target  string   `json:"target"`
	Guards  []string `json:"guards,omitempty"`
	Unless  []string `json:"unless,omitempty"`
	Before  []string `json:"before,omitempty"`
	After   []string `json:"after,omitempty"`
}

// Info returns the introspection view of the definition
func (d *Definition) Info() Info {
	info := Info{
		Name:        d.Name(),
		Initial:     d.Initial(),
		Async:       d.Async(),
		Dynamic:     d.Dynamic(),
		Action:      d.Action(),
		States:      d.States(),
		Storage:     d.StorageSpecs(),
		Edges:       d.graph.Edges(),
		Polymorphic: d.graph.Polymorphic(),
		Hooks:       d.HookNames(),
	}
	for _, s := range d.hierarchy.Superstates() {
		si := SuperstateInfo{
			Name:        s,
			Descendants: d.hierarchy.Expand(s),
			Initial:     d.hierarchy.Initial(s),
		}
		if ancestors := d.hierarchy.Ancestors(s); len(ancestors) > 0 {
			si.Parent = ancestors[0]
		}
		info.Superstates = append(info.Superstates, si)
	}
	for _, ev := range d.model.Events {
		ei := EventInfo{
			Name:    ev.Name,
			Payload: ev.Payload,
			Guards:  concat(ev.Guards),
			Unless:  concat(ev.Unless),
			Before:  concat(ev.Before),
			After:   concat(ev.After),
			Around:  concat(ev.Around),
		}
		for _, t := range ev.Transitions {
			target, _ := d.hierarchy.ResolveTarget(t.To)
			ei.Transitions = append(ei.Transitions, TransitionInfo{
				Sources: d.hierarchy.ExpandAll(t.From),
				Target:  target,
				Guards:  concat(t.Guards),
				Unless:  concat(t.Unless),
				Before:  concat(t.Before),
				After:   concat(t.After),
			})
		}
		info.Events = append(info.Events, ei)
	}
	return info
}
