package machine

// MachineBuilder assembles a Model through a fluent API
type MachineBuilder interface {
	// Initial sets the initial leaf state
	Initial(state string) MachineBuilder

	// Async marks the machine as asynchronous
	Async() MachineBuilder

	// Dynamic requests a dynamic dispatch wrapper
	Dynamic() MachineBuilder

	// Action sets the global action hook
	Action(name string) MachineBuilder

	// States declares top-level states
	States(specs ...StateSpec) MachineBuilder

	// Event returns the configuration for the named event, creating it on first use
	Event(name string) EventConfiguration

	// BeforeTransition registers a global before callback
	BeforeTransition(name string, filters ...CallbackFilter) MachineBuilder

	// AfterTransition registers a global after callback
	AfterTransition(name string, filters ...CallbackFilter) MachineBuilder

	// AroundTransition registers a global around callback
	AroundTransition(name string, filters ...CallbackFilter) MachineBuilder

	// Model returns a copy of the model built so far
	Model() *Model

	// Define validates the model and returns the Definition
	Define(opts ...ValidateOption) (*Definition, error)
}

// EventConfiguration configures one event. It embeds MachineBuilder so
// declarations can be chained across events.
type EventConfiguration interface {
	MachineBuilder

	// Payload sets the payload type name
	Payload(typeName string) EventConfiguration

	// Guards appends event-level guards
	Guards(names ...string) EventConfiguration

	// Unless appends event-level unless guards
	Unless(names ...string) EventConfiguration

	// Before appends event-level before callbacks
	Before(names ...string) EventConfiguration

	// After appends event-level after callbacks
	After(names ...string) EventConfiguration

	// Around appends event-level around callbacks
	Around(names ...string) EventConfiguration

	// Permit adds a transition from one state to another
	Permit(from, to string) EventConfiguration

	// PermitIf adds a transition with transition-level hooks
	PermitIf(from, to string, opts ...TransitionOption) EventConfiguration

	// PermitFrom adds a transition from several states
	PermitFrom(sources []string, to string, opts ...TransitionOption) EventConfiguration
}

// TransitionOption configures transition-level hooks
type TransitionOption func(*Transition)

// WithGuards appends transition-level guards
func WithGuards(names ...string) TransitionOption {
	return func(t *Transition) { t.Guards = append(t.Guards, names...) }
}

// WithUnless appends transition-level unless guards
func WithUnless(names ...string) TransitionOption {
	return func(t *Transition) { t.Unless = append(t.Unless, names...) }
}

// WithBefore appends transition-level before callbacks
func WithBefore(names ...string) TransitionOption {
	return func(t *Transition) { t.Before = append(t.Before, names...) }
}

// WithAfter appends transition-level after callbacks
func WithAfter(names ...string) TransitionOption {
	return func(t *Transition) { t.After = append(t.After, names...) }
}

// CallbackFilter restricts a global callback
type CallbackFilter func(*CallbackSpec)

// FromStates limits a callback to transitions leaving the given states
func FromStates(states ...string) CallbackFilter {
	return func(c *CallbackSpec) { c.From = append(c.From, states...) }
}

// ToStates limits a callback to transitions entering the given states
func ToStates(states ...string) CallbackFilter {
	return func(c *CallbackSpec) { c.To = append(c.To, states...) }
}

// OnEvents limits a callback to the given events
func OnEvents(events ...string) CallbackFilter {
	return func(c *CallbackSpec) { c.On = append(c.On, events...) }
}

// Leaf declares a leaf state
func Leaf(name string) StateSpec {
	return StateSpec{Name: name}
}

// Super declares a superstate with the given children
func Super(name string, children ...StateSpec) StateSpec {
	return StateSpec{Name: name, Superstate: true, States: children}
}

// WithStorage attaches a storage type to the state
func (s StateSpec) WithStorage(typeName string) StateSpec {
	s.Storage = typeName
	return s
}

// WithInitial sets the initial child of a superstate
func (s StateSpec) WithInitial(child string) StateSpec {
	s.Initial = child
	return s
}

// machineBuilder implements MachineBuilder
type machineBuilder struct {
	model  Model
	events map[string]*eventConfig
}

// eventConfig implements EventConfiguration
type eventConfig struct {
	*machineBuilder
	index int
}

// NewBuilder creates a new machine builder
func NewBuilder(name string) MachineBuilder {
	return &machineBuilder{
		model:  Model{Name: name},
		events: make(map[string]*eventConfig),
	}
}

func (b *machineBuilder) Initial(state string) MachineBuilder {
	b.model.Initial = state
	return b
}

func (b *machineBuilder) Async() MachineBuilder {
	b.model.Async = true
	return b
}

func (b *machineBuilder) Dynamic() MachineBuilder {
	b.model.Dynamic = true
	return b
}

func (b *machineBuilder) Action(name string) MachineBuilder {
	b.model.Action = name
	return b
}

func (b *machineBuilder) States(specs ...StateSpec) MachineBuilder {
	b.model.States = append(b.model.States, specs...)
	return b
}

// Event returns the configuration for the named event
func (b *machineBuilder) Event(name string) EventConfiguration {
	config, exists := b.events[name]
	if !exists {
		b.model.Events = append(b.model.Events, Event{Name: name})
		config = &eventConfig{machineBuilder: b, index: len(b.model.Events) - 1}
		b.events[name] = config
	}
	return config
}

func (b *machineBuilder) BeforeTransition(name string, filters ...CallbackFilter) MachineBuilder {
	b.model.Callbacks.Before = append(b.model.Callbacks.Before, newCallbackSpec(name, filters))
	return b
}

func (b *machineBuilder) AfterTransition(name string, filters ...CallbackFilter) MachineBuilder {
	b.model.Callbacks.After = append(b.model.Callbacks.After, newCallbackSpec(name, filters))
	return b
}

func (b *machineBuilder) AroundTransition(name string, filters ...CallbackFilter) MachineBuilder {
	b.model.Callbacks.Around = append(b.model.Callbacks.Around, newCallbackSpec(name, filters))
	return b
}

func newCallbackSpec(name string, filters []CallbackFilter) CallbackSpec {
	spec := CallbackSpec{Name: name}
	for _, f := range filters {
		f(&spec)
	}
	return spec
}

// Model returns a deep copy so later builder calls do not leak into it
func (b *machineBuilder) Model() *Model {
	return b.model.Clone()
}

func (b *machineBuilder) Define(opts ...ValidateOption) (*Definition, error) {
	return Define(&b.model, opts...)
}

func (c *eventConfig) event() *Event {
	return &c.model.Events[c.index]
}

func (c *eventConfig) Payload(typeName string) EventConfiguration {
	c.event().Payload = typeName
	return c
}

func (c *eventConfig) Guards(names ...string) EventConfiguration {
	ev := c.event()
	ev.Guards = append(ev.Guards, names...)
	return c
}

func (c *eventConfig) Unless(names ...string) EventConfiguration {
	ev := c.event()
	ev.Unless = append(ev.Unless, names...)
	return c
}

func (c *eventConfig) Before(names ...string) EventConfiguration {
	ev := c.event()
	ev.Before = append(ev.Before, names...)
	return c
}

func (c *eventConfig) After(names ...string) EventConfiguration {
	ev := c.event()
	ev.After = append(ev.After, names...)
	return c
}

func (c *eventConfig) Around(names ...string) EventConfiguration {
	ev := c.event()
	ev.Around = append(ev.Around, names...)
	return c
}

// Permit adds a transition from one state to another
func (c *eventConfig) Permit(from, to string) EventConfiguration {
	return c.PermitFrom([]string{from}, to)
}

// PermitIf adds a transition with transition-level hooks
func (c *eventConfig) PermitIf(from, to string, opts ...TransitionOption) EventConfiguration {
	return c.PermitFrom([]string{from}, to, opts...)
}

func (c *eventConfig) PermitFrom(sources []string, to string, opts ...TransitionOption) EventConfiguration {
	t := Transition{To: to}
	for _, src := range sources {
		if src != "" {
			t.From = append(t.From, src)
		}
	}
	for _, opt := range opts {
		opt(&t)
	}
	ev := c.event()
	ev.Transitions = append(ev.Transitions, t)
	return c
}
