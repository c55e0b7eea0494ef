// Package fsm interprets a machine.Definition at runtime. The Engine runs the
// transition protocol for every edge of the graph: around callbacks, guards,
// unless guards, before callbacks, the state change with its storage
// lifecycle, the action hook, after callbacks and the unwinding around
// callbacks. A failed attempt always hands back the caller's instance intact.
package fsm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/statecraft/pkg/machine"
)

type options struct {
	logger *zap.Logger
}

// Option configures an Engine
type Option func(*options)

// WithLogger sets the logger used for transition tracing
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

type globalCallback struct {
	name string
	from map[string]bool
	to   map[string]bool
	on   map[string]bool
}

func (g globalCallback) matches(e machine.Edge) bool {
	if g.from != nil && !g.from[e.Source] {
		return false
	}
	if g.to != nil && !g.to[e.Target] {
		return false
	}
	if g.on != nil && !g.on[e.Event] {
		return false
	}
	return true
}

// Engine runs transitions of one machine definition
type Engine[C any] struct {
	def    *machine.Definition
	hooks  *Hooks[C]
	logger *zap.Logger

	globalBefore []globalCallback
	globalAfter  []globalCallback
	globalAround []globalCallback
}

// NewEngine binds hooks to the definition. It fails if any hook is missing.
func NewEngine[C any](def *machine.Definition, hooks *Hooks[C], opts ...Option) (*Engine[C], error) {
	if def == nil {
		return nil, errors.New("definition is required")
	}
	if hooks == nil {
		hooks = NewHooks[C]()
	}
	if err := hooks.Bind(def); err != nil {
		return nil, fmt.Errorf("bind hooks for %s: %w", def.Name(), err)
	}

	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine[C]{
		def:    def,
		hooks:  hooks,
		logger: o.logger.With(zap.String("machine", def.Name())),
	}
	callbacks := def.Callbacks()
	e.globalBefore = e.compile(callbacks.Before)
	e.globalAfter = e.compile(callbacks.After)
	e.globalAround = e.compile(callbacks.Around)
	return e, nil
}

// MustEngine is like NewEngine but panics on error
func MustEngine[C any](def *machine.Definition, hooks *Hooks[C], opts ...Option) *Engine[C] {
	e, err := NewEngine(def, hooks, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Engine[C]) compile(specs []machine.CallbackSpec) []globalCallback {
	h := e.def.Hierarchy()
	out := make([]globalCallback, 0, len(specs))
	for _, spec := range specs {
		cb := globalCallback{name: spec.Name}
		if len(spec.From) > 0 {
			cb.from = toSet(h.ExpandAll(spec.From))
		}
		if len(spec.To) > 0 {
			cb.to = toSet(h.ExpandAll(spec.To))
		}
		if len(spec.On) > 0 {
			cb.on = toSet(spec.On)
		}
		out = append(out, cb)
	}
	return out
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// Definition returns the machine definition
func (e *Engine[C]) Definition() *machine.Definition {
	return e.def
}

// New creates an instance in the initial state
func (e *Engine[C]) New(c C) *Instance[C] {
	inst, _ := e.Restore(e.def.Initial(), c)
	return inst
}

// Restore creates an instance positioned in the given leaf state with
// default storage for it
func (e *Engine[C]) Restore(state string, c C) (*Instance[C], error) {
	if !e.def.Hierarchy().IsLeaf(state) {
		return nil, fmt.Errorf("%w: %s is not a leaf state of %s", ErrWrongState, state, e.def.Name())
	}
	inst := &Instance[C]{
		machine: e.def.Name(),
		state:   state,
		context: c,
		storage: make(map[string]any),
	}
	for _, owner := range e.def.StorageOwners(state) {
		inst.storage[owner] = e.hooks.storage[owner]()
	}
	return inst, nil
}

// Fire runs event against inst. On success it returns the new instance and
// marks inst spent. On failure it returns inst unchanged with the error.
func (e *Engine[C]) Fire(ctx context.Context, inst *Instance[C], event string, payload any) (*Instance[C], error) {
	edge, err := e.edgeFor(inst, event)
	if err != nil {
		return inst, err
	}

	tc := TransitionContext{
		Machine: e.def.Name(),
		From:    edge.Source,
		To:      edge.Target,
		Event:   event,
	}
	log := e.logger.With(zap.String("event", event), zap.String("from", edge.Source), zap.String("to", edge.Target))

	arounds := e.aroundFor(edge)
	for _, name := range arounds {
		if out := e.hooks.around[name](ctx, &inst.context, tc, AroundBefore); out.IsAbort() {
			log.Debug("Transition aborted by around callback", zap.String("around", name), zap.Error(out.Err()))
			return inst, out.Err()
		}
	}

	if err := e.checkGuards(ctx, inst, edge, payload); err != nil {
		log.Debug("Transition rejected by guard", zap.Error(err))
		return inst, err
	}

	for _, name := range e.beforeFor(edge) {
		e.hooks.callbacks[name](ctx, &inst.context, payload)
	}

	next := e.advance(inst, edge)

	if action := e.def.Action(); action != "" {
		if !e.hooks.actions[action](ctx, &next.context, payload) {
			log.Debug("Transition rolled back by action", zap.String("action", action))
			return inst, &TransitionError{
				Kind:    KindActionFailed,
				Machine: e.def.Name(),
				Event:   event,
				State:   inst.state,
				Action:  action,
			}
		}
	}

	for _, name := range e.afterFor(edge) {
		e.hooks.callbacks[name](ctx, &next.context, payload)
	}

	for i := len(arounds) - 1; i >= 0; i-- {
		name := arounds[i]
		if out := e.hooks.around[name](ctx, &next.context, tc, AroundAfterSuccess); out.IsAbort() {
			log.Warn("Transition aborted after success, rolling back", zap.String("around", name), zap.Error(out.Err()))
			return inst, &AfterSuccessAbortError{
				Machine: e.def.Name(),
				Event:   event,
				From:    edge.Source,
				To:      edge.Target,
				Err:     out.Err(),
			}
		}
	}

	inst.spent = true
	log.Debug("Transition completed")
	return next, nil
}

// Can reports whether event would pass its guards from the current state.
// Only guards and unless guards are evaluated; no callback runs.
func (e *Engine[C]) Can(ctx context.Context, inst *Instance[C], event string, payload any) error {
	edge, err := e.edgeFor(inst, event)
	if err != nil {
		return err
	}
	return e.checkGuards(ctx, inst, edge, payload)
}

// PermittedEvents returns the events with an edge from the current state
func (e *Engine[C]) PermittedEvents(inst *Instance[C]) []string {
	edges := e.def.Graph().From(inst.state)
	events := make([]string, 0, len(edges))
	for _, edge := range edges {
		events = append(events, edge.Event)
	}
	return events
}

func (e *Engine[C]) edgeFor(inst *Instance[C], event string) (machine.Edge, error) {
	if inst == nil {
		return machine.Edge{}, errors.New("instance is nil")
	}
	if inst.spent {
		return machine.Edge{}, fmt.Errorf("%w: %s", ErrStaleInstance, inst)
	}
	if inst.machine != e.def.Name() {
		return machine.Edge{}, fmt.Errorf("%w: %s fired on %s", ErrForeignInstance, inst, e.def.Name())
	}
	if !e.def.HasEvent(event) {
		return machine.Edge{}, &TransitionError{
			Kind:    KindInvalidTransition,
			Machine: e.def.Name(),
			Event:   event,
			State:   inst.state,
			Err:     ErrUnknownEvent,
		}
	}
	edge, ok := e.def.Graph().Lookup(inst.state, event)
	if !ok {
		return machine.Edge{}, &TransitionError{
			Kind:    KindInvalidTransition,
			Machine: e.def.Name(),
			Event:   event,
			State:   inst.state,
		}
	}
	return edge, nil
}

func (e *Engine[C]) checkGuards(ctx context.Context, inst *Instance[C], edge machine.Edge, payload any) error {
	for _, name := range edge.Guards {
		if !e.hooks.guards[name](ctx, &inst.context, payload) {
			return e.guardError(edge, name)
		}
	}
	for _, name := range edge.Unless {
		if e.hooks.guards[name](ctx, &inst.context, payload) {
			return e.guardError(edge, name)
		}
	}
	return nil
}

func (e *Engine[C]) guardError(edge machine.Edge, guard string) error {
	return &TransitionError{
		Kind:    KindGuardFailed,
		Machine: e.def.Name(),
		Event:   edge.Event,
		State:   edge.Source,
		Guard:   guard,
	}
}

// advance builds the post-transition instance. Storage owned by states being
// left is released, storage owned by states being entered is initialized and
// superstates containing both ends keep theirs.
func (e *Engine[C]) advance(inst *Instance[C], edge machine.Edge) *Instance[C] {
	h := e.def.Hierarchy()
	next := inst.clone()
	next.state = edge.Target

	for _, owner := range e.def.StorageOwners(edge.Source) {
		if h.IsSuperstate(owner) && h.Contains(owner, edge.Target) {
			continue
		}
		delete(next.storage, owner)
	}
	for _, owner := range e.def.StorageOwners(edge.Target) {
		if h.IsSuperstate(owner) && h.Contains(owner, edge.Source) {
			continue
		}
		next.storage[owner] = e.hooks.storage[owner]()
	}
	return next
}

func (e *Engine[C]) aroundFor(edge machine.Edge) []string {
	names := matching(e.globalAround, edge)
	return append(names, edge.Around...)
}

func (e *Engine[C]) beforeFor(edge machine.Edge) []string {
	names := matching(e.globalBefore, edge)
	return append(names, edge.Before...)
}

func (e *Engine[C]) afterFor(edge machine.Edge) []string {
	return append(append([]string(nil), edge.After...), matching(e.globalAfter, edge)...)
}

func matching(callbacks []globalCallback, edge machine.Edge) []string {
	var names []string
	for _, cb := range callbacks {
		if cb.matches(edge) {
			names = append(names, cb.name)
		}
	}
	return names
}
