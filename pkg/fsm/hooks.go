package fsm

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/multierr"

	"github.com/garyjia/statecraft/pkg/machine"
)

// GuardFunc gates a transition. payload is nil for events without a payload.
type GuardFunc[C any] func(ctx context.Context, c *C, payload any) bool

// CallbackFunc observes a transition
type CallbackFunc[C any] func(ctx context.Context, c *C, payload any)

// ActionFunc runs after the state change; returning false rolls the transition back
type ActionFunc[C any] func(ctx context.Context, c *C, payload any) bool

// AroundFunc wraps a whole transition
type AroundFunc[C any] func(ctx context.Context, c *C, tc TransitionContext, stage AroundStage) AroundOutcome

// Hooks binds the names used in a definition to implementations
type Hooks[C any] struct {
	guards    map[string]GuardFunc[C]
	callbacks map[string]CallbackFunc[C]
	actions   map[string]ActionFunc[C]
	around    map[string]AroundFunc[C]
	storage   map[string]func() any
}

// NewHooks creates an empty hook set
func NewHooks[C any]() *Hooks[C] {
	return &Hooks[C]{
		guards:    make(map[string]GuardFunc[C]),
		callbacks: make(map[string]CallbackFunc[C]),
		actions:   make(map[string]ActionFunc[C]),
		around:    make(map[string]AroundFunc[C]),
		storage:   make(map[string]func() any),
	}
}

// Guard registers a guard, also usable as an unless guard
func (h *Hooks[C]) Guard(name string, fn GuardFunc[C]) *Hooks[C] {
	h.guards[name] = fn
	return h
}

// Callback registers a before or after callback
func (h *Hooks[C]) Callback(name string, fn CallbackFunc[C]) *Hooks[C] {
	h.callbacks[name] = fn
	return h
}

// Action registers the action hook
func (h *Hooks[C]) Action(name string, fn ActionFunc[C]) *Hooks[C] {
	h.actions[name] = fn
	return h
}

// Around registers an around callback
func (h *Hooks[C]) Around(name string, fn AroundFunc[C]) *Hooks[C] {
	h.around[name] = fn
	return h
}

// Storage registers the factory producing the default value of a state's
// storage. The factory must return a non-nil pointer, *T for the storage type
// T declared by the definition: Data and the generated accessors look the
// value up as *T. Bind rejects factories returning anything else.
func (h *Hooks[C]) Storage(owner string, factory func() any) *Hooks[C] {
	h.storage[owner] = factory
	return h
}

// HasStorage returns true if a storage factory is registered for owner
func (h *Hooks[C]) HasStorage(owner string) bool {
	_, ok := h.storage[owner]
	return ok
}

// Bind checks that every hook and storage owner named by def is registered.
// All missing names are reported together.
func (h *Hooks[C]) Bind(def *machine.Definition) error {
	var errs error
	names := def.HookNames()
	for _, name := range names.Guards {
		if _, ok := h.guards[name]; !ok {
			errs = multierr.Append(errs, &UnboundHookError{Role: "guard", Name: name})
		}
	}
	for _, name := range names.Callbacks {
		if _, ok := h.callbacks[name]; !ok {
			errs = multierr.Append(errs, &UnboundHookError{Role: "callback", Name: name})
		}
	}
	for _, name := range names.Around {
		if _, ok := h.around[name]; !ok {
			errs = multierr.Append(errs, &UnboundHookError{Role: "around", Name: name})
		}
	}
	if names.Action != "" {
		if _, ok := h.actions[names.Action]; !ok {
			errs = multierr.Append(errs, &UnboundHookError{Role: "action", Name: names.Action})
		}
	}
	for _, spec := range def.StorageSpecs() {
		factory, ok := h.storage[spec.Owner]
		if !ok {
			errs = multierr.Append(errs, &UnboundHookError{Role: "storage", Name: spec.Owner})
			continue
		}
		if v := factory(); !isPointer(v) {
			errs = multierr.Append(errs, fmt.Errorf("%w: storage of %s is %T, want *%s", ErrInvalidStorage, spec.Owner, v, spec.Type))
		}
	}
	return errs
}

func isPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && !rv.IsNil()
}

// GuardFor adapts a guard taking a typed payload. A missing or mistyped
// payload is passed as the zero value.
func GuardFor[P any, C any](fn func(ctx context.Context, c *C, payload P) bool) GuardFunc[C] {
	return func(ctx context.Context, c *C, payload any) bool {
		return fn(ctx, c, payloadAs[P](payload))
	}
}

// CallbackFor adapts a callback taking a typed payload
func CallbackFor[P any, C any](fn func(ctx context.Context, c *C, payload P)) CallbackFunc[C] {
	return func(ctx context.Context, c *C, payload any) {
		fn(ctx, c, payloadAs[P](payload))
	}
}

// ActionFor adapts an action taking a typed payload
func ActionFor[P any, C any](fn func(ctx context.Context, c *C, payload P) bool) ActionFunc[C] {
	return func(ctx context.Context, c *C, payload any) bool {
		return fn(ctx, c, payloadAs[P](payload))
	}
}

// StorageOf returns a factory allocating a zero T
func StorageOf[T any]() func() any {
	return func() any {
		return new(T)
	}
}

func payloadAs[P any](payload any) P {
	typed, ok := payload.(P)
	if !ok {
		var zero P
		return zero
	}
	return typed
}
