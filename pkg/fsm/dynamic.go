package fsm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Event is a runtime event value for the dynamic wrapper
type Event struct {
	Name    string `json:"name"`
	Payload any    `json:"payload,omitempty"`
}

// NewEvent creates an event with an optional payload
func NewEvent(name string, payload any) Event {
	return Event{Name: name, Payload: payload}
}

// WithPayload returns a copy of the event carrying payload
func (e Event) WithPayload(payload any) Event {
	return Event{Name: e.Name, Payload: payload}
}

// Dynamic holds one instance whose state is only known at runtime and
// dispatches events to it by name. A failed Handle leaves the wrapper in the
// state it was in before the call.
//
// Dynamic is not safe for concurrent use.
type Dynamic[C any] struct {
	engine *Engine[C]
	inst   *Instance[C]
}

// NewDynamic creates a wrapper around a fresh instance in the initial state
func (e *Engine[C]) NewDynamic(c C) *Dynamic[C] {
	return &Dynamic[C]{engine: e, inst: e.New(c)}
}

// Wrap moves inst into a dynamic wrapper. inst is spent afterwards.
func (e *Engine[C]) Wrap(inst *Instance[C]) (*Dynamic[C], error) {
	if inst == nil {
		return nil, fmt.Errorf("wrap: instance is nil")
	}
	if inst.spent {
		return nil, fmt.Errorf("wrap: %w: %s", ErrStaleInstance, inst)
	}
	if inst.machine != e.def.Name() {
		return nil, fmt.Errorf("wrap: %w: %s cannot join %s", ErrForeignInstance, inst, e.def.Name())
	}
	moved := inst.clone()
	inst.spent = true
	return &Dynamic[C]{engine: e, inst: moved}, nil
}

// Handle fires ev against the current state
func (d *Dynamic[C]) Handle(ctx context.Context, ev Event) error {
	next, err := d.engine.Fire(ctx, d.inst, ev.Name, ev.Payload)
	if err != nil {
		d.engine.logger.Debug("Dynamic event rejected",
			zap.String("event", ev.Name),
			zap.String("state", d.inst.state),
			zap.Error(err))
		return err
	}
	d.inst = next
	return nil
}

// CurrentState returns the current leaf state
func (d *Dynamic[C]) CurrentState() string {
	return d.inst.state
}

// Context returns the caller's context
func (d *Dynamic[C]) Context() *C {
	return &d.inst.context
}

// Can reports whether ev would pass its guards from the current state
func (d *Dynamic[C]) Can(ctx context.Context, ev Event) error {
	return d.engine.Can(ctx, d.inst, ev.Name, ev.Payload)
}

// PermittedEvents returns the events with an edge from the current state
func (d *Dynamic[C]) PermittedEvents() []string {
	return d.engine.PermittedEvents(d.inst)
}

// Data returns the storage owned by owner, or a WrongStateError when the
// current state does not occupy owner
func (d *Dynamic[C]) Data(owner string) (any, error) {
	v, ok := d.inst.Storage(owner)
	if !ok {
		return nil, &WrongStateError{Expected: owner, Actual: d.inst.state, Operation: "data"}
	}
	return v, nil
}

// SetData replaces the storage owned by owner
func (d *Dynamic[C]) SetData(owner string, v any) error {
	if _, ok := d.inst.Storage(owner); !ok {
		return &WrongStateError{Expected: owner, Actual: d.inst.state, Operation: "set data"}
	}
	d.inst.storage[owner] = v
	return nil
}

// Extract returns the instance when the wrapper is in state. The wrapper is
// spent afterwards. On a mismatch the wrapper stays usable.
func (d *Dynamic[C]) Extract(state string) (*Instance[C], error) {
	if d.inst.spent {
		return nil, fmt.Errorf("extract: %w: %s", ErrStaleInstance, d.inst)
	}
	if d.inst.state != state {
		return nil, &WrongStateError{Expected: state, Actual: d.inst.state, Operation: "extract"}
	}
	out := d.inst.clone()
	d.inst.spent = true
	return out, nil
}

// DynamicData returns the storage owned by owner as *T
func DynamicData[T any, C any](d *Dynamic[C], owner string) (*T, error) {
	return Data[T](d.inst, owner)
}
