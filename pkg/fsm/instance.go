package fsm

import (
	"fmt"
	"sort"
)

// Instance is one machine value: its current leaf state, the caller's
// context and the storage of every state it occupies.
// A successful Fire returns a new Instance and marks this one spent.
type Instance[C any] struct {
	machine string
	state   string
	context C
	storage map[string]any
	spent   bool
}

// Machine returns the machine name
func (i *Instance[C]) Machine() string {
	return i.machine
}

// State returns the current leaf state
func (i *Instance[C]) State() string {
	return i.state
}

// Context returns the caller's context
func (i *Instance[C]) Context() *C {
	return &i.context
}

// Spent returns true if the instance was consumed by a transition
func (i *Instance[C]) Spent() bool {
	return i.spent
}

// Storage returns the storage owned by owner. It is present only while the
// instance occupies owner or one of its descendants.
func (i *Instance[C]) Storage(owner string) (any, bool) {
	v, ok := i.storage[owner]
	return v, ok
}

// SetStorage replaces the storage owned by owner
func (i *Instance[C]) SetStorage(owner string, v any) error {
	if _, ok := i.storage[owner]; !ok {
		return &WrongStateError{Expected: owner, Actual: i.state, Operation: "set storage"}
	}
	i.storage[owner] = v
	return nil
}

// StorageOwners returns the owners of the storage currently present, sorted
func (i *Instance[C]) StorageOwners() []string {
	owners := make([]string, 0, len(i.storage))
	for owner := range i.storage {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners
}

func (i *Instance[C]) String() string {
	return fmt.Sprintf("%s(%s)", i.machine, i.state)
}

func (i *Instance[C]) clone() *Instance[C] {
	storage := make(map[string]any, len(i.storage))
	for k, v := range i.storage {
		storage[k] = v
	}
	return &Instance[C]{
		machine: i.machine,
		state:   i.state,
		context: i.context,
		storage: storage,
	}
}

// Data returns the storage owned by owner as *T
func Data[T any, C any](inst *Instance[C], owner string) (*T, error) {
	v, ok := inst.storage[owner]
	if !ok {
		return nil, &WrongStateError{Expected: owner, Actual: inst.state, Operation: "data"}
	}
	typed, ok := v.(*T)
	if !ok {
		return nil, fmt.Errorf("storage of %s is %T, not %T", owner, v, typed)
	}
	return typed, nil
}
