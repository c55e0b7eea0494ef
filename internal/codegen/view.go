package codegen

import (
	"fmt"

	"github.com/garyjia/statecraft/pkg/machine"
	"github.com/garyjia/statecraft/pkg/utils"
)

type fileView struct {
	Package       string
	Machine       string
	Async         bool
	Dynamic       bool
	UsesContext   bool
	Imports       []string
	FSMImport     string
	MachineImport string
	ModelLiteral  string
	Initial       stateView
	States        []stateView
	Superstates   []superView
	Events        []eventView
	Storage       []accessorView
	Polymorphic   []polyView
}

type stateView struct {
	Name    string
	Type    string
	Const   string
	Markers []string
	Storage []accessorView
	Edges   []edgeView
}

type superView struct {
	Name      string
	Const     string
	Interface string
	Marker    string
	Storage   []accessorView
}

type eventView struct {
	Name        string
	Const       string
	Constructor string
	Payload     string
}

type edgeView struct {
	Method     string
	Event      string
	EventConst string
	Target     string
	TargetType string
	Payload    string
}

type accessorView struct {
	Method     string
	Owner      string
	OwnerConst string
	Type       string
}

type polyView struct {
	Func       string
	Superstate string
	Interface  string
	Event      string
	EventConst string
	Target     string
	TargetType string
	Payload    string
}

func (g *Generator) buildView(def *machine.Definition) (*fileView, error) {
	pkg := g.PackageName(def)
	if reservedPackages[pkg] {
		return nil, fmt.Errorf("%w: package name %q clashes with an import", ErrInvalidName, pkg)
	}

	h := def.Hierarchy()
	view := &fileView{
		Package:       pkg,
		Machine:       def.Name(),
		Async:         def.Async(),
		Dynamic:       def.Dynamic() || g.opts.Dynamic,
		Imports:       g.opts.Imports,
		FSMImport:     defaultFSMImport,
		MachineImport: defaultMachineImport,
		ModelLiteral:  fmt.Sprintf("%#v", *def.Model()),
	}

	if !utils.IsIdentifier(pkg) {
		return nil, fmt.Errorf("%w: package name %q", ErrInvalidName, pkg)
	}
	pkgScope := newScope("package "+pkg, "Async", "Definition", "Machine", "New", "Dynamic", "definition")

	accessors := make(map[string]accessorView)
	for _, spec := range def.StorageSpecs() {
		a := accessorView{
			Method:     storageAccessor(spec.Owner),
			Owner:      spec.Owner,
			OwnerConst: stateConst(spec.Owner),
			Type:       spec.Type,
		}
		accessors[spec.Owner] = a
		view.Storage = append(view.Storage, a)
	}

	for _, ev := range def.Events() {
		e := eventView{
			Name:        ev.Name,
			Const:       eventConst(ev.Name),
			Constructor: eventConstructor(ev.Name),
			Payload:     ev.Payload,
		}
		if err := pkgScope.declare(e.Const, "event "+ev.Name); err != nil {
			return nil, err
		}
		if view.Dynamic {
			if err := pkgScope.declare(e.Constructor, "event constructor "+ev.Name); err != nil {
				return nil, err
			}
		}
		view.Events = append(view.Events, e)
	}

	for _, name := range h.Superstates() {
		s := superView{
			Name:      name,
			Const:     stateConst(name),
			Interface: superInterface(name),
			Marker:    superMarker(name),
		}
		for _, owner := range h.Chain(name) {
			if a, ok := accessors[owner]; ok {
				s.Storage = append(s.Storage, a)
			}
		}
		if err := pkgScope.declare(s.Const, "superstate "+name); err != nil {
			return nil, err
		}
		if err := pkgScope.declare(s.Interface, "superstate "+name); err != nil {
			return nil, err
		}
		view.Superstates = append(view.Superstates, s)
	}

	for _, name := range h.Leaves() {
		st, err := g.buildState(def, name, accessors, pkgScope, view.Dynamic)
		if err != nil {
			return nil, err
		}
		if len(st.Edges) > 0 {
			view.UsesContext = true
		}
		view.States = append(view.States, st)
		if name == def.Initial() {
			view.Initial = st
		}
	}

	for _, p := range def.Graph().Polymorphic() {
		pv := polyView{
			Func:       polymorphicFunc(p.Superstate, p.Event),
			Superstate: p.Superstate,
			Interface:  superInterface(p.Superstate),
			Event:      p.Event,
			EventConst: eventConst(p.Event),
			Target:     p.Target,
			TargetType: typeName(p.Target),
			Payload:    p.Payload,
		}
		if err := pkgScope.declare(pv.Func, fmt.Sprintf("%s from superstate %s", p.Event, p.Superstate)); err != nil {
			return nil, err
		}
		view.UsesContext = true
		view.Polymorphic = append(view.Polymorphic, pv)
	}

	return view, nil
}

func (g *Generator) buildState(def *machine.Definition, name string, accessors map[string]accessorView, pkgScope *scope, dynamic bool) (stateView, error) {
	h := def.Hierarchy()
	st := stateView{
		Name:  name,
		Type:  typeName(name),
		Const: stateConst(name),
	}
	if err := pkgScope.declare(st.Type, "state "+name); err != nil {
		return st, err
	}
	if err := pkgScope.declare(st.Const, "state "+name); err != nil {
		return st, err
	}

	methods := newScope("state type "+st.Type, "State", "Context", "instance", "owner", "m", "inst")
	if dynamic {
		if err := methods.declare("IntoDynamic", "dynamic wrapper"); err != nil {
			return st, err
		}
	}

	for _, super := range h.Ancestors(name) {
		marker := superMarker(super)
		if err := methods.declare(marker, "superstate "+super); err != nil {
			return st, err
		}
		st.Markers = append(st.Markers, marker)
	}

	for _, owner := range def.StorageOwners(name) {
		a := accessors[owner]
		if err := methods.declare(a.Method, "storage of "+owner); err != nil {
			return st, err
		}
		st.Storage = append(st.Storage, a)
	}

	for _, edge := range def.Graph().From(name) {
		e := edgeView{
			Method:     eventMethod(edge.Event),
			Event:      edge.Event,
			EventConst: eventConst(edge.Event),
			Target:     edge.Target,
			TargetType: typeName(edge.Target),
			Payload:    edge.Payload,
		}
		if err := methods.declare(e.Method, "event "+edge.Event); err != nil {
			return st, err
		}
		if err := methods.declare("Can"+e.Method, "event "+edge.Event); err != nil {
			return st, err
		}
		st.Edges = append(st.Edges, e)
	}
	return st, nil
}
